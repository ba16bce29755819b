package ipsmap

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
)

// DepartmentRef is an entry of the INSEE department reference list.
type DepartmentRef struct {
	Code string // "01".."95", "2A", "2B", "971".."976"
	Name string
}

// Loaded from departments.tsv.
// Format: CODE<tab>Name
//
//go:embed departments.tsv
var departmentsTSV string

var departmentRefs map[string]DepartmentRef
var departmentRefsOnce sync.Once

func loadDepartmentRefs() {
	departmentRefsOnce.Do(func() {
		departmentRefs = make(map[string]DepartmentRef, 101)

		scanner := bufio.NewScanner(strings.NewReader(departmentsTSV))
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			fields := strings.SplitN(line, "\t", 2)
			if len(fields) != 2 {
				continue
			}
			departmentRefs[fields[0]] = DepartmentRef{Code: fields[0], Name: fields[1]}
		}
	})
}

// IsDepartmentCode reports whether code, once normalized, is a known
// department code.
func IsDepartmentCode(code string) bool {
	loadDepartmentRefs()
	_, ok := departmentRefs[NormalizeDepartmentCode(code)]
	return ok
}

// DepartmentName returns the reference name of a department code, or "" for
// an unknown code.
func DepartmentName(code string) string {
	loadDepartmentRefs()
	return departmentRefs[NormalizeDepartmentCode(code)].Name
}
