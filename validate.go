package ipsmap

import (
	"fmt"
)

// Validation thresholds for a prepared dataset.
const (
	minDepartmentCount = 1
	minFacilityCount   = 1
	minElectionCount   = 1
)

// ValidationReport summarizes a dataset check.
type ValidationReport struct {
	Facilities        int
	WithPoint         int
	Located           int // facilities whose point lies within some department
	Departments       int
	Elections         int
	ElectionDepts     int // distinct department codes in the election table
	UnknownElectDepts []string // election codes no boundary carries
	InvalidElectDepts []string // election codes that are not department codes at all
}

// Validate performs integrity checks on a prepared dataset: every table has
// rows, and facility points and department polygons overlap. Department
// codes of the election table that no polygon carries are reported but are
// not an error (overseas results may have no boundary).
func Validate(ds *Dataset) (*ValidationReport, error) {
	rep := &ValidationReport{
		Facilities:  len(ds.Facilities),
		Departments: len(ds.Index.Departments()),
		Elections:   len(ds.Options.Elections),
	}
	if rep.Facilities < minFacilityCount {
		return rep, fmt.Errorf("%w: facility count too low: got %d, want >= %d", ErrLoad, rep.Facilities, minFacilityCount)
	}
	if rep.Departments < minDepartmentCount {
		return rep, fmt.Errorf("%w: department count too low: got %d, want >= %d", ErrLoad, rep.Departments, minDepartmentCount)
	}
	if rep.Elections < minElectionCount {
		return rep, fmt.Errorf("%w: election count too low: got %d, want >= %d", ErrLoad, rep.Elections, minElectionCount)
	}

	for _, f := range ds.Facilities {
		if f.Point == nil {
			continue
		}
		rep.WithPoint++
		if _, ok := ds.Index.Locate(f.Longitude, f.Latitude); ok {
			rep.Located++
		}
	}
	if rep.WithPoint > 0 && rep.Located == 0 {
		return rep, joinErrorf("none of %d facility points fell within any department", rep.WithPoint)
	}

	known := make(map[string]bool, rep.Departments)
	for _, d := range ds.Index.Departments() {
		known[d.Code] = true
	}
	seen := make(map[string]bool)
	for _, r := range ds.Elections {
		if seen[r.DepartmentCode] {
			continue
		}
		seen[r.DepartmentCode] = true
		if !known[r.DepartmentCode] {
			rep.UnknownElectDepts = append(rep.UnknownElectDepts, r.DepartmentCode)
		}
		if !IsDepartmentCode(r.DepartmentCode) {
			rep.InvalidElectDepts = append(rep.InvalidElectDepts, r.DepartmentCode)
		}
	}
	rep.ElectionDepts = len(seen)
	if rep.ElectionDepts > 0 && len(rep.UnknownElectDepts) == rep.ElectionDepts {
		return rep, joinErrorf("none of %d election department codes matches a boundary code", rep.ElectionDepts)
	}
	return rep, nil
}
