package ipsmap

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// IPSThreshold is the exclusive upper bound on IPS for a facility to be shown.
// It is a fixed business rule: only facilities with IPS strictly below 100.
const IPSThreshold = 100.0

// maxSuggestDistance caps the edit distance of a suggestion.
const maxSuggestDistance = 3

// Selection is one combination of the three user selectors.
type Selection struct {
	Year       string   `json:"year" yaml:"year"`         // rentree_scolaire, exact match
	Types      []string `json:"types" yaml:"types"`       // Type_etablissement set; empty selects every type
	ElectionID string   `json:"election" yaml:"election"` // id_election, exact match
}

func (s Selection) normalized() Selection {
	out := Selection{Year: normalizeLabel(s.Year), ElectionID: normalizeLabel(s.ElectionID)}
	for _, t := range s.Types {
		out.Types = append(out.Types, normalizeLabel(t))
	}
	return out
}

// FilterFacilities keeps the facilities with a known IPS strictly below
// IPSThreshold, of the selected school year and of one of the selected types.
func FilterFacilities(facilities []Facility, sel Selection) []Facility {
	sel = sel.normalized()
	var types map[string]bool
	if len(sel.Types) > 0 {
		types = make(map[string]bool, len(sel.Types))
		for _, t := range sel.Types {
			types[t] = true
		}
	}

	var out []Facility
	for _, f := range facilities {
		if f.IPS == nil || !(*f.IPS < IPSThreshold) {
			continue
		}
		if f.Year != sel.Year {
			continue
		}
		if types != nil && !types[f.Type] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilterElections keeps the results of the selected election. An unknown
// election id yields an empty slice.
func FilterElections(results []ElectionResult, electionID string) []ElectionResult {
	electionID = normalizeLabel(electionID)
	var out []ElectionResult
	for _, r := range results {
		if r.ElectionID == electionID {
			out = append(out, r)
		}
	}
	return out
}

// SelectorOptions lists the values offered by each selector, in first-seen
// order, and the default facility type selection.
type SelectorOptions struct {
	Years        []string `json:"years" yaml:"years"`
	Types        []string `json:"types" yaml:"types"`
	Elections    []string `json:"elections" yaml:"elections"`
	DefaultTypes []string `json:"default_types" yaml:"default_types"`
}

// Options computes the selector values from merged facilities and election
// results.
func Options(facilities []Facility, results []ElectionResult) SelectorOptions {
	var o SelectorOptions
	years, types, elections := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, f := range facilities {
		if !years[f.Year] {
			years[f.Year] = true
			o.Years = append(o.Years, f.Year)
		}
		if !types[f.Type] {
			types[f.Type] = true
			o.Types = append(o.Types, f.Type)
		}
	}
	for _, r := range results {
		if !elections[r.ElectionID] {
			elections[r.ElectionID] = true
			o.Elections = append(o.Elections, r.ElectionID)
		}
	}
	o.DefaultTypes = append([]string(nil), o.Types...)
	return o
}

// Default returns the selection a fresh session starts with: first year,
// every type, first election.
func (o SelectorOptions) Default() Selection {
	var sel Selection
	if len(o.Years) > 0 {
		sel.Year = o.Years[0]
	}
	if len(o.Elections) > 0 {
		sel.ElectionID = o.Elections[0]
	}
	sel.Types = append([]string(nil), o.DefaultTypes...)
	return sel
}

// Suggest returns the option closest to value by edit distance, or "" when
// value is already an option or nothing is close enough.
func Suggest(value string, options []string) string {
	value = normalizeLabel(value)
	best, bestDist := "", maxSuggestDistance+1
	for _, o := range options {
		if o == value {
			return ""
		}
		d := levenshtein.ComputeDistance(strings.ToLower(value), strings.ToLower(o))
		if d < bestDist {
			best, bestDist = o, d
		}
	}
	return best
}
