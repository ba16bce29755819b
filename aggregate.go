package ipsmap

import (
	"sort"
)

// JoinedFacility is a facility together with the department containing it.
type JoinedFacility struct {
	Facility
	DepartmentCode string
	DepartmentName string
}

// SpatialJoin keeps the facilities whose point lies strictly within a
// department and tags them with that department. Facilities without a point
// are skipped; facilities outside every department are dropped, so a
// selection can legitimately join nothing. Coordinate system alignment is
// checked once per dataset by Validate.
func SpatialJoin(facilities []Facility, idx *DepartmentIndex) []JoinedFacility {
	var out []JoinedFacility
	for _, f := range facilities {
		if f.Point == nil {
			continue
		}
		d, ok := idx.Locate(f.Longitude, f.Latitude)
		if !ok {
			continue
		}
		out = append(out, JoinedFacility{Facility: f, DepartmentCode: d.Code, DepartmentName: d.Name})
	}
	return out
}

// Aggregate computes IPS min, median and max per department. Departments
// without any joined facility get no row. Rows are sorted by department code.
func Aggregate(joined []JoinedFacility) []DepartmentStats {
	groups := make(map[string][]float64)
	for _, j := range joined {
		if j.IPS == nil {
			continue
		}
		groups[j.DepartmentCode] = append(groups[j.DepartmentCode], *j.IPS)
	}

	out := make([]DepartmentStats, 0, len(groups))
	for code, values := range groups {
		sort.Float64s(values)
		out = append(out, DepartmentStats{
			Code:   code,
			Min:    values[0],
			Median: median(values),
			Max:    values[len(values)-1],
			Count:  len(values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// median of sorted values; the mean of the two middle values for even counts.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MergeElection inner-joins the statistics with the election results on
// department code. Departments missing on either side are dropped. Code
// format alignment is checked once per dataset by Validate.
func MergeElection(stats []DepartmentStats, results []ElectionResult) []DepartmentStats {
	rates := make(map[string]float64, len(results))
	for _, r := range results {
		rates[r.DepartmentCode] = r.AbstentionRate
	}

	out := make([]DepartmentStats, 0, len(stats))
	for _, s := range stats {
		rate, ok := rates[s.Code]
		if !ok {
			continue
		}
		s.AbstentionRate = rate
		out = append(out, s)
	}
	return out
}
