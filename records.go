package ipsmap

import (
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/unicode/norm"
)

// FacilitySource tells which registry a facility row came from.
type FacilitySource string

const (
	SourceCollege FacilitySource = "college"
	SourceLycee   FacilitySource = "lycee"
)

// Facility is one school facility for one school year.
type Facility struct {
	UAI       string         // National facility identifier, join key with the directory
	Name      string         // Display name (directory name when available)
	Type      string         // Type_etablissement, NFC-normalized
	Year      string         // rentree_scolaire
	IPS       *float64       // nil when the source cell is empty
	Longitude float64        // WGS84 degrees
	Latitude  float64        // WGS84 degrees
	HasCoords bool           // false when lat or long is missing
	Source    FacilitySource // college or lycee registry
	Directory DirectoryEntry // Attributes joined from the directory on UAI
	Point     *geom.Point    // nil until enriched, and for rows without coordinates
}

// HasIPS reports whether the facility carries an IPS score.
func (f Facility) HasIPS() bool { return f.IPS != nil }

// DirectoryEntry holds the directory attributes of a facility.
type DirectoryEntry struct {
	UAI            string
	Name           string
	Commune        string
	PostalCode     string
	DepartmentCode string
	Attributes     map[string]string // every other column, keyed by header
}

// ElectionResult is the abstention rate of one department in one election.
type ElectionResult struct {
	ElectionID     string
	DepartmentCode string
	AbstentionRate float64 // percentage
}

// Department is a department boundary from the boundary file.
type Department struct {
	Code     string
	Name     string
	Geometry *geom.MultiPolygon // WGS84 lon/lat
}

// DepartmentStats is the derived per-department summary for one render pass.
type DepartmentStats struct {
	Code           string  `json:"code" yaml:"code"`
	Min            float64 `json:"min" yaml:"min"`
	Median         float64 `json:"median" yaml:"median"`
	Max            float64 `json:"max" yaml:"max"`
	Count          int     `json:"count" yaml:"count"`
	AbstentionRate float64 `json:"Abstention_Rate" yaml:"abstention_rate"`
}

// NormalizeDepartmentCode returns the canonical form of a department code:
// trimmed, upper-cased, and numeric codes padded to two digits ("1" -> "01").
// Overseas codes ("971") and Corsica ("2A", "2B") are kept as is.
func NormalizeDepartmentCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 1 && code[0] >= '0' && code[0] <= '9' {
		return "0" + code
	}
	return code
}

// normalizeLabel cleans a categorical label (facility type, year, election id)
// so that values typed in different encodings compare equal.
func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
