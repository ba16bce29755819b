package ipsmap

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// indexCellLevel is the S2 level of the department index. Level 7 cells are
// roughly 60km across: a metropolitan department bounding box is covered by a
// handful of them, and most facility lookups see one or two candidates.
const indexCellLevel = 7

// maxIndexCells bounds the covering of a single department.
const maxIndexCells = 512

// Enrich returns a copy of facilities with a WGS84 point attached to every row
// that has coordinates. Rows without coordinates, or with coordinates outside
// the WGS84 range, keep a nil Point and never take part in a spatial join.
//
// When every row with coordinates is out of range the facility table is not
// in longitude/latitude at all and ErrCRS is returned.
func Enrich(facilities []Facility) ([]Facility, error) {
	out := make([]Facility, len(facilities))
	var withCoords, valid int
	for i, f := range facilities {
		f.Point = nil
		if f.HasCoords {
			withCoords++
			if validLonLat(f.Longitude, f.Latitude) {
				valid++
				f.Point = geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{f.Longitude, f.Latitude})
			}
		}
		out[i] = f
	}
	if withCoords > 0 && valid == 0 {
		return nil, fmt.Errorf("%w: none of %d facility coordinates are WGS84 longitude/latitude", ErrCRS, withCoords)
	}
	return out, nil
}

// geojsonCRS is the legacy (pre RFC 7946) "crs" member.
type geojsonCRS struct {
	CRS *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// LoadDepartments reads the department boundary file. fallbackCRS applies when
// the file declares no CRS; declared and fallback CRS other than WGS84 are
// reprojected to WGS84 here, so everything downstream is lon/lat.
func LoadDepartments(path string, fallbackCRS string) ([]Department, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var declared geojsonCRS
	if err := json.Unmarshal(data, &declared); err != nil {
		return nil, loadErrorf(path, "decoding GeoJSON: %w", err)
	}
	crsName := fallbackCRS
	if declared.CRS != nil && declared.CRS.Properties.Name != "" {
		crsName = declared.CRS.Properties.Name
	}
	crs, err := ParseCRS(crsName)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, loadErrorf(path, "decoding feature collection: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, loadErrorf(path, "no department features")
	}

	depts := make([]Department, 0, len(fc.Features))
	seen := make(map[string]int)
	for i, feat := range fc.Features {
		code := NormalizeDepartmentCode(propertyString(feat.Properties, "code"))
		if code == "" {
			return nil, loadErrorf(path, "feature %d: missing code property", i)
		}
		if prev, dup := seen[code]; dup {
			return nil, loadErrorf(path, "feature %d: duplicate department code %q (feature %d)", i, code, prev)
		}
		seen[code] = i

		mp, err := toMultiPolygon(feat.Geometry)
		if err != nil {
			return nil, loadErrorf(path, "feature %d (%s): %w", i, code, err)
		}
		if err := reprojectFlat(crs, mp.FlatCoords(), mp.Stride()); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if b := mp.Bounds(); !validLonLat(b.Min(0), b.Min(1)) || !validLonLat(b.Max(0), b.Max(1)) {
			return nil, loadErrorf(path, "feature %d (%s): %w: bounds outside WGS84 after reading as %s", i, code, ErrCRS, crs)
		}

		name := propertyString(feat.Properties, "nom", "name")
		if name == "" {
			name = DepartmentName(code)
		}
		depts = append(depts, Department{
			Code:     code,
			Name:     name,
			Geometry: mp,
		})
	}
	return depts, nil
}

// propertyString returns the first present property as a string. Numeric
// codes ("code": 75) are formatted without a decimal part.
func propertyString(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}

// toMultiPolygon accepts Polygon and MultiPolygon geometries.
func toMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, fmt.Errorf("empty multipolygon")
		}
		return t, nil
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, fmt.Errorf("empty polygon")
		}
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, err
		}
		return mp, nil
	case nil:
		return nil, fmt.Errorf("missing geometry")
	}
	return nil, fmt.Errorf("unsupported geometry %T", g)
}

// strictlyWithin reports whether c lies in the interior of mp: inside a shell,
// outside every hole of that shell, and on no ring at all. Points on a
// boundary are not within.
func strictlyWithin(mp *geom.MultiPolygon, c geom.Coord) bool {
	layout := mp.Layout()
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		switch xy.LocatePointInRing(layout, c, p.LinearRing(0).FlatCoords()) {
		case location.Boundary:
			return false
		case location.Exterior:
			continue
		}
		inHole := false
		for h := 1; h < p.NumLinearRings(); h++ {
			switch xy.LocatePointInRing(layout, c, p.LinearRing(h).FlatCoords()) {
			case location.Boundary:
				return false
			case location.Interior:
				inHole = true
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// DepartmentIndex finds the department containing a point. Departments are
// bucketed by the S2 cells covering their bounding rectangles.
// Safe for concurrent use after construction.
type DepartmentIndex struct {
	departments []Department
	bounds      []*geom.Bounds
	cellIndex   map[s2.CellID][]int // S2 cell -> department positions, ascending
}

// NewDepartmentIndex builds the index. Department order is kept: it is the
// tie-break when polygons overlap.
func NewDepartmentIndex(depts []Department) *DepartmentIndex {
	idx := &DepartmentIndex{
		departments: depts,
		bounds:      make([]*geom.Bounds, len(depts)),
		cellIndex:   make(map[s2.CellID][]int),
	}
	coverer := &s2.RegionCoverer{MinLevel: indexCellLevel, MaxLevel: indexCellLevel, MaxCells: maxIndexCells}
	for i, d := range depts {
		b := d.Geometry.Bounds()
		idx.bounds[i] = b
		rect := s2.RectFromLatLng(s2.LatLngFromDegrees(b.Min(1), b.Min(0))).
			AddPoint(s2.LatLngFromDegrees(b.Max(1), b.Max(0)))
		for _, cell := range coverer.Covering(rect) {
			for _, c := range cellsAtLevel(cell, indexCellLevel) {
				idx.cellIndex[c] = append(idx.cellIndex[c], i)
			}
		}
	}
	return idx
}

// cellsAtLevel expands cell to its descendants at level (or its ancestor when
// cell is finer than level).
func cellsAtLevel(cell s2.CellID, level int) []s2.CellID {
	if cell.Level() >= level {
		return []s2.CellID{cell.Parent(level)}
	}
	var out []s2.CellID
	for c, end := cell.ChildBeginAtLevel(level), cell.ChildEndAtLevel(level); c != end; c = c.Next() {
		out = append(out, c)
	}
	return out
}

// Departments returns the indexed departments in boundary-file order.
func (idx *DepartmentIndex) Departments() []Department {
	return idx.departments
}

// Locate returns the first department, in boundary-file order, whose interior
// strictly contains (lon, lat).
func (idx *DepartmentIndex) Locate(lon, lat float64) (Department, bool) {
	if !validLonLat(lon, lat) {
		return Department{}, false
	}
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(indexCellLevel)
	c := geom.Coord{lon, lat}
	for _, i := range idx.cellIndex[cell] {
		b := idx.bounds[i]
		if lon < b.Min(0) || lon > b.Max(0) || lat < b.Min(1) || lat > b.Max(1) {
			continue
		}
		if strictlyWithin(idx.departments[i].Geometry, c) {
			return idx.departments[i], true
		}
	}
	return Department{}, false
}
