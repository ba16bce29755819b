package ipsmap

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// DepartmentsGeoJSON encodes every department with the statistics of the
// current selection as properties: code, nom, min, median, max, count and
// Abstention_Rate. Departments without IPS statistics carry null min, median
// and max so the choropleth still draws their outline; Abstention_Rate comes
// from the selected election alone and is null only without a result row.
func (r *Result) DepartmentsGeoJSON() ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(r.Departments))}
	for _, d := range r.Departments {
		props := map[string]interface{}{
			"code":            d.Code,
			"nom":             d.Name,
			"min":             nil,
			"median":          nil,
			"max":             nil,
			"count":           0,
			"Abstention_Rate": nil,
		}
		if d.Stats != nil {
			props["min"] = d.Stats.Min
			props["median"] = d.Stats.Median
			props["max"] = d.Stats.Max
			props["count"] = d.Stats.Count
		}
		if d.AbstentionRate != nil {
			props["Abstention_Rate"] = *d.AbstentionRate
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         d.Code,
			Geometry:   d.Geometry,
			Properties: props,
		})
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encoding departments: %w", err)
	}
	return b, nil
}

// MarkersGeoJSON encodes the joined facilities as points with uai, nom, ips,
// department code and the popup text shown on the marker.
func (r *Result) MarkersGeoJSON() ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(r.Facilities))}
	for _, f := range r.Facilities {
		if f.Point == nil {
			continue
		}
		props := map[string]interface{}{
			"uai":   f.UAI,
			"nom":   f.Name,
			"type":  f.Type,
			"code":  f.DepartmentCode,
			"popup": MarkerPopup(f.Facility),
		}
		if f.IPS != nil {
			props["ips"] = *f.IPS
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.UAI,
			Geometry:   f.Point,
			Properties: props,
		})
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encoding markers: %w", err)
	}
	return b, nil
}

// MarkerPopup is the text shown when a marker is clicked: "name: IPS=value".
func MarkerPopup(f Facility) string {
	ips := "nan"
	if f.IPS != nil {
		ips = strconv.FormatFloat(*f.IPS, 'f', -1, 64)
	}
	return fmt.Sprintf("%s: IPS=%s", f.Name, ips)
}
