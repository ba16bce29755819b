package ipsmap

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// DefaultClusterPrecision is the geohash length used to bucket markers.
// Five characters is about 5km x 5km, close to a commune.
const DefaultClusterPrecision = 5

// MarkerCluster groups the markers that share a geohash prefix.
type MarkerCluster struct {
	Geohash   string   `json:"geohash" yaml:"geohash"`
	Count     int      `json:"count" yaml:"count"`
	Longitude float64  `json:"lon" yaml:"lon"` // centroid of the members
	Latitude  float64  `json:"lat" yaml:"lat"`
	MinIPS    float64  `json:"min_ips" yaml:"min_ips"`
	UAIs      []string `json:"uais" yaml:"uais"`
}

// ClusterMarkers buckets joined facilities by geohash of the given precision.
// Clusters are sorted by geohash; members keep their input order.
func ClusterMarkers(joined []JoinedFacility, precision int) []MarkerCluster {
	if precision <= 0 {
		precision = DefaultClusterPrecision
	}
	byHash := make(map[string]*MarkerCluster)
	for _, j := range joined {
		if j.Point == nil || j.IPS == nil {
			continue
		}
		h := geohash.EncodeWithPrecision(j.Latitude, j.Longitude, precision)
		c, ok := byHash[h]
		if !ok {
			c = &MarkerCluster{Geohash: h, MinIPS: *j.IPS}
			byHash[h] = c
		}
		c.Count++
		c.Longitude += j.Longitude
		c.Latitude += j.Latitude
		if *j.IPS < c.MinIPS {
			c.MinIPS = *j.IPS
		}
		c.UAIs = append(c.UAIs, j.UAI)
	}

	out := make([]MarkerCluster, 0, len(byHash))
	for _, c := range byHash {
		c.Longitude /= float64(c.Count)
		c.Latitude /= float64(c.Count)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Geohash < out[j].Geohash })
	return out
}
