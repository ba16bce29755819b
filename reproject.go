package ipsmap

import (
	"fmt"
	"math"
	"strings"
)

// CRS identifies a coordinate reference system the pipeline understands.
type CRS string

const (
	CRSWGS84     CRS = "EPSG:4326" // longitude/latitude degrees
	CRSLambert93 CRS = "EPSG:2154" // RGF93 / Lambert-93 metres
)

// ParseCRS maps the names found in GeoJSON "crs" members and configuration
// ("EPSG:2154", "urn:ogc:def:crs:EPSG::2154", "urn:ogc:def:crs:OGC:1.3:CRS84")
// to a CRS. An empty name means WGS84, the GeoJSON default.
func ParseCRS(name string) (CRS, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case n == "", strings.HasSuffix(n, "CRS84"), strings.HasSuffix(n, ":4326"), n == "WGS84":
		return CRSWGS84, nil
	case strings.HasSuffix(n, ":2154"), n == "LAMBERT93":
		return CRSLambert93, nil
	}
	return "", fmt.Errorf("%w: unsupported CRS %q", ErrCRS, name)
}

// Lambert-93 projection constants (IGN, GRS80 ellipsoid).
const (
	l93E  = 0.08181919104281579 // first eccentricity of GRS80
	l93N  = 0.7256077650532670
	l93C  = 11754255.426096
	l93Xs = 700000.0
	l93Ys = 12655612.049876
	l93L0 = 3.0 * math.Pi / 180 // central meridian
)

// lambert93ToWGS84 inverts the Lambert-93 conic projection. RGF93 and WGS84
// agree to well under a metre, so no datum shift is applied.
func lambert93ToWGS84(x, y float64) (lon, lat float64) {
	dx, dy := x-l93Xs, y-l93Ys
	r := math.Hypot(dx, dy)
	gamma := math.Atan(dx / -dy)
	lonRad := l93L0 + gamma/l93N
	iso := -math.Log(r/l93C) / l93N

	phi := 2*math.Atan(math.Exp(iso)) - math.Pi/2
	for i := 0; i < 20; i++ {
		es := l93E * math.Sin(phi)
		next := 2*math.Atan(math.Pow((1+es)/(1-es), l93E/2)*math.Exp(iso)) - math.Pi/2
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return lonRad * 180 / math.Pi, phi * 180 / math.Pi
}

// reprojectFlat converts interleaved coordinates in place to WGS84 lon/lat.
func reprojectFlat(from CRS, flat []float64, stride int) error {
	switch from {
	case CRSWGS84:
		return nil
	case CRSLambert93:
		for i := 0; i+1 < len(flat); i += stride {
			flat[i], flat[i+1] = lambert93ToWGS84(flat[i], flat[i+1])
		}
		return nil
	}
	return fmt.Errorf("%w: no reprojection from %s", ErrCRS, from)
}

// validLonLat reports whether lon/lat are plausible WGS84 degrees.
func validLonLat(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
