package features

import (
	"math"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// KmPerDegree is the flat-earth length of one degree of latitude.
const KmPerDegree = 111.0

// Point is a WGS84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

// ParisCenter is the default reference point.
var ParisCenter = Point{Lat: 48.8566, Lon: 2.3522}

// DistanceFromCenter returns the equirectangular distance in km between
// (lat, lon) and ref. Longitude degrees are scaled by cos(ref.Lat), so the
// result is only meaningful within a few hundred km of ref.
func DistanceFromCenter(lat, lon float64, ref Point) float64 {
	dy := (lat - ref.Lat) * KmPerDegree
	dx := (lon - ref.Lon) * KmPerDegree * math.Cos(ref.Lat*math.Pi/180)
	return math.Sqrt(dx*dx + dy*dy)
}

// DistancesFromCenter applies DistanceFromCenter row-wise.
func DistancesFromCenter(lat, lon []float64, ref Point) ([]float64, error) {
	if len(lat) != len(lon) {
		return nil, errors.NewDimensionError("DistancesFromCenter", len(lat), len(lon), 0)
	}
	out := make([]float64, len(lat))
	for i := range lat {
		out[i] = DistanceFromCenter(lat[i], lon[i], ref)
	}
	return out, nil
}
