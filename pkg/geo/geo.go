// Package geo has the little bits of spherical geometry needed to find
// places around the current location.
package geo

import (
	"math"
)

const (
	// EarthRadius is the mean earth radius in meters.
	EarthRadius = 6371009.0

	// RadiusFactor turns a location's accuracy into a search radius.
	RadiusFactor = 15
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a lat/lon rectangle. SouthWest.Lon may be larger than
// NorthEast.Lon when the box crosses the antimeridian.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// Radius returns the search radius in meters for a location accuracy.
func Radius(accuracy float64) int {
	return int(math.Round(accuracy * RadiusFactor))
}

// BoundsAround returns the square box whose corners lie radius*sqrt(2)
// away from center at headings 225° and 45°.
func BoundsAround(center LatLng, radius float64) Bounds {
	corner := radius * math.Sqrt2
	return Bounds{
		SouthWest: Offset(center, corner, 225),
		NorthEast: Offset(center, corner, 45),
	}
}

// Contains reports whether ll lies inside the box, edges included.
func (b Bounds) Contains(ll LatLng) bool {
	if ll.Lat < b.SouthWest.Lat || ll.Lat > b.NorthEast.Lat {
		return false
	}
	if b.CrossesAntimeridian() {
		return ll.Lon >= b.SouthWest.Lon || ll.Lon <= b.NorthEast.Lon
	}
	return ll.Lon >= b.SouthWest.Lon && ll.Lon <= b.NorthEast.Lon
}

func (b Bounds) CrossesAntimeridian() bool {
	return b.SouthWest.Lon > b.NorthEast.Lon
}

// Offset returns the point distance meters away from from, travelling along
// a great circle with the given heading in degrees clockwise from north.
func Offset(from LatLng, distance, heading float64) LatLng {
	d := distance / EarthRadius
	h := toRad(heading)
	lat := toRad(from.Lat)
	lon := toRad(from.Lon)

	cosD, sinD := math.Cos(d), math.Sin(d)
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	sinLat2 := cosD*sinLat + sinD*cosLat*math.Cos(h)
	dLon := math.Atan2(math.Sin(h)*sinD*cosLat, cosD-sinLat*sinLat2)

	return LatLng{
		Lat: toDeg(math.Asin(sinLat2)),
		Lon: wrapLon(toDeg(lon + dLon)),
	}
}

// Distance is the great-circle distance in meters between a and b.
func Distance(a, b LatLng) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func wrapLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	return math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
}
