package geo

import (
	"math"

	"realestate-lt/models"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance between a and b in kilometres
// (haversine). Invalid input propagates as NaN.
func Distance(a, b Point) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox returns a rectangle that contains every point within radiusKm of p.
func BoundingBox(p Point, radiusKm float64) models.Bounds {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	cosLat := math.Cos(deg2rad(p.Lat))
	dLng := 180.0
	if cosLat > 1e-9 {
		dLng = math.Min(180, dLat/cosLat)
	}
	return models.Bounds{
		MinLat: p.Lat - dLat,
		MaxLat: p.Lat + dLat,
		MinLng: p.Lng - dLng,
		MaxLng: p.Lng + dLng,
	}
}

// ListingPoint returns the listing's coordinates, if it has any.
func ListingPoint(l *models.Listing) (Point, bool) {
	if !l.HasLocation() {
		return Point{}, false
	}
	return Point{Lat: *l.Latitude, Lng: *l.Longitude}, true
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
