// Package geo provides the geodesic primitives used by the navigation engine.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6373.0 * 1e3

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats p as "lat,lng", the form expected by the Directions API
// origin parameter.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// ParsePoint parses a "lat,lng" pair such as the loc field returned by IP
// geolocation services.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid coordinate pair: %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude: %q", parts[0])
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude: %q", parts[1])
	}

	return Point{Lat: lat, Lng: lng}, nil
}

// Distance is the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dlat := radians(b.Lat - a.Lat)
	dlng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// NormalizeHeading clamps a heading in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// cardinalBearings maps cardinal direction names to compass bearings.
var cardinalBearings = map[string]float64{
	"north":     0,
	"northeast": 45,
	"east":      90,
	"southeast": 135,
	"south":     180,
	"southwest": 225,
	"west":      270,
	"northwest": 315,
}

// Cardinals lists the cardinal direction names in match order. Compound
// directions come first so a substring search never matches "north" inside
// "northeast".
var Cardinals = []string{
	"northeast", "northwest", "southeast", "southwest",
	"east", "west", "north", "south",
}

// TurnDirection reports whether a walker heading headingDeg should turn
// "left" or "right" to face cardinal. The clockwise angle to the target
// bearing decides: under 180 degrees means a right turn.
func TurnDirection(headingDeg float64, cardinal string) (string, error) {
	target, ok := cardinalBearings[strings.ToLower(cardinal)]
	if !ok {
		return "", fmt.Errorf("unknown cardinal direction: %q", cardinal)
	}

	diff := math.Mod(target-NormalizeHeading(headingDeg)+360, 360)
	if diff < 180 {
		return "right", nil
	}
	return "left", nil
}
