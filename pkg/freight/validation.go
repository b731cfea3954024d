package freight

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IsValidCEP reports whether code is eight ASCII digits once hyphens are removed.
func IsValidCEP(code string) bool {
	digits := NormalizeCEP(code)
	if len(digits) != 8 {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeCEP strips hyphens from code.
func NormalizeCEP(code string) string {
	return strings.ReplaceAll(code, "-", "")
}

// HasValidCoordinates reports whether payload carries a usable
// location.coordinates object. It never panics on malformed input.
func HasValidCoordinates(payload map[string]any) bool {
	_, ok := CoordinatesFromPayload(payload)
	return ok
}

// CoordinatesFromPayload extracts location.coordinates from a loosely typed
// provider payload. Latitude and longitude may be numbers or numeric strings.
func CoordinatesFromPayload(payload map[string]any) (GeoCoordinate, bool) {
	location, ok := payload["location"].(map[string]any)
	if !ok {
		return GeoCoordinate{}, false
	}
	coordinates, ok := location["coordinates"].(map[string]any)
	if !ok {
		return GeoCoordinate{}, false
	}

	rawLat, hasLat := coordinates["latitude"]
	rawLon, hasLon := coordinates["longitude"]
	if !hasLat || !hasLon {
		return GeoCoordinate{}, false
	}

	lat, ok := toFloat(rawLat)
	if !ok {
		return GeoCoordinate{}, false
	}
	lon, ok := toFloat(rawLon)
	if !ok {
		return GeoCoordinate{}, false
	}

	coord := GeoCoordinate{Latitude: lat, Longitude: lon}
	if !coord.Valid() {
		return GeoCoordinate{}, false
	}
	return coord, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
