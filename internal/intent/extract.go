package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	tablePattern = regexp.MustCompile(`(?i)(表|table)\s*[:\s]*([a-zA-Z_][a-zA-Z0-9_]*)`)
	// Number followed by a length unit, Chinese or English. Kilometer units
	// convert to meters.
	distancePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(米|公里|千米|m|km|kilometer|meter)`)
	// First "number, number" pair; the full-width comma shows up when
	// questions are typed with a CJK input method.
	coordinatePattern = regexp.MustCompile(`(\d+\.?\d*)[,，]\s*(\d+\.?\d*)`)
)

// ExtractTableName returns the table named after a 表/table marker, if any.
func ExtractTableName(text string) (string, bool) {
	match := tablePattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[2], true
}

// ExtractDistance returns the first distance mention in meters.
func ExtractDistance(text string) (float64, bool) {
	match := distancePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(match[2]) {
	case "公里", "千米", "km", "kilometer":
		return value * 1000, true
	default:
		return value, true
	}
}

// ExtractCoordinates returns the first longitude, latitude pair in the text.
func ExtractCoordinates(text string) (lon, lat float64, ok bool) {
	match := coordinatePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, 0, false
	}
	lon, errLon := strconv.ParseFloat(match[1], 64)
	lat, errLat := strconv.ParseFloat(match[2], 64)
	if errLon != nil || errLat != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

// ExtractSlots runs every extractor over the text. Extractors are independent:
// the same span may feed more than one slot and no cross-validation happens
// here.
func ExtractSlots(text string) Slots {
	var slots Slots
	if table, ok := ExtractTableName(text); ok {
		slots.Table = table
	}
	if distance, ok := ExtractDistance(text); ok {
		slots.RadiusMeters = distance
		slots.HasRadius = true
	}
	if lon, lat, ok := ExtractCoordinates(text); ok {
		slots.Longitude = lon
		slots.Latitude = lat
		slots.HasPoint = true
	}
	return slots
}
