package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/geoquery/internal/raster"
)

var (
	regionPattern    = regexp.MustCompile(`(?i)\b(?:in|around|near|buffer)\s+([a-zA-Z ,]+)`)
	topNPattern      = regexp.MustCompile(`(?i)\b(?:top|best)\s+(\d+)`)
	thresholdPattern = regexp.MustCompile(`(?i)\b(below|under|less than|lower than|above|over|greater than|higher than)\s+(-?\d+(?:\.\d+)?)`)
	distancePattern  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(km|kilometers?|kilometres?|m|meters?|metres?)\b`)
)

// ExtractRegion returns the place named after in/around/near/buffer, or
// fallback when the query names none.
func ExtractRegion(query, fallback string) (string, bool) {
	m := regionPattern.FindStringSubmatch(query)
	if m == nil {
		return fallback, false
	}
	name := strings.Trim(m[1], " ,")
	if name == "" {
		return fallback, false
	}
	return name, true
}

// ExtractTopN returns N from "top N" or "best N".
func ExtractTopN(query string) (int, bool) {
	m := topNPattern.FindStringSubmatch(query)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractThreshold returns the value and side of phrases like "below 50"
// or "higher than 1200".
func ExtractThreshold(query string) (float64, raster.Comparison, bool) {
	m := thresholdPattern.FindStringSubmatch(query)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, "", false
	}
	switch strings.ToLower(m[1]) {
	case "above", "over", "greater than", "higher than":
		return v, raster.Above, true
	default:
		return v, raster.Below, true
	}
}

// ExtractDistance returns a distance in metres from "5 km" or "200m".
// Figures that belong to a threshold phrase ("below 50m") are skipped.
func ExtractDistance(query string) (float64, bool) {
	taken := thresholdPattern.FindStringSubmatchIndex(query)
	for _, m := range distancePattern.FindAllStringSubmatchIndex(query, -1) {
		if taken != nil && m[2] >= taken[4] && m[2] < taken[5] {
			continue
		}
		v, err := strconv.ParseFloat(query[m[2]:m[3]], 64)
		if err != nil {
			return 0, false
		}
		if strings.HasPrefix(strings.ToLower(query[m[4]:m[5]]), "k") {
			v *= 1000
		}
		return v, true
	}
	return 0, false
}
