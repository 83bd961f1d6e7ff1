package util

import (
	"regexp"
	"strconv"
	"strings"
)

var signedNumberRegex = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// ParseTemperature extracts a numeric temperature from vote-widget text such
// as "345°" or "1,204°". Negative community votes floor at zero.
func ParseTemperature(s string) float64 {
	raw := signedNumberRegex.FindString(strings.TrimSpace(s))
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

var firstNumberRegex = regexp.MustCompile(`\d+`)

// ParseRelativeHours converts listing age text ("hace 23 min", "hace 2 h")
// into fractional hours. Unparseable text returns defaultHours so stale or
// odd posts fall through the scoring gates instead of looking brand-new.
func ParseRelativeHours(s string, defaultHours float64) float64 {
	text := strings.ToLower(strings.TrimSpace(s))
	// "hace" would otherwise satisfy the hour-unit check.
	text = strings.ReplaceAll(text, "hace", "")
	raw := firstNumberRegex.FindString(text)
	if raw == "" {
		return defaultHours
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultHours
	}

	switch {
	case strings.Contains(text, "min"):
		return n / 60.0
	case strings.Contains(text, "h"):
		return n
	case strings.Contains(text, "d"):
		return n * 24
	default:
		return defaultHours
	}
}

// expiredMarkers are the posted-text fragments that mark a dead listing.
var expiredMarkers = []string{"expiró", "expirada", "expired"}

// IsExpiredText reports whether the raw posted-time text carries an expiry
// marker.
func IsExpiredText(s string) bool {
	text := strings.ToLower(s)
	for _, marker := range expiredMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
