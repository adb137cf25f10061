package activity

import (
	"fmt"
	"strings"
	"unicode"
)

// Conversion factors for Strava's metric units.
const (
	metersToMiles         = 0.000621371
	metersToFeet          = 3.28084
	metersPerSecondToMiph = 2.23694
)

// MetersToMiles formats a distance in meters as miles, two decimals.
func MetersToMiles(m float64) string {
	return fmt.Sprintf("%.2f", m*metersToMiles)
}

// MetersToFeet formats an elevation in meters as feet, two decimals.
func MetersToFeet(m float64) string {
	return fmt.Sprintf("%.2f", m*metersToFeet)
}

// MpsToMph formats a speed in meters per second as miles per hour, two decimals.
func MpsToMph(mps float64) string {
	return fmt.Sprintf("%.2f", mps*metersPerSecondToMiph)
}

// FormatDuration renders a duration in seconds as H:MM:SS. Minutes and
// seconds are zero-padded; the hours component has no upper bound.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}

// HumanizeSportType splits a camel-cased Strava sport type into lowercase
// words: "VirtualRide" becomes "virtual ride".
func HumanizeSportType(sportType string) string {
	var b strings.Builder
	for _, r := range sportType {
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
