// Package units provides shared constants and validation for length units
// used by observer heights and grid elevations.
package units

import "fmt"

// Unit constants
const (
	Meters = "m"
	Feet   = "ft"
)

// metersPerFoot is the international foot.
const metersPerFoot = 0.3048

// ValidUnits contains all valid unit values
var ValidUnits = []string{Meters, Feet}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, ft"
}

// ToMeters converts a length expressed in unit to meters.
func ToMeters(v float64, unit string) (float64, error) {
	switch unit {
	case Meters:
		return v, nil
	case Feet:
		return v * metersPerFoot, nil
	default:
		return 0, fmt.Errorf("unknown length unit %q (valid: %s)", unit, GetValidUnitsString())
	}
}

// ConvertLength converts a length in meters to the target units.
// Unknown units leave the value in meters.
func ConvertLength(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case Feet:
		return meters / metersPerFoot
	default:
		return meters
	}
}
