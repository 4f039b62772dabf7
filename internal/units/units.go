// Package units provides shared constants and validation for layout length units
package units

// Unit constants
const (
	NM = "nm"
	UM = "um"
	MM = "mm"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{NM, UM, MM, M}

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
	return "nm, um, mm, m"
}

// ConvertLength converts a length from micrometers to the target units.
// Layout coordinates are carried in µm throughout the geometry kernel.
func ConvertLength(lengthUM float64, targetUnits string) float64 {
	switch targetUnits {
	case NM:
		return lengthUM * 1e3
	case MM:
		return lengthUM * 1e-3
	case M:
		return lengthUM * 1e-6
	case UM:
		return lengthUM // no conversion needed
	default:
		return lengthUM // default to µm if unknown unit
	}
}
