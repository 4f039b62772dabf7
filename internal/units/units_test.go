package units

import (
	"math"
	"testing"
)

func TestConvertLength(t *testing.T) {
	tests := []struct {
		name     string
		lengthUM float64
		units    string
		expected float64
	}{
		{"2 um to nm", 2.0, NM, 2000.0},
		{"2 um to mm", 2.0, MM, 0.002},
		{"2 um to m", 2.0, M, 2e-6},
		{"2 um to um", 2.0, UM, 2.0},
		{"unknown units default to um", 2.0, "unknown", 2.0},
		{"0 um to nm", 0.0, NM, 0.0},
		{"dot pitch 0.08 um to nm", 0.08, NM, 80.0},
		{"die width 5000 um to mm", 5000.0, MM, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertLength(tt.lengthUM, tt.units)
			if math.Abs(result-tt.expected) > 1e-12*math.Max(1, math.Abs(tt.expected)) {
				t.Errorf("ConvertLength(%f, %s) = %f, want %f", tt.lengthUM, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"nm is valid", NM, true},
		{"um is valid", UM, true},
		{"mm is valid", MM, true},
		{"m is valid", M, true},
		{"empty is invalid", "", false},
		{"angstrom is invalid", "angstrom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "nm, um, mm, m" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}
