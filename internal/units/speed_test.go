package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty unit", "", false},
		{"uppercase MPS", "MPS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		unit string
		want float64
	}{
		{MPS, 1.2},
		{MPH, 1.2 * 2.2369362920544},
		{KPH, 4.32},
		{KMPH, 4.32},
		{"furlongs", 1.2},
	}
	for _, tt := range tests {
		if got := ConvertSpeed(1.2, tt.unit); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ConvertSpeed(1.2, %q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		unit string
		want string
	}{
		{MPS, "1.20m/s"},
		{KPH, "4.32km/h"},
		{MPH, "2.68mph"},
		{"", "1.20m/s"},
	}
	for _, tt := range tests {
		if got := FormatSpeed(1.2, tt.unit); got != tt.want {
			t.Errorf("FormatSpeed(1.2, %q) = %q, want %q", tt.unit, got, tt.want)
		}
	}
}
