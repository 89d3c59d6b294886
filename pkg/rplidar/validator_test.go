// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"strings"
	"testing"
	"time"
)

// evenRotation spreads n samples over 360 degrees
func evenRotation(n int, distanceQ2 uint16) Rotation {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{Start: i == 0, AngleQ6: uint16(i * 360 * 64 / n), DistanceQ2: distanceQ2}
	}
	return Rotation{Sequence: 1, CompletedAt: time.Now(), Samples: samples}
}

func hasAnomaly(errs []ValidationError, typ AnomalyType) bool {
	for _, e := range errs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestValidateRotation_Healthy(t *testing.T) {
	if errs := ValidateRotation(evenRotation(360, 4000)); len(errs) != 0 {
		t.Errorf("expected no anomalies, got %v", errs)
	}
}

func TestValidateRotation_Anomalies(t *testing.T) {
	gapped := evenRotation(360, 4000)
	gapped.Samples = append(gapped.Samples[:100], gapped.Samples[150:]...)

	outOfRange := evenRotation(360, 4000)
	outOfRange.Samples = append(outOfRange.Samples, Sample{AngleQ6: 360 * 64, DistanceQ2: 4000})

	wrapGap := evenRotation(360, 4000)
	wrapGap.Samples = wrapGap.Samples[:300]

	tests := []struct {
		name     string
		rotation Rotation
		expected AnomalyType
	}{
		{"sparse", evenRotation(20, 4000), AnomalySparseRotation},
		{"low returns", evenRotation(360, 0), AnomalyLowReturns},
		{"gap", gapped, AnomalyAngularGap},
		{"gap across 0°", wrapGap, AnomalyAngularGap},
		{"angle range", outOfRange, AnomalyAngleRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRotation(tt.rotation)
			if !hasAnomaly(errs, tt.expected) {
				t.Errorf("expected %v anomaly, got %v", tt.expected, errs)
			}
		})
	}
}

func TestValidateRotation_Empty(t *testing.T) {
	errs := ValidateRotation(Rotation{})
	if len(errs) != 1 || errs[0].Type != AnomalySparseRotation {
		t.Errorf("empty rotation should only be sparse, got %v", errs)
	}
}

func TestValidationError_Message(t *testing.T) {
	errs := ValidateRotation(evenRotation(10, 4000))
	if len(errs) == 0 {
		t.Fatal("expected anomalies")
	}
	if !strings.Contains(errs[0].Error(), "Sparse rotation") {
		t.Errorf("unexpected message: %q", errs[0].Error())
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatOpcode(t *testing.T) {
	tests := []struct {
		op       Opcode
		expected string
	}{
		{OpScan, "SCAN"},
		{OpStop, "STOP"},
		{OpGetInfo, "GET_INFO"},
		{OpGetHealth, "GET_HEALTH"},
		{OpExpressScan, "EXPRESS_SCAN"},
		{OpStartMotor, "START_MOTOR"},
		{Opcode(0x40), "UNKNOWN_0x40"},
	}

	for _, tt := range tests {
		if got := FormatOpcode(tt.op); got != tt.expected {
			t.Errorf("0x%02X: expected %s, got %s", byte(tt.op), tt.expected, got)
		}
	}
}

func TestFormatHealthStatus(t *testing.T) {
	if got := FormatHealthStatus(HealthStatus{Status: HealthGood}); got != "Good" {
		t.Errorf("expected Good, got %q", got)
	}
	got := FormatHealthStatus(HealthStatus{Status: HealthError, ErrorCode: 0x8001})
	if got != "Error (error code 0x8001)" {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestFormatRotation(t *testing.T) {
	line := FormatRotation(evenRotation(360, 4000))
	for _, want := range []string{"rotation #1", "samples=360", "returns=360", "range=1000-1000mm"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestSectorMinima(t *testing.T) {
	r := Rotation{Samples: []Sample{
		{AngleQ6: 10 * 64, DistanceQ2: 4000},
		{AngleQ6: 20 * 64, DistanceQ2: 2000},
		{AngleQ6: 100 * 64, DistanceQ2: 0},
		{AngleQ6: 359 * 64, DistanceQ2: 800},
		{AngleQ6: 400 * 64, DistanceQ2: 400},
	}}

	minima := SectorMinima(r, 4)
	expected := []float64{500, 0, 0, 100}
	for i := range expected {
		if minima[i] != expected[i] {
			t.Errorf("sector %d: expected %.0f, got %.0f", i, expected[i], minima[i])
		}
	}

	if SectorMinima(r, 0) != nil {
		t.Error("zero sectors should return nil")
	}
}
