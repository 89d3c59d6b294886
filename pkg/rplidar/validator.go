// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import "fmt"

// AnomalyType represents different types of rotation anomalies
type AnomalyType int

const (
	AnomalySparseRotation AnomalyType = iota
	AnomalyLowReturns
	AnomalyAngularGap
	AnomalyAngleRange
)

// Validation thresholds
const (
	MinRotationSamples = 32
	MinReturnRatio     = 0.25
	MaxAngularGap      = 30.0 // degrees
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalySparseRotation:
		return "SPARSE_ROTATION"
	case AnomalyLowReturns:
		return "LOW_RETURNS"
	case AnomalyAngularGap:
		return "ANGULAR_GAP"
	case AnomalyAngleRange:
		return "ANGLE_RANGE"
	default:
		return fmt.Sprintf("ANOMALY_%d", int(a))
	}
}

// ValidationError represents a rotation validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateRotation checks a delivered rotation for signs of a degraded stream.
// Returns a slice of validation errors (empty if the rotation looks sane).
func ValidateRotation(r Rotation) []ValidationError {
	errors := []ValidationError{}

	n := len(r.Samples)
	if n < MinRotationSamples {
		errors = append(errors, ValidationError{
			Type:    AnomalySparseRotation,
			Message: fmt.Sprintf("Sparse rotation: %d samples (min %d)", n, MinRotationSamples),
			Details: map[string]interface{}{"samples": n, "min": MinRotationSamples},
		})
	}
	if n == 0 {
		return errors
	}

	returns := r.Returns()
	if ratio := float64(returns) / float64(n); ratio < MinReturnRatio {
		errors = append(errors, ValidationError{
			Type:    AnomalyLowReturns,
			Message: fmt.Sprintf("Low return ratio: %d/%d samples (%.0f%%, min %.0f%%)", returns, n, ratio*100, MinReturnRatio*100),
			Details: map[string]interface{}{"returns": returns, "samples": n},
		})
	}

	for _, s := range r.Samples {
		if s.Angle() >= 360.0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyAngleRange,
				Message: fmt.Sprintf("Angle out of range: %.2f° (raw=%d)", s.Angle(), s.AngleQ6),
				Details: map[string]interface{}{"angle_q6": s.AngleQ6},
			})
			break
		}
	}

	if gap, at := largestGap(r.Samples); gap > MaxAngularGap {
		errors = append(errors, ValidationError{
			Type:    AnomalyAngularGap,
			Message: fmt.Sprintf("Angular gap of %.1f° after %.1f° (max %.0f°)", gap, at, MaxAngularGap),
			Details: map[string]interface{}{"gap": gap, "after": at},
		})
	}

	return errors
}

// largestGap returns the widest step between consecutive angles of a sorted
// sample slice, counting the step from the last sample back around to the
// first, and the angle the gap starts at.
func largestGap(samples []Sample) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	first := samples[0].Angle()
	last := samples[len(samples)-1].Angle()
	gap := 360.0 - last + first
	at := last

	for i := 1; i < len(samples); i++ {
		d := samples[i].Angle() - samples[i-1].Angle()
		if d > gap {
			gap = d
			at = samples[i-1].Angle()
		}
	}
	return gap, at
}
