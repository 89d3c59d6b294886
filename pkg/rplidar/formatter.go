// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"fmt"
	"strings"
)

// FormatOpcode returns the human-readable name for an opcode
func FormatOpcode(op Opcode) string {
	switch op {
	case OpScan:
		return "SCAN"
	case OpStop:
		return "STOP"
	case OpGetInfo:
		return "GET_INFO"
	case OpGetHealth:
		return "GET_HEALTH"
	case OpExpressScan:
		return "EXPRESS_SCAN"
	case OpStartMotor:
		return "START_MOTOR"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", byte(op))
	}
}

func (op Opcode) String() string {
	return FormatOpcode(op)
}

func (h HealthCode) String() string {
	switch h {
	case HealthGood:
		return "Good"
	case HealthWarning:
		return "Warning"
	case HealthError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(h))
	}
}

// FormatDeviceInfo formats device information into a human-readable block
func FormatDeviceInfo(info DeviceInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Model:         %s\n", info.Model)
	fmt.Fprintf(&b, "  Firmware:      %s\n", info.FirmwareVersion)
	fmt.Fprintf(&b, "  Hardware:      %s\n", info.Hardware)
	fmt.Fprintf(&b, "  Serial Number: %s\n", info.SerialNumber)
	return b.String()
}

// FormatHealthStatus formats a health response as a single line
func FormatHealthStatus(h HealthStatus) string {
	if h.ErrorCode == 0 {
		return h.Status.String()
	}
	return fmt.Sprintf("%s (error code 0x%04X)", h.Status, h.ErrorCode)
}

// FormatSample formats one measurement
func FormatSample(s Sample) string {
	marker := " "
	if s.Start {
		marker = "S"
	}
	if !s.HasReturn() {
		return fmt.Sprintf("%s angle=%7.3f° dist=   ---    q=%2d", marker, s.Angle(), s.Quality)
	}
	return fmt.Sprintf("%s angle=%7.3f° dist=%8.2fmm q=%2d", marker, s.Angle(), s.Distance(), s.Quality)
}

// FormatRotation returns a one-line summary of a rotation
func FormatRotation(r Rotation) string {
	timestamp := r.CompletedAt.Format("15:04:05.000")
	if len(r.Samples) == 0 {
		return fmt.Sprintf("[%s] rotation #%d: empty", timestamp, r.Sequence)
	}

	minDist, maxDist := 0.0, 0.0
	for _, s := range r.Samples {
		if !s.HasReturn() {
			continue
		}
		d := s.Distance()
		if minDist == 0 || d < minDist {
			minDist = d
		}
		if d > maxDist {
			maxDist = d
		}
	}

	first := r.Samples[0].Angle()
	last := r.Samples[len(r.Samples)-1].Angle()
	return fmt.Sprintf("[%s] rotation #%d: samples=%d returns=%d range=%.0f-%.0fmm span=%.1f°-%.1f°",
		timestamp, r.Sequence, len(r.Samples), r.Returns(), minDist, maxDist, first, last)
}

// SectorMinima splits the circle into equal sectors and returns the nearest
// return in each, in millimeters. Sectors without a return are 0.
func SectorMinima(r Rotation, sectors int) []float64 {
	if sectors <= 0 {
		return nil
	}

	minima := make([]float64, sectors)
	width := 360.0 / float64(sectors)
	for _, s := range r.Samples {
		if !s.HasReturn() {
			continue
		}
		i := int(s.Angle() / width)
		if i >= sectors {
			i = sectors - 1
		}
		if d := s.Distance(); minima[i] == 0 || d < minima[i] {
			minima[i] = d
		}
	}
	return minima
}
