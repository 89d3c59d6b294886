// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"
)

// Statistics tracks stream health. Counters are updated by the acquisition
// loop and may be read concurrently from any goroutine.
type Statistics struct {
	startTime atomic.Time

	BytesReceived      atomic.Uint64
	EmptyReads         atomic.Uint64 // reads that timed out with no data
	SamplesDecoded     atomic.Uint64
	FramingDiscards    atomic.Uint64 // bytes dropped while resynchronizing
	LeadingDiscards    atomic.Uint64 // samples seen before the first start flag
	OverflowDiscards   atomic.Uint64 // rotations dropped at MaxRotationSamples
	RotationsCompleted atomic.Uint64
	SamplesDelivered   atomic.Uint64
	Anomalies          atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startTime.Store(time.Now())
	return s
}

// StatisticsSnapshot is a point-in-time copy of Statistics
type StatisticsSnapshot struct {
	Elapsed time.Duration

	BytesReceived      uint64
	EmptyReads         uint64
	SamplesDecoded     uint64
	FramingDiscards    uint64
	LeadingDiscards    uint64
	OverflowDiscards   uint64
	RotationsCompleted uint64
	SamplesDelivered   uint64
	Anomalies          uint64

	// Rates (calculated)
	RotationRate float64 // rotations/sec, i.e. scan frequency in Hz
	SampleRate   float64 // samples/sec
	DiscardRate  float64 // discarded bytes/sec
}

// Snapshot copies the counters and calculates rates
func (s *Statistics) Snapshot() StatisticsSnapshot {
	snap := StatisticsSnapshot{
		Elapsed:            time.Since(s.startTime.Load()),
		BytesReceived:      s.BytesReceived.Load(),
		EmptyReads:         s.EmptyReads.Load(),
		SamplesDecoded:     s.SamplesDecoded.Load(),
		FramingDiscards:    s.FramingDiscards.Load(),
		LeadingDiscards:    s.LeadingDiscards.Load(),
		OverflowDiscards:   s.OverflowDiscards.Load(),
		RotationsCompleted: s.RotationsCompleted.Load(),
		SamplesDelivered:   s.SamplesDelivered.Load(),
		Anomalies:          s.Anomalies.Load(),
	}

	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.RotationRate = float64(snap.RotationsCompleted) / secs
		snap.SampleRate = float64(snap.SamplesDecoded) / secs
		snap.DiscardRate = float64(snap.FramingDiscards) / secs
	}
	return snap
}

// DiscardPercent returns framing discards as a percentage of received bytes
func (s StatisticsSnapshot) DiscardPercent() float64 {
	if s.BytesReceived == 0 {
		return 0
	}
	return float64(s.FramingDiscards) * 100.0 / float64(s.BytesReceived)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	fmt.Fprintf(&b, "Bytes Received:   %8d\n", snap.BytesReceived)
	fmt.Fprintf(&b, "Samples Decoded:  %8d\n", snap.SamplesDecoded)
	fmt.Fprintf(&b, "Rotations:        %8d\n", snap.RotationsCompleted)

	if snap.FramingDiscards > 0 {
		fmt.Fprintf(&b, "Framing Discards: %8d (%.2f%% of bytes)\n", snap.FramingDiscards, snap.DiscardPercent())
	}
	if snap.LeadingDiscards > 0 {
		fmt.Fprintf(&b, "Leading Samples:  %8d\n", snap.LeadingDiscards)
	}
	if snap.OverflowDiscards > 0 {
		fmt.Fprintf(&b, "Overflow Drops:   %8d\n", snap.OverflowDiscards)
	}
	if snap.Anomalies > 0 {
		fmt.Fprintf(&b, "Anomalies:        %8d\n", snap.Anomalies)
	}
	if snap.EmptyReads > 0 {
		fmt.Fprintf(&b, "Empty Reads:      %8d\n", snap.EmptyReads)
	}

	fmt.Fprintf(&b, "Scan Frequency:   %8.2f Hz\n", snap.RotationRate)
	fmt.Fprintf(&b, "Sample Rate:      %8.1f samples/sec\n", snap.SampleRate)
	b.WriteString("================================\n")
	return b.String()
}

// Reset resets all counters and restarts the rate clock
func (s *Statistics) Reset() {
	s.startTime.Store(time.Now())
	s.BytesReceived.Store(0)
	s.EmptyReads.Store(0)
	s.SamplesDecoded.Store(0)
	s.FramingDiscards.Store(0)
	s.LeadingDiscards.Store(0)
	s.OverflowDiscards.Store(0)
	s.RotationsCompleted.Store(0)
	s.SamplesDelivered.Store(0)
	s.Anomalies.Store(0)
}
