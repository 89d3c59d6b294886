// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"sort"
	"time"
)

// AssemblyPolicy selects how many rotations an Assembler produces
type AssemblyPolicy int

const (
	// SingleShot assembles exactly one rotation and then ignores input
	SingleShot AssemblyPolicy = iota
	// Continuous assembles rotations until the caller stops feeding samples
	Continuous
)

// Rotation is one full sweep of samples, sorted by ascending angle.
type Rotation struct {
	Sequence    uint64
	CompletedAt time.Time
	Samples     []Sample
}

// Len returns the number of samples in the rotation
func (r Rotation) Len() int {
	return len(r.Samples)
}

// Returns counts samples with a measured distance
func (r Rotation) Returns() int {
	n := 0
	for _, s := range r.Samples {
		if s.HasReturn() {
			n++
		}
	}
	return n
}

// Assembler groups samples into rotations.
//
// A rotation opens at a sample with the start flag set and closes when the
// next start flag arrives. Grouping follows arrival order; the angle sort is
// applied only to the delivered rotation.
type Assembler struct {
	policy   AssemblyPolicy
	stats    *Statistics
	current  []Sample
	started  bool
	done     bool
	sequence uint64
	max      int
}

// NewAssembler creates a rotation assembler. stats may be nil.
func NewAssembler(policy AssemblyPolicy, stats *Statistics) *Assembler {
	return &Assembler{
		policy:  policy,
		stats:   stats,
		current: make([]Sample, 0, 512),
		max:     MaxRotationSamples,
	}
}

// Reset drops the in-progress rotation and waits for a new start flag
func (a *Assembler) Reset() {
	a.current = a.current[:0]
	a.started = false
	a.done = false
}

// Done reports whether a single-shot assembler has produced its rotation
func (a *Assembler) Done() bool {
	return a.done
}

// Pending returns the number of samples in the in-progress rotation
func (a *Assembler) Pending() int {
	return len(a.current)
}

// Add feeds one sample to the assembler.
// Returns the rotation closed by this sample, if any.
func (a *Assembler) Add(s Sample) (Rotation, bool) {
	if a.done {
		return Rotation{}, false
	}

	if !a.started {
		if !s.Start {
			if a.stats != nil {
				a.stats.LeadingDiscards.Inc()
			}
			return Rotation{}, false
		}
		a.started = true
		a.current = append(a.current, s)
		return Rotation{}, false
	}

	if s.Start {
		r := a.close()
		a.current = append(a.current, s)
		if a.policy == SingleShot {
			a.done = true
		}
		return r, true
	}

	a.current = append(a.current, s)
	if len(a.current) > a.max {
		// The start marker that should have closed this rotation was lost
		a.current = a.current[:0]
		a.started = false
		if a.stats != nil {
			a.stats.OverflowDiscards.Inc()
		}
	}
	return Rotation{}, false
}

// AddAll feeds samples in order and appends closed rotations to out
func (a *Assembler) AddAll(samples []Sample, out []Rotation) []Rotation {
	for _, s := range samples {
		if r, ok := a.Add(s); ok {
			out = append(out, r)
		}
	}
	return out
}

// close hands off the in-progress samples as a sorted rotation
func (a *Assembler) close() Rotation {
	samples := make([]Sample, len(a.current))
	copy(samples, a.current)
	a.current = a.current[:0]

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].AngleQ6 < samples[j].AngleQ6
	})

	a.sequence++
	if a.stats != nil {
		a.stats.RotationsCompleted.Inc()
		a.stats.SamplesDelivered.Add(uint64(len(samples)))
	}
	return Rotation{
		Sequence:    a.sequence,
		CompletedAt: time.Now(),
		Samples:     samples,
	}
}
