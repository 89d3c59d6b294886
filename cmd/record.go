// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

// rotationRecord is one CBOR item of a recording:
// {1: sequence, 2: unix nanos, 3: [[quality, start, angleQ6, distanceQ2], ...]}
type rotationRecord struct {
	Sequence  uint64         `cbor:"1,keyasint"`
	Timestamp int64          `cbor:"2,keyasint"`
	Samples   []sampleRecord `cbor:"3,keyasint"`
}

type sampleRecord struct {
	_          struct{} `cbor:",toarray"`
	Quality    uint8
	Start      bool
	AngleQ6    uint16
	DistanceQ2 uint16
}

// RotationWriter appends rotations to a recording
type RotationWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewRotationWriter creates a writer that encodes rotations to w
func NewRotationWriter(w io.Writer) *RotationWriter {
	return &RotationWriter{enc: cbor.NewEncoder(w)}
}

// Write encodes one rotation
func (w *RotationWriter) Write(r rplidar.Rotation) error {
	rec := rotationRecord{
		Sequence:  r.Sequence,
		Timestamp: r.CompletedAt.UnixNano(),
		Samples:   make([]sampleRecord, len(r.Samples)),
	}
	for i, s := range r.Samples {
		rec.Samples[i] = sampleRecord{
			Quality:    s.Quality,
			Start:      s.Start,
			AngleQ6:    s.AngleQ6,
			DistanceQ2: s.DistanceQ2,
		}
	}

	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode rotation %d: %w", r.Sequence, err)
	}
	w.count++
	return nil
}

// Count returns the number of rotations written
func (w *RotationWriter) Count() int {
	return w.count
}

// RotationReader reads rotations back from a recording
type RotationReader struct {
	dec *cbor.Decoder
}

// NewRotationReader creates a reader that decodes rotations from r
func NewRotationReader(r io.Reader) *RotationReader {
	return &RotationReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next rotation, or io.EOF at the end of the recording
func (r *RotationReader) Next() (rplidar.Rotation, error) {
	var rec rotationRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rplidar.Rotation{}, io.EOF
		}
		return rplidar.Rotation{}, fmt.Errorf("failed to decode rotation: %w", err)
	}

	rot := rplidar.Rotation{
		Sequence:    rec.Sequence,
		CompletedAt: time.Unix(0, rec.Timestamp),
		Samples:     make([]rplidar.Sample, len(rec.Samples)),
	}
	for i, s := range rec.Samples {
		rot.Samples[i] = rplidar.Sample{
			Quality:    s.Quality,
			Start:      s.Start,
			AngleQ6:    s.AngleQ6,
			DistanceQ2: s.DistanceQ2,
		}
	}
	return rot, nil
}
