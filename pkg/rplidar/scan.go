// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"context"
	"errors"
	"fmt"
)

// ScanOnce starts a scan, waits for one complete rotation and stops the scan
// again. It fails with ErrTimeout when no rotation completes within
// Options.SingleScanTimeout. STOP is sent on every path once the scan has
// started.
func (s *Session) ScanOnce(ctx context.Context) (Rotation, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.streamingLocked() {
		return Rotation{}, ErrBusy
	}
	if err := s.startScanLocked(); err != nil {
		return Rotation{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.SingleScanTimeout)
	defer cancel()

	rotation, err := s.collectRotation(ctx)
	stopErr := s.stopLocked()
	if err != nil {
		return Rotation{}, err
	}
	return rotation, stopErr
}

// collectRotation reads the stream until a single-shot assembler completes
func (s *Session) collectRotation(ctx context.Context) (Rotation, error) {
	assembler := NewAssembler(SingleShot, s.stats)
	chunk := make([]byte, s.chunkSize())
	samples := make([]Sample, 0, s.opts.ScanChunkSamples)

	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Rotation{}, fmt.Errorf("%w: no complete rotation (%d samples pending)",
					ErrTimeout, assembler.Pending())
			}
			return Rotation{}, err
		}

		n, err := s.readScanChunk(chunk)
		if err != nil {
			return Rotation{}, err
		}

		samples = s.decoder.Decode(chunk[:n], samples[:0])
		for _, sample := range samples {
			if r, ok := assembler.Add(sample); ok {
				return r, nil
			}
		}
	}
}

// ReadSamples performs one bounded read of the stream started by StartScan
// and appends the decoded samples to out. A read that times out leaves out
// unchanged.
func (s *Session) ReadSamples(out []Sample) ([]Sample, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.streamingLocked() {
		return out, ErrBusy
	}
	switch s.State() {
	case StateDisconnected:
		return out, ErrNotConnected
	case StateIdle:
		return out, ErrNotScanning
	}

	chunk := make([]byte, s.chunkSize())
	n, err := s.readScanChunk(chunk)
	if err != nil {
		return out, err
	}
	return s.decoder.Decode(chunk[:n], out), nil
}
