// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RotationHandler receives completed rotations. It is called from the
// acquisition goroutine, one rotation at a time, and must not call methods
// of the same session.
type RotationHandler func(Rotation)

// controller is the background acquisition loop of a continuous scan
type controller struct {
	session *Session
	handler RotationHandler
	log     *zap.Logger

	active atomic.Bool
	done   chan struct{}
	err    error // written by run before done is closed
}

func newController(s *Session, handler RotationHandler) *controller {
	c := &controller{
		session: s,
		handler: handler,
		log:     s.log.Named("acquisition"),
		done:    make(chan struct{}),
	}
	c.active.Store(true)
	return c
}

func (c *controller) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// run reads batches of raw data, decodes and assembles them, and hands each
// completed rotation to the handler. It ends when the active flag is cleared
// or the transport fails.
func (c *controller) run() {
	defer close(c.done)

	s := c.session
	stats := s.stats
	assembler := NewAssembler(Continuous, stats)

	chunk := make([]byte, s.chunkSize())
	batch := make([]byte, 0, s.chunkSize()*s.opts.ReadsPerBatch)
	samples := make([]Sample, 0, s.opts.ScanChunkSamples*s.opts.ReadsPerBatch)
	var rotations []Rotation

	c.log.Debug("acquisition started")

	for c.active.Load() {
		batch = batch[:0]
		for i := 0; i < s.opts.ReadsPerBatch && c.active.Load(); i++ {
			n, err := s.readScanChunk(chunk)
			if err != nil {
				c.err = err
				c.log.Error("acquisition stopped", zap.Error(err))
				return
			}
			batch = append(batch, chunk[:n]...)
		}

		overflows := stats.OverflowDiscards.Load()
		samples = s.decoder.Decode(batch, samples[:0])
		rotations = assembler.AddAll(samples, rotations[:0])
		if dropped := stats.OverflowDiscards.Load() - overflows; dropped > 0 {
			c.log.Warn("rotation exceeded sample bound, discarded",
				zap.Uint64("dropped", dropped),
				zap.Int("max_samples", MaxRotationSamples))
		}

		for _, r := range rotations {
			if !c.active.Load() {
				break
			}
			c.handler(r)
		}
	}

	c.log.Debug("acquisition stopped", zap.Int("pending_samples", assembler.Pending()))
}

// StartContinuousScan starts scanning and delivers every completed rotation
// to handler until StopContinuousScan, Stop or Close is called.
func (s *Session) StartContinuousScan(handler RotationHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil rotation handler", ErrInvalidArgument)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.streamingLocked() {
		return ErrBusy
	}
	if s.ctrl != nil {
		// Previous loop ended on its own after a transport error
		s.ctrl = nil
	}

	if err := s.startScanLocked(); err != nil {
		return err
	}

	s.ctrl = newController(s, handler)
	go s.ctrl.run()
	return nil
}

// StopContinuousScan stops the acquisition loop, waits for it to exit and
// sends STOP. The handler is not called after it returns. The returned error
// includes the transport error that ended the loop, if any.
func (s *Session) StopContinuousScan() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.stopLoopLocked()
	if s.State() == StateDisconnected {
		return err
	}
	return multierr.Append(err, s.stopLocked())
}

// ScanDone returns a channel that is closed when the acquisition loop exits.
// Without a running loop the channel is already closed.
func (s *Session) ScanDone() <-chan struct{} {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.ctrl == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.ctrl.done
}

// ScanErr returns the error that ended the acquisition loop, if any
func (s *Session) ScanErr() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.ctrl == nil || !s.ctrl.finished() {
		return nil
	}
	return s.ctrl.err
}

// Streaming reports whether the acquisition loop is running
func (s *Session) Streaming() bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.streamingLocked()
}

func (s *Session) streamingLocked() bool {
	return s.ctrl != nil && !s.ctrl.finished()
}

// stopLoopLocked clears the active flag and waits for the loop to exit
func (s *Session) stopLoopLocked() error {
	c := s.ctrl
	if c == nil {
		return nil
	}
	c.active.Store(false)
	<-c.done
	s.ctrl = nil
	return c.err
}
