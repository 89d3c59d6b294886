// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State is the connection state of a Session
type State int32

// Session states
const (
	StateDisconnected State = iota
	StateIdle
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	default:
		return "UNKNOWN"
	}
}

// Options configures the timing of a Session. Zero fields take the defaults
// from DefaultOptions.
type Options struct {
	// SettleTime is the wait between a request and reading its response,
	// and after the STOP issued on connect.
	SettleTime time.Duration
	// MotorSettleTime is the wait for the motor to reach a new speed.
	MotorSettleTime time.Duration
	// StopSettleTime is the wait after STOP, which has no response.
	StopSettleTime time.Duration
	// ResponseTimeout bounds the read of a response header or payload.
	ResponseTimeout time.Duration
	// JunkReadTimeout bounds the reads that flush stale bytes.
	JunkReadTimeout time.Duration
	// ScanReadTimeout bounds each raw read of the scan stream.
	ScanReadTimeout time.Duration
	// SingleScanTimeout bounds ScanOnce.
	SingleScanTimeout time.Duration

	// ScanChunkSamples sizes each raw read in samples.
	ScanChunkSamples int
	// ReadsPerBatch is the number of raw reads the continuous loop gathers
	// before decoding.
	ReadsPerBatch int

	Logger     *zap.Logger
	Statistics *Statistics
}

// DefaultOptions returns the timing used with real hardware
func DefaultOptions() Options {
	return Options{
		SettleTime:        100 * time.Millisecond,
		MotorSettleTime:   500 * time.Millisecond,
		StopSettleTime:    5 * time.Millisecond,
		ResponseTimeout:   100 * time.Millisecond,
		JunkReadTimeout:   100 * time.Millisecond,
		ScanReadTimeout:   200 * time.Millisecond,
		SingleScanTimeout: 5 * time.Second,
		ScanChunkSamples:  256,
		ReadsPerBatch:     4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SettleTime <= 0 {
		o.SettleTime = d.SettleTime
	}
	if o.MotorSettleTime <= 0 {
		o.MotorSettleTime = d.MotorSettleTime
	}
	if o.StopSettleTime <= 0 {
		o.StopSettleTime = d.StopSettleTime
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = d.ResponseTimeout
	}
	if o.JunkReadTimeout <= 0 {
		o.JunkReadTimeout = d.JunkReadTimeout
	}
	if o.ScanReadTimeout <= 0 {
		o.ScanReadTimeout = d.ScanReadTimeout
	}
	if o.SingleScanTimeout <= 0 {
		o.SingleScanTimeout = d.SingleScanTimeout
	}
	if o.ScanChunkSamples <= 0 {
		o.ScanChunkSamples = d.ScanChunkSamples
	}
	if o.ReadsPerBatch <= 0 {
		o.ReadsPerBatch = d.ReadsPerBatch
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Statistics == nil {
		o.Statistics = NewStatistics()
	}
	return o
}

// Session drives one device. It is the only owner of the transport.
//
// Public operations are serialized. While a continuous scan is running the
// acquisition loop shares the transport through the I/O lock, and requests
// that expect a response fail with ErrBusy.
type Session struct {
	open  Opener
	opts  Options
	log   *zap.Logger
	stats *Statistics

	opMu sync.Mutex // serializes public operations
	ctrl *controller

	ioMu      sync.Mutex // guards transport
	transport Transport
	timeout   time.Duration
	decoder   *Decoder

	state atomic.Int32
}

// NewSession creates a disconnected session that opens its transport with open
func NewSession(open Opener, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		open:    open,
		opts:    opts,
		log:     opts.Logger,
		stats:   opts.Statistics,
		decoder: NewDecoder(opts.Statistics),
	}
}

// State returns the current session state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Statistics returns the stream statistics of this session
func (s *Session) Statistics() *Statistics {
	return s.stats
}

// Options returns the effective options
func (s *Session) Options() Options {
	return s.opts
}

func (s *Session) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.log.Debug("session state", zap.Stringer("from", old), zap.Stringer("to", st))
	}
}

// Connect opens the transport, stops any scan left running on the device and
// flushes stale bytes. Connecting a connected session does nothing.
func (s *Session) Connect() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() != StateDisconnected {
		return nil
	}

	t, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.transport = t
	s.timeout = 0

	if err := s.writeFrame(NewStopCommand()); err != nil {
		s.releaseTransport()
		return err
	}
	time.Sleep(s.opts.SettleTime)

	n, err := s.readChunk(make([]byte, s.chunkSize()), s.opts.JunkReadTimeout)
	if err != nil {
		s.releaseTransport()
		return err
	}
	s.log.Debug("flushed junk data", zap.Int("bytes", n))

	s.setState(StateIdle)
	return nil
}

// DeviceInfo requests the model, firmware, hardware and serial number
func (s *Session) DeviceInfo() (DeviceInfo, error) {
	payload, err := s.request(NewGetInfoCommand(), DataTypeInfo, DeviceInfoSize)
	if err != nil {
		return DeviceInfo{}, err
	}
	return ParseDeviceInfo(payload)
}

// HealthStatus requests the device health
func (s *Session) HealthStatus() (HealthStatus, error) {
	payload, err := s.request(NewGetHealthCommand(), DataTypeHealth, HealthStatusSize)
	if err != nil {
		return HealthStatus{}, err
	}
	return ParseHealthStatus(payload)
}

// SetMotorSpeed sets the motor PWM duty cycle (0-1023) and waits for the
// motor to settle. Out of range values are rejected before any I/O.
func (s *Session) SetMotorSpeed(speed int) error {
	if speed < MinMotorSpeed || speed > MaxMotorSpeed {
		return fmt.Errorf("%w: motor speed %d, must be between %d and %d",
			ErrInvalidArgument, speed, MinMotorSpeed, MaxMotorSpeed)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateDisconnected {
		return ErrNotConnected
	}

	s.ioMu.Lock()
	err := s.writeFrame(NewMotorSpeedCommand(uint16(speed)))
	s.ioMu.Unlock()
	if err != nil {
		return err
	}

	time.Sleep(s.opts.MotorSettleTime)
	return nil
}

// StartScan puts the device in scan mode. The measurement stream is then
// available to ScanOnce or a continuous scan.
func (s *Session) StartScan() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.streamingLocked() {
		return ErrBusy
	}
	return s.startScanLocked()
}

// Stop stops scanning, including a running continuous scan.
func (s *Session) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	loopErr := s.stopLoopLocked()
	if s.State() == StateDisconnected {
		return multierr.Append(loopErr, ErrNotConnected)
	}
	return multierr.Append(loopErr, s.stopLocked())
}

// Close stops the motor and any scan, then releases the transport.
// Closing a closed session does nothing.
func (s *Session) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateDisconnected {
		return nil
	}

	if loopErr := s.stopLoopLocked(); loopErr != nil {
		s.log.Warn("continuous scan ended with error", zap.Error(loopErr))
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	err := multierr.Combine(
		s.writeFrame(NewMotorSpeedCommand(0)),
		s.writeFrame(NewStopCommand()),
	)
	time.Sleep(s.opts.StopSettleTime)

	return multierr.Append(err, s.releaseTransport())
}

// startScanLocked issues STOP then SCAN, consumes the response header and
// throws away the first burst, which is often incomplete.
func (s *Session) startScanLocked() error {
	if s.State() == StateDisconnected {
		return ErrNotConnected
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	if err := s.writeFrame(NewStopCommand()); err != nil {
		return err
	}
	time.Sleep(s.opts.StopSettleTime)

	if err := s.writeFrame(NewScanCommand()); err != nil {
		return err
	}

	header, err := s.readFull(ResponseHeaderSize, s.opts.ResponseTimeout)
	if err != nil {
		return err
	}
	s.logHeader(OpScan, header, DataTypeScan)

	n, err := s.readChunk(make([]byte, s.chunkSize()), s.opts.JunkReadTimeout)
	if err != nil {
		return err
	}
	s.log.Debug("discarded first scan burst", zap.Int("bytes", n))

	s.decoder.Reset()
	s.setState(StateScanning)
	return nil
}

// stopLocked sends STOP and returns to idle
func (s *Session) stopLocked() error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	if err := s.writeFrame(NewStopCommand()); err != nil {
		return err
	}
	time.Sleep(s.opts.StopSettleTime)
	s.setState(StateIdle)
	return nil
}

// request sends a command and reads its fixed size response
func (s *Session) request(f CommandFrame, dataType uint8, size int) ([]byte, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateDisconnected {
		return nil, ErrNotConnected
	}
	if s.streamingLocked() {
		return nil, ErrBusy
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	if err := s.writeFrame(f); err != nil {
		return nil, err
	}
	time.Sleep(s.opts.SettleTime)

	header, err := s.readFull(ResponseHeaderSize, s.opts.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: no response to %s", ErrTimeout, FormatOpcode(f.Opcode))
	}
	if len(header) < ResponseHeaderSize {
		return nil, fmt.Errorf("%w: truncated response header to %s (%d bytes)",
			ErrMalformedPayload, FormatOpcode(f.Opcode), len(header))
	}
	s.logHeader(f.Opcode, header, dataType)

	payload, err := s.readFull(size, s.opts.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: no payload after %s response header", ErrTimeout, FormatOpcode(f.Opcode))
	}
	s.log.Debug("received response",
		zap.Stringer("opcode", f.Opcode),
		zap.String("payload", hex.EncodeToString(payload)))
	return payload, nil
}

// writeFrame writes a request. Caller holds ioMu.
func (s *Session) writeFrame(f CommandFrame) error {
	if s.transport == nil {
		return ErrNotConnected
	}
	if err := f.Validate(); err != nil {
		return err
	}

	data := f.Encode()
	if _, err := s.transport.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrConnection, FormatOpcode(f.Opcode), err)
	}
	s.log.Debug("sent command", zap.Stringer("opcode", f.Opcode), zap.String("frame", hex.EncodeToString(data)))
	return nil
}

// readChunk performs one bounded read. Caller holds ioMu.
func (s *Session) readChunk(buf []byte, timeout time.Duration) (int, error) {
	if s.transport == nil {
		return 0, ErrNotConnected
	}
	if timeout != s.timeout {
		if err := s.transport.SetReadTimeout(timeout); err != nil {
			return 0, fmt.Errorf("%w: set read timeout: %w", ErrConnection, err)
		}
		s.timeout = timeout
	}

	n, err := s.transport.Read(buf)
	if err != nil {
		return n, fmt.Errorf("%w: read: %w", ErrConnection, err)
	}
	return n, nil
}

// readFull reads up to size bytes within timeout and returns what arrived.
// Caller holds ioMu.
func (s *Session) readFull(size int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, size)
	got := 0
	deadline := time.Now().Add(timeout)

	for got < size {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		n, err := s.readChunk(buf[got:], remaining)
		if err != nil {
			return buf[:got], err
		}
		got += n
	}
	return buf[:got], nil
}

// readScanChunk performs one bounded read of the scan stream
func (s *Session) readScanChunk(buf []byte) (int, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	n, err := s.readChunk(buf, s.opts.ScanReadTimeout)
	if err != nil {
		return n, err
	}
	if n == 0 {
		s.stats.EmptyReads.Inc()
	}
	s.stats.BytesReceived.Add(uint64(n))
	return n, nil
}

// releaseTransport closes the transport and marks the session disconnected.
// Caller holds ioMu.
func (s *Session) releaseTransport() error {
	var err error
	if s.transport != nil {
		err = s.transport.Close()
		s.transport = nil
	}
	s.timeout = 0
	s.setState(StateDisconnected)
	return err
}

func (s *Session) logHeader(op Opcode, data []byte, dataType uint8) {
	header, err := ParseResponseHeader(data)
	if err != nil {
		s.log.Warn("short response header", zap.Stringer("opcode", op), zap.Int("bytes", len(data)))
		return
	}
	if !header.Valid() || header.DataType != dataType {
		s.log.Warn("unexpected response header",
			zap.Stringer("opcode", op),
			zap.String("header", hex.EncodeToString(data)),
			zap.Uint8("expected_type", dataType))
		return
	}
	s.log.Debug("response header",
		zap.Stringer("opcode", op),
		zap.Uint32("size", header.Size),
		zap.Uint8("mode", header.SendMode),
		zap.Uint8("type", header.DataType))
}

func (s *Session) chunkSize() int {
	return s.opts.ScanChunkSamples * SampleSize
}
