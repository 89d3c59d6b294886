// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator provides an in-process RPLidar device that implements
// rplidar.Transport. It answers GET_INFO and GET_HEALTH, tracks the motor
// PWM, and streams a synthetic room after SCAN.
package simulator

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

// ErrClosed is returned by reads and writes after Close
var ErrClosed = errors.New("simulator: device closed")

// Config describes the simulated device
type Config struct {
	Model         byte
	FirmwareMajor byte
	FirmwareMinor byte
	Hardware      byte
	Serial        [16]byte

	Health          rplidar.HealthCode
	HealthErrorCode uint16

	SamplesPerRotation int

	// Room size in millimeters. The device sits in the middle.
	RoomWidth float64
	RoomDepth float64

	// DropoutRate is the fraction of samples without a return
	DropoutRate float64
	// CorruptionRate is the probability that a junk byte is inserted before
	// a sample
	CorruptionRate float64
	Seed           int64

	// Realtime paces the stream at SampleRate samples per second. Without it
	// a read is filled immediately.
	Realtime   bool
	SampleRate int

	Logger *zap.Logger
}

// DefaultConfig returns an A1-like device in a 4m x 3m room
func DefaultConfig() Config {
	return Config{
		Model:              0x18,
		FirmwareMajor:      1,
		FirmwareMinor:      29,
		Hardware:           7,
		Serial:             [16]byte{0xC5, 0x9A, 0x9A, 0xF2, 0xC2, 0xE3, 0x9E, 0xD4, 0xA7, 0xE3, 0x98, 0xF3, 0x3F, 0x1B, 0x45, 0x04},
		Health:             rplidar.HealthGood,
		SamplesPerRotation: 360,
		RoomWidth:          4000,
		RoomDepth:          3000,
		DropoutRate:        0.05,
		Seed:               1,
		SampleRate:         2000,
	}
}

// Simulator is a fake RPLidar behind the rplidar.Transport interface
type Simulator struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger
	rng *rand.Rand

	in  []byte
	out bytes.Buffer

	scanning   bool
	motorSpeed uint16
	index      int
	lastEmit   time.Time

	readTimeout time.Duration
	readErr     error
	closed      bool
	closedCh    chan struct{}

	commands map[rplidar.Opcode]int
}

// New creates a simulator. Zero fields of cfg are taken from DefaultConfig
// where a zero value would make no sense.
func New(cfg Config) *Simulator {
	d := DefaultConfig()
	if cfg.SamplesPerRotation <= 0 {
		cfg.SamplesPerRotation = d.SamplesPerRotation
	}
	if cfg.RoomWidth <= 0 {
		cfg.RoomWidth = d.RoomWidth
	}
	if cfg.RoomDepth <= 0 {
		cfg.RoomDepth = d.RoomDepth
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = d.SampleRate
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Simulator{
		cfg:      cfg,
		log:      cfg.Logger,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		closedCh: make(chan struct{}),
		commands: make(map[rplidar.Opcode]int),
	}
}

// Opener returns an rplidar.Opener that hands out this simulator
func (s *Simulator) Opener() rplidar.Opener {
	return func() (rplidar.Transport, error) {
		return s, nil
	}
}

// MotorSpeed returns the last PWM value received
func (s *Simulator) MotorSpeed() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motorSpeed
}

// Scanning reports whether the device is streaming samples
func (s *Simulator) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Commands returns how many valid requests with op were received
func (s *Simulator) Commands(op rplidar.Opcode) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands[op]
}

// Fail makes the next read fail with err, like an unplugged cable
func (s *Simulator) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetReadTimeout implements rplidar.Transport
func (s *Simulator) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = timeout
	return nil
}

// Write accepts request frames. Partial frames are kept until complete.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	s.in = append(s.in, p...)
	s.processInput()
	return len(p), nil
}

// Read returns pending responses or scan data. With nothing to send it waits
// for the read timeout and returns 0 bytes.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.readErr != nil {
		err := s.readErr
		s.readErr = nil
		return 0, err
	}

	if s.out.Len() == 0 && s.scanning {
		s.emit(s.samplesDue(len(p) / rplidar.SampleSize))
	}

	if s.out.Len() == 0 {
		s.waitLocked(s.readTimeout)
		if s.closed {
			return 0, ErrClosed
		}
		if s.scanning {
			s.emit(s.samplesDue(len(p) / rplidar.SampleSize))
		}
	}

	if s.out.Len() == 0 {
		return 0, nil
	}
	return s.out.Read(p)
}

// Close closes the device. Reads and writes fail afterwards.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.scanning = false
		close(s.closedCh)
	}
	return nil
}

// waitLocked sleeps with mu released, returning early on Close
func (s *Simulator) waitLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	s.mu.Unlock()
	select {
	case <-timer.C:
	case <-s.closedCh:
	}
	s.mu.Lock()
}

// processInput parses complete frames from the input buffer
func (s *Simulator) processInput() {
	for len(s.in) > 0 {
		if s.in[0] != rplidar.SyncByte {
			s.in = s.in[1:]
			continue
		}
		if len(s.in) < 2 {
			return
		}

		op := rplidar.Opcode(s.in[1])
		if op&0x80 == 0 {
			s.in = s.in[2:]
			s.handle(op, nil)
			continue
		}

		// Requests with bit 7 set carry length, payload and checksum
		if len(s.in) < 3 {
			return
		}
		size := int(s.in[2])
		if len(s.in) < 4+size {
			return
		}
		frame := s.in[:4+size]
		s.in = s.in[4+size:]

		if rplidar.Checksum(frame[:3+size]) != frame[3+size] {
			s.log.Warn("dropping request with bad checksum", zap.Stringer("opcode", op))
			continue
		}
		s.handle(op, frame[3:3+size])
	}
}

func (s *Simulator) handle(op rplidar.Opcode, payload []byte) {
	s.commands[op]++
	s.log.Debug("request", zap.Stringer("opcode", op), zap.Int("payload", len(payload)))

	switch op {
	case rplidar.OpStop:
		s.scanning = false
		s.out.Reset()
	case rplidar.OpGetInfo:
		s.out.Write(s.infoResponse())
	case rplidar.OpGetHealth:
		s.out.Write(s.healthResponse())
	case rplidar.OpScan:
		s.out.Reset()
		s.out.Write(responseHeader(rplidar.SampleSize, rplidar.SendModeMultiple, rplidar.DataTypeScan))
		s.scanning = true
		s.index = 0
		s.lastEmit = time.Now()
	case rplidar.OpStartMotor:
		if len(payload) == 2 {
			s.motorSpeed = uint16(payload[0]) | uint16(payload[1])<<8
		}
	}
}

func (s *Simulator) infoResponse() []byte {
	payload := make([]byte, 0, rplidar.DeviceInfoSize)
	payload = append(payload, s.cfg.Model, s.cfg.FirmwareMinor, s.cfg.FirmwareMajor, s.cfg.Hardware)
	payload = append(payload, s.cfg.Serial[:]...)
	return append(responseHeader(rplidar.DeviceInfoSize, rplidar.SendModeSingle, rplidar.DataTypeInfo), payload...)
}

func (s *Simulator) healthResponse() []byte {
	code := s.cfg.HealthErrorCode
	return append(responseHeader(rplidar.HealthStatusSize, rplidar.SendModeSingle, rplidar.DataTypeHealth),
		byte(s.cfg.Health), byte(code), byte(code>>8))
}

// samplesDue returns how many samples may be sent now, at most max
func (s *Simulator) samplesDue(max int) int {
	if max <= 0 {
		max = 1
	}
	if !s.cfg.Realtime {
		return max
	}

	now := time.Now()
	due := int(now.Sub(s.lastEmit).Seconds() * float64(s.cfg.SampleRate))
	if due <= 0 {
		return 0
	}
	if due > max {
		due = max
	}
	s.lastEmit = s.lastEmit.Add(time.Duration(due) * time.Second / time.Duration(s.cfg.SampleRate))
	return due
}

// emit appends n samples of the synthetic room to the output
func (s *Simulator) emit(n int) {
	for i := 0; i < n; i++ {
		if s.cfg.CorruptionRate > 0 && s.rng.Float64() < s.cfg.CorruptionRate {
			s.out.WriteByte(byte(s.rng.Intn(256)))
		}

		sample := s.nextSample()
		b := rplidar.EncodeSample(sample)
		s.out.Write(b[:])
	}
}

func (s *Simulator) nextSample() rplidar.Sample {
	n := s.cfg.SamplesPerRotation
	i := s.index % n
	s.index++

	angle := float64(i) * 360.0 / float64(n)
	sample := rplidar.Sample{
		Start:   i == 0,
		AngleQ6: uint16(angle * 64),
	}

	if s.cfg.DropoutRate > 0 && s.rng.Float64() < s.cfg.DropoutRate {
		return sample
	}

	dist := roomDistance(angle, s.cfg.RoomWidth, s.cfg.RoomDepth)
	dist += s.rng.NormFloat64() * 5
	if dist < 1 {
		dist = 1
	}
	if q2 := dist * 4; q2 < math.MaxUint16 {
		sample.DistanceQ2 = uint16(q2)
	}
	sample.Quality = uint8(47 - int(dist/500)%32)
	return sample
}

// roomDistance is the distance from the center of a width x depth rectangle
// to its wall along angle (degrees, clockwise from the +depth axis)
func roomDistance(angle, width, depth float64) float64 {
	rad := angle * math.Pi / 180
	dx := math.Abs(math.Sin(rad))
	dy := math.Abs(math.Cos(rad))

	d := math.Inf(1)
	if dx > 1e-9 {
		d = math.Min(d, width/2/dx)
	}
	if dy > 1e-9 {
		d = math.Min(d, depth/2/dy)
	}
	return d
}

func responseHeader(size uint32, mode uint8, dataType uint8) []byte {
	v := size&0x3FFFFFFF | uint32(mode)<<30
	return []byte{rplidar.SyncByte, rplidar.ResponseSyncByte, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24), dataType}
}
