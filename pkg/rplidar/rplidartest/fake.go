// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rplidartest provides a scripted transport for testing code that
// drives an rplidar.Session.
package rplidartest

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

// ErrClosed is returned by reads and writes after Close
var ErrClosed = errors.New("rplidartest: transport closed")

// FakeTransport implements rplidar.Transport with configurable behaviour.
//
// Reads honour the read timeout: with an empty buffer Read waits up to the
// timeout for data and then returns 0 bytes. Responses can be scripted per
// opcode with Respond, and OnRead can supply data on demand.
type FakeTransport struct {
	mu sync.Mutex

	readBuf bytes.Buffer
	written bytes.Buffer
	frames  [][]byte

	responses map[rplidar.Opcode][]byte
	onRead    func() []byte

	readErr  error
	writeErr error
	closeErr error

	readTimeout     time.Duration
	readCalls       int
	writeCalls      int
	readsAfterClose int
	closed          bool

	notify   chan struct{}
	closedCh chan struct{}
}

// NewFakeTransport creates an open fake with empty buffers
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		responses: make(map[rplidar.Opcode][]byte),
		notify:    make(chan struct{}, 1),
		closedCh:  make(chan struct{}),
	}
}

// Opener returns an rplidar.Opener that hands out this fake
func (t *FakeTransport) Opener() rplidar.Opener {
	return func() (rplidar.Transport, error) {
		return t, nil
	}
}

// Respond queues data for reading every time a frame with op is written
func (t *FakeTransport) Respond(op rplidar.Opcode, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[op] = append([]byte(nil), data...)
}

// OnRead sets a function that is called when a read finds the buffer empty.
// Its result is queued before the read waits for data. It is called with the
// fake locked and must not call methods of the fake.
func (t *FakeTransport) OnRead(fn func() []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRead = fn
}

// AddReadData queues data to be returned by subsequent reads
func (t *FakeTransport) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.Write(data)
	t.signal()
}

// SetReadError makes the next read fail with err
func (t *FakeTransport) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErr = err
	t.signal()
}

// SetWriteError makes the next write fail with err
func (t *FakeTransport) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// SetCloseError makes Close return err
func (t *FakeTransport) SetCloseError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeErr = err
}

// Read returns buffered data, or waits up to the read timeout for some
func (t *FakeTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readCalls++
	if t.closed {
		t.readsAfterClose++
		return 0, ErrClosed
	}
	if err := t.takeReadErr(); err != nil {
		return 0, err
	}

	if t.readBuf.Len() == 0 && t.onRead != nil {
		t.readBuf.Write(t.onRead())
	}

	if t.readBuf.Len() == 0 && t.readTimeout > 0 {
		timer := time.NewTimer(t.readTimeout)
		t.mu.Unlock()
		select {
		case <-t.notify:
		case <-t.closedCh:
		case <-timer.C:
		}
		timer.Stop()
		t.mu.Lock()

		if t.closed {
			return 0, ErrClosed
		}
		if err := t.takeReadErr(); err != nil {
			return 0, err
		}
	}

	if t.readBuf.Len() == 0 {
		return 0, nil
	}
	return t.readBuf.Read(p)
}

// Write records the frame and queues any scripted response
func (t *FakeTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeCalls++
	if t.closed {
		return 0, ErrClosed
	}
	if t.writeErr != nil {
		err := t.writeErr
		t.writeErr = nil
		return 0, err
	}

	t.written.Write(p)
	t.frames = append(t.frames, append([]byte(nil), p...))

	if len(p) >= 2 {
		if resp, ok := t.responses[rplidar.Opcode(p[1])]; ok {
			t.readBuf.Write(resp)
			t.signal()
		}
	}
	return len(p), nil
}

// Close marks the transport closed and wakes blocked readers
func (t *FakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.closedCh)
	}
	return t.closeErr
}

// SetReadTimeout implements rplidar.Transport
func (t *FakeTransport) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = timeout
	return nil
}

// GetWrittenData returns all data written so far
func (t *FakeTransport) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.written.Bytes()...)
}

// Frames returns every write as a separate frame
func (t *FakeTransport) Frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

// Opcodes returns the opcode of every written frame, in order
func (t *FakeTransport) Opcodes() []rplidar.Opcode {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := make([]rplidar.Opcode, 0, len(t.frames))
	for _, f := range t.frames {
		if len(f) >= 2 {
			ops = append(ops, rplidar.Opcode(f[1]))
		}
	}
	return ops
}

// ReadCalls returns the number of Read calls
func (t *FakeTransport) ReadCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readCalls
}

// WriteCalls returns the number of Write calls
func (t *FakeTransport) WriteCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeCalls
}

// ReadsAfterClose returns the number of reads attempted after Close
func (t *FakeTransport) ReadsAfterClose() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readsAfterClose
}

// Closed reports whether Close was called
func (t *FakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ReadTimeout returns the current read timeout
func (t *FakeTransport) ReadTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readTimeout
}

func (t *FakeTransport) takeReadErr() error {
	err := t.readErr
	t.readErr = nil
	return err
}

// signal wakes one waiting reader. Caller holds mu.
func (t *FakeTransport) signal() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ResponseHeader builds the 7-byte descriptor for a single response of size
// bytes and the given data type.
func ResponseHeader(size uint32, mode uint8, dataType uint8) []byte {
	v := size&0x3FFFFFFF | uint32(mode)<<30
	return []byte{rplidar.SyncByte, rplidar.ResponseSyncByte, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24), dataType}
}

// InfoResponse builds a complete GET_INFO response
func InfoResponse(payload [rplidar.DeviceInfoSize]byte) []byte {
	return append(ResponseHeader(rplidar.DeviceInfoSize, rplidar.SendModeSingle, rplidar.DataTypeInfo), payload[:]...)
}

// HealthResponse builds a complete GET_HEALTH response
func HealthResponse(status rplidar.HealthCode, errorCode uint16) []byte {
	return append(ResponseHeader(rplidar.HealthStatusSize, rplidar.SendModeSingle, rplidar.DataTypeHealth),
		byte(status), byte(errorCode), byte(errorCode>>8))
}

// ScanResponseHeader is the descriptor sent once after SCAN
func ScanResponseHeader() []byte {
	return ResponseHeader(rplidar.SampleSize, rplidar.SendModeMultiple, rplidar.DataTypeScan)
}

// EncodeRotation encodes samples spread evenly over 360 degrees, starting
// with a start-flagged sample at angle 0.
func EncodeRotation(samples int, distanceQ2 uint16) []byte {
	out := make([]byte, 0, samples*rplidar.SampleSize)
	for i := 0; i < samples; i++ {
		s := rplidar.Sample{
			Quality:    15,
			Start:      i == 0,
			AngleQ6:    uint16(i * 360 * 64 / samples),
			DistanceQ2: distanceQ2,
		}
		b := rplidar.EncodeSample(s)
		out = append(out, b[:]...)
	}
	return out
}
