// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"io"
	"time"
)

// Transport is the byte stream to the device.
//
// Read must return within the timeout set by SetReadTimeout. A read that
// times out returns 0 bytes and a nil error. Any error returned by Read or
// Write is treated as loss of the transport.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens and configures a Transport (115200 baud, 8N1, no flow control
// for serial links).
type Opener func() (Transport, error)
