// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import "errors"

// Errors returned by the protocol and session layers. They are wrapped with
// context, so callers should test them with errors.Is.
var (
	// ErrConnection is returned when the transport cannot be opened or fails.
	ErrConnection = errors.New("rplidar: connection error")

	// ErrInvalidArgument is returned for out of range arguments. No bytes are
	// written to the device when it is returned.
	ErrInvalidArgument = errors.New("rplidar: invalid argument")

	// ErrMalformedPayload is returned when a fixed size response has the wrong length.
	ErrMalformedPayload = errors.New("rplidar: malformed payload")

	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = errors.New("rplidar: timeout")

	// ErrNotConnected is returned for operations on a disconnected session.
	ErrNotConnected = errors.New("rplidar: not connected")

	// ErrNotScanning is returned when reading samples before StartScan.
	ErrNotScanning = errors.New("rplidar: scan not started")

	// ErrBusy is returned when the continuous scan loop owns the stream.
	ErrBusy = errors.New("rplidar: continuous scan in progress")
)
