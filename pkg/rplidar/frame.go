// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"encoding/binary"
	"fmt"
)

// CommandFrame is a request ready for transmission.
// A nil Payload means the request carries no payload section at all; a
// non-nil empty Payload is sent as a zero length payload with checksum.
type CommandFrame struct {
	Opcode  Opcode
	Payload []byte
}

// Validate checks that the frame can be encoded
func (f CommandFrame) Validate() error {
	if len(f.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrInvalidArgument, len(f.Payload), MaxPayloadSize)
	}
	return nil
}

// Encode returns the wire bytes of the frame.
// Panics if the payload exceeds MaxPayloadSize (use Validate first).
func (f CommandFrame) Encode() []byte {
	return BuildFrame(f.Opcode, f.Payload)
}

// BuildFrame creates a complete wire-formatted request.
//
// Requests without payload are just the sync byte and opcode. Requests with a
// payload append the payload length, the payload and an XOR checksum over
// every preceding byte of the frame.
func BuildFrame(op Opcode, payload []byte) []byte {
	if payload == nil {
		return []byte{SyncByte, byte(op)}
	}
	if len(payload) > MaxPayloadSize {
		panic(fmt.Sprintf("rplidar: payload too large: %d bytes", len(payload)))
	}

	frame := make([]byte, 0, 4+len(payload))
	frame = append(frame, SyncByte, byte(op), byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame))
	return frame
}

// NewStopCommand creates a STOP request. The device sends no response.
func NewStopCommand() CommandFrame {
	return CommandFrame{Opcode: OpStop}
}

// NewScanCommand creates a SCAN request.
func NewScanCommand() CommandFrame {
	return CommandFrame{Opcode: OpScan}
}

// NewGetInfoCommand creates a GET_INFO request.
func NewGetInfoCommand() CommandFrame {
	return CommandFrame{Opcode: OpGetInfo}
}

// NewGetHealthCommand creates a GET_HEALTH request.
func NewGetHealthCommand() CommandFrame {
	return CommandFrame{Opcode: OpGetHealth}
}

// NewMotorSpeedCommand creates a START_MOTOR request carrying the PWM duty
// cycle. Use speed=0 to stop the motor.
func NewMotorSpeedCommand(speed uint16) CommandFrame {
	return CommandFrame{Opcode: OpStartMotor, Payload: MotorSpeedPayload(speed)}
}

// MotorSpeedPayload encodes a motor PWM value (little-endian)
func MotorSpeedPayload(speed uint16) []byte {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, speed)
	return payload
}
