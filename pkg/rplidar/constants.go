// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rplidar implements the serial protocol of RPLidar-class spinning
// laser range sensors.
//
// The package covers command framing with XOR checksum, parsing of the fixed
// size info/health responses, a self-resynchronizing decoder for the 5-byte
// measurement stream, and assembly of measurements into angle-sorted
// rotations. A Session drives a device over any Transport and can run a
// background acquisition loop that delivers rotations to a handler.
package rplidar

// Framing bytes
const (
	SyncByte         = 0xA5
	ResponseSyncByte = 0x5A
)

// Opcode identifies a request sent to the device.
type Opcode byte

// Request opcodes
const (
	OpScan        Opcode = 0x20
	OpStop        Opcode = 0x25
	OpGetInfo     Opcode = 0x50
	OpGetHealth   Opcode = 0x52
	OpExpressScan Opcode = 0x82 // declared only, express mode is not supported
	OpStartMotor  Opcode = 0xF0
)

// Response and sample sizes
const (
	ResponseHeaderSize = 7
	DeviceInfoSize     = 20
	HealthStatusSize   = 3
	SampleSize         = 5
	MaxPayloadSize     = 255
)

// Response header data types
const (
	DataTypeInfo   = 0x04
	DataTypeHealth = 0x06
	DataTypeScan   = 0x81
)

// Motor PWM limits (10-bit duty cycle)
const (
	MinMotorSpeed     = 0
	MaxMotorSpeed     = 1023
	DefaultMotorSpeed = 660
)

// MaxRotationSamples caps an in-progress rotation. A rotation whose start
// marker never recurs is dropped once it grows past this bound.
const MaxRotationSamples = 8192

// HealthCode is the status byte of a GET_HEALTH response.
type HealthCode uint8

// Health status values
const (
	HealthGood HealthCode = iota
	HealthWarning
	HealthError
)

// Sample bit layout
const (
	startFlagMask    = 0x01
	invStartFlagMask = 0x02
	checkBitMask     = 0x01
)
