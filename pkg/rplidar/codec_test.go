// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	if c := Checksum(nil); c != 0 {
		t.Errorf("Checksum of empty data should be 0, got 0x%02X", c)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"single byte", []byte{0xA5}, 0xA5},
		{"motor 660", []byte{0xA5, 0xF0, 0x02, 0x94, 0x02}, 0xA5 ^ 0xF0 ^ 0x02 ^ 0x94 ^ 0x02},
		{"self cancelling", []byte{0x5A, 0x5A}, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c := Checksum(tt.data); c != tt.expected {
				t.Errorf("Checksum mismatch: expected 0x%02X, got 0x%02X", tt.expected, c)
			}
		})
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestBuildFrame_NoPayload(t *testing.T) {
	tests := []struct {
		op       Opcode
		expected []byte
	}{
		{OpStop, []byte{0xA5, 0x25}},
		{OpScan, []byte{0xA5, 0x20}},
		{OpGetInfo, []byte{0xA5, 0x50}},
		{OpGetHealth, []byte{0xA5, 0x52}},
	}

	for _, tt := range tests {
		t.Run(FormatOpcode(tt.op), func(t *testing.T) {
			frame := BuildFrame(tt.op, nil)
			if !bytes.Equal(frame, tt.expected) {
				t.Errorf("Frame mismatch: expected % X, got % X", tt.expected, frame)
			}
		})
	}
}

func TestBuildFrame_MotorSpeed(t *testing.T) {
	frame := NewMotorSpeedCommand(660).Encode()
	expected := []byte{0xA5, 0xF0, 0x02, 0x94, 0x02, 0xA5 ^ 0xF0 ^ 0x02 ^ 0x94 ^ 0x02}
	if !bytes.Equal(frame, expected) {
		t.Errorf("Frame mismatch: expected % X, got % X", expected, frame)
	}
}

func TestBuildFrame_ChecksumCoversFrame(t *testing.T) {
	for _, payload := range [][]byte{{}, {0x00}, {0xFF, 0x01, 0x7E}, bytes.Repeat([]byte{0x3C}, MaxPayloadSize)} {
		frame := BuildFrame(OpExpressScan, payload)
		if len(frame) != 4+len(payload) {
			t.Fatalf("Frame length: expected %d, got %d", 4+len(payload), len(frame))
		}
		if frame[2] != byte(len(payload)) {
			t.Errorf("Length byte: expected %d, got %d", len(payload), frame[2])
		}
		last := len(frame) - 1
		if Checksum(frame[:last]) != frame[last] {
			t.Errorf("Checksum 0x%02X does not match XOR of preceding bytes 0x%02X", frame[last], Checksum(frame[:last]))
		}
	}
}

func TestBuildFrame_EmptyPayloadIsPresent(t *testing.T) {
	frame := BuildFrame(OpStartMotor, []byte{})
	expected := []byte{0xA5, 0xF0, 0x00, 0xA5 ^ 0xF0}
	if !bytes.Equal(frame, expected) {
		t.Errorf("Frame mismatch: expected % X, got % X", expected, frame)
	}
}

func TestBuildFrame_OversizedPayloadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("BuildFrame should panic for a payload over 255 bytes")
		}
	}()
	BuildFrame(OpStartMotor, make([]byte, MaxPayloadSize+1))
}

func TestCommandFrame_Validate(t *testing.T) {
	if err := (CommandFrame{Opcode: OpStartMotor, Payload: make([]byte, MaxPayloadSize)}).Validate(); err != nil {
		t.Errorf("255 byte payload should be valid: %v", err)
	}
	err := (CommandFrame{Opcode: OpStartMotor, Payload: make([]byte, MaxPayloadSize+1)}).Validate()
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestMotorSpeedPayload_LittleEndian(t *testing.T) {
	tests := []struct {
		speed    uint16
		expected []byte
	}{
		{0, []byte{0x00, 0x00}},
		{500, []byte{0xF4, 0x01}},
		{MaxMotorSpeed, []byte{0xFF, 0x03}},
	}

	for _, tt := range tests {
		if p := MotorSpeedPayload(tt.speed); !bytes.Equal(p, tt.expected) {
			t.Errorf("speed=%d: expected % X, got % X", tt.speed, tt.expected, p)
		}
	}
}

// ============================================================
// Response Tests
// ============================================================

func TestParseResponseHeader(t *testing.T) {
	h, err := ParseResponseHeader([]byte{0xA5, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !h.Valid() {
		t.Error("Header should be valid")
	}
	if h.Size != 5 {
		t.Errorf("Size: expected 5, got %d", h.Size)
	}
	if h.SendMode != SendModeMultiple {
		t.Errorf("SendMode: expected %d, got %d", SendModeMultiple, h.SendMode)
	}
	if h.DataType != DataTypeScan {
		t.Errorf("DataType: expected 0x%02X, got 0x%02X", DataTypeScan, h.DataType)
	}
}

func TestParseResponseHeader_Invalid(t *testing.T) {
	h, err := ParseResponseHeader([]byte{0x00, 0x5A, 0x14, 0x00, 0x00, 0x00, 0x04})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if h.Valid() {
		t.Error("Header with bad sync should not be valid")
	}

	if _, err := ParseResponseHeader([]byte{0xA5, 0x5A}); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload for short header, got %v", err)
	}
}

func TestParseDeviceInfo_Golden(t *testing.T) {
	data := []byte{
		0x18, 0x1D, 0x01, 0x07,
		0xC5, 0x9A, 0x9A, 0xF2, 0xC2, 0xE3, 0x9E, 0xD4,
		0xA7, 0xE3, 0x98, 0xF3, 0x3F, 0x1B, 0x45, 0x04,
	}

	info, err := ParseDeviceInfo(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := DeviceInfo{
		Model:           "18",
		FirmwareVersion: "1.29",
		Hardware:        "7",
		SerialNumber:    "C59A9AF2C2E39ED4A7E398F33F1B4504",
	}
	if info != expected {
		t.Errorf("DeviceInfo mismatch:\nexpected %+v\ngot      %+v", expected, info)
	}
}

func TestParseDeviceInfo_WrongLength(t *testing.T) {
	for _, n := range []int{0, 19, 21} {
		if _, err := ParseDeviceInfo(make([]byte, n)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("len=%d: expected ErrMalformedPayload, got %v", n, err)
		}
	}
}

func TestParseHealthStatus(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		status  HealthCode
		code    uint16
		healthy bool
	}{
		{"good", []byte{0x00, 0x00, 0x00}, HealthGood, 0, true},
		{"warning", []byte{0x01, 0x34, 0x12}, HealthWarning, 0x1234, false},
		{"error", []byte{0x02, 0xFF, 0x00}, HealthError, 0x00FF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHealthStatus(tt.data)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if h.Status != tt.status {
				t.Errorf("Status: expected %v, got %v", tt.status, h.Status)
			}
			if h.ErrorCode != tt.code {
				t.Errorf("ErrorCode: expected 0x%04X, got 0x%04X", tt.code, h.ErrorCode)
			}
			if h.Healthy() != tt.healthy {
				t.Errorf("Healthy: expected %v", tt.healthy)
			}
		})
	}

	if _, err := ParseHealthStatus([]byte{0x00, 0x00}); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload for short payload, got %v", err)
	}
}
