// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Send modes reported in the response header
const (
	SendModeSingle   = 0x0
	SendModeMultiple = 0x1
)

// ResponseHeader is the 7-byte descriptor that precedes every response.
type ResponseHeader struct {
	Sync     [2]byte
	Size     uint32 // 30-bit payload size
	SendMode uint8  // 2-bit send mode
	DataType uint8
}

// Valid reports whether the header starts with the response sync bytes
func (h ResponseHeader) Valid() bool {
	return h.Sync[0] == SyncByte && h.Sync[1] == ResponseSyncByte
}

// ParseResponseHeader decodes a response descriptor.
func ParseResponseHeader(data []byte) (ResponseHeader, error) {
	if len(data) != ResponseHeaderSize {
		return ResponseHeader{}, fmt.Errorf("%w: response header is %d bytes, expected %d",
			ErrMalformedPayload, len(data), ResponseHeaderSize)
	}

	sizeAndMode := uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16 | uint32(data[5])<<24
	return ResponseHeader{
		Sync:     [2]byte{data[0], data[1]},
		Size:     sizeAndMode & 0x3FFFFFFF,
		SendMode: uint8(sizeAndMode >> 30),
		DataType: data[6],
	}, nil
}

// DeviceInfo is the decoded GET_INFO response
type DeviceInfo struct {
	Model           string
	FirmwareVersion string
	Hardware        string
	SerialNumber    string
}

// ParseDeviceInfo decodes the 20-byte GET_INFO payload.
//
// Layout: model (1), firmware minor (1), firmware major (1), hardware (1),
// serial number (16).
func ParseDeviceInfo(data []byte) (DeviceInfo, error) {
	if len(data) != DeviceInfoSize {
		return DeviceInfo{}, fmt.Errorf("%w: device info is %d bytes, expected %d",
			ErrMalformedPayload, len(data), DeviceInfoSize)
	}

	return DeviceInfo{
		Model:           fmt.Sprintf("%02X", data[0]),
		FirmwareVersion: fmt.Sprintf("%d.%d", data[2], data[1]),
		Hardware:        strconv.Itoa(int(data[3])),
		SerialNumber:    strings.ToUpper(hex.EncodeToString(data[4:DeviceInfoSize])),
	}, nil
}

// HealthStatus is the decoded GET_HEALTH response
type HealthStatus struct {
	Status    HealthCode
	ErrorCode uint16
}

// Healthy reports whether the device reported a good status
func (h HealthStatus) Healthy() bool {
	return h.Status == HealthGood
}

// ParseHealthStatus decodes the 3-byte GET_HEALTH payload.
func ParseHealthStatus(data []byte) (HealthStatus, error) {
	if len(data) != HealthStatusSize {
		return HealthStatus{}, fmt.Errorf("%w: health status is %d bytes, expected %d",
			ErrMalformedPayload, len(data), HealthStatusSize)
	}

	return HealthStatus{
		Status:    HealthCode(data[0]),
		ErrorCode: uint16(data[1]) | uint16(data[2])<<8,
	}, nil
}
