// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestIsRPLidarAdapter(t *testing.T) {
	tests := []struct {
		name string
		port enumerator.PortDetails
		want bool
	}{
		{"cp210x", enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10c4", PID: "ea60"}, true},
		{"upper case", enumerator.PortDetails{Name: "COM3", IsUSB: true, VID: "10C4", PID: "EA60"}, true},
		{"ftdi", enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001"}, false},
		{"not usb", enumerator.PortDetails{Name: "/dev/ttyS0", VID: "10C4", PID: "EA60"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRPLidarAdapter(&tt.port))
		})
	}
}

func TestFormatPort(t *testing.T) {
	p := &enumerator.PortDetails{
		Name:         "/dev/ttyUSB0",
		IsUSB:        true,
		VID:          "10c4",
		PID:          "ea60",
		Product:      "CP2102 USB to UART Bridge Controller",
		SerialNumber: "0001",
	}
	assert.Equal(t, "* /dev/ttyUSB0  [10C4:EA60] CP2102 USB to UART Bridge Controller (serial 0001)", formatPort(p))

	plain := &enumerator.PortDetails{Name: "/dev/ttyS0"}
	assert.Equal(t, "  /dev/ttyS0", formatPort(plain))
}
