// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Lidarscope - RPLidar Scan Tool
//
// A CLI tool for querying, driving and monitoring RPLidar range scanners
// over a serial port or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/lidarscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
