// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Simulator flags
	simulate      bool
	simCorruption float64

	// Driver flags
	readTimeout time.Duration
	verbose     bool
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:   "lidarscope",
	Short: "RPLidar Scanner Tool",
	Long: `Lidarscope - A CLI tool for driving and inspecting RPLidar laser scanners.

Provides commands for querying the device, controlling the motor, capturing
single rotations, streaming and recording continuous scans, and a live
terminal monitor for diagnosing stream quality.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Simulator: --simulate

For WebSocket authentication, the password is read from the LIDARSCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Simulator flags
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use a simulated device instead of hardware")
	rootCmd.PersistentFlags().Float64Var(&simCorruption, "sim-corruption", 0, "Probability of a junk byte per simulated sample")

	// Driver flags
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", 200*time.Millisecond, "Timeout of each scan stream read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging of protocol traffic")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
