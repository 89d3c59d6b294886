// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by querying device health",
	Long: `Connect to the device and request its health status.

Exit codes:
  0 - Device answered and reports good health
  1 - Device did not answer, answered garbage, or reports warning/error
  2 - Connection error

Useful for scripted checks of a serial adapter or WebSocket bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	session, connInfo, err := connectSession(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Lidarscope - Probe\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	code := probe(session)
	session.Close()
	os.Exit(code)
	return nil
}

// probe queries health and returns the process exit code
func probe(session *rplidar.Session) int {
	health, err := session.HealthStatus()
	switch {
	case errors.Is(err, rplidar.ErrConnection):
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return 2
	case errors.Is(err, rplidar.ErrTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: %v\n", err)
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		return 1
	}

	if !health.Healthy() {
		fmt.Fprintf(os.Stderr, "UNHEALTHY: %s\n", rplidar.FormatHealthStatus(health))
		return 1
	}

	fmt.Printf("SUCCESS: Device healthy\n")
	if info, err := session.DeviceInfo(); err == nil {
		fmt.Printf("  Model: %s  Firmware: %s  Serial: %s\n", info.Model, info.FirmwareVersion, info.SerialNumber)
	}
	return 0
}
