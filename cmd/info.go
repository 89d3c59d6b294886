// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device information and health",
	Long: `Query the device for its model, firmware and hardware revision, serial
number and health status.

Supports serial, WebSocket and simulated connections.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	session, connInfo, err := connectSession(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Lidarscope - Device Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	info, err := session.DeviceInfo()
	if err != nil {
		return fmt.Errorf("failed to read device info: %w", err)
	}
	fmt.Print(rplidar.FormatDeviceInfo(info))

	health, err := session.HealthStatus()
	if err != nil {
		return fmt.Errorf("failed to read health status: %w", err)
	}
	fmt.Printf("  Health:        %s\n", rplidar.FormatHealthStatus(health))

	return nil
}

// interruptContext returns a context cancelled on Ctrl+C or SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// spinUp starts the motor before scanning. A speed of zero leaves the motor
// alone for adapters that drive it from DTR.
func spinUp(session *rplidar.Session, speed int) error {
	if speed == 0 {
		return nil
	}
	if err := session.SetMotorSpeed(speed); err != nil {
		return fmt.Errorf("failed to start motor: %w", err)
	}
	return nil
}
