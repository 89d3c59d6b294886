// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var (
	scanTimeout     time.Duration
	scanShowSamples bool
	motorSpeed      int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Capture a single rotation",
	Long: `Start the motor, capture one complete rotation and stop.

Prints a summary of the rotation and any anomalies. Use --samples to print
every measurement sorted by angle.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Second, "Time to wait for a complete rotation")
	scanCmd.Flags().BoolVar(&scanShowSamples, "samples", false, "Print every sample")
	addMotorFlag(scanCmd)
}

// addMotorFlag registers --motor on a scanning command
func addMotorFlag(c *cobra.Command) {
	c.Flags().IntVar(&motorSpeed, "motor", rplidar.DefaultMotorSpeed, "Motor PWM before scanning (0 = leave motor alone)")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	session, connInfo, err := connectSession(logger, func(o *rplidar.Options) {
		o.SingleScanTimeout = scanTimeout
	})
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Lidarscope - Single Scan\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	if err := spinUp(session, motorSpeed); err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	rotation, err := session.ScanOnce(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Println(rplidar.FormatRotation(rotation))
	if scanShowSamples {
		for _, s := range rotation.Samples {
			fmt.Println(rplidar.FormatSample(s))
		}
	}
	printAnomalies(rplidar.ValidateRotation(rotation))
	return nil
}

// printAnomalies prints validation errors in highlighted format
func printAnomalies(errs []rplidar.ValidationError) {
	for _, e := range errs {
		fmt.Printf("  \033[33m[%s]\033[0m %s\n", e.Type, e.Message)
	}
}
