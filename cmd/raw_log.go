// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded samples as they arrive",
	Long: `Start a scan and print every decoded sample in arrival order, without
grouping into rotations. Start-of-rotation samples are marked with S.

Useful for checking the raw stream and resynchronization behaviour.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	addMotorFlag(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Lidarscope - Raw Sample Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := spinUp(session, motorSpeed); err != nil {
		return err
	}
	if err := session.StartScan(); err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	samples := make([]rplidar.Sample, 0, 256)
	for ctx.Err() == nil {
		samples, err = session.ReadSamples(samples[:0])
		if err != nil {
			if errors.Is(err, rplidar.ErrConnection) {
				logger.Error("connection lost", zap.Error(err))
				return nil
			}
			return err
		}

		timestamp := time.Now().Format("15:04:05.000")
		for _, s := range samples {
			fmt.Printf("[%s] %s\n", timestamp, rplidar.FormatSample(s))
		}
	}

	return session.Stop()
}
