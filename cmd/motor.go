// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var motorHold time.Duration

var motorCmd = &cobra.Command{
	Use:   "motor <speed>",
	Short: "Spin the motor at a PWM duty cycle",
	Long: fmt.Sprintf(`Set the motor PWM duty cycle (%d-%d) and hold it.

The motor is stopped again on exit, after --hold or when interrupted.`,
		rplidar.MinMotorSpeed, rplidar.MaxMotorSpeed),
	Args: cobra.ExactArgs(1),
	RunE: runMotor,
}

func init() {
	rootCmd.AddCommand(motorCmd)
	motorCmd.Flags().DurationVar(&motorHold, "hold", 0, "How long to hold the speed (0 = until interrupted)")
}

func runMotor(cmd *cobra.Command, args []string) error {
	speed, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid speed %q: %w", args[0], err)
	}
	if speed < rplidar.MinMotorSpeed || speed > rplidar.MaxMotorSpeed {
		return fmt.Errorf("speed must be between %d and %d", rplidar.MinMotorSpeed, rplidar.MaxMotorSpeed)
	}

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

	fmt.Printf("Lidarscope - Motor Control\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	if err := session.SetMotorSpeed(speed); err != nil {
		return err
	}
	fmt.Printf("Motor PWM set to %d. Press Ctrl+C to stop.\n", speed)

	ctx, cancel := interruptContext()
	defer cancel()

	if motorHold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(motorHold):
		}
	} else {
		<-ctx.Done()
	}

	fmt.Printf("Stopping motor\n")
	return nil
}
