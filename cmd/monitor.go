// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var (
	monitorSectors  int
	monitorMaxRange float64
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal monitor of the scan stream",
	Long: `Run a continuous scan in a full screen terminal UI.

Shows stream statistics (scan frequency, sample rate, framing discards), the
latest rotation, the nearest obstacle per angular sector, and a log of
anomalies and events.

Keys:
  m      set motor PWM
  p      pause/resume scanning
  r      reset statistics
  q      quit

Logs are discarded unless --log-file is given.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorSectors, "sectors", 12, "Number of angular sectors to display")
	monitorCmd.Flags().Float64Var(&monitorMaxRange, "max-range", 6000, "Distance shown as a full bar (mm)")
	addMotorFlag(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorSectors <= 0 || monitorSectors > 72 {
		return fmt.Errorf("--sectors must be between 1 and 72")
	}

	logger, err := newQuietLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	session, connInfo, err := connectSession(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := spinUp(session, motorSpeed); err != nil {
		return err
	}

	// The handler runs on the acquisition goroutine; Send hands the rotation
	// over to the UI goroutine.
	var p *tea.Program
	stats := session.Statistics()
	handler := func(r rplidar.Rotation) {
		anomalies := rplidar.ValidateRotation(r)
		stats.Anomalies.Add(uint64(len(anomalies)))
		p.Send(rotationMsg{rotation: r, anomalies: anomalies})
	}

	m := initialMonitorModel(session, handler, connInfo, monitorSectors, monitorMaxRange, motorSpeed)
	p = tea.NewProgram(m, tea.WithAltScreen())

	stats.Reset()
	if err := session.StartContinuousScan(handler); err != nil {
		return err
	}

	if _, err := p.Run(); err != nil {
		logger.Error("monitor failed", zap.Error(err))
		return err
	}

	if err := session.StopContinuousScan(); err != nil {
		logger.Warn("scan ended with error", zap.Error(err))
	}
	return nil
}
