// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var (
	streamStatsInterval int
	streamRecordPath    string
	streamDuration      time.Duration
	streamQuiet         bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream rotations continuously",
	Long: `Run a continuous scan and print one line per completed rotation.

Each rotation is validated and anomalies are highlighted:
  - Sparse rotations (too few samples)
  - Low return ratio (few samples with a measured distance)
  - Angular gaps between consecutive samples
  - Angles outside 0-360°

Statistics (scan frequency, sample rate, framing discards) are printed at a
configurable interval. Use --record to save rotations to a CBOR file that
the replay command can read back.`,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().IntVar(&streamStatsInterval, "stats-interval", 10, "Statistics interval (seconds, 0 = off)")
	streamCmd.Flags().StringVar(&streamRecordPath, "record", "", "Record rotations to a CBOR file")
	streamCmd.Flags().DurationVar(&streamDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	streamCmd.Flags().BoolVarP(&streamQuiet, "quiet", "q", false, "Only print anomalies and statistics")
	addMotorFlag(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var recorder *RotationWriter
	if streamRecordPath != "" {
		f, err := os.Create(streamRecordPath)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		buffered := bufio.NewWriter(f)
		defer buffered.Flush()
		recorder = NewRotationWriter(buffered)
	}

	session, connInfo, err := connectSession(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Lidarscope - Continuous Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if recorder != nil {
		fmt.Printf("Recording: %s\n", streamRecordPath)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := spinUp(session, motorSpeed); err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()
	if streamDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, streamDuration)
		defer cancel()
	}

	stats := session.Statistics()
	stats.Reset()

	handler := newStreamHandler(os.Stdout, stats, recorder, logger, streamQuiet)
	if err := session.StartContinuousScan(handler.handle); err != nil {
		return err
	}

	var ticker <-chan time.Time
	if streamStatsInterval > 0 {
		t := time.NewTicker(time.Duration(streamStatsInterval) * time.Second)
		defer t.Stop()
		ticker = t.C
	}

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-session.ScanDone():
			running = false
		case <-ticker:
			fmt.Print("\n" + stats.String() + "\n")
		}
	}

	if err := session.StopContinuousScan(); err != nil {
		return fmt.Errorf("scan ended with error: %w", err)
	}

	fmt.Print("\n" + stats.String())
	if recorder != nil {
		fmt.Printf("Recorded %d rotations to %s\n", recorder.Count(), streamRecordPath)
	}
	return nil
}

// streamHandler prints, validates and optionally records rotations. It runs
// on the acquisition goroutine.
type streamHandler struct {
	out      io.Writer
	stats    *rplidar.Statistics
	recorder *RotationWriter
	log      *zap.Logger
	quiet    bool
}

func newStreamHandler(out io.Writer, stats *rplidar.Statistics, recorder *RotationWriter, logger *zap.Logger, quiet bool) *streamHandler {
	return &streamHandler{out: out, stats: stats, recorder: recorder, log: logger, quiet: quiet}
}

func (h *streamHandler) handle(r rplidar.Rotation) {
	anomalies := rplidar.ValidateRotation(r)
	h.stats.Anomalies.Add(uint64(len(anomalies)))

	if !h.quiet || len(anomalies) > 0 {
		fmt.Fprintln(h.out, rplidar.FormatRotation(r))
	}
	for _, a := range anomalies {
		fmt.Fprintf(h.out, "  \033[33m[%s]\033[0m %s\n", a.Type, a.Message)
	}

	if h.recorder != nil {
		if err := h.recorder.Write(r); err != nil {
			h.log.Error("recording failed, disabling", zap.Error(err))
			h.recorder = nil
		}
	}
}
