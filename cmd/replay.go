// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var replayShowSamples bool

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print rotations from a recording",
	Long: `Read a CBOR recording made with 'stream --record' and print each rotation
with its anomalies, followed by a summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayShowSamples, "samples", false, "Print every sample")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	fmt.Printf("Lidarscope - Replay\n")
	fmt.Printf("File: %s\n\n", args[0])

	summary, err := replay(bufio.NewReader(f), os.Stdout, replayShowSamples)
	fmt.Printf("\n%s", summary)
	return err
}

// replaySummary counts what a replay found
type replaySummary struct {
	Rotations int
	Samples   int
	Anomalies int
}

func (s replaySummary) String() string {
	return fmt.Sprintf("Rotations: %d  Samples: %d  Anomalies: %d\n", s.Rotations, s.Samples, s.Anomalies)
}

// replay prints every rotation of a recording to out
func replay(r io.Reader, out io.Writer, showSamples bool) (replaySummary, error) {
	var summary replaySummary
	reader := NewRotationReader(r)

	for {
		rot, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			return summary, err
		}

		summary.Rotations++
		summary.Samples += rot.Len()

		fmt.Fprintln(out, rplidar.FormatRotation(rot))
		if showSamples {
			for _, s := range rot.Samples {
				fmt.Fprintln(out, rplidar.FormatSample(s))
			}
		}

		anomalies := rplidar.ValidateRotation(rot)
		summary.Anomalies += len(anomalies)
		for _, a := range anomalies {
			fmt.Fprintf(out, "  [%s] %s\n", a.Type, a.Message)
		}
	}
}
