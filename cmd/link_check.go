// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
)

var (
	linkCheckDuration int
	linkCheckQuery    bool
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability",
	Long: `Open the transport without a protocol session and log every byte
received for the test duration.

With --query a GET_HEALTH request is written once per second so an idle
device produces traffic. Useful for debugging serial adapters and WebSocket
bridges that drop the connection.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
	linkCheckCmd.Flags().BoolVar(&linkCheckQuery, "query", false, "Send GET_HEALTH once per second")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	opener, connInfo, err := OpenConnection(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	conn, err := opener()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	result := checkLink(conn, time.Duration(linkCheckDuration)*time.Second, linkCheckQuery)

	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", result.Chunks)
	fmt.Printf("Bytes received: %d\n", result.Bytes)
	if result.Err != nil {
		fmt.Printf("Result: FAILED (%v)\n", result.Err)
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED (connection stable)\n")
	return nil
}

// linkResult summarizes a link check
type linkResult struct {
	Elapsed time.Duration
	Chunks  int
	Bytes   int
	Err     error
}

// checkLink reads from conn until duration elapses or an error occurs
func checkLink(conn rplidar.Transport, duration time.Duration, query bool) (result linkResult) {
	start := time.Now()
	defer func() { result.Elapsed = time.Since(start) }()

	if err := conn.SetReadTimeout(100 * time.Millisecond); err != nil {
		result.Err = err
		return result
	}

	health := rplidar.NewGetHealthCommand().Encode()
	lastQuery := time.Time{}
	lastBeat := start
	buf := make([]byte, 256)

	for time.Since(start) < duration {
		if query && time.Since(lastQuery) >= time.Second {
			lastQuery = time.Now()
			if _, err := conn.Write(health); err != nil {
				result.Err = fmt.Errorf("write failed: %w", err)
				return result
			}
		}

		n, err := conn.Read(buf)
		if err != nil {
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			result.Err = err
			return result
		}
		if n > 0 {
			result.Chunks++
			result.Bytes += n
			fmt.Printf("[%s] Received %d bytes: %x\n", time.Now().Format("15:04:05.000"), n, buf[:n])
			continue
		}

		if time.Since(lastBeat) >= time.Second {
			lastBeat = time.Now()
			remaining := (duration - time.Since(start)).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n", lastBeat.Format("15:04:05.000"), remaining)
		}
	}
	return result
}
