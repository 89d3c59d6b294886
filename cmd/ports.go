// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// USB IDs of the CP210x bridge fitted to RPLidar adapter boards
const (
	rplidarVID = "10C4"
	rplidarPID = "EA60"
)

var portsAll bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List USB serial ports and mark those with the CP210x bridge used by
RPLidar adapter boards (10C4:EA60).`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsAll, "all", false, "Include ports that are not USB devices")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	found := 0
	for _, p := range ports {
		if !p.IsUSB && !portsAll {
			continue
		}
		found++
		fmt.Println(formatPort(p))
	}

	if found == 0 {
		fmt.Println("No serial ports found")
	}
	return nil
}

func formatPort(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return fmt.Sprintf("  %s", p.Name)
	}

	marker := " "
	if isRPLidarAdapter(p) {
		marker = "*"
	}

	line := fmt.Sprintf("%s %s  [%s:%s]", marker, p.Name, strings.ToUpper(p.VID), strings.ToUpper(p.PID))
	if p.Product != "" {
		line += " " + p.Product
	}
	if p.SerialNumber != "" {
		line += fmt.Sprintf(" (serial %s)", p.SerialNumber)
	}
	return line
}

// isRPLidarAdapter reports whether a port has the RPLidar USB IDs
func isRPLidarAdapter(p *enumerator.PortDetails) bool {
	return p.IsUSB && strings.EqualFold(p.VID, rplidarVID) && strings.EqualFold(p.PID, rplidarPID)
}
