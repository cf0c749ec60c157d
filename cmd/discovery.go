// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var (
	discoveryTimeout int
	discoveryFirst   int
	discoveryLast    int
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find the remote terminals present on the bus",
	Long: `Poll every terminal address with the transmit status word mode command and
list the terminals that answer.

Each address gets one request; a terminal counts as present when its status
word comes back within the timeout. Status flags raised by a terminal (busy,
subsystem flag, terminal flag, service request) are shown next to it.

Examples:
  # Scan the full address range over serial
  milbus discovery --port /dev/ttyUSB0

  # Scan RT01 to RT08 through a WebSocket bridge
  milbus discovery --url ws://bridge.local/bus --first 1 --last 8

Exit codes:
  0 - Discovery successful (at least one terminal found)
  1 - Discovery failed (no terminal answered)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 100, "Timeout in milliseconds for each address")
	discoveryCmd.Flags().IntVar(&discoveryFirst, "first", 0, "First address to poll")
	discoveryCmd.Flags().IntVar(&discoveryLast, "last", 30, "Last address to poll")
}

// discoveredTerminal is a terminal that answered a status poll
type discoveredTerminal struct {
	address mil1553.Address
	status  mil1553.StatusWord
	rtt     time.Duration
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	if discoveryFirst < 0 || discoveryLast > 30 || discoveryFirst > discoveryLast {
		return fmt.Errorf("address range %d-%d must lie within 0-30", discoveryFirst, discoveryLast)
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	timeout := time.Duration(discoveryTimeout) * time.Millisecond
	fmt.Printf("Milbus - Terminal Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Addresses: %s to %s\n", mil1553.Address(discoveryFirst), mil1553.Address(discoveryLast))
	fmt.Printf("Timeout: %v per address\n\n", timeout)

	chunks, errs := readChunks(conn)
	pipeline := newBusPipeline(nil, nil)
	found := make([]discoveredTerminal, 0)

	for rt := discoveryFirst; rt <= discoveryLast; rt++ {
		request, err := statusRequest(rt)
		if err != nil {
			return err
		}
		wire, err := request.Bytes()
		if err != nil {
			return err
		}

		start := time.Now()
		if _, err := conn.Write(wire); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			os.Exit(2)
		}

		status, err := awaitStatus(pipeline, chunks, errs, rt, timeout)
		if errors.Is(err, errNoResponse) {
			continue
		}
		if err != nil {
			fmt.Printf("READ FAILED: %v\n", err)
			os.Exit(2)
		}

		t := discoveredTerminal{address: mil1553.Address(rt), status: status, rtt: time.Since(start)}
		found = append(found, t)
		fmt.Printf("Terminal found: %s (%s, rtt=%v)\n", t.address, mil1553.FormatStatus(t.status), t.rtt.Round(time.Microsecond))
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Terminals found: %d of %d addresses\n", len(found), discoveryLast-discoveryFirst+1)
	logger.Info().Int("found", len(found)).Int("first", discoveryFirst).Int("last", discoveryLast).Msg("discovery finished")

	if len(found) == 0 {
		fmt.Printf("No terminal answered. Check the bus coupler, termination and terminal power.\n")
		os.Exit(1)
	}

	return nil
}
