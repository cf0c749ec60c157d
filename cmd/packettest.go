// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid bus word",
	Long: `Wait for a valid MIL-STD-1553B word on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
20-bit word. It slides bit by bit over the incoming stream until a word with
a legal sync pattern and odd parity lines up.

Exit codes:
  0 - Word received before timeout
  1 - Timeout reached without receiving a valid word
  2 - Connection error

Useful for testing connectivity to a bus interface or WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a word")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Milbus - Word Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid bus word...\n\n")

	decoder := mil1553.NewDecoder()
	buf := make([]byte, 128)

	// Channel for word reception
	packetChan := make(chan mil1553.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if packet != nil {
					if skipped := decoder.SkippedBits(); skipped > 0 {
						fmt.Printf("(skipped %d bits before alignment)\n", skipped)
					}
					packetChan <- *packet
					return
				}
			}
		}
	}()

	// Wait for a word or timeout
	select {
	case packet := <-packetChan:
		kind := "data"
		if packet.IsService() {
			kind = "service"
		}
		fmt.Printf("SUCCESS: Received valid word\n")
		fmt.Printf("  Sync: %s (0b%03b)\n", kind, packet.Sync())
		fmt.Printf("  Value: 0x%04X\n", packet.Value())
		fmt.Printf("  Parity: %d\n", packet.ParityBit())
		if c, err := packet.AsCommand(); err == nil && packet.IsService() {
			fmt.Printf("  As command: %s\n", mil1553.FormatCommand(c))
		}
		logger.Info().Uint16("value", packet.Value()).Msg("word test passed")
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid word received within %d seconds\n", packetTestTimeout)
		logger.Warn().Int("timeout", packetTestTimeout).Msg("word test timed out")
		os.Exit(1)
	}

	return nil
}
