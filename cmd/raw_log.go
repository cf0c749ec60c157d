// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw bus words in human-readable format",
	Long: `Continuously decode and display MIL-STD-1553B words as they arrive.

Each 20-bit word is shown with a timestamp, its sync kind (SERVICE for
command and status words, DATA for data words), the 16-bit value and the
parity bit. Words failing the parity or sync check are flagged.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Milbus - Raw Word Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := mil1553.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info().Msg("connection closed")
				return nil
			}
			logger.Warn().Err(err).Msg("read error")
			continue
		}

		for i := 0; i < n; i++ {
			packet, err := decoder.DecodeByte(buf[i])
			timestamp := time.Now().Format("15:04:05.000")
			if err != nil {
				fmt.Printf("[%s] [ERROR] %v\n", timestamp, err)
				continue
			}
			if packet != nil {
				fmt.Printf("[%s] %s\n", timestamp, mil1553.FormatPacket(*packet))
			}
		}
	}
}
