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

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test bus interface connection stability",
	Long: `Hold a connection open to the bus interface without sending anything.

Every received chunk is logged and run through the word decoder, so the
summary shows both the raw byte count and how many whole words came out of
it. Useful for debugging flaky serial adapters and WebSocket bridges.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

// linkCounters tallies what a link test received
type linkCounters struct {
	chunks     int
	bytes      int
	words      int
	wordErrors int
}

func (c *linkCounters) add(decoder *mil1553.Decoder, data []byte) {
	c.chunks++
	c.bytes += len(data)
	packets, errs := decoder.DecodeBytes(data)
	c.words += len(packets)
	c.wordErrors += len(errs)
}

func (c *linkCounters) print(duration time.Duration, result string) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", c.chunks)
	fmt.Printf("Bytes received: %d\n", c.bytes)
	fmt.Printf("Words decoded: %d (%d errors)\n", c.words, c.wordErrors)
	fmt.Printf("Result: %s\n", result)
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Bus Interface Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	decoder := mil1553.NewDecoder()
	var counters linkCounters

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			counters.add(decoder, data)
			fmt.Printf("[%s] Received %d bytes: %x\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			counters.print(time.Since(start), "FAILED (connection error)")
			logger.Error().Err(err).Str("connection", connInfo).Int("bytes", counters.bytes).Msg("link test failed")
			os.Exit(1)

		case <-time.After(1 * time.Second):
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	counters.print(time.Since(start), "PASSED (connection stable)")
	logger.Info().Str("connection", connInfo).Int("bytes", counters.bytes).Int("words", counters.words).Msg("link test passed")
	return nil
}
