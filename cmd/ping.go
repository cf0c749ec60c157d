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
	pingRT      int
	pingTimeout int
	pingCount   int
)

var errNoResponse = errors.New("no response")

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Poll a remote terminal with the transmit status word mode command",
	Long: `Send the transmit status word mode command to a remote terminal and wait
for its status word.

The command goes out through the bus interface and the exchange read back
from the bus is assembled by the monitor, so a reply only counts once the
terminal's status word completes the transaction. Status flags other than
the address are printed with each reply.

This is useful for verifying:
  - The bus interface accepts words for transmission
  - The terminal is powered and answers at its address
  - Bidirectional word flow works

Exit codes:
  0 - All pings answered
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingRT, "rt", 1, "Remote terminal address (0-30)")
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 1, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

// statusRequest builds the transmit status word mode command for rt
func statusRequest(rt int) (*mil1553.Message, error) {
	if err := checkAddress(rt); err != nil {
		return nil, err
	}
	if mil1553.Address(rt).IsBroadcast() {
		return nil, fmt.Errorf("broadcast terminals do not answer with a status word")
	}
	return buildRequest(commandSpec{rt: rt, transmit: true, mode: int(mil1553.TransmitStatusWord)})
}

// awaitStatus feeds bus data through pipeline until a transaction commanding
// rt carries a status word, the timeout passes or the connection fails
func awaitStatus(pipeline *busPipeline, chunks <-chan []byte, errs <-chan error, rt int, timeout time.Duration) (mil1553.StatusWord, error) {
	deadline := time.After(timeout)
	for {
		select {
		case data := <-chunks:
			events, _ := pipeline.feed(data)
			if s, ok := statusFrom(events, rt); ok {
				return s, nil
			}

		case err := <-errs:
			return mil1553.StatusWord{}, err

		case <-deadline:
			if s, ok := statusFrom(pipeline.flush(), rt); ok {
				return s, nil
			}
			return mil1553.StatusWord{}, errNoResponse
		}
	}
}

func statusFrom(events []busEvent, rt int) (mil1553.StatusWord, bool) {
	for _, e := range events {
		if e.tx == nil {
			continue
		}
		c, ok := e.tx.Command()
		if !ok || int(c.Address()) != rt {
			continue
		}
		for _, s := range e.tx.Statuses() {
			if int(s.Address()) == rt {
				return s, true
			}
		}
	}
	return mil1553.StatusWord{}, false
}

func runPing(cmd *cobra.Command, args []string) error {
	request, err := statusRequest(pingRT)
	if err != nil {
		return err
	}
	wire, err := request.Bytes()
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Milbus - Terminal Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Terminal: %s\n", mil1553.Address(pingRT))
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	chunks, errs := readChunks(conn)
	pipeline := newBusPipeline(nil, nil)
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		if _, err := conn.Write(wire); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		status, err := awaitStatus(pipeline, chunks, errs, pingRT, time.Duration(pingTimeout)*time.Second)
		switch {
		case err == nil:
			rtt := time.Since(startTime)
			fmt.Printf("STATUS %s, rtt=%v\n", mil1553.FormatStatus(status), rtt.Round(time.Millisecond))
			successCount++
		case errors.Is(err, errNoResponse):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		default:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)
	logger.Info().Int("rt", pingRT).Int("sent", pingCount).Int("answered", successCount).Msg("ping finished")

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
