// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/Thermoquad/milbus/pkg/mil1553"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	capturePath   string
	terminals     []int
	gapMillis     int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow bus transactions and detect protocol errors",
	Long: `Assemble words into transactions and report anything out of the ordinary.

This command follows the bus like a passive monitor and detects:
  - Words failing the sync or parity check
  - Broken message formats (missing status, extra or missing data words)
  - Status flags (message error, busy, subsystem and terminal flags)
  - Address mismatches and illegal mode code usage
  - Statistics and trends (word rate, transaction rate, error rate)

By default, only errors are displayed. Use --show-all to display every
transaction. Use --terminal to restrict the display to some remote terminals
and --capture to record everything to a CBOR capture file.

A transaction still open after --gap milliseconds of silence is closed as
incomplete.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all transactions (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().StringVar(&capturePath, "capture", "", "Record words and transactions to this capture file")
	monitorCmd.Flags().IntSliceVar(&terminals, "terminal", nil, "Only show these remote terminal addresses")
	monitorCmd.Flags().IntVar(&gapMillis, "gap", 250, "Close open transactions after this much bus silence (ms)")
}

// applyMonitorConfig fills flags the user left alone from the config file
func applyMonitorConfig(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if !flags.Changed("show-all") {
		showAll = showAll || cfg.Monitor.ShowAll
	}
	if !flags.Changed("stats-interval") && cfg.Monitor.StatsInterval > 0 {
		statsInterval = cfg.Monitor.StatsInterval
	}
	if !flags.Changed("capture") {
		capturePath = cfg.Monitor.Capture
	}
	if flags.Changed("terminal") {
		cfg.Monitor.Terminals = terminals
	}
	if statsInterval <= 0 {
		return fmt.Errorf("stats-interval must be positive, got %d", statsInterval)
	}
	return cfg.Validate()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := applyMonitorConfig(cmd); err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var recorder capture.Logger = capture.NopLogger{}
	if capturePath != "" {
		fl, err := capture.NewFileLogger(capturePath)
		if err != nil {
			return err
		}
		defer func() {
			fl.Close()
			logger.Info().Str("path", capturePath).Uint64("events", fl.Count()).Msg("capture closed")
		}()
		recorder = fl
	}

	pipeline := newBusPipeline(cfg.TerminalFilter(), recorder)
	logger.Info().Str("session", pipeline.session).Bool("tui", useTUI).Msg("monitor started")

	if useTUI {
		return runTUIMode(conn, connInfo, pipeline)
	}
	return runTextMode(conn, connInfo, pipeline)
}

// readChunks copies reads from conn onto a channel until the connection fails
func readChunks(conn Connection) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 10)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				// A failed WebSocket keeps returning ErrConnectionClosed
				if errors.Is(err, ErrConnectionClosed) {
					errs <- err
					return
				}
				logger.Warn().Err(err).Msg("read error")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			chunks <- data
		}
	}()
	return chunks, errs
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mWORD ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> WORD REJECTED <<<\n\n")
}

// printValidationErrors prints a transaction together with its anomalies
func printValidationErrors(tx *mil1553.Transaction, anomalies []mil1553.ValidationError) {
	timestamp := tx.Timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s %s\n", timestamp, mil1553.FormatDirection(tx.Direction), tx.Type)
	if c, ok := tx.Command(); ok {
		fmt.Printf("  Command: %s\n", mil1553.FormatCommand(c))
	}

	for i, a := range anomalies {
		switch a.Type {
		case mil1553.AnomalyTopology:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			if tx.Offender != nil {
				fmt.Printf("    offending word: %s\n", mil1553.FormatPacket(*tx.Offender))
			}

		case mil1553.AnomalyAddressMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			if cmdAddr, ok := a.Details["command"].(uint8); ok {
				if statusAddr, ok := a.Details["status"].(uint8); ok {
					fmt.Printf("    command=%s, status=%s\n", mil1553.Address(cmdAddr), mil1553.Address(statusAddr))
				}
			}

		case mil1553.AnomalyMessageError, mil1553.AnomalyBusy,
			mil1553.AnomalySubsystemFlag, mil1553.AnomalyTerminalFlag:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, a.Message)
		}
	}

	for _, s := range tx.Statuses() {
		fmt.Printf("  Status: %s\n", mil1553.FormatStatus(s))
	}
	fmt.Printf("  >>> TRANSACTION FLAGGED <<<\n\n")
}

// runTUIMode runs the monitor in TUI mode. The model owns the pipeline and
// feeds it from the chunks the reader goroutine sends.
func runTUIMode(conn Connection, connInfo string, pipeline *busPipeline) error {
	gap := time.Duration(gapMillis) * time.Millisecond
	m := initialModel(connInfo, statsInterval, showAll, gap, pipeline)
	p := tea.NewProgram(m)

	chunks, errs := readChunks(conn)
	go func() {
		for {
			select {
			case data := <-chunks:
				p.Send(busDataMsg{data: data})
			case err := <-errs:
				logger.Warn().Err(err).Msg("connection lost")
				p.Send(connectionLostMsg{err: err})
				return
			}
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(conn Connection, connInfo string, pipeline *busPipeline) error {
	fmt.Printf("Milbus - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All transactions\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	gap := time.Duration(gapMillis) * time.Millisecond
	idle := time.NewTimer(gap)
	defer idle.Stop()

	chunks, errs := readChunks(conn)

	for {
		select {
		case data := <-chunks:
			events, synced := pipeline.feed(data)
			if synced {
				if skipped := pipeline.skippedBits(); skipped > 0 {
					fmt.Printf("[SYNC] Word alignment found after skipping %d bits\n\n", skipped)
				} else {
					fmt.Printf("[SYNC] Word alignment found\n\n")
				}
			}
			printEvents(events)
			idle.Reset(gap)

		case <-idle.C:
			printEvents(pipeline.flush())
			idle.Reset(gap)

		case err := <-errs:
			fmt.Println()
			fmt.Print(pipeline.stats.String())
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info().Msg("connection closed")
				return nil
			}
			return err

		case <-statsTicker.C:
			// Print statistics
			fmt.Println()
			fmt.Print(pipeline.stats.String())
			fmt.Println()
		}
	}
}

func printEvents(events []busEvent) {
	for _, e := range events {
		switch {
		case e.decodeErr != nil:
			printDecodeError(e.decodeErr)
		case e.tx != nil && len(e.anomalies) > 0:
			printValidationErrors(e.tx, e.anomalies)
		case e.tx != nil && showAll:
			fmt.Print(mil1553.FormatTransaction(e.tx))
			fmt.Println()
		}
	}
}
