// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/milbus/internal/ch10"
	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/spf13/cobra"
)

var (
	ch10Channels []int
	ch10Start    string
	ch10Session  string
	ch10Channel  int
)

var ch10Cmd = &cobra.Command{
	Use:   "ch10",
	Short: "Convert between Chapter 10 recordings and capture files",
	Long: `Convert between IRIG-106 Chapter 10 recorder files and milbus capture files.

Only MIL-STD-1553 format 1 packets (data type 0x18) are handled; other
packets are skipped. On import every recorded message is replayed through
the bus monitor and validator, so the capture holds the same transactions
and anomalies a live monitor would have logged.`,
}

var ch10ImportCmd = &cobra.Command{
	Use:   "import <recording> <capture>",
	Short: "Import a Chapter 10 recording into a capture file",
	Args:  cobra.ExactArgs(2),
	RunE:  runCh10Import,
}

var ch10ExportCmd = &cobra.Command{
	Use:   "export <capture> <recording>",
	Short: "Export capture transactions as a Chapter 10 recording",
	Args:  cobra.ExactArgs(2),
	RunE:  runCh10Export,
}

func init() {
	rootCmd.AddCommand(ch10Cmd)
	ch10Cmd.AddCommand(ch10ImportCmd)
	ch10Cmd.AddCommand(ch10ExportCmd)

	ch10ImportCmd.Flags().IntSliceVar(&ch10Channels, "channel", nil, "Only import these channel ids")
	ch10ImportCmd.Flags().StringVar(&ch10Start, "start", "", "Wall time of the first message (RFC 3339, default now)")
	ch10ImportCmd.Flags().StringVar(&ch10Session, "session", "", "Session id for imported events (default random)")

	ch10ExportCmd.Flags().IntVar(&ch10Channel, "channel", 1, "Channel id for exported packets")
	ch10ExportCmd.Flags().StringVar(&ch10Session, "session", "", "Only export this session")
}

func runCh10Import(cmd *cobra.Command, args []string) error {
	opts := ch10.ImportOptions{SessionID: ch10Session}
	if ch10Start != "" {
		start, err := time.Parse(time.RFC3339, ch10Start)
		if err != nil {
			return fmt.Errorf("invalid start time %q: %w", ch10Start, err)
		}
		opts.Start = start
	}
	if len(ch10Channels) > 0 {
		opts.Channels = make(map[uint16]bool, len(ch10Channels))
		for _, c := range ch10Channels {
			if c < 0 || c > 0xFFFF {
				return fmt.Errorf("channel %d out of range", c)
			}
			opts.Channels[uint16(c)] = true
		}
	}

	src, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := capture.NewFileLogger(args[1])
	if err != nil {
		return err
	}
	defer dst.Close()

	res, err := ch10.Import(src, dst, opts)
	if res != nil {
		fmt.Printf("Packets:        %d (%d MIL-STD-1553)\n", res.Packets, res.MIL1553Packets)
		fmt.Printf("Messages:       %d\n", res.Messages)
		fmt.Printf("Transactions:   %d\n", res.Transactions)
		if res.Skipped > 0 {
			fmt.Printf("Skipped bytes:  %d\n", res.Skipped)
		}
		for _, pe := range res.ParseErrors {
			fmt.Printf("Parse error:    %s\n", pe)
		}
		fmt.Println()
		fmt.Print(res.Stats.String())
		logger.Info().Str("recording", args[0]).Str("capture", args[1]).
			Int("transactions", res.Transactions).Uint64("events", dst.Count()).Msg("ch10 import finished")
	}
	return err
}

func runCh10Export(cmd *cobra.Command, args []string) error {
	if ch10Channel < 0 || ch10Channel > 0xFFFF {
		return fmt.Errorf("channel %d out of range", ch10Channel)
	}

	src, err := capture.NewFilteredReader(args[0], capture.Filter{SessionID: ch10Session})
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(args[1])
	if err != nil {
		return err
	}

	n, err := ch10.Export(src, dst, uint16(ch10Channel))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", args[1], err)
	}

	fmt.Printf("Exported %d transactions to %s (channel %d)\n", n, args[1], ch10Channel)
	logger.Info().Str("capture", args[0]).Str("recording", args[1]).Int("packets", n).Msg("ch10 export finished")
	return nil
}
