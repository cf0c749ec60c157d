// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/spf13/cobra"
)

var (
	filterSession string
	filterKind    string
	filterBus     string
	filterRT      int
	filterSince   string
	filterUntil   string
	filterErrors  bool
	viewLimit     int
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Inspect capture files written by monitor --capture",
}

var captureViewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Print the events of a capture file",
	Long: `Print the events of a capture file, optionally filtered.

Filters combine: an event must match all of them.
  --session  exact session id
  --kind     word, transaction or error
  --bus      A or B
  --rt       commanded terminal address
  --since    RFC 3339 time, inclusive
  --until    RFC 3339 time, exclusive
  --errors   only events carrying an error or anomaly`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptureView,
}

var captureStatsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Summarize a capture file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaptureStats,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureViewCmd)
	captureCmd.AddCommand(captureStatsCmd)

	for _, c := range []*cobra.Command{captureViewCmd, captureStatsCmd} {
		c.Flags().StringVar(&filterSession, "session", "", "Only this session id")
		c.Flags().StringVar(&filterKind, "kind", "", "Only this event kind (word, transaction, error)")
		c.Flags().StringVar(&filterBus, "bus", "", "Only this bus (A or B)")
		c.Flags().IntVar(&filterRT, "rt", -1, "Only transactions commanding this terminal")
		c.Flags().StringVar(&filterSince, "since", "", "Only events at or after this RFC 3339 time")
		c.Flags().StringVar(&filterUntil, "until", "", "Only events before this RFC 3339 time")
		c.Flags().BoolVar(&filterErrors, "errors", false, "Only events with errors or anomalies")
	}
	captureViewCmd.Flags().IntVar(&viewLimit, "limit", 0, "Stop after this many events (0 for all)")
}

// buildFilter turns the filter flags into a capture.Filter
func buildFilter() (capture.Filter, error) {
	f := capture.Filter{SessionID: filterSession, ErrorsOnly: filterErrors}

	switch strings.ToLower(filterKind) {
	case "":
	case "word":
		k := capture.KindWord
		f.Kind = &k
	case "transaction", "tx":
		k := capture.KindTransaction
		f.Kind = &k
	case "error":
		k := capture.KindError
		f.Kind = &k
	default:
		return f, fmt.Errorf("unknown event kind %q", filterKind)
	}

	switch strings.ToUpper(filterBus) {
	case "":
	case "A":
		b := capture.BusA
		f.Bus = &b
	case "B":
		b := capture.BusB
		f.Bus = &b
	default:
		return f, fmt.Errorf("unknown bus %q", filterBus)
	}

	if filterRT >= 0 {
		if err := checkAddress(filterRT); err != nil {
			return f, err
		}
		rt := uint8(filterRT)
		f.Address = &rt
	}

	for _, t := range []struct {
		value string
		dst   **time.Time
	}{{filterSince, &f.TimeStart}, {filterUntil, &f.TimeEnd}} {
		if t.value == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, t.value)
		if err != nil {
			return f, fmt.Errorf("invalid time %q: %w", t.value, err)
		}
		*t.dst = &parsed
	}
	return f, nil
}

func runCaptureView(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter()
	if err != nil {
		return err
	}
	r, err := capture.NewFilteredReader(args[0], filter)
	if err != nil {
		return err
	}
	defer r.Close()

	shown := 0
	for viewLimit == 0 || shown < viewLimit {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		fmt.Print(formatEvent(event))
		shown++
	}
	logger.Debug().Str("file", args[0]).Int("events", shown).Msg("capture viewed")
	return nil
}

func runCaptureStats(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter()
	if err != nil {
		return err
	}
	r, err := capture.NewFilteredReader(args[0], filter)
	if err != nil {
		return err
	}
	defer r.Close()

	summary, err := capture.Summarize(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	summary.Write(os.Stdout)
	return nil
}

// formatEvent renders one capture event as text
func formatEvent(e capture.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-11s bus %s", e.Timestamp.Format("2006-01-02 15:04:05.000000"), e.Kind, e.Bus)

	switch e.Kind {
	case capture.KindWord:
		fmt.Fprintf(&b, " %s\n", mil1553.FormatPacket(e.Packet()))

	case capture.KindError:
		fmt.Fprintf(&b, " %s", e.Error)
		if e.Raw != 0 {
			fmt.Fprintf(&b, " (%s)", mil1553.FormatPacket(e.Packet()))
		}
		b.WriteString("\n")

	case capture.KindTransaction:
		fmt.Fprintf(&b, " %s %s", mil1553.FormatDirection(e.Direction), e.Type)
		if e.Address != nil {
			fmt.Fprintf(&b, " %s", mil1553.Address(*e.Address))
		}
		if e.Error != "" {
			fmt.Fprintf(&b, " error=%s", e.Error)
		}
		b.WriteString("\n")
		for _, w := range e.Words {
			fmt.Fprintf(&b, "  %s\n", mil1553.FormatWord(w))
		}
		for _, a := range e.Anomalies {
			fmt.Fprintf(&b, "  ! %s\n", a)
		}

	default:
		b.WriteString("\n")
	}
	return b.String()
}
