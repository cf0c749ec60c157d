// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
)

// Summary holds aggregate statistics about a capture.
type Summary struct {
	TotalEvents       int
	EventsByKind      map[Kind]int
	EventsByBus       map[Bus]int
	EventsByDirection map[mil1553.MessageDirection]int
	Terminals         map[uint8]*TerminalSummary
	Sessions          map[string]int
	Errors            int
	Anomalies         int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// TerminalSummary holds statistics for one remote terminal address.
type TerminalSummary struct {
	Transactions int
	Errors       int
	Anomalies    int
	Broadcasts   int
	LastSeen     time.Time
}

func newSummary() *Summary {
	return &Summary{
		EventsByKind:      make(map[Kind]int),
		EventsByBus:       make(map[Bus]int),
		EventsByDirection: make(map[mil1553.MessageDirection]int),
		Terminals:         make(map[uint8]*TerminalSummary),
		Sessions:          make(map[string]int),
	}
}

// Summarize drains r and aggregates every event it yields
func Summarize(r *Reader) (*Summary, error) {
	s := newSummary()
	for {
		event, err := r.Next()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return s, fmt.Errorf("failed to read event: %w", err)
		}
		s.Add(event)
	}
}

// Add folds one event into the summary
func (s *Summary) Add(event Event) {
	s.TotalEvents++
	s.EventsByKind[event.Kind]++
	s.EventsByBus[event.Bus]++
	s.Sessions[event.SessionID]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Error != "" {
		s.Errors++
	}
	s.Anomalies += len(event.Anomalies)

	if event.Kind != KindTransaction {
		return
	}
	s.EventsByDirection[event.Direction]++
	if event.Address == nil {
		return
	}

	rt, ok := s.Terminals[*event.Address]
	if !ok {
		rt = &TerminalSummary{}
		s.Terminals[*event.Address] = rt
	}
	rt.Transactions++
	if event.Error != "" {
		rt.Errors++
	}
	rt.Anomalies += len(event.Anomalies)
	if event.Type == mil1553.Broadcast {
		rt.Broadcasts++
	}
	if event.Timestamp.After(rt.LastSeen) {
		rt.LastSeen = event.Timestamp
	}
}

// Write prints the summary in human-readable form
func (s *Summary) Write(w io.Writer) {
	fmt.Fprintln(w, "=== MIL-STD-1553 Capture Statistics ===")
	fmt.Fprintln(w)

	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			s.TimeRange.Start.Format(time.RFC3339),
			s.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", s.TimeRange.End.Sub(s.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintf(w, "Sessions:   %d\n", len(s.Sessions))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Errors:       %d\n", s.Errors)
	fmt.Fprintf(w, "Anomalies:    %d\n", s.Anomalies)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Kind:")
	for _, kind := range []Kind{KindWord, KindTransaction, KindError} {
		if count := s.EventsByKind[kind]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", kind.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Bus:")
	for _, bus := range []Bus{BusA, BusB} {
		if count := s.EventsByBus[bus]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", bus.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(s.EventsByDirection) > 0 {
		fmt.Fprintln(w, "Transactions by Direction:")
		for d := mil1553.BcToRt; d <= mil1553.ModeWithDataR; d++ {
			if count := s.EventsByDirection[d]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", d.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(s.Terminals) > 0 {
		addrs := make([]int, 0, len(s.Terminals))
		for rt := range s.Terminals {
			addrs = append(addrs, int(rt))
		}
		sort.Ints(addrs)

		fmt.Fprintln(w, "Terminals:")
		for _, a := range addrs {
			rt := s.Terminals[uint8(a)]
			fmt.Fprintf(w, "  %-6s transactions=%d errors=%d anomalies=%d broadcast=%d\n",
				mil1553.Address(a).String(), rt.Transactions, rt.Errors, rt.Anomalies, rt.Broadcasts)
		}
	}
}
