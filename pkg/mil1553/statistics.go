// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks word and transaction statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Word counters
	TotalWords   uint64
	ValidWords   uint64
	CommandWords uint64
	DataWords    uint64
	SyncErrors   uint64
	ParityErrors uint64

	// Transaction counters
	TotalTransactions    uint64
	CompleteTransactions uint64
	TopologyErrors       uint64
	BroadcastMessages    uint64
	ModeCommands         uint64

	// Anomalies by type
	Anomalies      uint64
	StatusFlags    uint64
	MessageErrors  uint64
	BusyResponses  uint64
	AddressErrors  uint64
	ModeCodeErrors uint64

	// Rates (calculated)
	WordRate        float64 // words/sec
	TransactionRate float64 // transactions/sec
	ErrorRate       float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// UpdateWord updates word statistics from a decoded packet or decode error
func (s *Statistics) UpdateWord(p *Packet, decodeErr error) {
	s.TotalWords++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		var de *DecodeError
		if errors.As(decodeErr, &de) {
			p = &de.Packet
		}
		if p == nil || !p.CheckSync() {
			s.SyncErrors++
		} else {
			s.ParityErrors++
		}
		return
	}

	s.ValidWords++
	if p.IsService() {
		s.CommandWords++
	} else {
		s.DataWords++
	}
}

// UpdateTransaction updates transaction statistics with its anomalies
func (s *Statistics) UpdateTransaction(t *Transaction, validationErrors []ValidationError) {
	s.TotalTransactions++
	s.LastUpdateTime = time.Now()

	if t.Err == nil {
		s.CompleteTransactions++
	} else if IsTopologyError(t.Err) {
		s.TopologyErrors++
	}
	if t.Request != nil {
		if t.Type == Broadcast {
			s.BroadcastMessages++
		}
		switch t.Direction {
		case ModeWithoutData, ModeWithDataT, ModeWithDataR:
			s.ModeCommands++
		}
	}

	for _, err := range validationErrors {
		s.Anomalies++
		switch err.Type {
		case AnomalyMessageError:
			s.MessageErrors++
			s.StatusFlags++
		case AnomalyBusy:
			s.BusyResponses++
			s.StatusFlags++
		case AnomalySubsystemFlag, AnomalyTerminalFlag:
			s.StatusFlags++
		case AnomalyAddressMismatch:
			s.AddressErrors++
		case AnomalyBroadcastModeCode, AnomalyReservedModeCode, AnomalyModeDirection:
			s.ModeCodeErrors++
		}
	}
}

// CalculateRates calculates word, transaction and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.WordRate = float64(s.TotalWords) / elapsed
		s.TransactionRate = float64(s.TotalTransactions) / elapsed
		errorCount := s.SyncErrors + s.ParityErrors + s.TopologyErrors + s.Anomalies
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Words:     %8d\n", s.TotalWords)
	result += fmt.Sprintf("Valid Words:     %8d (%.1f%%)\n", s.ValidWords, percent(s.ValidWords, s.TotalWords))
	result += fmt.Sprintf("  Service:          %5d\n", s.CommandWords)
	result += fmt.Sprintf("  Data:             %5d\n", s.DataWords)

	if s.SyncErrors > 0 {
		result += fmt.Sprintf("Sync Errors:     %8d (%.1f%%)\n", s.SyncErrors, percent(s.SyncErrors, s.TotalWords))
	}
	if s.ParityErrors > 0 {
		result += fmt.Sprintf("Parity Errors:   %8d (%.1f%%)\n", s.ParityErrors, percent(s.ParityErrors, s.TotalWords))
	}

	result += fmt.Sprintf("Transactions:    %8d\n", s.TotalTransactions)
	result += fmt.Sprintf("Complete:        %8d (%.1f%%)\n", s.CompleteTransactions,
		percent(s.CompleteTransactions, s.TotalTransactions))
	if s.BroadcastMessages > 0 {
		result += fmt.Sprintf("  Broadcast:        %5d\n", s.BroadcastMessages)
	}
	if s.ModeCommands > 0 {
		result += fmt.Sprintf("  Mode Commands:    %5d\n", s.ModeCommands)
	}
	if s.TopologyErrors > 0 {
		result += fmt.Sprintf("Topology Errors: %8d (%.1f%%)\n", s.TopologyErrors,
			percent(s.TopologyErrors, s.TotalTransactions))
	}

	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
		if s.StatusFlags > 0 {
			result += fmt.Sprintf("  Status Flags:     %5d\n", s.StatusFlags)
		}
		if s.MessageErrors > 0 {
			result += fmt.Sprintf("  Message Errors:   %5d\n", s.MessageErrors)
		}
		if s.BusyResponses > 0 {
			result += fmt.Sprintf("  Busy:             %5d\n", s.BusyResponses)
		}
		if s.AddressErrors > 0 {
			result += fmt.Sprintf("  Address Mismatch: %5d\n", s.AddressErrors)
		}
		if s.ModeCodeErrors > 0 {
			result += fmt.Sprintf("  Mode Code:        %5d\n", s.ModeCodeErrors)
		}
	}

	result += fmt.Sprintf("Word Rate:       %8.1f words/sec\n", s.WordRate)
	result += fmt.Sprintf("Msg Rate:        %8.1f msgs/sec\n", s.TransactionRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
