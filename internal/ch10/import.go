// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch10

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/rs/zerolog/log"
)

// rtcTick is the period of the 10 MHz relative time counter behind IPTS
const rtcTick = 100 * time.Nanosecond

// ImportOptions controls Import
type ImportOptions struct {
	SessionID string
	// Start is the wall time given to the first message
	Start time.Time
	// Channels restricts the import to these channel ids; nil imports all
	Channels map[uint16]bool
}

// ImportResult summarizes an import
type ImportResult struct {
	Packets        int
	MIL1553Packets int
	Messages       int
	Transactions   int
	Skipped        int64
	ParseErrors    []string
	Stats          *mil1553.Statistics
}

// Import reads every 1553 format 1 packet of a Chapter 10 stream, runs each
// message through a bus monitor and the validator, and logs the resulting
// transactions to logger.
func Import(r io.Reader, logger capture.Logger, opts ImportOptions) (*ImportResult, error) {
	if opts.SessionID == "" {
		opts.SessionID = capture.NewSessionID()
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	res := &ImportResult{Stats: mil1553.NewStatistics()}
	reader := NewReader(r)
	monitor := mil1553.NewMonitor()
	firstIPTS, haveIPTS := uint64(0), false

	for {
		pkt, err := reader.Next()
		res.Skipped = reader.Skipped()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("ch10 packet %d: %w", res.Packets+1, err)
		}
		res.Packets++

		if pkt.Header.DataType != DataTypeMIL1553Format1 {
			continue
		}
		if opts.Channels != nil && !opts.Channels[pkt.Header.ChannelID] {
			continue
		}
		res.MIL1553Packets++

		info := ParseMIL1553Format1(pkt.Body)
		if info.ParseError != "" {
			msg := fmt.Sprintf("offset %d channel %d: %s", pkt.Offset, pkt.Header.ChannelID, info.ParseError)
			res.ParseErrors = append(res.ParseErrors, msg)
			log.Warn().Int64("offset", pkt.Offset).Uint16("channel", pkt.Header.ChannelID).Msg(info.ParseError)
		}

		for _, msg := range info.Messages {
			res.Messages++
			if !haveIPTS {
				firstIPTS, haveIPTS = msg.IPTS, true
			}
			ts := opts.Start
			if msg.IPTS > firstIPTS {
				ts = ts.Add(time.Duration(msg.IPTS-firstIPTS) * rtcTick)
			}
			bus := capture.BusA
			if msg.IsBusB() {
				bus = capture.BusB
			}

			packets := msg.Packets()
			for i := range packets {
				res.Stats.UpdateWord(&packets[i], nil)
			}

			for _, tx := range replay(monitor, packets) {
				tx.Timestamp = ts
				anomalies := mil1553.ValidateTransaction(tx)
				res.Stats.UpdateTransaction(tx, anomalies)
				res.Transactions++

				event := capture.NewTransactionEvent(opts.SessionID, bus, tx, anomalies)
				if msg.HasError() {
					event.Anomalies = append(event.Anomalies, fmt.Sprintf("RECORDER: block status 0x%04X", msg.BlockStatus))
				}
				logger.Log(event)
			}
		}
	}
}

// replay feeds the packets of one recorded message to the monitor and returns the
// transactions it produced, flushing any that the recording cut short
func replay(monitor *mil1553.Monitor, packets []mil1553.Packet) []*mil1553.Transaction {
	monitor.Reset()
	var out []*mil1553.Transaction
	for _, p := range packets {
		out = append(out, monitor.Push(p)...)
	}
	if tx := monitor.Flush(); tx != nil {
		out = append(out, tx)
	}
	return out
}

// Export writes transaction events from a capture as format 1 packets on
// channel, one packet per transaction
func Export(src *capture.Reader, w io.Writer, channel uint16) (int, error) {
	writer := NewWriter(w)
	var first time.Time
	count := 0
	for {
		event, err := src.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if event.Kind != capture.KindTransaction || len(event.Words) == 0 {
			continue
		}
		if first.IsZero() {
			first = event.Timestamp
		}

		offset := event.Timestamp.Sub(first)
		if offset < 0 {
			offset = 0
		}
		msg := MIL1553Message{
			IPTS: uint64(offset / rtcTick),
			Data: make([]uint16, len(event.Words)),
		}
		for i, word := range event.Words {
			msg.Data[i] = word.Value()
		}
		if event.Bus == capture.BusB {
			msg.BlockStatus |= BlockStatusBusB
		}
		if event.Direction == mil1553.RtToRt {
			msg.BlockStatus |= BlockStatusRTToRT
		}
		if event.Error != "" {
			msg.BlockStatus |= BlockStatusFormatError
		}

		if err := writer.WritePacket(channel, DataTypeMIL1553Format1, BuildMIL1553Format1([]MIL1553Message{msg})); err != nil {
			return count, err
		}
		count++
	}
}
