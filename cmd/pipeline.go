// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"

	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/Thermoquad/milbus/pkg/mil1553"
)

// busEvent is one result of feeding bytes through a busPipeline: a word, a
// decode error, or a finished transaction with its anomalies
type busEvent struct {
	packet    *mil1553.Packet
	decodeErr error
	tx        *mil1553.Transaction
	anomalies []mil1553.ValidationError
}

// busPipeline turns raw bytes into words and transactions, keeping
// statistics and an optional capture log up to date on the way
type busPipeline struct {
	session  string
	bus      capture.Bus
	decoder  *mil1553.Decoder
	monitor  *mil1553.Monitor
	stats    *mil1553.Statistics
	filter   map[uint8]bool
	recorder capture.Logger

	synchronized bool
}

func newBusPipeline(filter map[uint8]bool, recorder capture.Logger) *busPipeline {
	if recorder == nil {
		recorder = capture.NopLogger{}
	}
	return &busPipeline{
		session:  capture.NewSessionID(),
		bus:      capture.BusA,
		decoder:  mil1553.NewDecoder(),
		monitor:  mil1553.NewMonitor(),
		stats:    mil1553.NewStatistics(),
		filter:   filter,
		recorder: recorder,
	}
}

// feed decodes data and returns the resulting events. justSynced is true when
// the first valid word of the stream arrived inside data.
func (bp *busPipeline) feed(data []byte) (events []busEvent, justSynced bool) {
	for _, b := range data {
		packet, decodeErr := bp.decoder.DecodeByte(b)

		if decodeErr != nil {
			bp.stats.UpdateWord(nil, decodeErr)
			var de *mil1553.DecodeError
			var offender *mil1553.Packet
			if errors.As(decodeErr, &de) {
				offender = &de.Packet
				events = bp.push(de.Packet, events)
			}
			bp.recorder.Log(capture.NewErrorEvent(bp.session, bp.bus, offender, decodeErr))
			events = append(events, busEvent{decodeErr: decodeErr})
			continue
		}
		if packet == nil {
			continue
		}

		if !bp.synchronized {
			bp.synchronized = true
			justSynced = true
		}
		bp.stats.UpdateWord(packet, nil)
		events = append(events, busEvent{packet: packet})
		events = bp.push(*packet, events)
	}
	return events, justSynced
}

// flush ends a transaction left open by a quiet bus
func (bp *busPipeline) flush() []busEvent {
	tx := bp.monitor.Flush()
	if tx == nil {
		return nil
	}
	return bp.finish(tx, nil)
}

func (bp *busPipeline) push(p mil1553.Packet, events []busEvent) []busEvent {
	for _, tx := range bp.monitor.Push(p) {
		events = bp.finish(tx, events)
	}
	return events
}

func (bp *busPipeline) finish(tx *mil1553.Transaction, events []busEvent) []busEvent {
	anomalies := mil1553.ValidateTransaction(tx)
	bp.stats.UpdateTransaction(tx, anomalies)
	if !bp.accepts(tx) {
		return events
	}
	bp.recorder.Log(capture.NewTransactionEvent(bp.session, bp.bus, tx, anomalies))
	return append(events, busEvent{tx: tx, anomalies: anomalies})
}

// accepts reports whether tx passes the terminal filter. Aborted exchanges
// without a command always pass.
func (bp *busPipeline) accepts(tx *mil1553.Transaction) bool {
	if bp.filter == nil {
		return true
	}
	c, ok := tx.Command()
	if !ok {
		return true
	}
	return bp.filter[uint8(c.Address())]
}

// reset drops decoder and monitor state for a new connection. Statistics
// and the session id carry over.
func (bp *busPipeline) reset() {
	bp.decoder.Reset()
	bp.monitor.Reset()
	bp.synchronized = false
}

// skippedBits reports how far the decoder slid before locking on
func (bp *busPipeline) skippedBits() uint64 {
	return bp.decoder.SkippedBits()
}
