// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"errors"
	"fmt"
	"time"
)

//////////////////////////////////////////////////////////////
// Transaction
//////////////////////////////////////////////////////////////

// Transaction is one complete or aborted bus exchange as seen by a monitor
type Transaction struct {
	Timestamp time.Time
	Direction MessageDirection
	Type      MessageType

	// Request holds the controller's commands and any data it sent
	Request *Message
	// Response holds the (transmitting) terminal's status and data
	Response *Message
	// Final holds the receiving terminal's status of an RT to RT transfer
	Final *Message

	// Offender is the packet that aborted the transaction, if any
	Offender *Packet
	Err      error
}

// Command returns the leading command word
func (t *Transaction) Command() (CommandWord, bool) {
	if t.Request == nil {
		return CommandWord{}, false
	}
	return t.Request.Command()
}

// Statuses returns the status words in bus order
func (t *Transaction) Statuses() []StatusWord {
	out := []StatusWord{}
	for _, m := range []*Message{t.Response, t.Final} {
		if m == nil {
			continue
		}
		if s, ok := m.Status(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Words returns every word of the transaction in bus order
func (t *Transaction) Words() []Word {
	out := []Word{}
	for _, m := range []*Message{t.Request, t.Response, t.Final} {
		if m != nil {
			out = append(out, m.Words()...)
		}
	}
	return out
}

// IsComplete returns true if the exchange ran to the end of its format
func (t *Transaction) IsComplete() bool {
	return t.Err == nil
}

//////////////////////////////////////////////////////////////
// Monitor
//////////////////////////////////////////////////////////////

type monitorPhase uint8

const (
	phaseIdle    monitorPhase = iota
	phasePending              // receive command seen, BC->RT or RT->RT not yet known
	phaseRequest
	phaseResponse
	phaseFinal
)

// Monitor groups a packet stream into transactions.
// It is not safe for concurrent use.
type Monitor struct {
	phase   monitorPhase
	tx      *Transaction
	pending Packet
	expect  int
	now     func() time.Time
}

// NewMonitor creates an idle monitor
func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// Reset drops any transaction in progress
func (m *Monitor) Reset() {
	m.phase = phaseIdle
	m.tx = nil
	m.expect = 0
}

// Busy returns true while a transaction is in progress
func (m *Monitor) Busy() bool {
	return m.phase != phaseIdle
}

// Push feeds one packet and returns the transactions it finished.
// An aborted transaction is returned with Err set, and the monitor restarts
// at the offending packet when that packet may begin a new exchange.
func (m *Monitor) Push(p Packet) []*Transaction {
	out := []*Transaction{}
	m.push(p, &out)
	return out
}

// Flush ends the transaction in progress, if any, as incomplete
func (m *Monitor) Flush() *Transaction {
	switch m.phase {
	case phaseIdle:
		return nil
	case phasePending:
		cmd, _ := m.pending.AsCommand()
		m.begin(cmd, false)
		_ = m.tx.Request.Parse(m.pending)
	}
	tx := m.tx
	tx.Err = fmt.Errorf("incomplete %s transaction: %w", tx.Direction, ErrMessageBad)
	m.Reset()
	return tx
}

func (m *Monitor) push(p Packet, out *[]*Transaction) {
	switch m.phase {
	case phaseIdle:
		m.start(p, out)

	case phasePending:
		cmd, _ := m.pending.AsCommand()
		followed := false
		if p.IsValid() && p.IsService() {
			if c, err := p.AsCommand(); err == nil && c.IsTransmit() && !c.IsModeCode() {
				followed = true
			}
		}
		m.begin(cmd, followed)
		if err := m.tx.Request.Parse(m.pending); err != nil {
			m.fail(m.pending, err, false, out)
			m.start(p, out)
			return
		}
		m.push(p, out)

	case phaseRequest:
		if err := m.tx.Request.Parse(p); err != nil {
			m.fail(p, err, true, out)
			return
		}
		if m.tx.Request.IsComplete() {
			m.requestDone(out)
		}

	case phaseResponse:
		if err := m.tx.Response.Parse(p); err != nil {
			m.fail(p, err, true, out)
			return
		}
		if m.tx.Response.DataCount() < m.expect {
			return
		}
		if m.tx.Direction == RtToRt && m.tx.Type == Directed {
			m.tx.Final = NewMessage(BcToRt, Directed, Sending)
			m.phase = phaseFinal
			return
		}
		m.emit(nil, out)

	case phaseFinal:
		if err := m.tx.Final.Parse(p); err != nil {
			m.fail(p, err, true, out)
			return
		}
		m.emit(nil, out)
	}
}

// start opens a transaction on its first packet
func (m *Monitor) start(p Packet, out *[]*Transaction) {
	m.tx = &Transaction{Timestamp: m.now()}

	switch {
	case !p.IsValid():
		m.fail(p, ErrReservedUsed, false, out)
		return
	case p.IsData():
		m.fail(p, ErrFirstWordIsData, false, out)
		return
	}

	cmd, _ := p.AsCommand()
	if !cmd.IsModeCode() && cmd.IsReceive() {
		m.pending = p
		m.phase = phasePending
		return
	}

	m.begin(cmd, false)
	if err := m.tx.Request.Parse(p); err != nil {
		m.fail(p, err, false, out)
		return
	}
	if m.tx.Request.IsComplete() {
		m.requestDone(out)
	}
}

// begin fixes the format of the current transaction
func (m *Monitor) begin(cmd CommandWord, followedByCommand bool) {
	m.tx.Direction = InferDirection(cmd, followedByCommand)
	m.tx.Type = InferType(cmd)
	m.tx.Request = NewMessage(m.tx.Direction, m.tx.Type, Receiving)
	m.phase = phaseRequest
}

// requestDone moves to the response limb, or ends a broadcast
func (m *Monitor) requestDone(out *[]*Transaction) {
	if m.tx.Type == Broadcast && m.tx.Direction != RtToRt {
		m.emit(nil, out)
		return
	}

	m.expect = 0
	switch m.tx.Direction {
	case RtToBc:
		c, _ := m.tx.Request.Command()
		m.expect = c.DataCount()
	case RtToRt:
		cmds := m.tx.Request.Commands()
		m.expect = cmds[len(cmds)-1].DataCount()
	case ModeWithDataT:
		m.expect = 1
	}

	m.tx.Response = NewMessage(m.tx.Direction, m.tx.Type, Sending)
	m.phase = phaseResponse
}

func (m *Monitor) emit(err error, out *[]*Transaction) {
	m.tx.Err = err
	*out = append(*out, m.tx)
	m.Reset()
}

// fail ends the transaction with err. When restart is set and p is a
// service word out of place, p opens the next transaction.
func (m *Monitor) fail(p Packet, err error, restart bool, out *[]*Transaction) {
	m.tx.Offender = &p
	m.emit(err, out)
	if !restart || !p.IsValid() || !p.IsService() {
		return
	}
	// a status slot that sees reserved bits is usually a command after a no-response
	if errors.Is(err, ErrMessageBad) || errors.Is(err, ErrWordIsInvalid) {
		m.start(p, out)
	}
}
