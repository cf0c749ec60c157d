// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"fmt"
	"strings"
)

//////////////////////////////////////////////////////////////
// Message Formats
//////////////////////////////////////////////////////////////

// MessageDirection is one of the six message formats of the standard
type MessageDirection uint8

const (
	BcToRt MessageDirection = iota
	RtToBc
	RtToRt
	ModeWithoutData
	ModeWithDataT // terminal transmits the data word
	ModeWithDataR // terminal receives the data word
)

func (d MessageDirection) String() string {
	switch d {
	case BcToRt:
		return "BC->RT"
	case RtToBc:
		return "RT->BC"
	case RtToRt:
		return "RT->RT"
	case ModeWithoutData:
		return "MODE"
	case ModeWithDataT:
		return "MODE+DATA(T)"
	case ModeWithDataR:
		return "MODE+DATA(R)"
	default:
		return fmt.Sprintf("DIRECTION(%d)", uint8(d))
	}
}

// MessageType distinguishes point-to-point and broadcast messages
type MessageType uint8

const (
	Directed  MessageType = iota // terminal answers with a status word
	Broadcast                    // terminals suppress their status word
)

func (t MessageType) String() string {
	if t == Broadcast {
		return "broadcast"
	}
	return "directed"
}

// MessageSide selects which limb of the exchange is parsed
type MessageSide uint8

const (
	Sending   MessageSide = iota // response limb: status and data from the terminal
	Receiving                    // request limb: commands and data from the controller
)

func (s MessageSide) String() string {
	if s == Receiving {
		return "receiving"
	}
	return "sending"
}

// slot is the kind of word a message accepts next
type slot uint8

const (
	slotNone slot = iota
	slotReceiveCommand
	slotTransmitCommand
	slotModeCommand
	slotStatus
	slotData
)

//////////////////////////////////////////////////////////////
// Message
//////////////////////////////////////////////////////////////

// Message is a bounded sequence of words assembled under one message format.
// It is not safe for concurrent use.
type Message struct {
	direction MessageDirection
	kind      MessageType
	side      MessageSide
	count     int
	words     [MaxWords]Word
}

// NewMessage creates an empty message for the given format and side
func NewMessage(direction MessageDirection, kind MessageType, side MessageSide) *Message {
	return &Message{
		direction: direction,
		kind:      kind,
		side:      side,
	}
}

// Direction returns the message format
func (m *Message) Direction() MessageDirection { return m.direction }

// Type returns directed or broadcast
func (m *Message) Type() MessageType { return m.kind }

// Side returns the limb being parsed
func (m *Message) Side() MessageSide { return m.side }

// Len returns the number of words in the message
func (m *Message) Len() int { return m.count }

// IsEmpty returns true if no word was accepted yet
func (m *Message) IsEmpty() bool { return m.count == 0 }

// Words returns a copy of the accepted words
func (m *Message) Words() []Word {
	out := make([]Word, m.count)
	copy(out, m.words[:m.count])
	return out
}

// At returns the word at index i, or a None word when out of range
func (m *Message) At(i int) Word {
	if i < 0 || i >= m.count {
		return Word{}
	}
	return m.words[i]
}

// First returns the leading word, or a None word
func (m *Message) First() Word { return m.At(0) }

// Last returns the most recent word, or a None word
func (m *Message) Last() Word { return m.At(m.count - 1) }

// Command returns the leading command word, if any
func (m *Message) Command() (CommandWord, bool) {
	c, err := m.First().AsCommand()
	return c, err == nil
}

// Status returns the leading status word, if any
func (m *Message) Status() (StatusWord, bool) {
	s, err := m.First().AsStatus()
	return s, err == nil
}

// Commands returns every command word in the message (two for RT to RT)
func (m *Message) Commands() []CommandWord {
	out := []CommandWord{}
	for _, w := range m.words[:m.count] {
		if c, err := w.AsCommand(); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// DataWords returns the data words in order
func (m *Message) DataWords() []DataWord {
	out := []DataWord{}
	for _, w := range m.words[:m.count] {
		if d, err := w.AsData(); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// DataCount returns the number of data words accepted so far
func (m *Message) DataCount() int {
	n := 0
	for _, w := range m.words[:m.count] {
		if w.Type() == WordData {
			n++
		}
	}
	return n
}

// DataExpected returns how many data words the leading word allows.
// A command-led message expects the command's data count; a status-led
// message has no count and allows up to MaxDataWords.
func (m *Message) DataExpected() int {
	switch m.First().Type() {
	case WordCommand:
		c, _ := m.Command()
		return c.DataCount()
	case WordStatus:
		return MaxDataWords
	default:
		return 0
	}
}

// HasSpace returns true if another data word fits
func (m *Message) HasSpace() bool {
	return m.count < MaxWords && m.DataCount() < m.DataExpected()
}

// IsFull returns true if no more data words fit
func (m *Message) IsFull() bool {
	return !m.HasSpace()
}

// IsComplete returns true if the format accepts no further word on this side
func (m *Message) IsComplete() bool {
	s, _, err := m.next()
	return err == nil && s == slotNone
}

// Clear removes every word
func (m *Message) Clear() {
	m.count = 0
	m.words = [MaxWords]Word{}
}

// push appends without any checks
func (m *Message) push(w Word) error {
	if m.count >= MaxWords {
		return ErrMessageFull
	}
	m.words[m.count] = w
	m.count++
	return nil
}

//////////////////////////////////////////////////////////////
// Add
//////////////////////////////////////////////////////////////

// Add appends a word. The first word must be a command or status word and
// every later word must be data. Format rules are not applied; use Parse
// for that.
func (m *Message) Add(w Word) error {
	switch w.Type() {
	case WordCommand:
		c, _ := w.AsCommand()
		return m.AddCommand(c)
	case WordStatus:
		s, _ := w.AsStatus()
		return m.AddStatus(s)
	case WordData:
		d, _ := w.AsData()
		return m.AddData(d)
	default:
		return ErrWordIsInvalid
	}
}

// AddCommand appends a leading command word
func (m *Message) AddCommand(c CommandWord) error {
	if !m.IsEmpty() {
		return ErrCommandWordNotFirst
	}
	if !c.CheckParity() {
		return ErrInvalidWord
	}
	return m.push(FromCommand(c))
}

// AddStatus appends a leading status word
func (m *Message) AddStatus(s StatusWord) error {
	if !m.IsEmpty() {
		return ErrStatusWordNotFirst
	}
	if !s.CheckParity() {
		return ErrInvalidWord
	}
	return m.push(FromStatus(s))
}

// AddData appends a data word after the leading word
func (m *Message) AddData(d DataWord) error {
	if m.IsEmpty() {
		return ErrFirstWordIsData
	}
	if !m.HasSpace() {
		return ErrMessageFull
	}
	return m.push(FromData(d))
}

//////////////////////////////////////////////////////////////
// Parse
//////////////////////////////////////////////////////////////

// next returns the slot the format expects at the current position.
// dataLimb is true when this side of the format carries data words, so
// running out of room is reported as a full message.
func (m *Message) next() (s slot, dataLimb bool, err error) {
	n := m.count

	if m.side == Receiving {
		switch m.direction {
		case BcToRt:
			switch {
			case n == 0:
				return slotReceiveCommand, true, nil
			case m.HasSpace():
				return slotData, true, nil
			}
			return slotNone, true, nil
		case RtToBc:
			if m.kind == Broadcast {
				return slotNone, false, ErrUnknownMessage
			}
			if n == 0 {
				return slotTransmitCommand, false, nil
			}
			return slotNone, false, nil
		case RtToRt:
			switch n {
			case 0:
				return slotReceiveCommand, false, nil
			case 1:
				return slotTransmitCommand, false, nil
			}
			return slotNone, false, nil
		case ModeWithoutData:
			if n == 0 {
				return slotModeCommand, false, nil
			}
			return slotNone, false, nil
		case ModeWithDataT:
			if m.kind == Broadcast {
				return slotNone, false, ErrUnknownMessage
			}
			if n == 0 {
				return slotModeCommand, false, nil
			}
			return slotNone, false, nil
		case ModeWithDataR:
			switch n {
			case 0:
				return slotModeCommand, true, nil
			case 1:
				return slotData, true, nil
			}
			return slotNone, true, nil
		}
		return slotNone, false, ErrUnknownMessage
	}

	// Sending side: the terminal never answers a broadcast, except as the
	// transmitter of an RT to RT transfer.
	if m.kind == Broadcast {
		switch m.direction {
		case BcToRt, ModeWithoutData, ModeWithDataR:
			return slotNone, false, ErrMessageBad
		case RtToRt:
		default:
			return slotNone, false, ErrUnknownMessage
		}
	}

	switch m.direction {
	case BcToRt, ModeWithoutData, ModeWithDataR:
		if n == 0 {
			return slotStatus, false, nil
		}
		return slotNone, false, nil
	case RtToBc, RtToRt:
		switch {
		case n == 0:
			return slotStatus, true, nil
		case m.HasSpace():
			return slotData, true, nil
		}
		return slotNone, true, nil
	case ModeWithDataT:
		switch n {
		case 0:
			return slotStatus, true, nil
		case 1:
			return slotData, true, nil
		}
		return slotNone, true, nil
	}
	return slotNone, false, ErrUnknownMessage
}

// Parse validates a packet against the message format and appends it.
// A rejected packet leaves the message unchanged.
func (m *Message) Parse(p Packet) error {
	if !p.IsValid() {
		return ErrReservedUsed
	}

	s, dataLimb, err := m.next()
	if err != nil {
		return err
	}

	switch s {
	case slotNone:
		if dataLimb && p.IsData() {
			return ErrMessageFull
		}
		return ErrMessageBad

	case slotData:
		d, err := p.AsData()
		if err != nil {
			return ErrMessageBad
		}
		return m.push(FromData(d))

	case slotStatus:
		st, err := p.AsStatus()
		if err != nil {
			return ErrMessageBad
		}
		if st.Reserved().IsSet() {
			return fmt.Errorf("status reserved bits %03b: %w", uint8(st.Reserved()), ErrWordIsInvalid)
		}
		return m.push(FromStatus(st))

	default:
		c, err := p.AsCommand()
		if err != nil {
			return ErrMessageBad
		}
		if !commandFits(s, m.direction, c) {
			return ErrMessageBad
		}
		return m.push(FromCommand(c))
	}
}

// commandFits reports whether c is the command the slot calls for
func commandFits(s slot, direction MessageDirection, c CommandWord) bool {
	switch s {
	case slotReceiveCommand:
		return !c.IsModeCode() && c.IsReceive()
	case slotTransmitCommand:
		return !c.IsModeCode() && c.IsTransmit()
	case slotModeCommand:
		mc, ok := c.ModeCode()
		if !ok {
			return false
		}
		switch direction {
		case ModeWithoutData:
			return !mc.HasData()
		case ModeWithDataT:
			return mc.HasData() && c.IsTransmit()
		case ModeWithDataR:
			return mc.HasData() && c.IsReceive()
		}
	}
	return false
}

func (m *Message) String() string {
	parts := make([]string, 0, m.count)
	for _, w := range m.words[:m.count] {
		parts = append(parts, w.String())
	}
	return fmt.Sprintf("%s %s %s [%s]", m.direction, m.kind, m.side, strings.Join(parts, ", "))
}

//////////////////////////////////////////////////////////////
// Inference
//////////////////////////////////////////////////////////////

// InferDirection derives the message format from a leading command word.
// followedByCommand reports whether the next word on the bus is another
// command, which turns a receive command into an RT to RT transfer.
func InferDirection(c CommandWord, followedByCommand bool) MessageDirection {
	if mc, ok := c.ModeCode(); ok {
		if !mc.HasData() {
			return ModeWithoutData
		}
		if c.IsTransmit() {
			return ModeWithDataT
		}
		return ModeWithDataR
	}
	if c.IsTransmit() {
		return RtToBc
	}
	if followedByCommand {
		return RtToRt
	}
	return BcToRt
}

// InferType returns Broadcast for commands sent to the broadcast address
func InferType(c CommandWord) MessageType {
	if c.IsBroadcast() {
		return Broadcast
	}
	return Directed
}
