// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"errors"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// rxCommand returns a receive command packet for rt/sa with count data words
func rxCommand(rt Address, sa SubAddress, count int) Packet {
	c := CommandWord{}.WithAddress(rt).WithTransmitReceive(Receive).WithSubaddress(sa).WithWordCount(count)
	return FromCommand(c).Packet()
}

// txCommand returns a transmit command packet for rt/sa with count data words
func txCommand(rt Address, sa SubAddress, count int) Packet {
	c := CommandWord{}.WithAddress(rt).WithTransmitReceive(Transmit).WithSubaddress(sa).WithWordCount(count)
	return FromCommand(c).Packet()
}

// modeCommand returns a mode command packet
func modeCommand(rt Address, tr TransmitReceive, m ModeCode) Packet {
	c := CommandWord{}.WithAddress(rt).WithTransmitReceive(tr).WithModeCode(m)
	return FromCommand(c).Packet()
}

func statusPacket(rt Address) Packet {
	return FromStatus(StatusWord{}.WithAddress(rt)).Packet()
}

func dataPacket(v uint16) Packet {
	return NewDataPacket(v, Parity(v))
}

func parseAll(t *testing.T, m *Message, packets ...Packet) {
	t.Helper()
	for i, p := range packets {
		if err := m.Parse(p); err != nil {
			t.Fatalf("packet %d (%s): unexpected error: %v", i, p, err)
		}
	}
}

// ============================================================
// Topology Scenarios
// ============================================================

func TestParse_BcToRtDirectedReceiving(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Receiving)
	parseAll(t, m, rxCommand(1, 1, 2), dataPacket(0x1111), dataPacket(0x2222))

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if !m.IsComplete() {
		t.Error("expected message to be complete")
	}
	if err := m.Parse(dataPacket(0x3333)); !errors.Is(err, ErrMessageFull) {
		t.Errorf("third data word: expected ErrMessageFull, got %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("rejected packet changed the message: Len() = %d", m.Len())
	}
}

func TestParse_BcToRtDirectedSending(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Sending)
	parseAll(t, m, statusPacket(1))

	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if err := m.Parse(dataPacket(0x1111)); !errors.Is(err, ErrMessageBad) {
		t.Errorf("data after status: expected ErrMessageBad, got %v", err)
	}
}

func TestParse_RtToRtBroadcastReceiving(t *testing.T) {
	m := NewMessage(RtToRt, Broadcast, Receiving)
	parseAll(t, m, rxCommand(BroadcastAddress, 1, 2), txCommand(2, 3, 2))

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if len(m.Commands()) != 2 {
		t.Errorf("Commands() = %d, want 2", len(m.Commands()))
	}
	if err := m.Parse(dataPacket(0x1111)); !errors.Is(err, ErrMessageBad) {
		t.Errorf("data on RT->RT request: expected ErrMessageBad, got %v", err)
	}
}

func TestParse_ModeWithDataRBroadcastSending(t *testing.T) {
	packets := []Packet{
		statusPacket(1),
		dataPacket(0x1111),
		modeCommand(BroadcastAddress, Receive, SynchronizeWithDataWord),
	}

	for _, p := range packets {
		m := NewMessage(ModeWithDataR, Broadcast, Sending)
		if err := m.Parse(p); !errors.Is(err, ErrMessageBad) {
			t.Errorf("packet %s: expected ErrMessageBad, got %v", p, err)
		}
		if !m.IsEmpty() {
			t.Error("rejected packet changed the message")
		}
	}
}

func TestParse_InvalidPacket(t *testing.T) {
	directions := []MessageDirection{BcToRt, RtToBc, RtToRt, ModeWithoutData, ModeWithDataT, ModeWithDataR}
	types := []MessageType{Directed, Broadcast}
	sides := []MessageSide{Sending, Receiving}

	badParity := NewServicePacket(0x0822, 1)
	badSync := NewPacket(0b110, 0x0822, 0)

	for _, d := range directions {
		for _, ty := range types {
			for _, s := range sides {
				m := NewMessage(d, ty, s)
				for _, p := range []Packet{badParity, badSync} {
					if err := m.Parse(p); !errors.Is(err, ErrReservedUsed) {
						t.Errorf("%s %s %s %s: expected ErrReservedUsed, got %v", d, ty, s, p, err)
					}
				}
				if !m.IsEmpty() {
					t.Errorf("%s %s %s: invalid packet changed the message", d, ty, s)
				}
			}
		}
	}
}

// ============================================================
// Format Table Tests
// ============================================================

func TestParse_LegalSequences(t *testing.T) {
	tests := []struct {
		name    string
		dir     MessageDirection
		kind    MessageType
		side    MessageSide
		packets []Packet
	}{
		{"BC->RT broadcast request", BcToRt, Broadcast, Receiving,
			[]Packet{rxCommand(BroadcastAddress, 2, 1), dataPacket(1)}},
		{"RT->BC request", RtToBc, Directed, Receiving,
			[]Packet{txCommand(3, 4, 3)}},
		{"RT->BC response", RtToBc, Directed, Sending,
			[]Packet{statusPacket(3), dataPacket(1), dataPacket(2), dataPacket(3)}},
		{"RT->RT request", RtToRt, Directed, Receiving,
			[]Packet{rxCommand(1, 1, 2), txCommand(2, 1, 2)}},
		{"RT->RT response", RtToRt, Directed, Sending,
			[]Packet{statusPacket(2), dataPacket(1), dataPacket(2)}},
		{"RT->RT broadcast response", RtToRt, Broadcast, Sending,
			[]Packet{statusPacket(2), dataPacket(1)}},
		{"mode without data request", ModeWithoutData, Directed, Receiving,
			[]Packet{modeCommand(4, Transmit, InitiateSelfTest)}},
		{"mode without data broadcast", ModeWithoutData, Broadcast, Receiving,
			[]Packet{modeCommand(BroadcastAddress, Transmit, Synchronize)}},
		{"mode without data response", ModeWithoutData, Directed, Sending,
			[]Packet{statusPacket(4)}},
		{"mode with data T request", ModeWithDataT, Directed, Receiving,
			[]Packet{modeCommand(4, Transmit, TransmitVectorWord)}},
		{"mode with data T response", ModeWithDataT, Directed, Sending,
			[]Packet{statusPacket(4), dataPacket(0xBEEF)}},
		{"mode with data R request", ModeWithDataR, Directed, Receiving,
			[]Packet{modeCommand(4, Receive, SynchronizeWithDataWord), dataPacket(7)}},
		{"mode with data R broadcast", ModeWithDataR, Broadcast, Receiving,
			[]Packet{modeCommand(BroadcastAddress, Receive, SelectedTransmitterShutdown), dataPacket(7)}},
		{"mode with data R response", ModeWithDataR, Directed, Sending,
			[]Packet{statusPacket(4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMessage(tt.dir, tt.kind, tt.side)
			parseAll(t, m, tt.packets...)
			if m.Len() != len(tt.packets) {
				t.Errorf("Len() = %d, want %d", m.Len(), len(tt.packets))
			}
		})
	}
}

func TestParse_WrongSlot(t *testing.T) {
	tests := []struct {
		name    string
		dir     MessageDirection
		kind    MessageType
		side    MessageSide
		prefix  []Packet
		offered Packet
		err     error
	}{
		{"data first on request", BcToRt, Directed, Receiving, nil, dataPacket(1), ErrMessageBad},
		{"transmit command on BC->RT", BcToRt, Directed, Receiving, nil, txCommand(1, 1, 1), ErrMessageBad},
		{"mode command on BC->RT", BcToRt, Directed, Receiving, nil, modeCommand(1, Receive, SynchronizeWithDataWord), ErrMessageBad},
		{"receive command on RT->BC", RtToBc, Directed, Receiving, nil, rxCommand(1, 1, 1), ErrMessageBad},
		{"data after RT->BC command", RtToBc, Directed, Receiving, []Packet{txCommand(1, 1, 1)}, dataPacket(1), ErrMessageBad},
		{"RT->RT second receive", RtToRt, Directed, Receiving, []Packet{rxCommand(1, 1, 1)}, rxCommand(2, 1, 1), ErrMessageBad},
		{"mode with data on no-data format", ModeWithoutData, Directed, Receiving, nil, modeCommand(1, Transmit, TransmitVectorWord), ErrMessageBad},
		{"receive mode on T format", ModeWithDataT, Directed, Receiving, nil, modeCommand(1, Receive, TransmitVectorWord), ErrMessageBad},
		{"transmit mode on R format", ModeWithDataR, Directed, Receiving, nil, modeCommand(1, Transmit, SynchronizeWithDataWord), ErrMessageBad},
		{"second data on mode R", ModeWithDataR, Directed, Receiving,
			[]Packet{modeCommand(1, Receive, SynchronizeWithDataWord), dataPacket(1)}, dataPacket(2), ErrMessageFull},
		{"data on mode T response", ModeWithDataT, Directed, Sending,
			[]Packet{statusPacket(1), dataPacket(1)}, dataPacket(2), ErrMessageFull},
		{"data first on response", RtToBc, Directed, Sending, nil, dataPacket(1), ErrMessageBad},
		{"status reserved bits", BcToRt, Directed, Sending, nil, NewServicePacket(0x0820, Parity(0x0820)), ErrWordIsInvalid},
		{"RT->BC broadcast", RtToBc, Broadcast, Receiving, nil, txCommand(BroadcastAddress, 1, 1), ErrUnknownMessage},
		{"mode with data T broadcast", ModeWithDataT, Broadcast, Receiving, nil, modeCommand(BroadcastAddress, Transmit, TransmitVectorWord), ErrUnknownMessage},
		{"BC->RT broadcast response", BcToRt, Broadcast, Sending, nil, statusPacket(1), ErrMessageBad},
		{"mode broadcast response", ModeWithoutData, Broadcast, Sending, nil, statusPacket(1), ErrMessageBad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMessage(tt.dir, tt.kind, tt.side)
			parseAll(t, m, tt.prefix...)
			before := m.Len()

			err := m.Parse(tt.offered)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
			if m.Len() != before {
				t.Errorf("rejected packet changed the message: %d -> %d", before, m.Len())
			}
		})
	}
}

func TestParse_FullWordCount(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Receiving)
	parseAll(t, m, rxCommand(1, 1, 32))

	for i := 0; i < 32; i++ {
		if err := m.Parse(dataPacket(uint16(i))); err != nil {
			t.Fatalf("data word %d: %v", i, err)
		}
	}
	if m.Len() != MaxWords {
		t.Errorf("Len() = %d, want %d", m.Len(), MaxWords)
	}
	if !m.IsFull() {
		t.Error("expected IsFull")
	}
	if err := m.Parse(dataPacket(0)); !errors.Is(err, ErrMessageFull) {
		t.Errorf("expected ErrMessageFull, got %v", err)
	}
}

// ============================================================
// Add Tests
// ============================================================

func TestAdd_Ordering(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Receiving)

	if err := m.AddData(NewDataWord(1)); !errors.Is(err, ErrFirstWordIsData) {
		t.Errorf("data first: expected ErrFirstWordIsData, got %v", err)
	}
	if err := m.AddCommand(NewCommandWord(0x0822)); err != nil {
		t.Fatalf("AddCommand: %v", err)
	}
	if err := m.AddCommand(NewCommandWord(0x0822)); !errors.Is(err, ErrCommandWordNotFirst) {
		t.Errorf("second command: expected ErrCommandWordNotFirst, got %v", err)
	}
	if err := m.AddStatus(NewStatusWord(0x0800)); !errors.Is(err, ErrStatusWordNotFirst) {
		t.Errorf("status after command: expected ErrStatusWordNotFirst, got %v", err)
	}
	if err := m.Add(FromData(NewDataWord(1))); err != nil {
		t.Errorf("Add data: %v", err)
	}
	if err := m.Add(FromData(NewDataWord(2))); err != nil {
		t.Errorf("Add data: %v", err)
	}
	if err := m.Add(FromData(NewDataWord(3))); !errors.Is(err, ErrMessageFull) {
		t.Errorf("data beyond count: expected ErrMessageFull, got %v", err)
	}
	if err := m.Add(Word{}); !errors.Is(err, ErrWordIsInvalid) {
		t.Errorf("None word: expected ErrWordIsInvalid, got %v", err)
	}
}

func TestAdd_RejectsBadParity(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Receiving)
	if err := m.AddCommand(CommandWordWithParity(0x0822, 1)); !errors.Is(err, ErrInvalidWord) {
		t.Errorf("expected ErrInvalidWord, got %v", err)
	}
	if err := m.AddStatus(StatusWordWithParity(0x0800, 1)); !errors.Is(err, ErrInvalidWord) {
		t.Errorf("expected ErrInvalidWord, got %v", err)
	}
	if !m.IsEmpty() {
		t.Error("rejected word changed the message")
	}
}

func TestMessage_DataExpected(t *testing.T) {
	status := NewMessage(RtToBc, Directed, Sending)
	if status.DataExpected() != 0 {
		t.Errorf("empty message DataExpected() = %d", status.DataExpected())
	}
	_ = status.AddStatus(NewStatusWord(0x0800))
	if status.DataExpected() != MaxDataWords {
		t.Errorf("status-led DataExpected() = %d, want %d", status.DataExpected(), MaxDataWords)
	}

	cmd := NewMessage(BcToRt, Directed, Receiving)
	_ = cmd.AddCommand(NewCommandWord(0x0822))
	if cmd.DataExpected() != 2 || !cmd.HasSpace() {
		t.Errorf("command-led DataExpected() = %d", cmd.DataExpected())
	}
}

func TestMessage_Accessors(t *testing.T) {
	m := NewMessage(BcToRt, Directed, Receiving)
	parseAll(t, m, rxCommand(1, 1, 2), dataPacket(0x6869), dataPacket(0x2222))

	c, ok := m.Command()
	if !ok || c.Value() != 0x0822 {
		t.Errorf("Command() = %s, %v", c, ok)
	}
	if _, ok := m.Status(); ok {
		t.Error("Status() should be absent")
	}
	data := m.DataWords()
	if len(data) != 2 || data[0].Text() != "hi" {
		t.Errorf("DataWords() = %v", data)
	}
	if m.Last().Value() != 0x2222 {
		t.Errorf("Last() = %s", m.Last())
	}
	if !m.At(5).IsNone() {
		t.Error("At(5) should be None")
	}

	words := m.Words()
	words[0] = Word{}
	if m.First().IsNone() {
		t.Error("Words() must return a copy")
	}

	m.Clear()
	if !m.IsEmpty() || m.DataCount() != 0 {
		t.Error("Clear() should empty the message")
	}
}

// ============================================================
// Inference Tests
// ============================================================

func TestInferDirection(t *testing.T) {
	tests := []struct {
		name     string
		packet   Packet
		followed bool
		want     MessageDirection
		kind     MessageType
	}{
		{"receive", rxCommand(1, 1, 1), false, BcToRt, Directed},
		{"receive followed by command", rxCommand(1, 1, 1), true, RtToRt, Directed},
		{"transmit", txCommand(1, 1, 1), false, RtToBc, Directed},
		{"mode without data", modeCommand(1, Transmit, Synchronize), false, ModeWithoutData, Directed},
		{"mode with data T", modeCommand(1, Transmit, TransmitBITWord), false, ModeWithDataT, Directed},
		{"mode with data R", modeCommand(BroadcastAddress, Receive, SynchronizeWithDataWord), false, ModeWithDataR, Broadcast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.packet.AsCommand()
			if err != nil {
				t.Fatalf("AsCommand: %v", err)
			}
			if got := InferDirection(c, tt.followed); got != tt.want {
				t.Errorf("InferDirection() = %s, want %s", got, tt.want)
			}
			if got := InferType(c); got != tt.kind {
				t.Errorf("InferType() = %s, want %s", got, tt.kind)
			}
		})
	}
}
