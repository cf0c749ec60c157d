// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"errors"
	"math/bits"
	"testing"
)

// ============================================================
// Field Tests
// ============================================================

func TestNewField(t *testing.T) {
	tests := []struct {
		name   string
		mask   uint16
		offset uint
		width  int
	}{
		{"address", CommandAddressMask, 11, 5},
		{"transmit/receive", CommandTRMask, 10, 1},
		{"subaddress", CommandSubaddrMask, 5, 5},
		{"word count", CommandWordCountMask, 0, 5},
		{"status reserved", StatusReservedMask, 5, 3},
		{"terminal flag", StatusTerminalFlagMask, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewField(tt.mask)
			if f.Mask() != tt.mask {
				t.Errorf("Mask() = 0x%04X, want 0x%04X", f.Mask(), tt.mask)
			}
			if f.Offset() != tt.offset {
				t.Errorf("Offset() = %d, want %d", f.Offset(), tt.offset)
			}
			if f.Width() != tt.width {
				t.Errorf("Width() = %d, want %d", f.Width(), tt.width)
			}
		})
	}
}

func TestField_GetSet(t *testing.T) {
	f := NewField(CommandSubaddrMask)

	data := f.Set(0xFFFF, 0)
	if data != 0xFC1F {
		t.Errorf("Set(0xFFFF, 0) = 0x%04X, want 0xFC1F", data)
	}

	data = f.Set(0, 0b10101)
	if data != 0x02A0 {
		t.Errorf("Set(0, 21) = 0x%04X, want 0x02A0", data)
	}
	if got := f.Get(data); got != 0b10101 {
		t.Errorf("Get() = %d, want 21", got)
	}
}

func TestField_SetDropsOverflow(t *testing.T) {
	f := NewField(CommandTRMask)
	data := f.Set(0, 0xFF)
	if data != CommandTRMask {
		t.Errorf("Set(0, 0xFF) = 0x%04X, want 0x%04X", data, CommandTRMask)
	}
}

func TestField_RoundTrip(t *testing.T) {
	masks := []uint16{
		CommandAddressMask, CommandTRMask, CommandSubaddrMask, CommandWordCountMask,
		StatusMessageErrorMask, StatusInstrumentationMask, StatusServiceRequestMask,
		StatusReservedMask, StatusBroadcastReceivedMask, StatusBusyMask,
		StatusSubsystemFlagMask, StatusBusControlAcceptMask, StatusTerminalFlagMask,
	}

	for _, mask := range masks {
		f := NewField(mask)
		widthMask := uint8(1<<f.Width() - 1)
		for v := 0; v < 256; v++ {
			first := f.Get(f.Set(0, uint8(v)))
			if first != uint8(v)&widthMask {
				t.Fatalf("mask 0x%04X value %d: got %d, want %d", mask, v, first, uint8(v)&widthMask)
			}
			if again := f.Get(f.Set(0, first)); again != first {
				t.Fatalf("mask 0x%04X value %d: second round trip %d != %d", mask, v, again, first)
			}
		}
	}
}

// ============================================================
// Parity Tests
// ============================================================

func TestParity_KnownValues(t *testing.T) {
	tests := []struct {
		value uint16
		want  uint8
	}{
		{0x0000, 1},
		{0x0001, 0},
		{0x0003, 1},
		{0x0822, 0},
		{0x8000, 0},
		{0xFFFF, 1},
	}

	for _, tt := range tests {
		if got := Parity(tt.value); got != tt.want {
			t.Errorf("Parity(0x%04X) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestParity_OddInvariant(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		data := uint16(v)
		total := bits.OnesCount16(data) + int(Parity(data))
		if total%2 != 1 {
			t.Fatalf("Parity(0x%04X): total one bits %d is not odd", data, total)
		}

		d := NewDataWord(data)
		if !d.IsValid() {
			t.Fatalf("NewDataWord(0x%04X) is not valid", data)
		}
		flipped := DataWordWithParity(data, d.Parity()^1)
		if flipped.IsValid() {
			t.Fatalf("DataWord 0x%04X with flipped parity is valid", data)
		}
	}
}

// ============================================================
// Packet Tests
// ============================================================

func TestReadPacket_KnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
		sync   uint8
		value  uint16
		parity uint8
	}{
		{"service at 0", []byte{0x81, 0x04, 0x40}, 0, SyncService, 0x0822, 0},
		{"service at 4", []byte{0x08, 0x10, 0x44, 0x00}, 4, SyncService, 0x0822, 0},
		{"data at 0", []byte{0x20, 0x00, 0x20}, 0, SyncData, 0x0001, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ReadPacket(tt.buf, tt.offset)
			if err != nil {
				t.Fatalf("ReadPacket error: %v", err)
			}
			if p.Sync() != tt.sync {
				t.Errorf("Sync() = %03b, want %03b", p.Sync(), tt.sync)
			}
			if p.Value() != tt.value {
				t.Errorf("Value() = 0x%04X, want 0x%04X", p.Value(), tt.value)
			}
			if p.ParityBit() != tt.parity {
				t.Errorf("ParityBit() = %d, want %d", p.ParityBit(), tt.parity)
			}
			if !p.IsValid() {
				t.Error("expected packet to be valid")
			}
		})
	}
}

func TestReadPacket_OutOfBounds(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		offset int
	}{
		{"negative offset", []byte{0, 0, 0, 0}, -1},
		{"offset too large", []byte{0, 0, 0, 0}, 13},
		{"short at 0", []byte{0, 0}, 0},
		{"short at 5", []byte{0, 0, 0}, 5},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPacket(tt.buf, tt.offset)
			if !errors.Is(err, ErrOutOfBounds) {
				t.Errorf("expected ErrOutOfBounds, got %v", err)
			}
			if !IsFramingError(err) {
				t.Error("expected a framing error")
			}
		})
	}
}

func TestPacketWrite_KnownVector(t *testing.T) {
	buf := make([]byte, 3)
	p := NewServicePacket(0x0822, 0)
	if err := p.Write(buf, 0); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	want := []byte{0x81, 0x04, 0x40}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, buf[i], want[i])
		}
	}
}

func TestPacketWrite_ClampsOffset(t *testing.T) {
	p := NewDataPacket(0xABCD, Parity(0xABCD))

	low := make([]byte, 4)
	if err := p.Write(low, -3); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, _ := ReadPacket(low, 0)
	if got != p {
		t.Errorf("negative offset: read %s, want %s", got, p)
	}

	high := make([]byte, 4)
	if err := p.Write(high, 40); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	got, _ = ReadPacket(high, MaxBitOffset)
	if got != p {
		t.Errorf("large offset: read %s, want %s", got, p)
	}
}

func TestPacketWrite_ShortBuffer(t *testing.T) {
	p := NewDataPacket(0, 1)
	if err := p.Write(make([]byte, 3), 8); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

// spanMask returns the bits of a 4-byte window covered by a word at offset
func spanMask(offset int) uint32 {
	return (uint32(0xFFFFF) << 12) >> uint(offset)
}

func window(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

func TestPacket_BitOffsetRoundTrip(t *testing.T) {
	triples := []Packet{
		NewPacket(0, 0, 0),
		NewPacket(0b111, 0xFFFF, 1),
		NewServicePacket(0x0822, 0),
		NewDataPacket(0x1234, 1),
		NewPacket(0b010, 0x8001, 0),
		NewPacket(0b101, 0x5A5A, 1),
	}

	for offset := 0; offset <= MaxBitOffset; offset++ {
		for _, p := range triples {
			buf := []byte{0xA5, 0x5A, 0xC3, 0x3C, 0x99}
			before := window(buf)

			if err := p.Write(buf, offset); err != nil {
				t.Fatalf("offset %d: Write error: %v", offset, err)
			}
			got, err := ReadPacket(buf, offset)
			if err != nil {
				t.Fatalf("offset %d: ReadPacket error: %v", offset, err)
			}
			if got != p {
				t.Errorf("offset %d: read %s, want %s", offset, got, p)
			}

			mask := spanMask(offset)
			if window(buf)&^mask != before&^mask {
				t.Errorf("offset %d: bits outside the word changed", offset)
			}
			if buf[4] != 0x99 {
				t.Errorf("offset %d: byte past the window changed", offset)
			}
		}
	}
}

func TestPacket_Validity(t *testing.T) {
	tests := []struct {
		name    string
		packet  Packet
		valid   bool
		data    bool
		service bool
	}{
		{"data", NewDataPacket(0x0001, 0), true, true, false},
		{"service", NewServicePacket(0x0822, 0), true, false, true},
		{"bad parity", NewDataPacket(0x0001, 1), false, true, false},
		{"bad sync", NewPacket(0b011, 0x0001, 0), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.packet.IsValid() != tt.valid {
				t.Errorf("IsValid() = %v, want %v", tt.packet.IsValid(), tt.valid)
			}
			if tt.packet.IsData() != tt.data {
				t.Errorf("IsData() = %v, want %v", tt.packet.IsData(), tt.data)
			}
			if tt.packet.IsService() != tt.service {
				t.Errorf("IsService() = %v, want %v", tt.packet.IsService(), tt.service)
			}
		})
	}
}

func TestPacket_Conversions(t *testing.T) {
	service := NewServicePacket(0x0822, 0)
	if _, err := service.AsCommand(); err != nil {
		t.Errorf("AsCommand error: %v", err)
	}
	if _, err := service.AsData(); !errors.Is(err, ErrPacketIsInvalid) {
		t.Errorf("AsData on service packet: expected ErrPacketIsInvalid, got %v", err)
	}

	bad := NewServicePacket(0x0822, 1)
	if _, err := bad.AsStatus(); !errors.Is(err, ErrInvalidWord) {
		t.Errorf("AsStatus with bad parity: expected ErrInvalidWord, got %v", err)
	}
}

// ============================================================
// Command Word Tests
// ============================================================

func TestCommandWord_Fields(t *testing.T) {
	c := NewCommandWord(0x0822)

	if c.Address() != 1 {
		t.Errorf("Address() = %d, want 1", c.Address())
	}
	if !c.IsReceive() || c.IsTransmit() {
		t.Error("expected receive command")
	}
	if c.Subaddress() != 1 {
		t.Errorf("Subaddress() = %d, want 1", c.Subaddress())
	}
	if c.IsModeCode() {
		t.Error("subaddress 1 is not a mode code")
	}
	if n, ok := c.WordCount(); !ok || n != 2 {
		t.Errorf("WordCount() = %d, %v; want 2, true", n, ok)
	}
	if _, ok := c.ModeCode(); ok {
		t.Error("ModeCode() should be absent")
	}
	if _, err := c.AsModeCode(); !errors.Is(err, ErrNotModeCode) {
		t.Errorf("expected ErrNotModeCode, got %v", err)
	}
	if c.String() != "RT01-R-SA01-02" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestCommandWord_Setters(t *testing.T) {
	var c CommandWord
	c.SetAddress(5)
	c.SetTransmitReceive(Transmit)
	c.SetSubaddress(3)
	c.SetWordCount(2)

	if c.Value() != 0x2C62 {
		t.Errorf("Value() = 0x%04X, want 0x2C62", c.Value())
	}
	if !c.IsValid() {
		t.Error("setters must keep parity valid")
	}

	built := CommandWord{}.
		WithAddress(5).
		WithTransmitReceive(Transmit).
		WithSubaddress(3).
		WithWordCount(2)
	if built != c {
		t.Errorf("With chain = 0x%04X, setters = 0x%04X", built.Value(), c.Value())
	}
}

func TestCommandWord_WordCountSentinel(t *testing.T) {
	c := CommandWord{}.WithSubaddress(1).WithWordCount(32)
	if c.Value()&CommandWordCountMask != 0 {
		t.Errorf("32 should encode as 0, got %d", c.Value()&CommandWordCountMask)
	}
	if n, _ := c.WordCount(); n != 32 {
		t.Errorf("WordCount() = %d, want 32", n)
	}
	if c.DataCount() != 32 {
		t.Errorf("DataCount() = %d, want 32", c.DataCount())
	}
}

func TestCommandWord_ModeCodeSentinel(t *testing.T) {
	for sa := 0; sa < 32; sa++ {
		c := CommandWord{}.WithAddress(1).WithSubaddress(SubAddress(sa)).WithWordCount(4)
		_, hasCount := c.WordCount()
		_, hasMode := c.ModeCode()

		if sa == 0 || sa == 31 {
			if !c.IsModeCode() || hasCount || !hasMode {
				t.Errorf("subaddress %d: expected mode code without word count", sa)
			}
		} else {
			if c.IsModeCode() || !hasCount || hasMode {
				t.Errorf("subaddress %d: expected word count without mode code", sa)
			}
		}
	}
}

func TestCommandWord_SetModeCode(t *testing.T) {
	c := CommandWord{}.WithAddress(5).WithTransmitReceive(Transmit).WithSubaddress(3)
	c.SetModeCode(TransmitStatusWord)

	if c.Value() != 0x2C02 {
		t.Errorf("Value() = 0x%04X, want 0x2C02", c.Value())
	}
	m, err := c.AsModeCode()
	if err != nil || m != TransmitStatusWord {
		t.Errorf("AsModeCode() = %v, %v", m, err)
	}

	alt := CommandWord{}.WithSubaddress(ModeCodeAltSubaddr).WithModeCode(Synchronize)
	if alt.Subaddress() != ModeCodeAltSubaddr {
		t.Errorf("subaddress 31 should be kept, got %d", alt.Subaddress())
	}
	if alt.DataCount() != 0 {
		t.Errorf("DataCount() = %d, want 0", alt.DataCount())
	}

	withData := CommandWord{}.WithModeCode(TransmitVectorWord)
	if withData.DataCount() != 1 {
		t.Errorf("DataCount() = %d, want 1", withData.DataCount())
	}
}

func TestCommandWord_Build(t *testing.T) {
	if _, err := NewCommandWord(0x0822).Build(); err != nil {
		t.Errorf("Build error: %v", err)
	}
	if _, err := CommandWordWithParity(0x0822, 1).Build(); !errors.Is(err, ErrInvalidWord) {
		t.Errorf("expected ErrInvalidWord, got %v", err)
	}
}

func TestCommandWord_Broadcast(t *testing.T) {
	c := CommandWord{}.WithAddress(BroadcastAddress).WithSubaddress(1).WithWordCount(1)
	if !c.IsBroadcast() {
		t.Error("expected broadcast")
	}
	if c.Address().String() != "BCAST" {
		t.Errorf("Address().String() = %q", c.Address().String())
	}
}

// ============================================================
// Status Word Tests
// ============================================================

func TestStatusWord_Flags(t *testing.T) {
	s := StatusWord{}.
		WithAddress(1).
		WithMessageError(MessageError).
		WithServiceRequest(Service).
		WithBroadcastReceived(BroadcastWasReceived).
		WithBusy(Busy).
		WithSubsystemFlag(SubsystemFault).
		WithBusControlAccept(BusControlAccepted).
		WithTerminalFlag(TerminalFault)

	if s.Value() != 0x0D1F {
		t.Errorf("Value() = 0x%04X, want 0x0D1F", s.Value())
	}
	if !s.IsValid() {
		t.Error("expected valid status word")
	}
	if !s.IsError() {
		t.Error("expected IsError")
	}
	if s.Instrumentation() != InstrumentationStatus {
		t.Error("instrumentation bit should be clear")
	}
	if s.String() != "RT01 [ME SR BCR BUSY SSF DBCA TF]" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestStatusWord_Clean(t *testing.T) {
	s := NewStatusWord(0x0800)
	if s.IsError() {
		t.Error("clean status should not be an error")
	}
	if s.String() != "RT01" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestStatusWord_Build(t *testing.T) {
	tests := []struct {
		name string
		word StatusWord
		err  error
	}{
		{"clean", NewStatusWord(0x0800), nil},
		{"bad parity", StatusWordWithParity(0x0800, 1), ErrInvalidWord},
		{"reserved bits", NewStatusWord(0x0820), ErrWordIsInvalid},
		{"reserved via setter", StatusWord{}.WithReserved(0b100), ErrWordIsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.word.Build()
			if !errors.Is(err, tt.err) {
				t.Errorf("Build() error = %v, want %v", err, tt.err)
			}
		})
	}
}

// ============================================================
// Data Word Tests
// ============================================================

func TestDataWord_Text(t *testing.T) {
	d := NewDataWordFromString("hi")
	if d.Value() != 0x6869 {
		t.Errorf("Value() = 0x%04X, want 0x6869", d.Value())
	}
	if d.Text() != "hi" {
		t.Errorf("Text() = %q", d.Text())
	}

	short := NewDataWordFromString("a")
	if short.Value() != 0x6100 || short.Text() != "a" {
		t.Errorf("short string: 0x%04X %q", short.Value(), short.Text())
	}
	if NewDataWord(0x0102).String() != "0x0102" {
		t.Errorf("String() = %q", NewDataWord(0x0102).String())
	}
}

func TestDataWord_FromBytes(t *testing.T) {
	d := DataWordFromBytes([2]byte{0x12, 0x34})
	if d.Value() != 0x1234 || d.Bytes() != [2]byte{0x12, 0x34} {
		t.Errorf("got 0x%04X", d.Value())
	}
	if !d.WithValue(0xFFFF).IsValid() {
		t.Error("WithValue must keep parity valid")
	}
}

// ============================================================
// Mode Code Tests
// ============================================================

func TestModeCode_Table(t *testing.T) {
	tests := []struct {
		code      ModeCode
		known     bool
		data      bool
		transmit  bool
		broadcast bool
	}{
		{DynamicBusControl, true, false, true, false},
		{Synchronize, true, false, true, true},
		{TransmitStatusWord, true, false, true, false},
		{ResetRemoteTerminal, true, false, true, true},
		{9, false, false, false, false},
		{TransmitVectorWord, true, true, true, false},
		{SynchronizeWithDataWord, true, true, false, true},
		{TransmitBITWord, true, true, true, false},
		{OverrideSelectedTransmitterShutdown, true, true, false, true},
		{22, false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if tt.code.IsKnown() != tt.known {
				t.Errorf("IsKnown() = %v", tt.code.IsKnown())
			}
			if tt.code.IsReserved() == tt.known {
				t.Errorf("IsReserved() = %v", tt.code.IsReserved())
			}
			if tt.code.HasData() != tt.data {
				t.Errorf("HasData() = %v", tt.code.HasData())
			}
			if tt.code.IsTransmit() != tt.transmit {
				t.Errorf("IsTransmit() = %v", tt.code.IsTransmit())
			}
			if tt.code.IsBroadcastAllowed() != tt.broadcast {
				t.Errorf("IsBroadcastAllowed() = %v", tt.code.IsBroadcastAllowed())
			}
		})
	}
}

func TestModeCode_Parse(t *testing.T) {
	m, err := ParseModeCode(17)
	if err != nil || m != SynchronizeWithDataWord {
		t.Errorf("ParseModeCode(17) = %v, %v", m, err)
	}
	if _, err := ParseModeCode(32); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
	if ModeCode(12).String() != "UnknownModeCode(12)" {
		t.Errorf("String() = %q", ModeCode(12).String())
	}
}

// ============================================================
// Word Container Tests
// ============================================================

func TestWord_Conversions(t *testing.T) {
	c := NewCommandWord(0x0822)
	w := FromCommand(c)

	if w.Type() != WordCommand {
		t.Errorf("Type() = %s", w.Type())
	}
	got, err := w.AsCommand()
	if err != nil || got != c {
		t.Errorf("AsCommand() = %v, %v", got, err)
	}
	if _, err := w.AsStatus(); !errors.Is(err, ErrWordIsInvalid) {
		t.Errorf("AsStatus on command: expected ErrWordIsInvalid, got %v", err)
	}
	if _, err := w.AsData(); !errors.Is(err, ErrWordIsInvalid) {
		t.Errorf("AsData on command: expected ErrWordIsInvalid, got %v", err)
	}

	if !(Word{}).IsNone() || (Word{}).IsValid() {
		t.Error("zero Word should be None and invalid")
	}
}

func TestWord_Packet(t *testing.T) {
	tests := []struct {
		name string
		word Word
		sync uint8
	}{
		{"command", FromCommand(NewCommandWord(0x0822)), SyncService},
		{"status", FromStatus(NewStatusWord(0x0800)), SyncService},
		{"data", FromData(NewDataWord(0x1234)), SyncData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.word.Packet()
			if p.Sync() != tt.sync {
				t.Errorf("Sync() = %03b, want %03b", p.Sync(), tt.sync)
			}
			if p.Value() != tt.word.Value() || !p.IsValid() {
				t.Errorf("packet %s does not carry word %s", p, tt.word)
			}
		})
	}
}

// ============================================================
// Custom Word Tests
// ============================================================

var fieldStatusLight = NewField(0x8000)

// statusLight is a data word whose top bit drives an indicator
type statusLight struct {
	on bool
}

func (s *statusLight) FromDataWord(d DataWord) error {
	s.on = fieldStatusLight.Get(d.Value()) == 1
	return nil
}

func (s *statusLight) ToDataWord() DataWord {
	var v uint8
	if s.on {
		v = 1
	}
	return NewDataWord(fieldStatusLight.Set(0, v))
}

func TestCustomWord(t *testing.T) {
	w := EncodeCustom(&statusLight{on: true})
	if w.Type() != WordData || w.Value() != 0x8000 {
		t.Fatalf("EncodeCustom = %s", w)
	}

	var light statusLight
	if err := DecodeCustom(w, &light); err != nil {
		t.Fatalf("DecodeCustom error: %v", err)
	}
	if !light.on {
		t.Error("expected light on")
	}

	if err := DecodeCustom(FromCommand(NewCommandWord(0x0822)), &light); !errors.Is(err, ErrWordIsInvalid) {
		t.Errorf("expected ErrWordIsInvalid, got %v", err)
	}
	bad := NewWord(WordData, 0x8000, 1)
	if err := DecodeCustom(bad, &light); !errors.Is(err, ErrInvalidWord) {
		t.Errorf("expected ErrInvalidWord, got %v", err)
	}
}
