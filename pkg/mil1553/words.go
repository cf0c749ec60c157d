// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"fmt"
	"strings"
)

//////////////////////////////////////////////////////////////
// Command Word
//////////////////////////////////////////////////////////////

// CommandWord is issued by the bus controller to start a message
type CommandWord struct {
	data   uint16
	parity uint8
}

// NewCommandWord creates a command word and computes its parity
func NewCommandWord(value uint16) CommandWord {
	return CommandWord{data: value, parity: Parity(value)}
}

// CommandWordFromBytes creates a command word from big-endian bytes
func CommandWordFromBytes(b [2]byte) CommandWord {
	return NewCommandWord(uint16(b[0])<<8 | uint16(b[1]))
}

// CommandWordWithParity creates a command word with the parity bit as given.
// Use Build or IsValid to check it.
func CommandWordWithParity(value uint16, parity uint8) CommandWord {
	return CommandWord{data: value, parity: parity & 1}
}

// Value returns the 16-bit body
func (c CommandWord) Value() uint16 { return c.data }

// Bytes returns the body as big-endian bytes
func (c CommandWord) Bytes() [2]byte { return [2]byte{byte(c.data >> 8), byte(c.data)} }

// Parity returns the stored parity bit
func (c CommandWord) Parity() uint8 { return c.parity }

// CalculateParity returns the parity bit the body requires
func (c CommandWord) CalculateParity() uint8 { return Parity(c.data) }

// CheckParity returns true if the stored parity matches the body
func (c CommandWord) CheckParity() bool { return c.parity == Parity(c.data) }

// IsValid returns true if the word has correct parity
func (c CommandWord) IsValid() bool { return c.CheckParity() }

// Build validates the word
func (c CommandWord) Build() (CommandWord, error) {
	if !c.CheckParity() {
		return c, ErrInvalidWord
	}
	return c, nil
}

func (c *CommandWord) set(f Field, v uint8) {
	c.data = f.Set(c.data, v)
	c.parity = Parity(c.data)
}

// Address returns the terminal address
func (c CommandWord) Address() Address {
	return Address(fieldCommandAddress.Get(c.data))
}

// SetAddress sets the terminal address
func (c *CommandWord) SetAddress(a Address) { c.set(fieldCommandAddress, uint8(a)) }

// WithAddress returns a copy with the terminal address set
func (c CommandWord) WithAddress(a Address) CommandWord {
	c.SetAddress(a)
	return c
}

// TransmitReceive returns the T/R bit
func (c CommandWord) TransmitReceive() TransmitReceive {
	return TransmitReceive(fieldCommandTR.Get(c.data))
}

// SetTransmitReceive sets the T/R bit
func (c *CommandWord) SetTransmitReceive(t TransmitReceive) { c.set(fieldCommandTR, uint8(t)) }

// WithTransmitReceive returns a copy with the T/R bit set
func (c CommandWord) WithTransmitReceive(t TransmitReceive) CommandWord {
	c.SetTransmitReceive(t)
	return c
}

// Subaddress returns the subaddress/mode field
func (c CommandWord) Subaddress() SubAddress {
	return SubAddress(fieldCommandSubaddr.Get(c.data))
}

// SetSubaddress sets the subaddress/mode field
func (c *CommandWord) SetSubaddress(s SubAddress) { c.set(fieldCommandSubaddr, uint8(s)) }

// WithSubaddress returns a copy with the subaddress set
func (c CommandWord) WithSubaddress(s SubAddress) CommandWord {
	c.SetSubaddress(s)
	return c
}

// IsTransmit returns true if the terminal is commanded to transmit
func (c CommandWord) IsTransmit() bool { return c.TransmitReceive().IsTransmit() }

// IsReceive returns true if the terminal is commanded to receive
func (c CommandWord) IsReceive() bool { return c.TransmitReceive().IsReceive() }

// IsBroadcast returns true if the command is addressed to all terminals
func (c CommandWord) IsBroadcast() bool { return c.Address().IsBroadcast() }

// IsModeCode returns true if the subaddress selects a mode code
func (c CommandWord) IsModeCode() bool { return c.Subaddress().IsModeCode() }

// ModeCode returns the mode code, or false if this is not a mode command
func (c CommandWord) ModeCode() (ModeCode, bool) {
	if !c.IsModeCode() {
		return 0, false
	}
	return ModeCode(fieldCommandWordCount.Get(c.data)), true
}

// AsModeCode returns the mode code or ErrNotModeCode
func (c CommandWord) AsModeCode() (ModeCode, error) {
	m, ok := c.ModeCode()
	if !ok {
		return 0, ErrNotModeCode
	}
	return m, nil
}

// SetModeCode stores a mode code. The subaddress is switched to the mode
// code value 0 unless it already selects a mode code.
func (c *CommandWord) SetModeCode(m ModeCode) {
	if !c.IsModeCode() {
		c.set(fieldCommandSubaddr, ModeCodeSubaddress)
	}
	c.set(fieldCommandWordCount, uint8(m))
}

// WithModeCode returns a copy with the mode code set
func (c CommandWord) WithModeCode(m ModeCode) CommandWord {
	c.SetModeCode(m)
	return c
}

// WordCount returns the number of data words, or false for mode commands.
// A raw count of 0 means 32 words.
func (c CommandWord) WordCount() (int, bool) {
	if c.IsModeCode() {
		return 0, false
	}
	n := int(fieldCommandWordCount.Get(c.data))
	if n == 0 {
		n = MaxDataWords
	}
	return n, true
}

// SetWordCount stores a word count of 1..32 (32 is encoded as 0)
func (c *CommandWord) SetWordCount(n int) {
	c.set(fieldCommandWordCount, uint8(n%MaxDataWords))
}

// WithWordCount returns a copy with the word count set
func (c CommandWord) WithWordCount(n int) CommandWord {
	c.SetWordCount(n)
	return c
}

// DataCount returns the number of data words that follow this command in
// its message: the word count, or 0/1 for mode codes.
func (c CommandWord) DataCount() int {
	if m, ok := c.ModeCode(); ok {
		if m.HasData() {
			return 1
		}
		return 0
	}
	n, _ := c.WordCount()
	return n
}

func (c CommandWord) String() string {
	if m, ok := c.ModeCode(); ok {
		return fmt.Sprintf("%s-%s-%s %s", c.Address(), c.TransmitReceive(), c.Subaddress(), m)
	}
	n, _ := c.WordCount()
	return fmt.Sprintf("%s-%s-%s-%02d", c.Address(), c.TransmitReceive(), c.Subaddress(), n)
}

//////////////////////////////////////////////////////////////
// Status Word
//////////////////////////////////////////////////////////////

// StatusWord is returned by a remote terminal in response to a command
type StatusWord struct {
	data   uint16
	parity uint8
}

// NewStatusWord creates a status word and computes its parity
func NewStatusWord(value uint16) StatusWord {
	return StatusWord{data: value, parity: Parity(value)}
}

// StatusWordFromBytes creates a status word from big-endian bytes
func StatusWordFromBytes(b [2]byte) StatusWord {
	return NewStatusWord(uint16(b[0])<<8 | uint16(b[1]))
}

// StatusWordWithParity creates a status word with the parity bit as given
func StatusWordWithParity(value uint16, parity uint8) StatusWord {
	return StatusWord{data: value, parity: parity & 1}
}

// Value returns the 16-bit body
func (s StatusWord) Value() uint16 { return s.data }

// Bytes returns the body as big-endian bytes
func (s StatusWord) Bytes() [2]byte { return [2]byte{byte(s.data >> 8), byte(s.data)} }

// Parity returns the stored parity bit
func (s StatusWord) Parity() uint8 { return s.parity }

// CalculateParity returns the parity bit the body requires
func (s StatusWord) CalculateParity() uint8 { return Parity(s.data) }

// CheckParity returns true if the stored parity matches the body
func (s StatusWord) CheckParity() bool { return s.parity == Parity(s.data) }

// IsValid returns true if parity is correct and no reserved bit is used
func (s StatusWord) IsValid() bool {
	return s.CheckParity() && !s.Reserved().IsSet()
}

// Build validates parity and the reserved bits
func (s StatusWord) Build() (StatusWord, error) {
	if !s.CheckParity() {
		return s, ErrInvalidWord
	}
	if s.Reserved().IsSet() {
		return s, ErrWordIsInvalid
	}
	return s, nil
}

func (s *StatusWord) set(f Field, v uint8) {
	s.data = f.Set(s.data, v)
	s.parity = Parity(s.data)
}

// Address returns the responding terminal's address
func (s StatusWord) Address() Address { return Address(fieldStatusAddress.Get(s.data)) }

// SetAddress sets the terminal address
func (s *StatusWord) SetAddress(a Address) { s.set(fieldStatusAddress, uint8(a)) }

// WithAddress returns a copy with the terminal address set
func (s StatusWord) WithAddress(a Address) StatusWord {
	s.SetAddress(a)
	return s
}

// MessageError returns the message error bit
func (s StatusWord) MessageError() MessageErrorFlag {
	return MessageErrorFlag(fieldStatusMessageError.Get(s.data))
}

// SetMessageError sets the message error bit
func (s *StatusWord) SetMessageError(f MessageErrorFlag) { s.set(fieldStatusMessageError, uint8(f)) }

// WithMessageError returns a copy with the message error bit set
func (s StatusWord) WithMessageError(f MessageErrorFlag) StatusWord {
	s.SetMessageError(f)
	return s
}

// Instrumentation returns the instrumentation bit
func (s StatusWord) Instrumentation() Instrumentation {
	return Instrumentation(fieldStatusInstrumentation.Get(s.data))
}

// SetInstrumentation sets the instrumentation bit
func (s *StatusWord) SetInstrumentation(i Instrumentation) {
	s.set(fieldStatusInstrumentation, uint8(i))
}

// WithInstrumentation returns a copy with the instrumentation bit set
func (s StatusWord) WithInstrumentation(i Instrumentation) StatusWord {
	s.SetInstrumentation(i)
	return s
}

// ServiceRequest returns the service request bit
func (s StatusWord) ServiceRequest() ServiceRequest {
	return ServiceRequest(fieldStatusServiceRequest.Get(s.data))
}

// SetServiceRequest sets the service request bit
func (s *StatusWord) SetServiceRequest(r ServiceRequest) {
	s.set(fieldStatusServiceRequest, uint8(r))
}

// WithServiceRequest returns a copy with the service request bit set
func (s StatusWord) WithServiceRequest(r ServiceRequest) StatusWord {
	s.SetServiceRequest(r)
	return s
}

// Reserved returns the three reserved bits
func (s StatusWord) Reserved() Reserved { return Reserved(fieldStatusReserved.Get(s.data)) }

// SetReserved sets the reserved bits (a non-zero value makes the word invalid)
func (s *StatusWord) SetReserved(r Reserved) { s.set(fieldStatusReserved, uint8(r)) }

// WithReserved returns a copy with the reserved bits set
func (s StatusWord) WithReserved(r Reserved) StatusWord {
	s.SetReserved(r)
	return s
}

// BroadcastReceived returns the broadcast command received bit
func (s StatusWord) BroadcastReceived() BroadcastReceived {
	return BroadcastReceived(fieldStatusBroadcastReceived.Get(s.data))
}

// SetBroadcastReceived sets the broadcast command received bit
func (s *StatusWord) SetBroadcastReceived(b BroadcastReceived) {
	s.set(fieldStatusBroadcastReceived, uint8(b))
}

// WithBroadcastReceived returns a copy with the broadcast received bit set
func (s StatusWord) WithBroadcastReceived(b BroadcastReceived) StatusWord {
	s.SetBroadcastReceived(b)
	return s
}

// Busy returns the busy bit
func (s StatusWord) Busy() TerminalBusy { return TerminalBusy(fieldStatusBusy.Get(s.data)) }

// SetBusy sets the busy bit
func (s *StatusWord) SetBusy(b TerminalBusy) { s.set(fieldStatusBusy, uint8(b)) }

// WithBusy returns a copy with the busy bit set
func (s StatusWord) WithBusy(b TerminalBusy) StatusWord {
	s.SetBusy(b)
	return s
}

// SubsystemFlag returns the subsystem flag bit
func (s StatusWord) SubsystemFlag() SubsystemFlag {
	return SubsystemFlag(fieldStatusSubsystemFlag.Get(s.data))
}

// SetSubsystemFlag sets the subsystem flag bit
func (s *StatusWord) SetSubsystemFlag(f SubsystemFlag) { s.set(fieldStatusSubsystemFlag, uint8(f)) }

// WithSubsystemFlag returns a copy with the subsystem flag set
func (s StatusWord) WithSubsystemFlag(f SubsystemFlag) StatusWord {
	s.SetSubsystemFlag(f)
	return s
}

// BusControlAccept returns the dynamic bus control acceptance bit
func (s StatusWord) BusControlAccept() BusControlAccept {
	return BusControlAccept(fieldStatusBusControlAccept.Get(s.data))
}

// SetBusControlAccept sets the dynamic bus control acceptance bit
func (s *StatusWord) SetBusControlAccept(b BusControlAccept) {
	s.set(fieldStatusBusControlAccept, uint8(b))
}

// WithBusControlAccept returns a copy with the bus control acceptance bit set
func (s StatusWord) WithBusControlAccept(b BusControlAccept) StatusWord {
	s.SetBusControlAccept(b)
	return s
}

// TerminalFlag returns the terminal flag bit
func (s StatusWord) TerminalFlag() TerminalFlag {
	return TerminalFlag(fieldStatusTerminalFlag.Get(s.data))
}

// SetTerminalFlag sets the terminal flag bit
func (s *StatusWord) SetTerminalFlag(f TerminalFlag) { s.set(fieldStatusTerminalFlag, uint8(f)) }

// WithTerminalFlag returns a copy with the terminal flag set
func (s StatusWord) WithTerminalFlag(f TerminalFlag) StatusWord {
	s.SetTerminalFlag(f)
	return s
}

// IsError returns true if the terminal reported a message error, a
// subsystem fault or a terminal fault
func (s StatusWord) IsError() bool {
	return s.MessageError().IsSet() || s.SubsystemFlag().IsSet() || s.TerminalFlag().IsSet()
}

func (s StatusWord) String() string {
	flags := []string{}
	if s.MessageError().IsSet() {
		flags = append(flags, "ME")
	}
	if s.Instrumentation() == InstrumentationCommand {
		flags = append(flags, "INSTR")
	}
	if s.ServiceRequest().IsSet() {
		flags = append(flags, "SR")
	}
	if s.Reserved().IsSet() {
		flags = append(flags, "RSV")
	}
	if s.BroadcastReceived().IsSet() {
		flags = append(flags, "BCR")
	}
	if s.Busy().IsSet() {
		flags = append(flags, "BUSY")
	}
	if s.SubsystemFlag().IsSet() {
		flags = append(flags, "SSF")
	}
	if s.BusControlAccept().IsSet() {
		flags = append(flags, "DBCA")
	}
	if s.TerminalFlag().IsSet() {
		flags = append(flags, "TF")
	}
	if len(flags) == 0 {
		return s.Address().String()
	}
	return fmt.Sprintf("%s [%s]", s.Address(), strings.Join(flags, " "))
}

//////////////////////////////////////////////////////////////
// Data Word
//////////////////////////////////////////////////////////////

// DataWord carries 16 bits of payload
type DataWord struct {
	data   uint16
	parity uint8
}

// NewDataWord creates a data word and computes its parity
func NewDataWord(value uint16) DataWord {
	return DataWord{data: value, parity: Parity(value)}
}

// DataWordFromBytes creates a data word from big-endian bytes
func DataWordFromBytes(b [2]byte) DataWord {
	return NewDataWord(uint16(b[0])<<8 | uint16(b[1]))
}

// DataWordWithParity creates a data word with the parity bit as given
func DataWordWithParity(value uint16, parity uint8) DataWord {
	return DataWord{data: value, parity: parity & 1}
}

// NewDataWordFromString packs the first two bytes of s into a data word.
// Shorter strings are padded with zero bytes.
func NewDataWordFromString(s string) DataWord {
	var b [2]byte
	copy(b[:], s)
	return DataWordFromBytes(b)
}

// Value returns the 16-bit body
func (d DataWord) Value() uint16 { return d.data }

// Bytes returns the body as big-endian bytes
func (d DataWord) Bytes() [2]byte { return [2]byte{byte(d.data >> 8), byte(d.data)} }

// Parity returns the stored parity bit
func (d DataWord) Parity() uint8 { return d.parity }

// CalculateParity returns the parity bit the body requires
func (d DataWord) CalculateParity() uint8 { return Parity(d.data) }

// CheckParity returns true if the stored parity matches the body
func (d DataWord) CheckParity() bool { return d.parity == Parity(d.data) }

// IsValid returns true if the word has correct parity
func (d DataWord) IsValid() bool { return d.CheckParity() }

// Build validates the word
func (d DataWord) Build() (DataWord, error) {
	if !d.CheckParity() {
		return d, ErrInvalidWord
	}
	return d, nil
}

// SetValue replaces the body and recomputes parity
func (d *DataWord) SetValue(v uint16) {
	d.data = v
	d.parity = Parity(v)
}

// WithValue returns a copy with the body replaced
func (d DataWord) WithValue(v uint16) DataWord {
	d.SetValue(v)
	return d
}

// Text returns the two body bytes as text, without trailing zero bytes
func (d DataWord) Text() string {
	b := d.Bytes()
	return strings.TrimRight(string(b[:]), "\x00")
}

func (d DataWord) String() string {
	return fmt.Sprintf("0x%04X", d.data)
}
