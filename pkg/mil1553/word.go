// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "fmt"

// WordType identifies the kind of word held by a Word
type WordType uint8

const (
	WordNone WordType = iota
	WordCommand
	WordStatus
	WordData
)

func (t WordType) String() string {
	switch t {
	case WordCommand:
		return "COMMAND"
	case WordStatus:
		return "STATUS"
	case WordData:
		return "DATA"
	default:
		return "NONE"
	}
}

// Word is a container for any of the three word kinds
type Word struct {
	kind   WordType
	data   uint16
	parity uint8
}

// NewWord creates a word of the given kind with the parity as given
func NewWord(kind WordType, value uint16, parity uint8) Word {
	return Word{kind: kind, data: value, parity: parity & 1}
}

// FromCommand wraps a command word
func FromCommand(c CommandWord) Word {
	return Word{kind: WordCommand, data: c.Value(), parity: c.Parity()}
}

// FromStatus wraps a status word
func FromStatus(s StatusWord) Word {
	return Word{kind: WordStatus, data: s.Value(), parity: s.Parity()}
}

// FromData wraps a data word
func FromData(d DataWord) Word {
	return Word{kind: WordData, data: d.Value(), parity: d.Parity()}
}

// Type returns the kind of word held
func (w Word) Type() WordType { return w.kind }

// Value returns the 16-bit body
func (w Word) Value() uint16 { return w.data }

// Parity returns the stored parity bit
func (w Word) Parity() uint8 { return w.parity }

// IsNone returns true for the zero Word
func (w Word) IsNone() bool { return w.kind == WordNone }

// CheckParity returns true if the stored parity matches the body
func (w Word) CheckParity() bool { return w.parity == Parity(w.data) }

// IsValid returns true if the held word is valid for its kind
func (w Word) IsValid() bool {
	switch w.kind {
	case WordCommand:
		return CommandWordWithParity(w.data, w.parity).IsValid()
	case WordStatus:
		return StatusWordWithParity(w.data, w.parity).IsValid()
	case WordData:
		return DataWordWithParity(w.data, w.parity).IsValid()
	default:
		return false
	}
}

// AsCommand returns the held command word
func (w Word) AsCommand() (CommandWord, error) {
	if w.kind != WordCommand {
		return CommandWord{}, fmt.Errorf("word is %s: %w", w.kind, ErrWordIsInvalid)
	}
	return CommandWordWithParity(w.data, w.parity), nil
}

// AsStatus returns the held status word
func (w Word) AsStatus() (StatusWord, error) {
	if w.kind != WordStatus {
		return StatusWord{}, fmt.Errorf("word is %s: %w", w.kind, ErrWordIsInvalid)
	}
	return StatusWordWithParity(w.data, w.parity), nil
}

// AsData returns the held data word
func (w Word) AsData() (DataWord, error) {
	if w.kind != WordData {
		return DataWord{}, fmt.Errorf("word is %s: %w", w.kind, ErrWordIsInvalid)
	}
	return DataWordWithParity(w.data, w.parity), nil
}

// Packet returns the wire form of the word
func (w Word) Packet() Packet {
	switch w.kind {
	case WordData:
		return NewDataPacket(w.data, w.parity)
	case WordCommand, WordStatus:
		return NewServicePacket(w.data, w.parity)
	default:
		return NewPacket(0, w.data, w.parity)
	}
}

func (w Word) String() string {
	switch w.kind {
	case WordCommand:
		return "CMD " + CommandWordWithParity(w.data, w.parity).String()
	case WordStatus:
		return "STS " + StatusWordWithParity(w.data, w.parity).String()
	case WordData:
		return fmt.Sprintf("DAT 0x%04X", w.data)
	default:
		return "NONE"
	}
}

//////////////////////////////////////////////////////////////
// Custom Words
//////////////////////////////////////////////////////////////

// CustomWord is implemented by application types carried in data words
type CustomWord interface {
	// FromDataWord populates the value from a data word
	FromDataWord(d DataWord) error
	// ToDataWord encodes the value into a data word
	ToDataWord() DataWord
}

// DecodeCustom fills v from the data word held by w
func DecodeCustom(w Word, v CustomWord) error {
	d, err := w.AsData()
	if err != nil {
		return err
	}
	if !d.IsValid() {
		return ErrInvalidWord
	}
	return v.FromDataWord(d)
}

// EncodeCustom wraps a custom value in a data Word
func EncodeCustom(v CustomWord) Word {
	return FromData(v.ToDataWord())
}
