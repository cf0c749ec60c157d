// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"fmt"
	"math/bits"
)

// Packet is a single 20-bit transmission unit: sync, body and parity
type Packet struct {
	sync   uint8
	body   [2]byte
	parity uint8
}

// NewPacket creates a packet from its raw parts. Sync keeps its low 3 bits,
// parity its low bit.
func NewPacket(sync uint8, value uint16, parity uint8) Packet {
	return Packet{
		sync:   sync & 0b111,
		body:   [2]byte{byte(value >> 8), byte(value)},
		parity: parity & 1,
	}
}

// NewDataPacket creates a packet carrying a data sync
func NewDataPacket(value uint16, parity uint8) Packet {
	return NewPacket(SyncData, value, parity)
}

// NewServicePacket creates a packet carrying a command/status sync
func NewServicePacket(value uint16, parity uint8) Packet {
	return NewPacket(SyncService, value, parity)
}

// Parity returns the odd parity bit for value: 1 when value has an even
// number of set bits.
func Parity(value uint16) uint8 {
	if bits.OnesCount16(value)%2 == 0 {
		return 1
	}
	return 0
}

// bytesNeeded returns how many bytes a 20-bit word touches at offset
func bytesNeeded(offset int) int {
	if offset <= 4 {
		return 3
	}
	return 4
}

// ReadPacket extracts a packet starting offset bits into buf.
// The offset must be in 0..12.
func ReadPacket(buf []byte, offset int) (Packet, error) {
	if offset < 0 || offset > MaxBitOffset {
		return Packet{}, fmt.Errorf("bit offset %d: %w", offset, ErrOutOfBounds)
	}
	need := bytesNeeded(offset)
	if len(buf) < need {
		return Packet{}, fmt.Errorf("need %d bytes at offset %d, have %d: %w", need, offset, len(buf), ErrOutOfBounds)
	}

	var window uint32
	window = uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8
	if len(buf) > 3 {
		window |= uint32(buf[3])
	}

	v := (window << uint(offset)) >> 12

	sync := uint8((v >> 17) & 0b111)
	body := uint16((v >> 1) & 0xFFFF)
	parity := uint8(v & 1)

	return NewPacket(sync, body, parity), nil
}

// Write stores the packet offset bits into buf, leaving all bits outside the
// 20-bit span untouched. Offsets outside 0..12 are clamped.
func (p Packet) Write(buf []byte, offset int) error {
	if offset < 0 {
		offset = 0
	}
	if offset > MaxBitOffset {
		offset = MaxBitOffset
	}
	need := bytesNeeded(offset)
	if len(buf) < need {
		return fmt.Errorf("need %d bytes at offset %d, have %d: %w", need, offset, len(buf), ErrOutOfBounds)
	}

	raw := uint32(p.sync)<<17 | uint32(p.Value())<<1 | uint32(p.parity)
	value := (raw << 12) >> uint(offset)
	mask := (uint32(0xFFFFF) << 12) >> uint(offset)

	for i := 0; i < need; i++ {
		shift := uint(24 - 8*i)
		m := byte(mask >> shift)
		buf[i] = (buf[i] &^ m) | (byte(value>>shift) & m)
	}

	return nil
}

// Sync returns the 3-bit sync pattern
func (p Packet) Sync() uint8 {
	return p.sync
}

// Body returns the body bytes (big endian)
func (p Packet) Body() [2]byte {
	return p.body
}

// Value returns the body as a 16-bit value
func (p Packet) Value() uint16 {
	return uint16(p.body[0])<<8 | uint16(p.body[1])
}

// ParityBit returns the parity bit carried by the packet
func (p Packet) ParityBit() uint8 {
	return p.parity
}

// CheckParity returns true if the parity bit matches the body
func (p Packet) CheckParity() bool {
	return p.parity == Parity(p.Value())
}

// CheckSync returns true if the sync is one of the two legal patterns
func (p Packet) CheckSync() bool {
	return p.sync == SyncData || p.sync == SyncService
}

// IsValid returns true if both sync and parity are correct
func (p Packet) IsValid() bool {
	return p.CheckSync() && p.CheckParity()
}

// IsData returns true if the packet carries a data sync
func (p Packet) IsData() bool {
	return p.sync == SyncData
}

// IsService returns true if the packet carries a command/status sync
func (p Packet) IsService() bool {
	return p.sync == SyncService
}

// AsCommand converts a service packet into a command word
func (p Packet) AsCommand() (CommandWord, error) {
	if !p.IsService() {
		return CommandWord{}, ErrPacketIsInvalid
	}
	if !p.CheckParity() {
		return CommandWord{}, ErrInvalidWord
	}
	return CommandWordWithParity(p.Value(), p.parity), nil
}

// AsStatus converts a service packet into a status word
func (p Packet) AsStatus() (StatusWord, error) {
	if !p.IsService() {
		return StatusWord{}, ErrPacketIsInvalid
	}
	if !p.CheckParity() {
		return StatusWord{}, ErrInvalidWord
	}
	return StatusWordWithParity(p.Value(), p.parity), nil
}

// AsData converts a data packet into a data word
func (p Packet) AsData() (DataWord, error) {
	if !p.IsData() {
		return DataWord{}, ErrPacketIsInvalid
	}
	if !p.CheckParity() {
		return DataWord{}, ErrInvalidWord
	}
	return DataWordWithParity(p.Value(), p.parity), nil
}

// String returns a compact description of the packet
func (p Packet) String() string {
	return fmt.Sprintf("sync=%03b body=0x%04X parity=%d", p.sync, p.Value(), p.parity)
}
