// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "fmt"

// maxInvalidRun is the number of consecutive invalid packets after which a
// locked decoder goes back to hunting for word alignment
const maxInvalidRun = 3

// DecodeError reports a packet that failed its sync or parity check
type DecodeError struct {
	Packet Packet
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid packet (%s): %v", e.Packet, e.Err)
}

// Unwrap returns the underlying sentinel
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns a byte stream of packed 20-bit words into packets.
//
// Until the first valid packet is seen the decoder slides one bit at a time
// looking for word alignment. Once locked it emits a packet every 20 bits.
type Decoder struct {
	state       int
	acc         uint32
	nbits       uint
	invalidRun  int
	skippedBits uint64
	rawBuffer   []byte
}

// NewDecoder creates a new word decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateHunting,
		rawBuffer: make([]byte, 0, 8),
	}
}

// Reset drops any partial word and returns to hunting
func (d *Decoder) Reset() {
	d.state = stateHunting
	d.acc = 0
	d.nbits = 0
	d.invalidRun = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// Locked returns true once word alignment has been found
func (d *Decoder) Locked() bool {
	return d.state == stateLocked
}

// SkippedBits returns the number of bits discarded while hunting
func (d *Decoder) SkippedBits() uint64 {
	return d.skippedBits
}

// GetRawBytes returns the bytes received since the last packet
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// packetFromRaw splits a right-aligned 20-bit value into a packet
func packetFromRaw(raw uint32) Packet {
	return NewPacket(uint8(raw>>17), uint16(raw>>1), uint8(raw))
}

// top returns the oldest 20 buffered bits
func (d *Decoder) top() uint32 {
	return (d.acc >> (d.nbits - WordBits)) & 0xFFFFF
}

// keep discards the oldest buffered bits, leaving only the newest n
func (d *Decoder) keep(n uint) {
	d.nbits = n
	d.acc &= (uint32(1) << n) - 1
}

// DecodeByte feeds one byte to the decoder.
// Returns a packet when a word completes, or nil if more bits are needed.
// Invalid packets on a locked stream are returned as *DecodeError.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)
	d.acc = d.acc<<8 | uint32(b)
	d.nbits += 8

	switch d.state {
	case stateHunting:
		for d.nbits >= WordBits {
			p := packetFromRaw(d.top())
			if p.IsValid() {
				d.keep(d.nbits - WordBits)
				d.state = stateLocked
				d.invalidRun = 0
				d.rawBuffer = d.rawBuffer[:0]
				return &p, nil
			}
			d.keep(d.nbits - 1)
			d.skippedBits++
		}
		return nil, nil

	case stateLocked:
		if d.nbits < WordBits {
			return nil, nil
		}
		p := packetFromRaw(d.top())
		d.keep(d.nbits - WordBits)
		d.rawBuffer = d.rawBuffer[:0]

		if !p.IsValid() {
			d.invalidRun++
			if d.invalidRun >= maxInvalidRun {
				d.state = stateHunting
				d.invalidRun = 0
			}
			return nil, &DecodeError{Packet: p, Err: ErrReservedUsed}
		}
		d.invalidRun = 0
		return &p, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// DecodeBytes feeds a buffer to the decoder and collects every packet.
// Decode errors are collected alongside; decoding continues past them.
func (d *Decoder) DecodeBytes(data []byte) ([]Packet, []error) {
	packets := []Packet{}
	errs := []error{}
	for _, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p != nil {
			packets = append(packets, *p)
		}
	}
	return packets, errs
}
