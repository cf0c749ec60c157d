// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "fmt"

// wordPosition returns the byte index and bit offset of word i in a
// stream of back-to-back 20-bit words
func wordPosition(i int) (int, int) {
	bit := i * WordBits
	return bit / 8, bit % 8
}

// EncodedLen returns the number of bytes needed for n packed words
func EncodedLen(n int) int {
	return (n*WordBits + 7) / 8
}

// EncodeWords packs words back to back into a new buffer.
// Unused trailing bits are zero.
func EncodeWords(words []Word) ([]byte, error) {
	buf := make([]byte, EncodedLen(len(words)))
	for i, w := range words {
		index, offset := wordPosition(i)
		if err := w.Packet().Write(buf[index:], offset); err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
	}
	return buf, nil
}

// MustEncodeWords is like EncodeWords but panics on error
func MustEncodeWords(words []Word) []byte {
	data, err := EncodeWords(words)
	if err != nil {
		panic(fmt.Sprintf("mil1553: encode error: %v", err))
	}
	return data
}

// Bytes packs the message words into their wire form
func (m *Message) Bytes() ([]byte, error) {
	return EncodeWords(m.words[:m.count])
}

// ReadWordPacket reads the i-th packed word from data
func ReadWordPacket(data []byte, i int) (Packet, error) {
	index, offset := wordPosition(i)
	if index >= len(data) {
		return Packet{}, fmt.Errorf("word %d: %w", i, ErrOutOfBounds)
	}
	return ReadPacket(data[index:], offset)
}

// ReadCommand parses a command-led request limb from packed words.
// The format is inferred from the leading command; a receive command
// directly followed by a second command is read as RT to RT.
func ReadCommand(data []byte) (*Message, error) {
	first, err := ReadWordPacket(data, 0)
	if err != nil {
		return nil, err
	}
	if !first.IsValid() {
		return nil, ErrReservedUsed
	}
	cmd, err := first.AsCommand()
	if err != nil {
		return nil, err
	}

	followed := false
	if second, err := ReadWordPacket(data, 1); err == nil && second.IsValid() && second.IsService() {
		followed = true
	}

	msg := NewMessage(InferDirection(cmd, followed), InferType(cmd), Receiving)
	if err := msg.Parse(first); err != nil {
		return nil, err
	}

	for i := 1; !msg.IsComplete(); i++ {
		p, err := ReadWordPacket(data, i)
		if err != nil {
			return nil, err
		}
		if err := msg.Parse(p); err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
	}

	return msg, nil
}

// ReadStatus parses a status-led response limb from packed words.
// Data words are read until the buffer ends or a non-data packet appears.
func ReadStatus(data []byte) (*Message, error) {
	first, err := ReadWordPacket(data, 0)
	if err != nil {
		return nil, err
	}
	if !first.IsValid() {
		return nil, ErrReservedUsed
	}

	direction := BcToRt
	if second, err := ReadWordPacket(data, 1); err == nil && second.IsValid() && second.IsData() {
		direction = RtToBc
	}

	msg := NewMessage(direction, Directed, Sending)
	if err := msg.Parse(first); err != nil {
		return nil, err
	}

	for i := 1; msg.HasSpace(); i++ {
		p, err := ReadWordPacket(data, i)
		if err != nil || !p.IsValid() || !p.IsData() {
			break
		}
		if err := msg.Parse(p); err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
	}

	return msg, nil
}
