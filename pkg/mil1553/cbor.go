// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wordCBOR is the wire form of a Word: [type, value, parity]
type wordCBOR struct {
	_      struct{} `cbor:",toarray"`
	Type   uint8
	Value  uint16
	Parity uint8
}

// messageCBOR is the wire form of a Message: [direction, type, side, [words...]]
type messageCBOR struct {
	_         struct{} `cbor:",toarray"`
	Direction uint8
	Type      uint8
	Side      uint8
	Words     []Word
}

// MarshalCBOR implements cbor.Marshaler
func (w Word) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wordCBOR{Type: uint8(w.kind), Value: w.data, Parity: w.parity})
}

// UnmarshalCBOR implements cbor.Unmarshaler
func (w *Word) UnmarshalCBOR(data []byte) error {
	var v wordCBOR
	if err := cbor.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode word: %w", err)
	}
	if WordType(v.Type) > WordData {
		return fmt.Errorf("word type out of range: %d", v.Type)
	}
	if v.Parity > 1 {
		return fmt.Errorf("parity out of range: %d", v.Parity)
	}
	*w = NewWord(WordType(v.Type), v.Value, v.Parity)
	return nil
}

// MarshalCBOR implements cbor.Marshaler
func (m *Message) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(messageCBOR{
		Direction: uint8(m.direction),
		Type:      uint8(m.kind),
		Side:      uint8(m.side),
		Words:     m.words[:m.count],
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
// Words are restored as recorded; format rules are not re-applied.
func (m *Message) UnmarshalCBOR(data []byte) error {
	var v messageCBOR
	if err := cbor.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if MessageDirection(v.Direction) > ModeWithDataR {
		return fmt.Errorf("message direction out of range: %d", v.Direction)
	}
	if MessageType(v.Type) > Broadcast || MessageSide(v.Side) > Receiving {
		return fmt.Errorf("message type or side out of range: %d/%d", v.Type, v.Side)
	}
	if len(v.Words) > MaxWords {
		return fmt.Errorf("too many words: %d: %w", len(v.Words), ErrMessageFull)
	}

	*m = Message{
		direction: MessageDirection(v.Direction),
		kind:      MessageType(v.Type),
		side:      MessageSide(v.Side),
	}
	for _, w := range v.Words {
		if err := m.push(w); err != nil {
			return err
		}
	}
	return nil
}
