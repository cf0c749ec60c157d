// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch10

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/milbus/pkg/mil1553"
)

const (
	csdwSize = 4
	iptsSize = 8
	ipdhSize = 6
)

// Block status word bits
const (
	BlockStatusBusB            uint16 = 1 << 13
	BlockStatusMessageError    uint16 = 1 << 12
	BlockStatusRTToRT          uint16 = 1 << 11
	BlockStatusFormatError     uint16 = 1 << 10
	BlockStatusResponseTimeout uint16 = 1 << 9
	BlockStatusWordCountError  uint16 = 1 << 5
	BlockStatusSyncTypeError   uint16 = 1 << 4
	BlockStatusInvalidWord     uint16 = 1 << 3
)

// MIL1553Message is one bus message of a format 1 packet
type MIL1553Message struct {
	IPTS        uint64
	BlockStatus uint16
	GapTime     uint16
	Data        []uint16
}

// MIL1553Info is the decoded body of a format 1 packet. ParseError holds the
// first structural problem found; the messages before it are kept.
type MIL1553Info struct {
	CSDW         uint32
	TTB          uint8
	MessageCount uint32
	Messages     []MIL1553Message
	ParseError   string
}

// ParseMIL1553Format1 decodes a format 1 packet body
func ParseMIL1553Format1(body []byte) *MIL1553Info {
	info := &MIL1553Info{}
	if len(body) == 0 {
		info.ParseError = "payload empty"
		return info
	}
	if len(body) < csdwSize {
		info.ParseError = "payload shorter than CSDW"
		return info
	}

	info.CSDW = binary.BigEndian.Uint32(body[0:4])
	info.TTB = uint8((info.CSDW >> 30) & 0x3)
	info.MessageCount = info.CSDW & 0x00FFFFFF
	cursor := csdwSize
	end := len(body)

	for msgIdx := uint32(0); msgIdx < info.MessageCount; msgIdx++ {
		if cursor+iptsSize > end {
			info.ParseError = fmt.Sprintf("message %d missing IPTS", msgIdx+1)
			break
		}
		msg := MIL1553Message{IPTS: binary.BigEndian.Uint64(body[cursor : cursor+iptsSize])}
		cursor += iptsSize

		if cursor+ipdhSize > end {
			info.ParseError = fmt.Sprintf("message %d missing IPDH", msgIdx+1)
			return info
		}
		msg.BlockStatus = binary.BigEndian.Uint16(body[cursor : cursor+2])
		msg.GapTime = binary.BigEndian.Uint16(body[cursor+2 : cursor+4])
		msgLen := int(binary.BigEndian.Uint16(body[cursor+4 : cursor+6]))
		cursor += ipdhSize

		if msgLen%2 != 0 {
			info.ParseError = fmt.Sprintf("message %d has odd length %d", msgIdx+1, msgLen)
			return info
		}
		if cursor+msgLen > end {
			info.ParseError = fmt.Sprintf("message %d extends past payload", msgIdx+1)
			return info
		}
		msg.Data = make([]uint16, msgLen/2)
		for i := range msg.Data {
			msg.Data[i] = binary.BigEndian.Uint16(body[cursor+2*i:])
		}
		info.Messages = append(info.Messages, msg)
		cursor += msgLen
	}

	if info.ParseError == "" && info.MessageCount != uint32(len(info.Messages)) {
		info.ParseError = fmt.Sprintf("message count mismatch: expected %d, parsed %d", info.MessageCount, len(info.Messages))
	}
	return info
}

// BuildMIL1553Format1 encodes messages as a format 1 packet body
func BuildMIL1553Format1(msgs []MIL1553Message) []byte {
	size := csdwSize
	for _, m := range msgs {
		size += iptsSize + ipdhSize + 2*len(m.Data)
	}
	body := make([]byte, size)
	binary.BigEndian.PutUint32(body[0:4], uint32(len(msgs))&0x00FFFFFF)

	cursor := csdwSize
	for _, m := range msgs {
		binary.BigEndian.PutUint64(body[cursor:], m.IPTS)
		cursor += iptsSize
		binary.BigEndian.PutUint16(body[cursor:], m.BlockStatus)
		binary.BigEndian.PutUint16(body[cursor+2:], m.GapTime)
		binary.BigEndian.PutUint16(body[cursor+4:], uint16(2*len(m.Data)))
		cursor += ipdhSize
		for _, v := range m.Data {
			binary.BigEndian.PutUint16(body[cursor:], v)
			cursor += 2
		}
	}
	return body
}

// IsBusB reports whether the message was recorded on the secondary bus
func (m MIL1553Message) IsBusB() bool {
	return m.BlockStatus&BlockStatusBusB != 0
}

// HasError reports whether the recorder flagged the message
func (m MIL1553Message) HasError() bool {
	return m.BlockStatus&(BlockStatusMessageError|BlockStatusFormatError|
		BlockStatusResponseTimeout|BlockStatusWordCountError|
		BlockStatusSyncTypeError|BlockStatusInvalidWord) != 0
}

// layout returns the word kinds the message format places on the bus
func (m MIL1553Message) layout() []mil1553.WordType {
	if len(m.Data) == 0 {
		return nil
	}
	cw, sw, dw := mil1553.WordCommand, mil1553.WordStatus, mil1553.WordData
	cmd := mil1553.NewCommandWord(m.Data[0])
	broadcast := cmd.IsBroadcast()

	data := func(n int) []mil1553.WordType {
		out := make([]mil1553.WordType, n)
		for i := range out {
			out[i] = dw
		}
		return out
	}

	var kinds []mil1553.WordType
	if m.BlockStatus&BlockStatusRTToRT != 0 {
		count := 0
		if len(m.Data) > 1 {
			count = mil1553.NewCommandWord(m.Data[1]).DataCount()
		}
		kinds = append([]mil1553.WordType{cw, cw, sw}, data(count)...)
		if !broadcast {
			kinds = append(kinds, sw)
		}
		return kinds
	}

	switch mil1553.InferDirection(cmd, false) {
	case mil1553.BcToRt:
		kinds = append([]mil1553.WordType{cw}, data(cmd.DataCount())...)
		if !broadcast {
			kinds = append(kinds, sw)
		}
	case mil1553.RtToBc:
		kinds = append([]mil1553.WordType{cw, sw}, data(cmd.DataCount())...)
	case mil1553.ModeWithDataT:
		kinds = []mil1553.WordType{cw, sw, dw}
	case mil1553.ModeWithDataR:
		kinds = []mil1553.WordType{cw, dw}
		if !broadcast {
			kinds = append(kinds, sw)
		}
	default:
		kinds = []mil1553.WordType{cw}
		if !broadcast {
			kinds = append(kinds, sw)
		}
	}
	return kinds
}

// Words rebuilds typed words from the recorded 16-bit values. The recorder
// only stores words that passed parity, so parity is recomputed. Words past
// the end of the format are typed as data.
func (m MIL1553Message) Words() []mil1553.Word {
	kinds := m.layout()
	out := make([]mil1553.Word, len(m.Data))
	for i, v := range m.Data {
		kind := mil1553.WordData
		if i < len(kinds) {
			kind = kinds[i]
		}
		out[i] = mil1553.NewWord(kind, v, mil1553.Parity(v))
	}
	return out
}

// Packets returns the message as the packet stream a bus monitor would see
func (m MIL1553Message) Packets() []mil1553.Packet {
	words := m.Words()
	out := make([]mil1553.Packet, len(words))
	for i, w := range words {
		out[i] = w.Packet()
	}
	return out
}
