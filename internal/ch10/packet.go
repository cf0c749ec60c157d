// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ch10 reads and writes the subset of IRIG-106 Chapter 10 recorder
// files that carries MIL-STD-1553 traffic.
package ch10

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	syncPattern         = 0xEB25
	primaryHeaderSize   = 20
	secondaryHeaderSize = 12
	checksumSpan        = 16
	defaultResyncWindow = 64 * 1024
	maxPacketSize       = 16 << 20

	packetFlagSecondaryHdr = 0x80
)

// Data types handled by this package
const (
	DataTypeMIL1553Format1 uint16 = 0x18
)

var (
	ErrNoSync         = errors.New("sync pattern 0xEB25 not found at expected position")
	ErrHeaderChecksum = errors.New("primary header checksum mismatch")
	ErrPacketLength   = errors.New("packet length inconsistent with data length")
)

// PacketHeader is the primary header that opens every packet
type PacketHeader struct {
	Sync         uint16
	ChannelID    uint16
	PacketLength uint32 // bytes following the sync and channel fields
	DataLength   uint32
	DataType     uint16
	SeqNum       uint8
	Flags        uint8
	Checksum     uint16
}

// HasSecondaryHeader reports whether a secondary time header follows
func (h PacketHeader) HasSecondaryHeader() bool {
	return h.Flags&packetFlagSecondaryHdr != 0
}

// TotalLength is the size of the whole packet on disk
func (h PacketHeader) TotalLength() int64 {
	return int64(h.PacketLength) + 4
}

func (h PacketHeader) bodyOffset() int64 {
	if h.HasSecondaryHeader() {
		return primaryHeaderSize + secondaryHeaderSize
	}
	return primaryHeaderSize
}

// ParsePrimaryHeader decodes the big-endian primary header at the start of buf
func ParsePrimaryHeader(buf []byte) (PacketHeader, error) {
	var hdr PacketHeader
	if len(buf) < primaryHeaderSize {
		return hdr, io.ErrUnexpectedEOF
	}
	hdr.Sync = binary.BigEndian.Uint16(buf[0:2])
	hdr.ChannelID = binary.BigEndian.Uint16(buf[2:4])
	hdr.PacketLength = binary.BigEndian.Uint32(buf[4:8])
	hdr.DataLength = binary.BigEndian.Uint32(buf[8:12])
	hdr.DataType = binary.BigEndian.Uint16(buf[12:14])
	hdr.SeqNum = buf[14]
	hdr.Flags = buf[15]
	hdr.Checksum = binary.BigEndian.Uint16(buf[16:18])
	return hdr, nil
}

// Encode writes the header, checksum included, into a new buffer
func (h PacketHeader) Encode() []byte {
	buf := make([]byte, primaryHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.Sync)
	binary.BigEndian.PutUint16(buf[2:4], h.ChannelID)
	binary.BigEndian.PutUint32(buf[4:8], h.PacketLength)
	binary.BigEndian.PutUint32(buf[8:12], h.DataLength)
	binary.BigEndian.PutUint16(buf[12:14], h.DataType)
	buf[14] = h.SeqNum
	buf[15] = h.Flags
	sum, _ := ComputeHeaderChecksum(buf)
	binary.BigEndian.PutUint16(buf[16:18], sum)
	return buf
}

// ComputeHeaderChecksum returns the ones-complement sum of the first 16
// header bytes taken as big-endian words
func ComputeHeaderChecksum(header []byte) (uint16, error) {
	if len(header) < checksumSpan {
		return 0, fmt.Errorf("header too short: %d bytes", len(header))
	}
	var sum uint32
	for i := 0; i < checksumSpan; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(header[i : i+2]))
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum & 0xFFFF), nil
}

// Packet is one Chapter 10 packet with its data body
type Packet struct {
	Header PacketHeader
	Offset int64
	Body   []byte
}

// Reader walks the packets of a Chapter 10 stream. When a header does not
// check out it slides forward a byte at a time looking for the next sync.
type Reader struct {
	src          *bufio.Reader
	offset       int64
	skipped      int64
	resyncWindow int64
}

// NewReader creates a Reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src:          bufio.NewReaderSize(r, 64*1024),
		resyncWindow: defaultResyncWindow,
	}
}

// Skipped returns the number of bytes discarded while hunting for sync
func (r *Reader) Skipped() int64 {
	return r.skipped
}

// Offset returns the stream offset of the next unread byte
func (r *Reader) Offset() int64 {
	return r.offset
}

func (r *Reader) discard(n int) error {
	d, err := r.src.Discard(n)
	r.offset += int64(d)
	return err
}

// Next returns the next packet. It returns io.EOF at a clean end of stream,
// io.ErrUnexpectedEOF for a truncated packet and ErrNoSync when no valid
// header appears within the resync window.
func (r *Reader) Next() (Packet, error) {
	hunted := int64(0)
	for {
		head, err := r.src.Peek(primaryHeaderSize)
		if len(head) == 0 && errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		if len(head) < primaryHeaderSize {
			return Packet{}, io.ErrUnexpectedEOF
		}

		hdr, _ := ParsePrimaryHeader(head)
		if reason := checkHeader(hdr, head); reason != nil {
			if hunted >= r.resyncWindow {
				return Packet{}, fmt.Errorf("%w after %d bytes at offset %d", ErrNoSync, hunted, r.offset)
			}
			if err := r.discard(1); err != nil {
				return Packet{}, err
			}
			hunted++
			r.skipped++
			continue
		}

		pkt := Packet{Header: hdr, Offset: r.offset}
		raw := make([]byte, hdr.TotalLength())
		n, err := io.ReadFull(r.src, raw)
		r.offset += int64(n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Packet{}, err
		}
		start := hdr.bodyOffset()
		pkt.Body = raw[start : start+int64(hdr.DataLength)]
		return pkt, nil
	}
}

func checkHeader(hdr PacketHeader, head []byte) error {
	if hdr.Sync != syncPattern {
		return ErrNoSync
	}
	sum, _ := ComputeHeaderChecksum(head)
	if sum != hdr.Checksum {
		return ErrHeaderChecksum
	}
	if hdr.TotalLength() > maxPacketSize || hdr.TotalLength() < hdr.bodyOffset()+int64(hdr.DataLength) {
		return ErrPacketLength
	}
	return nil
}

// Writer emits Chapter 10 packets with sequential numbers per channel
type Writer struct {
	w   io.Writer
	seq map[uint16]uint8
}

// NewWriter creates a Writer over w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, seq: make(map[uint16]uint8)}
}

// WritePacket frames body as one packet of the given channel and data type
func (w *Writer) WritePacket(channel, dataType uint16, body []byte) error {
	hdr := PacketHeader{
		Sync:         syncPattern,
		ChannelID:    channel,
		PacketLength: uint32(primaryHeaderSize + len(body) - 4),
		DataLength:   uint32(len(body)),
		DataType:     dataType,
		SeqNum:       w.seq[channel],
	}
	w.seq[channel]++

	if _, err := w.w.Write(hdr.Encode()); err != nil {
		return err
	}
	_, err := w.w.Write(body)
	return err
}
