// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"fmt"
	"strings"
)

// FormatPacket formats a raw packet into a human-readable line
func FormatPacket(p Packet) string {
	kind := "DATA"
	switch {
	case p.IsService():
		kind = "SERVICE"
	case !p.CheckSync():
		kind = "BADSYNC"
	}

	result := fmt.Sprintf("%-7s 0x%04X p=%d", kind, p.Value(), p.ParityBit())
	if !p.CheckParity() {
		result += " PARITY"
	}
	return result
}

// FormatCommand formats a command word with its decoded fields
func FormatCommand(c CommandWord) string {
	if m, ok := c.ModeCode(); ok {
		return fmt.Sprintf("CMD  0x%04X %s %s sa=%d mode=%s (%d)",
			c.Value(), c.Address(), c.TransmitReceive(), uint8(c.Subaddress()), m, uint8(m))
	}
	n, _ := c.WordCount()
	return fmt.Sprintf("CMD  0x%04X %s %s sa=%d wc=%d",
		c.Value(), c.Address(), c.TransmitReceive(), uint8(c.Subaddress()), n)
}

// FormatStatus formats a status word with its set flags
func FormatStatus(s StatusWord) string {
	return fmt.Sprintf("STS  0x%04X %s", s.Value(), s)
}

// FormatData formats a data word, with its text view when printable
func FormatData(d DataWord) string {
	text := d.Text()
	if text != "" && isPrintable(text) {
		return fmt.Sprintf("DATA 0x%04X %q", d.Value(), text)
	}
	return fmt.Sprintf("DATA 0x%04X", d.Value())
}

// FormatWord formats any word by kind
func FormatWord(w Word) string {
	result := ""
	switch w.Type() {
	case WordCommand:
		c, _ := w.AsCommand()
		result = FormatCommand(c)
	case WordStatus:
		s, _ := w.AsStatus()
		result = FormatStatus(s)
	case WordData:
		d, _ := w.AsData()
		result = FormatData(d)
	default:
		return "NONE"
	}
	if !w.CheckParity() {
		result += " PARITY"
	}
	return result
}

// FormatMessage formats a message header and one word per line
func FormatMessage(m *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) words=%d\n", FormatDirection(m.Direction()), m.Type(), m.Side(), m.Len())
	for _, w := range m.Words() {
		b.WriteString("  ")
		b.WriteString(FormatWord(w))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTransaction formats a transaction into a multi-line string
func FormatTransaction(t *Transaction) string {
	timestamp := t.Timestamp.Format("15:04:05.000")

	var b strings.Builder
	if t.Request == nil {
		fmt.Fprintf(&b, "[%s] ABORTED", timestamp)
	} else {
		fmt.Fprintf(&b, "[%s] %s %s", timestamp, FormatDirection(t.Direction), t.Type)
		if c, ok := t.Command(); ok {
			fmt.Fprintf(&b, " %s", c.Address())
		}
	}
	if t.Err != nil {
		fmt.Fprintf(&b, " error=%v", t.Err)
	}
	b.WriteString("\n")

	for _, w := range t.Words() {
		b.WriteString("  ")
		b.WriteString(FormatWord(w))
		b.WriteString("\n")
	}
	if t.Offender != nil {
		b.WriteString("  ! ")
		b.WriteString(FormatPacket(*t.Offender))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatDirection returns the human-readable name of a message format
func FormatDirection(d MessageDirection) string {
	switch d {
	case BcToRt:
		return "BC_TO_RT"
	case RtToBc:
		return "RT_TO_BC"
	case RtToRt:
		return "RT_TO_RT"
	case ModeWithoutData:
		return "MODE_NO_DATA"
	case ModeWithDataT:
		return "MODE_DATA_TX"
	case ModeWithDataR:
		return "MODE_DATA_RX"
	default:
		return fmt.Sprintf("UNKNOWN_%d", uint8(d))
	}
}

// FormatModeCode returns the mode code name with its data and broadcast rules
func FormatModeCode(m ModeCode) string {
	if !m.IsKnown() {
		return m.String()
	}
	dir := "T"
	if m.IsReceive() {
		dir = "R"
	}
	data := "no data"
	if m.HasData() {
		data = "data"
	}
	bcast := "directed only"
	if m.IsBroadcastAllowed() {
		bcast = "broadcast ok"
	}
	return fmt.Sprintf("%s (%d, %s, %s, %s)", m, uint8(m), dir, data, bcast)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			return false
		}
	}
	return true
}
