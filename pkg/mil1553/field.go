// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "math/bits"

// Field describes a contiguous bit range inside a 16-bit word body
type Field struct {
	mask   uint16
	offset uint
}

// NewField creates a field from its mask. The offset is the index of the
// lowest set bit.
func NewField(mask uint16) Field {
	return Field{
		mask:   mask,
		offset: uint(bits.TrailingZeros16(mask)),
	}
}

// Mask returns the field mask
func (f Field) Mask() uint16 {
	return f.mask
}

// Offset returns the shift applied to field values
func (f Field) Offset() uint {
	return f.offset
}

// Width returns the number of bits covered by the field
func (f Field) Width() int {
	return bits.OnesCount16(f.mask)
}

// Get extracts the field value from data
func (f Field) Get(data uint16) uint8 {
	return uint8((data & f.mask) >> f.offset)
}

// Set returns data with the field replaced by value.
// Bits outside the mask are kept, bits of value that do not fit are dropped.
func (f Field) Set(data uint16, value uint8) uint16 {
	return (data &^ f.mask) | ((uint16(value) << f.offset) & f.mask)
}

// Command word fields
var (
	fieldCommandAddress   = NewField(CommandAddressMask)
	fieldCommandTR        = NewField(CommandTRMask)
	fieldCommandSubaddr   = NewField(CommandSubaddrMask)
	fieldCommandWordCount = NewField(CommandWordCountMask)
)

// Status word fields
var (
	fieldStatusAddress           = NewField(StatusAddressMask)
	fieldStatusMessageError      = NewField(StatusMessageErrorMask)
	fieldStatusInstrumentation   = NewField(StatusInstrumentationMask)
	fieldStatusServiceRequest    = NewField(StatusServiceRequestMask)
	fieldStatusReserved          = NewField(StatusReservedMask)
	fieldStatusBroadcastReceived = NewField(StatusBroadcastReceivedMask)
	fieldStatusBusy              = NewField(StatusBusyMask)
	fieldStatusSubsystemFlag     = NewField(StatusSubsystemFlagMask)
	fieldStatusBusControlAccept  = NewField(StatusBusControlAcceptMask)
	fieldStatusTerminalFlag      = NewField(StatusTerminalFlagMask)
)
