// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "fmt"

// ModeCode is the 5-bit mode code carried by a mode command.
// Values without a defined meaning are kept as-is and report IsKnown false.
type ModeCode uint8

// Mode codes without a data word (transmit)
const (
	DynamicBusControl              ModeCode = 0
	Synchronize                    ModeCode = 1
	TransmitStatusWord             ModeCode = 2
	InitiateSelfTest               ModeCode = 3
	TransmitterShutdown            ModeCode = 4
	OverrideTransmitterShutdown    ModeCode = 5
	InhibitTerminalFlagBit         ModeCode = 6
	OverrideInhibitTerminalFlagBit ModeCode = 7
	ResetRemoteTerminal            ModeCode = 8
)

// Mode codes with a data word
const (
	TransmitVectorWord                  ModeCode = 16
	SynchronizeWithDataWord             ModeCode = 17
	TransmitLastCommandWord             ModeCode = 18
	TransmitBITWord                     ModeCode = 19
	SelectedTransmitterShutdown         ModeCode = 20
	OverrideSelectedTransmitterShutdown ModeCode = 21
)

// modeCodeMax is the largest value the 5-bit field can hold
const modeCodeMax = 31

type modeCodeInfo struct {
	name      string
	transmit  bool
	broadcast bool
}

var modeCodes = map[ModeCode]modeCodeInfo{
	DynamicBusControl:                   {"DynamicBusControl", true, false},
	Synchronize:                         {"Synchronize", true, true},
	TransmitStatusWord:                  {"TransmitStatusWord", true, false},
	InitiateSelfTest:                    {"InitiateSelfTest", true, true},
	TransmitterShutdown:                 {"TransmitterShutdown", true, true},
	OverrideTransmitterShutdown:         {"OverrideTransmitterShutdown", true, true},
	InhibitTerminalFlagBit:              {"InhibitTerminalFlagBit", true, true},
	OverrideInhibitTerminalFlagBit:      {"OverrideInhibitTerminalFlagBit", true, true},
	ResetRemoteTerminal:                 {"ResetRemoteTerminal", true, true},
	TransmitVectorWord:                  {"TransmitVectorWord", true, false},
	SynchronizeWithDataWord:             {"SynchronizeWithDataWord", false, true},
	TransmitLastCommandWord:             {"TransmitLastCommandWord", true, false},
	TransmitBITWord:                     {"TransmitBITWord", true, false},
	SelectedTransmitterShutdown:         {"SelectedTransmitterShutdown", false, true},
	OverrideSelectedTransmitterShutdown: {"OverrideSelectedTransmitterShutdown", false, true},
}

// ParseModeCode converts a raw value into a mode code
func ParseModeCode(v uint8) (ModeCode, error) {
	if v > modeCodeMax {
		return 0, fmt.Errorf("mode code %d: %w", v, ErrInvalidCode)
	}
	return ModeCode(v), nil
}

// IsKnown returns true if the code has a defined meaning
func (m ModeCode) IsKnown() bool {
	_, ok := modeCodes[m]
	return ok
}

// IsReserved returns true for the reserved ranges 9-15 and 22-31
func (m ModeCode) IsReserved() bool {
	return (m >= 9 && m <= 15) || (m >= 22 && m <= modeCodeMax)
}

// HasData returns true if the mode command carries one data word
func (m ModeCode) HasData() bool {
	return m >= 16 && m <= modeCodeMax
}

// IsTransmit returns true if the terminal transmits in response.
// Reserved codes have no defined direction.
func (m ModeCode) IsTransmit() bool {
	info, ok := modeCodes[m]
	return ok && info.transmit
}

// IsReceive returns true if the terminal receives the associated data word
func (m ModeCode) IsReceive() bool {
	info, ok := modeCodes[m]
	return ok && !info.transmit
}

// IsBroadcastAllowed returns true if the code may be sent to the broadcast address
func (m ModeCode) IsBroadcastAllowed() bool {
	info, ok := modeCodes[m]
	return ok && info.broadcast
}

func (m ModeCode) String() string {
	if info, ok := modeCodes[m]; ok {
		return info.name
	}
	return fmt.Sprintf("UnknownModeCode(%d)", uint8(m))
}
