// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import "fmt"

// Address is a 5-bit remote terminal address. Address 31 is broadcast.
type Address uint8

// IsBroadcast returns true for the broadcast address
func (a Address) IsBroadcast() bool {
	return a == BroadcastAddress
}

func (a Address) String() string {
	if a.IsBroadcast() {
		return "BCAST"
	}
	return fmt.Sprintf("RT%02d", uint8(a))
}

// SubAddress is the 5-bit subaddress/mode field of a command word.
// Values 0 and 31 select a mode code instead of a subaddress.
type SubAddress uint8

// IsModeCode returns true if the subaddress selects a mode code
func (s SubAddress) IsModeCode() bool {
	return s == ModeCodeSubaddress || s == ModeCodeAltSubaddr
}

func (s SubAddress) String() string {
	if s.IsModeCode() {
		return fmt.Sprintf("MODE(%d)", uint8(s))
	}
	return fmt.Sprintf("SA%02d", uint8(s))
}

// TransmitReceive is the T/R bit of a command word, seen from the terminal
type TransmitReceive uint8

const (
	Receive  TransmitReceive = 0
	Transmit TransmitReceive = 1
)

// IsTransmit returns true if the terminal is asked to transmit
func (t TransmitReceive) IsTransmit() bool {
	return t == Transmit
}

// IsReceive returns true if the terminal is asked to receive
func (t TransmitReceive) IsReceive() bool {
	return t == Receive
}

func (t TransmitReceive) String() string {
	if t == Transmit {
		return "T"
	}
	return "R"
}

// Instrumentation distinguishes status words (0) from instrumented commands (1)
type Instrumentation uint8

const (
	InstrumentationStatus  Instrumentation = 0
	InstrumentationCommand Instrumentation = 1
)

func (i Instrumentation) String() string {
	if i == InstrumentationCommand {
		return "command"
	}
	return "status"
}

// ServiceRequest is set by a terminal that needs servicing
type ServiceRequest uint8

const (
	NoService ServiceRequest = 0
	Service   ServiceRequest = 1
)

// IsSet returns true if service is requested
func (s ServiceRequest) IsSet() bool {
	return s == Service
}

// Reserved holds the three reserved status bits. They must be zero.
type Reserved uint8

// IsSet returns true if any reserved bit is used
func (r Reserved) IsSet() bool {
	return r != 0
}

// BroadcastReceived reports a valid broadcast command was received
type BroadcastReceived uint8

const (
	BroadcastNotReceived BroadcastReceived = 0
	BroadcastWasReceived BroadcastReceived = 1
)

// IsSet returns true if a broadcast was received
func (b BroadcastReceived) IsSet() bool {
	return b == BroadcastWasReceived
}

// TerminalBusy reports the terminal cannot move data to its subsystem
type TerminalBusy uint8

const (
	NotBusy TerminalBusy = 0
	Busy    TerminalBusy = 1
)

// IsSet returns true if the terminal is busy
func (b TerminalBusy) IsSet() bool {
	return b == Busy
}

// BusControlAccept reports acceptance of dynamic bus control
type BusControlAccept uint8

const (
	BusControlNotAccepted BusControlAccept = 0
	BusControlAccepted    BusControlAccept = 1
)

// IsSet returns true if bus control was accepted
func (b BusControlAccept) IsSet() bool {
	return b == BusControlAccepted
}

// MessageErrorFlag reports the last message failed validation at the terminal
type MessageErrorFlag uint8

const (
	NoMessageError MessageErrorFlag = 0
	MessageError   MessageErrorFlag = 1
)

// IsSet returns true if the terminal reported a message error
func (m MessageErrorFlag) IsSet() bool {
	return m == MessageError
}

// SubsystemFlag reports a subsystem fault
type SubsystemFlag uint8

const (
	SubsystemOK    SubsystemFlag = 0
	SubsystemFault SubsystemFlag = 1
)

// IsSet returns true if the subsystem reported a fault
func (s SubsystemFlag) IsSet() bool {
	return s == SubsystemFault
}

// TerminalFlag reports a terminal fault
type TerminalFlag uint8

const (
	TerminalOK    TerminalFlag = 0
	TerminalFault TerminalFlag = 1
)

// IsSet returns true if the terminal reported a fault
func (t TerminalFlag) IsSet() bool {
	return t == TerminalFault
}
