// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mil1553

import (
	"errors"
	"fmt"
)

// AnomalyType represents different types of bus anomalies
type AnomalyType int

const (
	AnomalyParity AnomalyType = iota
	AnomalySync
	AnomalyReservedBits
	AnomalyMessageError
	AnomalyBusy
	AnomalySubsystemFlag
	AnomalyTerminalFlag
	AnomalyAddressMismatch
	AnomalyBroadcastModeCode
	AnomalyReservedModeCode
	AnomalyModeDirection
	AnomalyTopology
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyParity:
		return "PARITY"
	case AnomalySync:
		return "SYNC"
	case AnomalyReservedBits:
		return "RESERVED_BITS"
	case AnomalyMessageError:
		return "MESSAGE_ERROR"
	case AnomalyBusy:
		return "BUSY"
	case AnomalySubsystemFlag:
		return "SUBSYSTEM_FLAG"
	case AnomalyTerminalFlag:
		return "TERMINAL_FLAG"
	case AnomalyAddressMismatch:
		return "ADDRESS_MISMATCH"
	case AnomalyBroadcastModeCode:
		return "BROADCAST_MODE_CODE"
	case AnomalyReservedModeCode:
		return "RESERVED_MODE_CODE"
	case AnomalyModeDirection:
		return "MODE_DIRECTION"
	case AnomalyTopology:
		return "TOPOLOGY"
	default:
		return fmt.Sprintf("ANOMALY_%d", int(a))
	}
}

// ValidationError represents a detected bus anomaly
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks the sync and parity of a raw packet
func ValidatePacket(p Packet) []ValidationError {
	errors := []ValidationError{}

	if !p.CheckSync() {
		errors = append(errors, ValidationError{
			Type:    AnomalySync,
			Message: fmt.Sprintf("Invalid sync %03b (body 0x%04X)", p.Sync(), p.Value()),
			Details: map[string]interface{}{"sync": p.Sync(), "value": p.Value()},
		})
	}
	if !p.CheckParity() {
		errors = append(errors, ValidationError{
			Type:    AnomalyParity,
			Message: fmt.Sprintf("Parity error (body 0x%04X, parity %d)", p.Value(), p.ParityBit()),
			Details: map[string]interface{}{"value": p.Value(), "parity": p.ParityBit()},
		})
	}

	return errors
}

// ValidateTransaction checks a transaction for protocol anomalies.
// Returns a slice of validation errors (empty if the transaction is clean)
func ValidateTransaction(t *Transaction) []ValidationError {
	errs := []ValidationError{}

	if t.Offender != nil {
		errs = append(errs, ValidatePacket(*t.Offender)...)
	}
	if t.Err != nil {
		errs = append(errs, validateError(t)...)
	}

	for _, w := range t.Words() {
		if !w.CheckParity() {
			errs = append(errs, ValidationError{
				Type:    AnomalyParity,
				Message: fmt.Sprintf("Parity error in %s", w),
				Details: map[string]interface{}{"word": w.Type().String(), "value": w.Value()},
			})
		}
	}

	cmds := []CommandWord{}
	if t.Request != nil {
		cmds = t.Request.Commands()
	}
	for _, c := range cmds {
		errs = append(errs, validateCommand(c)...)
	}

	if t.Response != nil {
		if s, ok := t.Response.Status(); ok {
			errs = append(errs, validateStatus(s)...)
			// the transmitting terminal answers first
			if len(cmds) > 0 {
				errs = append(errs, validateAddress(cmds[len(cmds)-1], s)...)
			}
		}
	}
	if t.Final != nil {
		if s, ok := t.Final.Status(); ok {
			errs = append(errs, validateStatus(s)...)
			if len(cmds) > 0 {
				errs = append(errs, validateAddress(cmds[0], s)...)
			}
		}
	}

	return errs
}

// validateError classifies the error that aborted a transaction
func validateError(t *Transaction) []ValidationError {
	switch {
	case IsTopologyError(t.Err):
		return []ValidationError{{
			Type:    AnomalyTopology,
			Message: fmt.Sprintf("%s transaction aborted: %v", FormatDirection(t.Direction), t.Err),
			Details: map[string]interface{}{"direction": t.Direction.String(), "error": t.Err.Error()},
		}}
	case errors.Is(t.Err, ErrWordIsInvalid) && t.Offender != nil:
		s, err := t.Offender.AsStatus()
		if err != nil {
			return nil
		}
		return []ValidationError{{
			Type:    AnomalyReservedBits,
			Message: fmt.Sprintf("Status %s has reserved bits %03b set", s.Address(), uint8(s.Reserved())),
			Details: map[string]interface{}{"address": uint8(s.Address()), "reserved": uint8(s.Reserved())},
		}}
	}
	return nil
}

// validateCommand checks mode code usage
func validateCommand(c CommandWord) []ValidationError {
	errors := []ValidationError{}

	m, ok := c.ModeCode()
	if !ok {
		return errors
	}

	if m.IsReserved() {
		errors = append(errors, ValidationError{
			Type:    AnomalyReservedModeCode,
			Message: fmt.Sprintf("Reserved mode code %d sent to %s", uint8(m), c.Address()),
			Details: map[string]interface{}{"mode_code": uint8(m), "address": uint8(c.Address())},
		})
		return errors
	}

	if c.IsBroadcast() && !m.IsBroadcastAllowed() {
		errors = append(errors, ValidationError{
			Type:    AnomalyBroadcastModeCode,
			Message: fmt.Sprintf("Mode code %s is not allowed as broadcast", m),
			Details: map[string]interface{}{"mode_code": uint8(m)},
		})
	}

	if c.IsTransmit() != m.IsTransmit() {
		errors = append(errors, ValidationError{
			Type:    AnomalyModeDirection,
			Message: fmt.Sprintf("Mode code %s sent with T/R=%s", m, c.TransmitReceive()),
			Details: map[string]interface{}{"mode_code": uint8(m), "transmit": c.IsTransmit()},
		})
	}

	return errors
}

// validateStatus reports the error and state flags a terminal raised
func validateStatus(s StatusWord) []ValidationError {
	errors := []ValidationError{}
	addr := uint8(s.Address())

	if s.Reserved().IsSet() {
		errors = append(errors, ValidationError{
			Type:    AnomalyReservedBits,
			Message: fmt.Sprintf("Status %s has reserved bits %03b set", s.Address(), uint8(s.Reserved())),
			Details: map[string]interface{}{"address": addr, "reserved": uint8(s.Reserved())},
		})
	}
	if s.MessageError().IsSet() {
		errors = append(errors, ValidationError{
			Type:    AnomalyMessageError,
			Message: fmt.Sprintf("%s reported a message error", s.Address()),
			Details: map[string]interface{}{"address": addr},
		})
	}
	if s.Busy().IsSet() {
		errors = append(errors, ValidationError{
			Type:    AnomalyBusy,
			Message: fmt.Sprintf("%s is busy", s.Address()),
			Details: map[string]interface{}{"address": addr},
		})
	}
	if s.SubsystemFlag().IsSet() {
		errors = append(errors, ValidationError{
			Type:    AnomalySubsystemFlag,
			Message: fmt.Sprintf("%s reported a subsystem fault", s.Address()),
			Details: map[string]interface{}{"address": addr},
		})
	}
	if s.TerminalFlag().IsSet() {
		errors = append(errors, ValidationError{
			Type:    AnomalyTerminalFlag,
			Message: fmt.Sprintf("%s reported a terminal fault", s.Address()),
			Details: map[string]interface{}{"address": addr},
		})
	}

	return errors
}

// validateAddress checks that a status answers the terminal commanded
func validateAddress(c CommandWord, s StatusWord) []ValidationError {
	if c.IsBroadcast() || c.Address() == s.Address() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyAddressMismatch,
		Message: fmt.Sprintf("Status from %s answers command to %s", s.Address(), c.Address()),
		Details: map[string]interface{}{"command": uint8(c.Address()), "status": uint8(s.Address())},
	}}
}
