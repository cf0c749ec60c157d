// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/milbus/pkg/capture"
	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	events []capture.Event
}

func (r *recordingLogger) Log(e capture.Event) {
	r.events = append(r.events, e)
}

// wireFor packs the words of the given messages back to back
func wireFor(t *testing.T, msgs ...*mil1553.Message) []byte {
	t.Helper()
	var words []mil1553.Word
	for _, m := range msgs {
		words = append(words, m.Words()...)
	}
	wire, err := mil1553.EncodeWords(words)
	require.NoError(t, err)
	return wire
}

func transactions(events []busEvent) []busEvent {
	out := []busEvent{}
	for _, e := range events {
		if e.tx != nil {
			out = append(out, e)
		}
	}
	return out
}

func TestParseDataWords(t *testing.T) {
	words, err := parseDataWords([]string{"0x1234", " 42 ", "", "0xFFFF"})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1234, 42, 0xFFFF}, words)

	_, err = parseDataWords([]string{"0x10000"})
	assert.Error(t, err)

	_, err = parseDataWords([]string{"beef"})
	assert.Error(t, err)
}

func TestParseHexBytes(t *testing.T) {
	tests := []struct {
		input string
		want  []byte
	}{
		{"2844C1", []byte{0x28, 0x44, 0xC1}},
		{"0x28 44:c1", []byte{0x28, 0x44, 0xC1}},
		{"28_44_C", []byte{0x28, 0x44, 0xC0}},
	}
	for _, tt := range tests {
		got, err := parseHexBytes(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := parseHexBytes("")
	assert.Error(t, err)
	_, err = parseHexBytes("zz")
	assert.Error(t, err)
}

func TestBuildRequest_ReceiveZeroFills(t *testing.T) {
	msg, err := buildRequest(commandSpec{rt: 5, sa: 2, count: 3, mode: -1, data: []uint16{0xBEEF}})
	require.NoError(t, err)

	assert.Equal(t, mil1553.BcToRt, msg.Direction())
	assert.Equal(t, mil1553.Directed, msg.Type())
	assert.Equal(t, 4, msg.Len())
	assert.True(t, msg.IsComplete())

	c, ok := msg.Command()
	require.True(t, ok)
	assert.Equal(t, mil1553.Address(5), c.Address())
	assert.Equal(t, mil1553.SubAddress(2), c.Subaddress())

	data := msg.DataWords()
	require.Len(t, data, 3)
	assert.Equal(t, uint16(0xBEEF), data[0].Value())
	assert.Equal(t, uint16(0), data[2].Value())
}

func TestBuildRequest_Transmit(t *testing.T) {
	msg, err := buildRequest(commandSpec{rt: 7, sa: 1, transmit: true, count: 32, mode: -1})
	require.NoError(t, err)
	assert.Equal(t, mil1553.RtToBc, msg.Direction())
	assert.Equal(t, 1, msg.Len())

	_, err = buildRequest(commandSpec{rt: 7, sa: 1, transmit: true, count: 2, mode: -1, data: []uint16{1}})
	assert.Error(t, err, "transmit commands carry no data")
}

func TestBuildRequest_ModeCodes(t *testing.T) {
	msg, err := buildRequest(commandSpec{rt: 3, transmit: true, mode: int(mil1553.TransmitStatusWord)})
	require.NoError(t, err)
	assert.Equal(t, mil1553.ModeWithoutData, msg.Direction())
	c, _ := msg.Command()
	mc, ok := c.ModeCode()
	require.True(t, ok)
	assert.Equal(t, mil1553.TransmitStatusWord, mc)

	msg, err = buildRequest(commandSpec{rt: 31, mode: int(mil1553.SynchronizeWithDataWord), data: []uint16{0x0101}})
	require.NoError(t, err)
	assert.Equal(t, mil1553.ModeWithDataR, msg.Direction())
	assert.Equal(t, mil1553.Broadcast, msg.Type())
	assert.Equal(t, 2, msg.Len())
}

func TestBuildRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		spec commandSpec
	}{
		{"address", commandSpec{rt: 32, sa: 1, count: 1, mode: -1}},
		{"negative address", commandSpec{rt: -1, sa: 1, count: 1, mode: -1}},
		{"mode subaddress", commandSpec{rt: 1, sa: 0, count: 1, mode: -1}},
		{"subaddress 31", commandSpec{rt: 1, sa: 31, count: 1, mode: -1}},
		{"count", commandSpec{rt: 1, sa: 1, count: 33, mode: -1}},
		{"zero count", commandSpec{rt: 1, sa: 1, count: 0, mode: -1}},
		{"too much data", commandSpec{rt: 1, sa: 1, count: 1, mode: -1, data: []uint16{1, 2}}},
		{"mode code", commandSpec{rt: 1, mode: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildRequest(tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestBuildRequest_Transfer(t *testing.T) {
	msg, err := buildRequest(commandSpec{rt: 5, sa: 9, count: 4, mode: -1, transfer: true, peer: 3})
	require.NoError(t, err)
	assert.Equal(t, mil1553.RtToRt, msg.Direction())

	cmds := msg.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, mil1553.Address(5), cmds[0].Address())
	assert.True(t, cmds[0].IsReceive())
	assert.Equal(t, mil1553.Address(3), cmds[1].Address())
	assert.True(t, cmds[1].IsTransmit())
	assert.Equal(t, 4, cmds[1].DataCount())

	_, err = buildRequest(commandSpec{rt: 5, sa: 9, count: 4, mode: -1, transfer: true, peer: 5})
	assert.Error(t, err, "self transfer")
	_, err = buildRequest(commandSpec{rt: 5, sa: 9, count: 4, mode: -1, transfer: true, peer: 31})
	assert.Error(t, err, "broadcast transmitter")
	_, err = buildRequest(commandSpec{rt: 5, sa: 9, count: 4, mode: -1, transfer: true, peer: 3, transmit: true})
	assert.Error(t, err, "transmit leading command")
}

func TestBuildResponse(t *testing.T) {
	msg, err := buildResponse(statusSpec{rt: 5, flags: []string{"busy", " SR "}, data: []uint16{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, mil1553.RtToBc, msg.Direction())
	assert.Equal(t, mil1553.Sending, msg.Side())
	assert.Equal(t, 3, msg.Len())

	s, ok := msg.Status()
	require.True(t, ok)
	assert.Equal(t, mil1553.Address(5), s.Address())
	assert.True(t, s.Busy().IsSet())
	assert.True(t, s.ServiceRequest().IsSet())
	assert.False(t, s.MessageError().IsSet())
	assert.True(t, s.CheckParity())

	_, err = buildResponse(statusSpec{rt: 5, flags: []string{"bogus"}})
	assert.Error(t, err)
}

func TestBusPipeline_Transaction(t *testing.T) {
	request, err := buildRequest(commandSpec{rt: 5, sa: 2, count: 2, mode: -1, data: []uint16{0x1234, 0x5678}})
	require.NoError(t, err)
	response, err := buildResponse(statusSpec{rt: 5})
	require.NoError(t, err)

	rec := &recordingLogger{}
	bp := newBusPipeline(nil, rec)
	events, synced := bp.feed(wireFor(t, request, response))

	assert.True(t, synced)
	assert.Zero(t, bp.skippedBits())

	txs := transactions(events)
	require.Len(t, txs, 1)
	tx := txs[0].tx
	assert.NoError(t, tx.Err)
	assert.Equal(t, mil1553.BcToRt, tx.Direction)
	assert.Empty(t, txs[0].anomalies)
	assert.Len(t, tx.Words(), 4)

	assert.Equal(t, uint64(4), bp.stats.ValidWords)
	assert.Equal(t, uint64(1), bp.stats.TotalTransactions)

	require.Len(t, rec.events, 1)
	assert.Equal(t, capture.KindTransaction, rec.events[0].Kind)
	assert.Equal(t, bp.session, rec.events[0].SessionID)
}

func TestBusPipeline_TerminalFilter(t *testing.T) {
	request, err := buildRequest(commandSpec{rt: 5, transmit: true, mode: int(mil1553.TransmitStatusWord)})
	require.NoError(t, err)
	response, err := buildResponse(statusSpec{rt: 5})
	require.NoError(t, err)

	rec := &recordingLogger{}
	bp := newBusPipeline(map[uint8]bool{7: true}, rec)
	events, _ := bp.feed(wireFor(t, request, response))

	assert.Empty(t, transactions(events))
	assert.Empty(t, rec.events)
	assert.Equal(t, uint64(1), bp.stats.TotalTransactions, "statistics count filtered terminals")
}

func TestBusPipeline_FlushIncomplete(t *testing.T) {
	request, err := buildRequest(commandSpec{rt: 4, transmit: true, mode: int(mil1553.TransmitStatusWord)})
	require.NoError(t, err)

	bp := newBusPipeline(nil, nil)
	events, _ := bp.feed(wireFor(t, request))
	assert.Empty(t, transactions(events))

	flushed := bp.flush()
	require.Len(t, flushed, 1)
	assert.ErrorIs(t, flushed[0].tx.Err, mil1553.ErrMessageBad)
	assert.Nil(t, bp.flush(), "nothing left to flush")
}

func TestBusPipeline_Reset(t *testing.T) {
	request, err := buildRequest(commandSpec{rt: 4, transmit: true, mode: int(mil1553.TransmitStatusWord)})
	require.NoError(t, err)

	bp := newBusPipeline(nil, nil)
	_, synced := bp.feed(wireFor(t, request))
	require.True(t, synced)

	bp.reset()
	assert.Nil(t, bp.flush())
	_, synced = bp.feed(wireFor(t, request))
	assert.True(t, synced, "alignment is searched again after a reset")
}

func TestAwaitStatus(t *testing.T) {
	request, err := statusRequest(9)
	require.NoError(t, err)
	response, err := buildResponse(statusSpec{rt: 9, flags: []string{"ssf"}})
	require.NoError(t, err)

	chunks := make(chan []byte, 1)
	errs := make(chan error, 1)
	chunks <- wireFor(t, request, response)

	status, err := awaitStatus(newBusPipeline(nil, nil), chunks, errs, 9, time.Second)
	require.NoError(t, err)
	assert.Equal(t, mil1553.Address(9), status.Address())
	assert.True(t, status.SubsystemFlag().IsSet())
}

func TestAwaitStatus_Timeout(t *testing.T) {
	chunks := make(chan []byte)
	errs := make(chan error)

	_, err := awaitStatus(newBusPipeline(nil, nil), chunks, errs, 9, 10*time.Millisecond)
	assert.ErrorIs(t, err, errNoResponse)
}

func TestAwaitStatus_ConnectionError(t *testing.T) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	errs <- ErrConnectionClosed

	_, err := awaitStatus(newBusPipeline(nil, nil), chunks, errs, 9, time.Second)
	assert.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestStatusRequest_Broadcast(t *testing.T) {
	_, err := statusRequest(31)
	assert.Error(t, err)
}

func TestBuildFilter(t *testing.T) {
	defer func() {
		filterSession, filterKind, filterBus = "", "", ""
		filterRT = -1
		filterSince, filterUntil = "", ""
		filterErrors = false
	}()

	filterSession = "abc"
	filterKind = "Transaction"
	filterBus = "b"
	filterRT = 12
	filterSince = "2025-01-02T03:04:05Z"
	filterErrors = true

	f, err := buildFilter()
	require.NoError(t, err)
	assert.Equal(t, "abc", f.SessionID)
	require.NotNil(t, f.Kind)
	assert.Equal(t, capture.KindTransaction, *f.Kind)
	require.NotNil(t, f.Bus)
	assert.Equal(t, capture.BusB, *f.Bus)
	require.NotNil(t, f.Address)
	assert.Equal(t, uint8(12), *f.Address)
	require.NotNil(t, f.TimeStart)
	assert.Equal(t, 2025, f.TimeStart.Year())
	assert.Nil(t, f.TimeEnd)
	assert.True(t, f.ErrorsOnly)

	filterKind = "packet"
	_, err = buildFilter()
	assert.Error(t, err)

	filterKind = ""
	filterRT = 40
	_, err = buildFilter()
	assert.Error(t, err)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{1000, "1 second"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.ms))
	}
}

func TestFormatRawWords(t *testing.T) {
	request, err := buildRequest(commandSpec{rt: 5, sa: 2, count: 1, mode: -1, data: []uint16{0xABCD}})
	require.NoError(t, err)
	wire, err := request.Bytes()
	require.NoError(t, err)

	out := formatRawWords(wire)
	assert.Contains(t, out, " 0: ")
	assert.Contains(t, out, " 1: ")
	assert.NotContains(t, out, " 2: ")
}

func TestBCModel_Fields(t *testing.T) {
	m := initialBCModel(nil, "test", newBusPipeline(nil, nil), map[uint8]bool{3: true, 1: true, 31: true}, 0)
	assert.Equal(t, []uint8{1, 3}, m.pollTargets, "broadcast is never polled")

	// BC -> RT is selected first
	assert.True(t, m.fieldEnabled(focusSAInput))
	assert.False(t, m.fieldEnabled(focusPeerInput))

	m.cycleFocus(1)
	assert.Equal(t, focusRTInput, m.focused)
	m.cycleFocus(1)
	m.cycleFocus(1)
	m.cycleFocus(1)
	assert.Equal(t, focusSendButton, m.focused, "peer input is skipped")

	spec, err := m.requestSpec()
	require.NoError(t, err)
	assert.Equal(t, 1, spec.rt)
	assert.Equal(t, 1, spec.sa)
	assert.Equal(t, 1, spec.count)
	assert.False(t, spec.transfer)

	m.rtInput.SetValue("x")
	_, err = m.requestSpec()
	assert.Error(t, err)
}
