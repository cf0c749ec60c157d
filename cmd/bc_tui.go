// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// noResponseGap is how long the bus stays quiet before an open transaction
// is closed
const noResponseGap = 250 * time.Millisecond

// Focus states
const (
	focusPatternList = iota
	focusRTInput
	focusSAInput
	focusCountInput
	focusPeerInput
	focusSendButton
	numFocus
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// pattern is a message the controller can send
type pattern struct {
	name     string
	desc     string
	transmit bool
	transfer bool
	mode     int // negative for a subaddress transfer
}

// Implement list.Item interface
func (p pattern) Title() string       { return p.name }
func (p pattern) Description() string { return p.desc }
func (p pattern) FilterValue() string { return p.name }

func (p pattern) usesSubaddress() bool { return p.mode < 0 }

var bcPatterns = []pattern{
	{name: "BC -> RT", desc: "Receive data", mode: -1},
	{name: "RT -> BC", desc: "Transmit data", transmit: true, mode: -1},
	{name: "RT -> RT", desc: "Peer transfer", transfer: true, mode: -1},
	{name: "Synchronize", desc: "Mode code 1", transmit: true, mode: int(mil1553.Synchronize)},
	{name: "Transmit Status", desc: "Mode code 2", transmit: true, mode: int(mil1553.TransmitStatusWord)},
	{name: "Self Test", desc: "Mode code 3", transmit: true, mode: int(mil1553.InitiateSelfTest)},
	{name: "Reset Terminal", desc: "Mode code 8", transmit: true, mode: int(mil1553.ResetRemoteTerminal)},
	{name: "Vector Word", desc: "Mode code 16", transmit: true, mode: int(mil1553.TransmitVectorWord)},
	{name: "Sync With Data", desc: "Mode code 17", mode: int(mil1553.SynchronizeWithDataWord)},
}

// bcModel is the Bubble Tea model for the bus controller TUI
type bcModel struct {
	// Connection manager (for sending and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Message selection
	patternList list.Model
	rtInput     textinput.Model
	saInput     textinput.Model
	countInput  textinput.Model
	peerInput   textinput.Model
	focused     int

	// Monitoring (shared with tui.go)
	pipeline      *busPipeline
	stats         *mil1553.Statistics
	terminals     map[uint8]*terminalData
	errorLog      []errorLogEntry
	maxLogEntries int
	sent          uint64
	lastData      time.Time

	// Status polling
	pollTargets  []uint8
	pollInterval time.Duration
	lastPoll     time.Time

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type bcTickMsg time.Time

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newNumberInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 2
	ti.Width = 4
	return ti
}

func initialBCModel(connMgr *connectionManager, connInfo string, pipeline *busPipeline, targets map[uint8]bool, pollInterval time.Duration) bcModel {
	items := make([]list.Item, len(bcPatterns))
	for i, p := range bcPatterns {
		items[i] = p
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	patternList := list.New(items, delegate, 26, 14)
	patternList.Title = "Messages"
	patternList.SetShowStatusBar(false)
	patternList.SetShowHelp(false)
	patternList.SetFilteringEnabled(false)

	pollTargets := make([]uint8, 0, len(targets))
	for rt := range targets {
		if !mil1553.Address(rt).IsBroadcast() {
			pollTargets = append(pollTargets, rt)
		}
	}
	sort.Slice(pollTargets, func(i, j int) bool { return pollTargets[i] < pollTargets[j] })

	return bcModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		patternList:   patternList,
		rtInput:       newNumberInput("1"),
		saInput:       newNumberInput("1"),
		countInput:    newNumberInput("1"),
		peerInput:     newNumberInput("2"),
		focused:       focusPatternList,
		pipeline:      pipeline,
		stats:         pipeline.stats,
		terminals:     make(map[uint8]*terminalData),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		pollTargets:   pollTargets,
		pollInterval:  pollInterval,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m bcModel) Init() tea.Cmd {
	return bcTickCmd()
}

func bcTickCmd() tea.Cmd {
	return tea.Tick(time.Second/4, func(t time.Time) tea.Msg {
		return bcTickMsg(t)
	})
}

func (m bcModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case bcTickMsg:
		m.stats.CalculateRates()
		// Close a transaction no terminal answered
		if !m.lastData.IsZero() && time.Since(m.lastData) >= noResponseGap {
			m.processEvents(m.pipeline.flush())
			m.lastData = time.Time{}
		}
		if m.pollInterval > 0 && !m.connectionLost && time.Since(m.lastPoll) >= m.pollInterval {
			m.lastPoll = time.Now()
			m.pollStatus()
		}
		return m, bcTickCmd()

	case busDataMsg:
		events, synced := m.pipeline.feed(msg.data)
		if synced {
			m.synchronized = true
			if skipped := m.pipeline.skippedBits(); skipped > 0 {
				m.addLogEntry(fmt.Sprintf("Word alignment found after skipping %d bits", skipped), false)
			} else {
				m.addLogEntry("Word alignment found", false)
			}
		}
		m.processEvents(events)
		m.lastData = time.Now()

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.synchronized = false
		m.pipeline.reset()
		m.addLogEntry("Reconnected", false)
	}

	return m, nil
}

func (m bcModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused == focusPatternList || m.focused == focusSendButton {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil

	case "enter":
		m.sendSelected()
		return m, nil
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focused {
	case focusPatternList:
		m.patternList, cmd = m.patternList.Update(msg)
	case focusRTInput:
		m.rtInput, cmd = m.rtInput.Update(msg)
	case focusSAInput:
		m.saInput, cmd = m.saInput.Update(msg)
	case focusCountInput:
		m.countInput, cmd = m.countInput.Update(msg)
	case focusPeerInput:
		m.peerInput, cmd = m.peerInput.Update(msg)
	}
	return m, cmd
}

func (m *bcModel) selectedPattern() pattern {
	if p, ok := m.patternList.SelectedItem().(pattern); ok {
		return p
	}
	return bcPatterns[0]
}

// fieldEnabled reports whether a focus state applies to the selected pattern
func (m *bcModel) fieldEnabled(f int) bool {
	p := m.selectedPattern()
	switch f {
	case focusSAInput, focusCountInput:
		return p.usesSubaddress()
	case focusPeerInput:
		return p.transfer
	}
	return true
}

func (m *bcModel) cycleFocus(delta int) {
	next := m.focused
	for {
		next = (next + delta + numFocus) % numFocus
		if m.fieldEnabled(next) {
			break
		}
	}
	m.focused = next

	inputs := map[int]*textinput.Model{
		focusRTInput:    &m.rtInput,
		focusSAInput:    &m.saInput,
		focusCountInput: &m.countInput,
		focusPeerInput:  &m.peerInput,
	}
	for f, in := range inputs {
		if f == m.focused {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

//////////////////////////////////////////////////////////////
// Sending
//////////////////////////////////////////////////////////////

// inputValue reads a numeric field, falling back to its placeholder
func inputValue(in textinput.Model, name string) (int, error) {
	v := strings.TrimSpace(in.Value())
	if v == "" {
		v = in.Placeholder
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, v)
	}
	return n, nil
}

// requestSpec turns the selected pattern and the field values into a request
func (m *bcModel) requestSpec() (commandSpec, error) {
	p := m.selectedPattern()
	spec := commandSpec{transmit: p.transmit, mode: p.mode, transfer: p.transfer}

	var err error
	if spec.rt, err = inputValue(m.rtInput, "RT"); err != nil {
		return spec, err
	}
	if p.usesSubaddress() {
		if spec.sa, err = inputValue(m.saInput, "SA"); err != nil {
			return spec, err
		}
		if spec.count, err = inputValue(m.countInput, "count"); err != nil {
			return spec, err
		}
	}
	if p.transfer {
		if spec.peer, err = inputValue(m.peerInput, "peer RT"); err != nil {
			return spec, err
		}
	}
	return spec, nil
}

func (m *bcModel) sendSelected() {
	if m.connectionLost {
		m.addLogEntry("Cannot send: connection lost", true)
		return
	}
	spec, err := m.requestSpec()
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	msg, err := buildRequest(spec)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Cannot build %s: %v", m.selectedPattern().name, err), true)
		return
	}
	m.send(msg)
}

// pollStatus asks every configured terminal for its status word
func (m *bcModel) pollStatus() {
	for _, rt := range m.pollTargets {
		msg, err := buildRequest(commandSpec{rt: int(rt), transmit: true, mode: int(mil1553.TransmitStatusWord)})
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Poll %s: %v", mil1553.Address(rt), err), true)
			continue
		}
		m.send(msg)
	}
}

func (m *bcModel) send(msg *mil1553.Message) {
	if err := m.connMgr.send(msg.Words()); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
		logger.Error().Err(err).Str("message", msg.String()).Msg("send failed")
		return
	}
	m.sent++
	logger.Debug().Str("message", msg.String()).Msg("message sent")
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *bcModel) processEvents(events []busEvent) {
	for _, e := range events {
		if e.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("WORD ERROR: %v", e.decodeErr), true)
			continue
		}
		if e.tx == nil {
			continue
		}

		trackTerminal(m.terminals, e.tx, len(e.anomalies) > 0)

		label := mil1553.FormatDirection(e.tx.Direction)
		if c, ok := e.tx.Command(); ok {
			label = fmt.Sprintf("%s %s", label, c)
		}
		switch {
		case len(e.anomalies) > 0:
			for _, a := range e.anomalies {
				m.addLogEntry(fmt.Sprintf("%s: %s", label, a.Message), true)
			}
		case e.tx.Err != nil:
			m.addLogEntry(fmt.Sprintf("%s: %v", label, e.tx.Err), true)
		default:
			m.addLogEntry(fmt.Sprintf("%s (%d words)", label, len(e.tx.Words())), false)
		}
	}
}

func (m *bcModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m bcModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("MILBUS - BUS CONTROLLER"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Tab=switch Enter=send q=quit", connStatus)))
	s.WriteString("\n")
	if m.pollInterval > 0 && len(m.pollTargets) > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" polling %d terminal(s) every %s", len(m.pollTargets), m.pollInterval)))
	}
	s.WriteString("\n\n")

	// Layout: left panel (patterns) | right panel (fields)
	leftWidth := 28
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focused == focusPatternList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	patternPanel := listStyle.Render(m.patternList.View())

	controlPanel := boxStyle.Width(rightWidth).Render(m.renderControlPanel(labelStyle, headerStyle, buttonStyle, focusedButtonStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, patternPanel, " ", controlPanel))
	s.WriteString("\n\n")

	// Statistics bar
	m.stats.CalculateRates()
	wordErrors := m.stats.SyncErrors + m.stats.ParityErrors
	stats := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", m.sent)),
		labelStyle.Render("Words:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalWords)),
		labelStyle.Render("Word Errors:"), func() string {
			if wordErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", wordErrors))
			}
			return valueStyle.Render("0")
		}(),
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalTransactions)),
		labelStyle.Render("Anomalies:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
	)
	s.WriteString(boxStyle.Width(m.width - 4).Render(stats))
	s.WriteString("\n\n")

	// Terminals
	s.WriteString(labelStyle.Render("TERMINALS"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderTerminals(m.terminals, labelStyle, valueStyle, errorStyle, headerStyle)))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, headerStyle, errorStyle, warningStyle, boxStyle))

	return s.String()
}

func (m bcModel) renderControlPanel(labelStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder
	p := m.selectedPattern()

	s.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Message:"), p.name))

	field := func(label string, in textinput.Model, focus int) {
		s.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", label)))
		switch {
		case !m.fieldEnabled(focus):
			s.WriteString(headerStyle.Render("n/a"))
		case m.focused == focus:
			s.WriteString(in.View())
		default:
			val := in.Value()
			if val == "" {
				val = in.Placeholder
			}
			s.WriteString(fmt.Sprintf("[%s]", val))
		}
		s.WriteString("\n")
	}
	rtLabel := "RT:"
	if p.transfer {
		rtLabel = "To RT:"
	}
	field(rtLabel, m.rtInput, focusRTInput)
	field("SA:", m.saInput, focusSAInput)
	field("Count:", m.countInput, focusCountInput)
	field("From RT:", m.peerInput, focusPeerInput)
	s.WriteString("\n")

	btnText := "[ Send ]"
	if m.focused == focusSendButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}
	return s.String()
}

func (m bcModel) renderEventLog(labelStyle, headerStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.errorLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}
