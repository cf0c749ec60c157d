// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Per-terminal activity seen by the monitor
type terminalData struct {
	lastSeen      time.Time
	transactions  uint64
	errors        uint64
	lastDirection mil1553.MessageDirection
	lastStatus    *mil1553.StatusWord
}

// TUI model
type model struct {
	connInfo       string
	statsInterval  int
	showAll        bool
	gap            time.Duration
	pipeline       *busPipeline
	stats          *mil1553.Statistics
	terminals      map[uint8]*terminalData
	errorLog       []errorLogEntry
	maxLogEntries  int
	synchronized   bool
	skippedBits    uint64
	lastData       time.Time
	connectionLost bool
	width          int
	height         int
	quitting       bool
}

// Messages
type tickMsg time.Time
type busDataMsg struct {
	data []byte
}
type connectionLostMsg struct {
	err error
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool, gap time.Duration, pipeline *busPipeline) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		gap:           gap,
		pipeline:      pipeline,
		stats:         pipeline.stats,
		terminals:     make(map[uint8]*terminalData),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/4, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.terminals = make(map[uint8]*terminalData)
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Close a transaction the bus went quiet on
		if !m.lastData.IsZero() && time.Since(m.lastData) >= m.gap {
			m.processEvents(m.pipeline.flush())
			m.lastData = time.Time{}
		}
		m.stats.CalculateRates()
		return m, tickCmd()

	case busDataMsg:
		events, synced := m.pipeline.feed(msg.data)
		if synced {
			m.synchronized = true
			m.skippedBits = m.pipeline.skippedBits()
			if m.skippedBits > 0 {
				m.addLogEntry(fmt.Sprintf("Word alignment found after skipping %d bits", m.skippedBits), false)
			} else {
				m.addLogEntry("Word alignment found", false)
			}
		}
		m.processEvents(events)
		m.lastData = time.Now()

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	return m, nil
}

// processEvents logs pipeline events and tracks per-terminal activity
func (m *model) processEvents(events []busEvent) {
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
			label = fmt.Sprintf("%s %s SA%02d", label, c.Address(), uint8(c.Subaddress()))
		}
		if len(e.anomalies) > 0 {
			for _, a := range e.anomalies {
				m.addLogEntry(fmt.Sprintf("%s: %s", label, a.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (%d words)", label, len(e.tx.Words())), false)
		}
	}
}

// trackTerminal records a transaction against the terminal it commanded
func trackTerminal(terminals map[uint8]*terminalData, tx *mil1553.Transaction, flagged bool) {
	c, ok := tx.Command()
	if !ok || c.IsBroadcast() {
		return
	}
	addr := uint8(c.Address())
	t := terminals[addr]
	if t == nil {
		t = &terminalData{}
		terminals[addr] = t
	}
	t.lastSeen = time.Now()
	t.transactions++
	t.lastDirection = tx.Direction
	if flagged {
		t.errors++
	}
	if statuses := tx.Statuses(); len(statuses) > 0 {
		s := statuses[0]
		t.lastStatus = &s
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("MILBUS - BUS MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset, 'q' quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All transactions"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.connectionLost:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for word alignment..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Aligned"))
		if m.skippedBits > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bits)", m.skippedBits)))
		}
		s.WriteString(headerStyle.Render(fmt.Sprintf(" | session %s", m.pipeline.session)))
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var validPercent, completePercent float64
	if m.stats.TotalWords > 0 {
		validPercent = float64(m.stats.ValidWords) * 100.0 / float64(m.stats.TotalWords)
	}
	if m.stats.TotalTransactions > 0 {
		completePercent = float64(m.stats.CompleteTransactions) * 100.0 / float64(m.stats.TotalTransactions)
	}
	wordErrors := m.stats.SyncErrors + m.stats.ParityErrors

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Words:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalWords)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidWords, validPercent)),
		statsLabelStyle.Render("Word Errors:"), errorStyle.Render(fmt.Sprintf("%d", wordErrors)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Transactions:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalTransactions)),
		statsLabelStyle.Render("Complete:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", completePercent)),
		statsLabelStyle.Render("Broadcast:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.BroadcastMessages)),
		statsLabelStyle.Render("Mode:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.ModeCommands)),
	))

	if m.stats.TopologyErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Format Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.TopologyErrors)),
		))
	}

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
			headerStyle.Render("message error"), m.stats.MessageErrors,
			headerStyle.Render("busy"), m.stats.BusyResponses,
			headerStyle.Render("address"), m.stats.AddressErrors,
			headerStyle.Render("mode code"), m.stats.ModeCodeErrors,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Word Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f w/s", m.stats.WordRate)),
		statsLabelStyle.Render("Msg Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msg/s", m.stats.TransactionRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(uint64(time.Since(m.stats.StartTime).Milliseconds()))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Terminal table (only shown once a terminal answered)
	if len(m.terminals) > 0 {
		s.WriteString(statsLabelStyle.Render("Remote Terminals:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderTerminals(m.terminals, statsLabelStyle, statsValueStyle, errorStyle, headerStyle)))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 - len(m.terminals) // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func renderTerminals(terminals map[uint8]*terminalData, labelStyle, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	if len(terminals) == 0 {
		return headerStyle.Render("(no terminal has answered yet)")
	}
	addrs := make([]int, 0, len(terminals))
	for a := range terminals {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)

	var b strings.Builder
	for i, a := range addrs {
		t := terminals[uint8(a)]
		status := "-"
		if t.lastStatus != nil {
			status = t.lastStatus.String()
		}
		errs := valueStyle.Render("0")
		if t.errors > 0 {
			errs = errorStyle.Render(fmt.Sprintf("%d", t.errors))
		}
		b.WriteString(fmt.Sprintf("%s %s msgs, %s errors, last %s %s %s",
			labelStyle.Render(mil1553.Address(a).String()+":"),
			valueStyle.Render(fmt.Sprintf("%d", t.transactions)),
			errs,
			mil1553.FormatDirection(t.lastDirection),
			status,
			headerStyle.Render(t.lastSeen.Format("15:04:05")),
		))
		if i < len(addrs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
