// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/milbus/pkg/mil1553"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var bcPollSeconds int

var bcCmd = &cobra.Command{
	Use:   "bc",
	Short: "Interactive TUI acting as a bus controller",
	Long: `Drive the bus as a controller from an interactive terminal UI.

Pick a message pattern, fill in the terminal address, subaddress and word
count, and send it. Everything the bus interface echoes back is decoded and
assembled into transactions, so terminal responses and protocol errors show
up in the event log.

Features:
  - BC to RT, RT to BC, RT to RT and mode command patterns
  - Per-terminal status tracking
  - Statistics and event logging
  - Optional status polling of the configured terminals (--poll)
  - Automatic reconnection on connection loss

Tab switches between the pattern list, the fields and the send button.

Supports both serial and WebSocket connections.`,
	RunE: runBC,
}

func init() {
	rootCmd.AddCommand(bcCmd)
	bcCmd.Flags().IntVar(&bcPollSeconds, "poll", 0, "Poll the configured terminals for status every N seconds (0 disables)")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// send writes packed words to the current connection
func (cm *connectionManager) send(words []mil1553.Word) error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}
	wire, err := mil1553.EncodeWords(words)
	if err != nil {
		return err
	}
	_, err = conn.Write(wire)
	return err
}

func runBC(cmd *cobra.Command, args []string) error {
	if bcPollSeconds < 0 {
		return fmt.Errorf("poll interval must not be negative, got %d", bcPollSeconds)
	}

	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	pipeline := newBusPipeline(nil, nil)
	m := initialBCModel(cm, connInfo, pipeline, cfg.TerminalFilter(), time.Duration(bcPollSeconds)*time.Second)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done) // Signal goroutines to stop
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if !cm.readFromConnection() {
			return
		}

		cm.p.Send(connectionLostMsg{err: ErrConnectionClosed})
		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// readFromConnection forwards received bytes to the TUI in 50ms batches
// until the connection fails. Returns true if the connection was lost,
// false if shutdown was requested.
func (cm *connectionManager) readFromConnection() bool {
	chunks := make(chan []byte, 100)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		buf := make([]byte, 128)
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					// A failed WebSocket keeps returning ErrConnectionClosed
					if errors.Is(err, ErrConnectionClosed) {
						return
					}
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}

			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case chunks <- data:
			default:
				logger.Warn().Int("bytes", n).Msg("receive queue full, dropping bytes")
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch []byte
			drainLoop:
				for {
					select {
					case data := <-chunks:
						batch = append(batch, data...)
					default:
						break drainLoop
					}
				}
				if len(batch) > 0 {
					cm.p.Send(busDataMsg{data: batch})
				}
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
