// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/Thermoquad/milbus/internal/config"
	"github.com/Thermoquad/milbus/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Configuration and logging flags
	configPath string
	logFile    string
	logLevel   string
)

var (
	cfg       = config.Default()
	logger    = zerolog.Nop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "milbus",
	Short: "MIL-STD-1553B Bus Analyzer",
	Long: `Milbus - A CLI tool for monitoring, decoding and exercising MIL-STD-1553B buses.

Words travel as packed 20-bit frames (3 sync bits, 16 data bits, odd parity)
over a serial bus interface or a WebSocket bridge. Commands are provided for
raw word logging, transaction monitoring, word encoding and decoding, capture
file analysis and Chapter 10 recording import and export.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML or TOML file given with --config. Flags
override the file.

For WebSocket authentication, the password is read from the MILBUS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupRoot,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration and logging
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (trace, debug, info, warn, error, disabled)")
}

// setupRoot loads the configuration, applies flag overrides and starts logging
func setupRoot(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Connection.Port == "" {
		cfg.Connection.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") || cfg.Connection.URL == "" {
		cfg.Connection.URL = wsURL
	}
	if flags.Changed("username") || cfg.Connection.Username == "" {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-file") {
		cfg.Logs.File = logFile
	}
	if flags.Changed("log-level") {
		cfg.Logs.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	l, closer, err := logging.Setup("milbus", cfg.Logs)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	logger.Debug().Str("command", cmd.Name()).Str("config", configPath).Msg("starting")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
