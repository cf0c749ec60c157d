// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/milbus/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"trace", zerolog.TraceLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestSetupConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := setup("milbus", config.LogConfig{Level: "info"}, &console)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Str("port", "/dev/ttyUSB0").Msg("connected")
	logger.Debug().Msg("hidden")

	out := console.String()
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "/dev/ttyUSB0")
	assert.NotContains(t, out, "hidden")
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "milbus.log")
	var console bytes.Buffer

	logger, closer, err := setup("milbus", config.LogConfig{
		File:       path,
		Level:      "debug",
		MaxSizeMB:  1,
		MaxAgeDays: 1,
		MaxBackups: 1,
	}, &console)
	require.NoError(t, err)

	logger.Debug().Int("rt", 5).Msg("status word")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"status word"`)
	assert.Contains(t, string(data), `"app":"milbus"`)
	assert.Contains(t, string(data), `"rt":5`)
	assert.Contains(t, console.String(), "status word")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	var console bytes.Buffer
	_, _, err := setup("milbus", config.LogConfig{Level: "loud"}, &console)
	assert.Error(t, err)
}
