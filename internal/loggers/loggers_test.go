// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package loggers

import (
	"path/filepath"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"
)

func TestParseAndSetDebugLevels(t *testing.T) {
	defer SetLogLevels("info")

	require.NoError(t, ParseAndSetDebugLevels("debug"))
	for _, id := range SupportedSubsystems() {
		require.Equal(t, slog.LevelDebug, subsystemLoggers[id].Level(), id)
	}

	require.NoError(t, ParseAndSetDebugLevels("VALT=trace,HWKY=error"))
	require.Equal(t, slog.LevelTrace, VaultLog.Level())
	require.Equal(t, slog.LevelError, HardwareLog.Level())
	require.Equal(t, slog.LevelDebug, StorageLog.Level())

	bad := []string{"loud", "VALT", "VALT=trace=x", "NOPE=info", "VALT=loud", "VALT=info,"}
	for _, s := range bad {
		require.Error(t, ParseAndSetDebugLevels(s), s)
	}
}

func TestSupportedSubsystems(t *testing.T) {
	require.Equal(t, []string{"HWKY", "KSTR", "LEDG", "MAIN", "STOR", "VALT"},
		SupportedSubsystems())
}

func TestLogRotator(t *testing.T) {
	require.NoError(t, CloseLogRotator())
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, InitLogRotator(logFile, 1024))
	MainLog.Info("rotating")
	require.NoError(t, CloseLogRotator())
	logRotator = nil
}
