package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	ll := &slog.LevelVar{}
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		require.NoError(t, setLevel(ll, level))
		assert.Equal(t, want, ll.Level(), level)
	}

	err := setLevel(ll, "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}
