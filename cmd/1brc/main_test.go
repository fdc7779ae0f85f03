package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/miku/stationagg/internal/chunk"
	"github.com/miku/stationagg/internal/config"
)

const (
	input = "Berlin;12.3\nParis;-4.5\nBerlin;10.1\n"
	want  = "{Berlin=10.1/11.2/12.3, Paris=-4.5/-4.5/-4.5}\n"
)

func testConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Input = filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(cfg.Input, []byte(content), 0o644))
	return cfg
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"sequential", func(c *config.Config) { c.Workers = 1 }},
		{"sharded", func(c *config.Config) { c.Workers = 4 }},
		{"naive", func(c *config.Config) { c.Naive = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, input)
			tt.modify(cfg)
			var stdout bytes.Buffer
			require.NoError(t, run(context.Background(), cfg, nil, &stdout, zaptest.NewLogger(t)))
			assert.Equal(t, want, stdout.String())
		})
	}
}

func TestRunStdin(t *testing.T) {
	for _, naive := range []bool{false, true} {
		cfg := config.DefaultConfig()
		cfg.Input = "-"
		cfg.Naive = naive
		var stdout bytes.Buffer
		require.NoError(t, run(context.Background(), cfg, strings.NewReader(input), &stdout, zaptest.NewLogger(t)))
		assert.Equal(t, want, stdout.String())
	}
}

func TestRunError(t *testing.T) {
	cfg := testConfig(t, "Berlin;12.3\nParis\n")
	var stdout bytes.Buffer
	err := run(context.Background(), cfg, nil, &stdout, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, chunk.ErrMalformedRecord)
	assert.Empty(t, stdout.String())
}

func TestRunMetricsTextfile(t *testing.T) {
	cfg := testConfig(t, input)
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "1brc.prom")
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, nil, &stdout, zaptest.NewLogger(t)))
	b, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "brc_rows_total 3\n")
	assert.Contains(t, string(b), "brc_stations 2\n")

	cfg.Input = filepath.Join(t.TempDir(), "missing.txt")
	require.Error(t, run(context.Background(), cfg, nil, &stdout, zaptest.NewLogger(t)))
	b, err = os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `brc_runs_total{mode="engine",status="error"} 1`)
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := initLogger(config.LogConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}
	_, err := initLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
