package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bednajedna/parabot/internal/dispatch"
	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/model"
	"github.com/bednajedna/parabot/internal/parallel"
	"github.com/bednajedna/parabot/internal/runner"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArgs(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    []string
		then     []string
	}{
		{"short", []string{"--all", "-to", "30"}, []string{"--all", "--timeout", "30"}},
		{"short equals", []string{"-to=30", "--tags", "smoke"}, []string{"--timeout=30", "--tags", "smoke"}},
		{"long", []string{"--timeout", "30"}, []string{"--timeout", "30"}},
		{"after dashes", []string{"--all", "--", "-to"}, []string{"--all", "--", "-to"}},
		{"empty", []string{}, []string{}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			require.Equal(t, tt.then, normalizeArgs(tt.given))
		})
	}
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	cfg := model.DefaultConfig()
	cfg.Pool.Timeout = "1m"
	cfg.Pool.Concurrency = 3
	cfg.Runner.Strategy = model.StrategyIsolated
	cfg.Reports.Dir = "out"

	d, err := newDispatcher(cfg, overrides{}, io.Discard)
	require.NoError(t, err)
	bounded, ok := d.Bounded.(parallel.Bounded)
	require.True(t, ok)
	require.Equal(t, time.Minute, bounded.Timeout)
	require.Equal(t, 3, bounded.Limit)
	require.Equal(t, runner.StrategyIsolated, bounded.Strategy)
	require.Equal(t, "out", d.ReportsDir)

	timeout, concurrency, strategy := 5, 1, "inherit"
	d, err = newDispatcher(cfg, overrides{timeout: &timeout, concurrency: &concurrency, strategy: &strategy}, io.Discard)
	require.NoError(t, err)
	bounded = d.Bounded.(parallel.Bounded)
	require.Equal(t, 5*time.Second, bounded.Timeout)
	require.Equal(t, 1, bounded.Limit)
	require.Equal(t, runner.StrategyInherit, bounded.Strategy)

	negative := -1
	_, err = newDispatcher(cfg, overrides{timeout: &negative}, io.Discard)
	require.Error(t, err)

	fork := "fork"
	_, err = newDispatcher(cfg, overrides{strategy: &fork}, io.Discard)
	require.Error(t, err)
}

func TestExitError(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	ok := dispatch.Report{Outcomes: []dispatch.Outcome{
		{Mode: dispatch.ModeTags, Results: []job.Result{{Status: job.StatusOk}}},
	}}
	require.NoError(t, exitError(ctx, ok, false))

	failed := dispatch.Report{Outcomes: []dispatch.Outcome{
		{Mode: dispatch.ModeTags, Results: []job.Result{{Status: job.StatusOk}, {Status: job.StatusFail, Exit: 2}}},
	}}
	require.ErrorIs(t, exitError(ctx, failed, false), errFailed)
	require.NoError(t, exitError(ctx, failed, true))

	timeout := dispatch.Report{Outcomes: []dispatch.Outcome{
		{Mode: dispatch.ModeAll, Err: parallel.ErrBatchTimeout},
	}}
	require.ErrorIs(t, exitError(ctx, timeout, false), parallel.ErrBatchTimeout)
	require.NoError(t, exitError(ctx, timeout, true))
}

func TestLogWriter(t *testing.T) {
	t.Parallel()

	w, c, err := logWriter(model.LogDiscard)
	require.NoError(t, err)
	require.Equal(t, io.Discard, w)
	require.Nil(t, c)

	w, _, err = logWriter("")
	require.NoError(t, err)
	require.Equal(t, os.Stderr, w)

	path := filepath.Join(t.TempDir(), "parabot.log")
	w, c, err = logWriter(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "line\n")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "line\n", string(b))
}
