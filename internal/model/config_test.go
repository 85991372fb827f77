package model_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bednajedna/parabot/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("PARABOT_TEST_BROWSER", "firefox")
	yml := `
version: 0
runner:
  binary: /opt/robot/bin/robot
  args: ["--loglevel", "DEBUG"]
  env:
    BROWSER: $PARABOT_TEST_BROWSER
    LANG: C
  strategy: isolated
pool:
  concurrency: 3
  timeout: 90s
service:
  verbose: true
  format: text
`
	cfg, err := model.LoadConfig(strings.NewReader(yml), model.YAML)
	require.NoError(t, err)
	require.Equal(t, "/opt/robot/bin/robot", cfg.Runner.Binary)
	require.Equal(t, []string{"--loglevel", "DEBUG"}, cfg.Runner.Args)
	require.Equal(t, model.StrategyIsolated, cfg.Runner.Strategy)
	require.Equal(t, []string{"BROWSER=firefox", "LANG=C"}, cfg.Runner.Environ())
	require.Equal(t, 3, cfg.Pool.Concurrency)
	d, err := cfg.Pool.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, d)
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, model.FormatText, cfg.Service.Format)

	// defaults survive
	require.Equal(t, "reports", cfg.Reports.Dir)
	require.Equal(t, ".robot", cfg.Discovery.Extension)
	require.Equal(t, model.LogStderr, cfg.Service.Log)
}

func TestLoadConfig_TOML(t *testing.T) {
	t.Parallel()
	tml := `
version = 0

[runner]
binary = "pabot"

[pool]
concurrency = 2
timeout = "2m"

[reports]
dir = "out"
`
	cfg, err := model.LoadConfig(strings.NewReader(tml), model.TOML)
	require.NoError(t, err)
	require.Equal(t, "pabot", cfg.Runner.Binary)
	require.Equal(t, 2, cfg.Pool.Concurrency)
	require.Equal(t, "out", cfg.Reports.Dir)
	d, err := cfg.Pool.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, d)
}

func TestLoadConfig_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := model.LoadConfig(strings.NewReader(""), model.YAML)
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		path     string
	}{
		{"unknown strategy", "runner:\n  strategy: fork\n", "runner.strategy"},
		{"bad timeout", "pool:\n  timeout: soon\n", "pool.timeout"},
		{"negative concurrency", "pool:\n  concurrency: -1\n", "pool.concurrency"},
		{"unknown field", "pool:\n  workers: 4\n", "pool"},
		{"version", "version: 1\n", "version"},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tt.given), model.YAML)
			require.Error(t, err)
			details := model.ConfigErrDetails(err)
			require.NotEmpty(t, details)
			var paths []string
			for _, d := range details {
				paths = append(paths, d.Path)
			}
			require.Contains(t, paths, tt.path)
		})
	}

	_, err := model.LoadConfig(strings.NewReader("runner: [\n"), model.YAML)
	require.Error(t, err)
	require.Len(t, model.ConfigErrDetails(err), 1)
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "parabot.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nconcurrency = 5\n"), 0o644))

	cfg, err := model.LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Pool.Concurrency)

	_, err = model.LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	require.Equal(t, model.TOML, model.FormatOf("a/parabot.TOML"))
	require.Equal(t, model.YAML, model.FormatOf("parabot.yml"))
}
