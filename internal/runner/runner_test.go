package runner_test

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/runner"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

func TestRun(t *testing.T) {
	t.Parallel()
	sh := shell(t)

	var testCases = []struct {
		scenario string
		script   string
		exit     job.ExitStatus
		stdout   string
		stderr   string
	}{
		{"success", "echo stdout", 0, "stdout\n", ""},
		{"stderr", "echo stderr 1>&2", 0, "", "stderr\n"},
		{"exit 2", "exit 2", 2, "", ""},
		{"sigkill", "kill -9 $$", -9, "", ""},
		{"sigterm", "kill -15 $$", -15, "", ""},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			cmd := runner.Command{Path: sh, Args: []string{"-c", tt.script}}
			exit, err := runner.Run(t.Context(), cmd, runner.StrategyInherit, &stdout, &stderr)
			require.NoError(t, err)
			require.Equal(t, tt.exit, exit)
			require.Equal(t, tt.stdout, stdout.String())
			require.Equal(t, tt.stderr, stderr.String())
		})
	}
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()

	cmd := runner.Command{Path: "does not exist"}
	exit, err := runner.Run(t.Context(), cmd, runner.StrategyInherit, nil, nil)
	require.Error(t, err)
	var execErr *exec.Error
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, job.ExitNotStarted, exit)

	_, err = runner.Start(t.Context(), runner.Command{}, runner.StrategyInherit, nil, nil)
	require.Error(t, err)
}

func TestStartPid(t *testing.T) {
	t.Parallel()
	sh := shell(t)

	var stdout bytes.Buffer
	p, err := runner.Start(t.Context(), runner.Command{Path: sh, Args: []string{"-c", "echo $$"}}, runner.StrategyInherit, &stdout, nil)
	require.NoError(t, err)
	pid := p.Pid()
	require.Positive(t, pid)

	exit, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, job.ExitStatus(0), exit)
	require.Equal(t, strconv.Itoa(pid), strings.TrimSpace(stdout.String()))
	require.False(t, p.Stopped.Before(p.Started))
}

func TestRunCancel(t *testing.T) {
	t.Parallel()
	sh := shell(t)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	t.Cleanup(cancel)

	// the grandchild sleep shares the process group and must die too
	cmd := runner.Command{Path: sh, Args: []string{"-c", "sleep 30 & wait"}}
	start := time.Now()
	exit, _ := runner.Run(ctx, cmd, runner.StrategyInherit, nil, nil)
	require.Less(t, time.Since(start), 10*time.Second)
	require.True(t, exit.Signaled(), "exit %d", exit)
	require.Equal(t, 9, exit.Signal())
}

func TestStrategy(t *testing.T) {
	sh := shell(t)
	t.Setenv("PARABOT_TEST_SECRET", "42")

	cmd := runner.Command{
		Path: sh,
		Args: []string{"-c", `echo "secret=$PARABOT_TEST_SECRET extra=$EXTRA"`},
		Env:  []string{"EXTRA=yes"},
	}

	var inherit bytes.Buffer
	_, err := runner.Run(t.Context(), cmd, runner.StrategyInherit, &inherit, nil)
	require.NoError(t, err)
	require.Equal(t, "secret=42 extra=yes\n", inherit.String())

	var isolated bytes.Buffer
	_, err = runner.Run(t.Context(), cmd, runner.StrategyIsolated, &isolated, nil)
	require.NoError(t, err)
	require.Equal(t, "secret= extra=yes\n", isolated.String())
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := runner.ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, runner.StrategyInherit, s)
	s, err = runner.ParseStrategy("Isolated")
	require.NoError(t, err)
	require.Equal(t, runner.StrategyIsolated, s)
	require.Equal(t, "isolated", s.String())
	_, err = runner.ParseStrategy("fork")
	require.Error(t, err)
}

func TestRobot(t *testing.T) {
	t.Parallel()

	file, err := job.NewFile("suites/login.robot")
	require.NoError(t, err)
	tag, err := job.NewTag("", "smoke")
	require.NoError(t, err)

	r := runner.Robot{Args: []string{"--loglevel", "DEBUG"}}

	cmd := r.Command(file)
	require.Equal(t, runner.DefaultRobot, cmd.Path)
	require.Equal(t, []string{
		"--outputdir", filepath.Join("suites", "reports", "login.robot"),
		"--loglevel", "DEBUG",
		filepath.Join("suites", "login.robot"),
	}, cmd.Args)
	require.Equal(t, ".", cmd.Dir)

	cmd = r.Command(tag)
	require.Equal(t, []string{
		"--outputdir", filepath.Join("reports", "smoke"),
		"--include", "smoke",
		"--loglevel", "DEBUG",
		"./",
	}, cmd.Args)
	require.True(t, strings.HasPrefix(cmd.String(), "robot --outputdir"))
}
