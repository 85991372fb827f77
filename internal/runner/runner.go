// Package runner starts the external test engine for one job.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - builds the command line for a job (see Builder)
//   - applies the process creation Strategy to the child environment
//   - places the child in its own process group, so cancellation kills
//     everything it spawned
//   - maps the finished process to a job.ExitStatus
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bednajedna/parabot/internal/job"
)

// waitDelay bounds the wait for output pipes after the process was killed.
const waitDelay = 5 * time.Second

// Strategy selects what the child process inherits from parabot.
type Strategy int

const (
	// StrategyInherit passes the whole parent environment plus Command.Env.
	StrategyInherit Strategy = iota
	// StrategyIsolated passes only PATH, HOME and Command.Env.
	StrategyIsolated
)

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inherit":
		return StrategyInherit, nil
	case "isolated":
		return StrategyIsolated, nil
	default:
		return 0, fmt.Errorf("unknown process strategy %q, expected inherit or isolated", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyInherit:
		return "inherit"
	case StrategyIsolated:
		return "isolated"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) environ(extra []string) []string {
	var env []string
	switch s {
	case StrategyIsolated:
		for _, key := range []string{"PATH", "HOME"} {
			if v, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+v)
			}
		}
	default:
		env = os.Environ()
	}
	return append(env, extra...)
}

// Command is a fully resolved command line of the test engine.
type Command struct {
	Path string
	Args []string
	Env  []string // KEY=value pairs added on top of the Strategy
	Dir  string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Builder turns a job into the command which executes it.
type Builder interface {
	Command(job.Job) Command
}

// Func adapts an ordinary function to a Builder.
type Func func(job.Job) Command

func (f Func) Command(j job.Job) Command {
	return f(j)
}

// Process is a started child.
type Process struct {
	cmd     *exec.Cmd
	Started time.Time
	Stopped time.Time
}

// Start spawns the command and returns without waiting for it. Every started
// Process must be waited for, otherwise it stays unreaped. Cancelling ctx
// kills the process group.
func Start(ctx context.Context, c Command, strategy Strategy, stdout, stderr io.Writer) (*Process, error) {
	if c.Path == "" {
		return nil, errors.New("empty command path")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = strategy.environ(c.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	p := &Process{cmd: cmd, Started: time.Now().UTC()}
	if err := cmd.Start(); err != nil {
		p.Stopped = time.Now().UTC()
		return p, fmt.Errorf("starting %s: %w", c.Path, err)
	}
	return p, nil
}

// Pid returns the process id of a started process.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait reaps the process. The returned error is nil whenever the process ran
// to an exit status, a nonzero status alone is not an error.
func (p *Process) Wait() (job.ExitStatus, error) {
	err := p.cmd.Wait()
	p.Stopped = time.Now().UTC()
	state := p.cmd.ProcessState
	if state == nil {
		return job.ExitNotStarted, err
	}
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return exitStatus(state), nil
	}
	// the process exited, but Wait reported a context or pipe error
	return exitStatus(state), err
}

// Run starts the command and waits for it.
func Run(ctx context.Context, c Command, strategy Strategy, stdout, stderr io.Writer) (job.ExitStatus, error) {
	p, err := Start(ctx, c, strategy, stdout, stderr)
	if err != nil {
		return job.ExitNotStarted, err
	}
	return p.Wait()
}
