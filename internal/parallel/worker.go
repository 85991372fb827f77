package parallel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bednajedna/parabot/internal/capture"
	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/log"
	"github.com/bednajedna/parabot/internal/runner"
)

// worker holds what every job of one submission shares. It is passed by value
// and never mutated after creation.
type worker struct {
	builder      runner.Builder
	strategy     runner.Strategy
	console      *console
	captureLimit int
}

// started is a spawned job together with its capture. The capture belongs to
// the started value and is released by release.
type started struct {
	job     job.Job
	ctx     context.Context
	capture *capture.Capture
	proc    *runner.Process
	err     error
}

func jobContext(ctx context.Context, j job.Job) context.Context {
	return log.ContextAttrs(ctx,
		slog.String("job_id", j.ID),
		slog.String("kind", j.Kind.String()),
		slog.String("target", j.Target),
		slog.String("output_dir", j.OutputDir),
	)
}

// start creates the output dir and spawns the job without waiting for it.
// A spawn failure is written to the captured stderr, as a shell would do.
func (w worker) start(ctx context.Context, j job.Job) *started {
	ctx = jobContext(ctx, j)
	s := &started{
		job:     j,
		ctx:     ctx,
		capture: capture.Acquire(w.captureLimit),
	}

	if err := os.MkdirAll(j.OutputDir, 0o755); err != nil {
		s.err = fmt.Errorf("creating output dir: %w", err)
	} else {
		cmd := w.builder.Command(j)
		slog.DebugContext(ctx, "starting job", "cmd", cmd.String(), "strategy", w.strategy.String())
		s.proc, s.err = runner.Start(ctx, cmd, w.strategy, s.capture.Stdout(), s.capture.Stderr())
		if s.err == nil {
			slog.DebugContext(ctx, "job started", "pid", s.proc.Pid())
		}
	}

	if s.err != nil {
		slog.ErrorContext(ctx, "job not started", "error", s.err)
		_, _ = fmt.Fprintf(s.capture.Stderr(), "parabot: %v\n", s.err)
	}
	return s
}

// wait reaps the process of s and fills the result. Status is left for the
// caller, the rule differs per pool.
func (s *started) wait() job.Result {
	res := job.Result{
		Job:  s.job,
		Exit: job.ExitNotStarted,
		Err:  s.err,
	}
	if s.proc != nil {
		res.Started = s.proc.Started
		if s.err == nil {
			var err error
			res.Exit, err = s.proc.Wait()
			if err != nil {
				res.Err = err
			}
		}
		res.Stopped = s.proc.Stopped
	}
	res.Stdout = s.capture.StdoutBytes()
	res.Stderr = s.capture.StderrBytes()
	res.Truncated = s.capture.Truncated()
	return res
}

// release gives the capture buffers back. It is safe to call twice.
func (s *started) release() {
	s.capture.Release()
}

// report echoes captured output to the console and logs the classification.
func (w worker) report(ctx context.Context, res job.Result) {
	w.console.echo(res.Stdout, res.Stderr)
	attrs := []any{
		"status", res.Status.String(),
		"exit", int(res.Exit),
		"duration", res.Duration().String(),
	}
	if res.Truncated {
		attrs = append(attrs, "truncated", true)
	}
	if res.Status.Failed() {
		slog.WarnContext(ctx, "job failed", attrs...)
		return
	}
	slog.InfoContext(ctx, "job finished", attrs...)
}

// console serializes the echo of whole job outputs, so outputs of concurrent
// jobs never interleave.
type console struct {
	mx sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	if w == nil {
		w = io.Discard
	}
	return &console{w: w}
}

func (c *console) echo(chunks ...[]byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	for _, b := range chunks {
		if len(b) == 0 {
			continue
		}
		_, _ = c.w.Write(b)
	}
}
