package parallel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bednajedna/parabot/internal/detect"
	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/runner"
)

// ErrBatchTimeout is returned by Bounded.Submit instead of any results when
// the batch did not finish within the timeout.
var ErrBatchTimeout = errors.New("batch timeout")

// TasksPerWorker is fixed: every job gets a fresh process, which exits with it.
const TasksPerWorker = 1

// TimeoutAdvice is logged when a batch times out.
const TimeoutAdvice = "Your tests are running too long. Consider increasing the timeout via CLI parameter -to or --timeout."

// Bounded runs file jobs with at most Limit processes at a time.
type Bounded struct {
	Limit        int            // <= 0 means runtime.NumCPU()
	Timeout      time.Duration  // 0 means wait indefinitely
	Builder      runner.Builder // nil means runner.Robot{}
	Strategy     runner.Strategy
	Console      io.Writer // captured output is echoed here, nil discards it
	CaptureLimit int
}

func (b Bounded) limit() int {
	if b.Limit <= 0 {
		return runtime.NumCPU()
	}
	return b.Limit
}

// Submit runs jobs and blocks until all of them are done or the timeout
// elapses. On success the results are in submission order. On timeout every
// running process is killed and reaped, jobs not yet started are skipped and
// (nil, ErrBatchTimeout) is returned. A cancelled ctx returns (nil, ctx.Err()).
func (b Bounded) Submit(ctx context.Context, jobs []job.Job) ([]job.Result, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if b.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, b.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	w := worker{
		builder:      b.Builder,
		strategy:     b.Strategy,
		console:      newConsole(b.Console),
		captureLimit: b.CaptureLimit,
	}
	if w.builder == nil {
		w.builder = runner.Robot{}
	}

	slog.DebugContext(ctx, "bounded pool: submitting", "jobs", len(jobs), "limit", b.limit(), "tasks_per_worker", TasksPerWorker, "timeout", b.Timeout.String())

	// each goroutine owns its own index, the slices are read after Wait
	results := make([]job.Result, len(jobs))
	done := make([]bool, len(jobs))

	var g errgroup.Group
	g.SetLimit(b.limit())
	for i, j := range jobs {
		if runCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], done[i] = w.runFile(runCtx, j)
			return nil
		})
	}
	_ = g.Wait() // workers do not return an error

	if allDone(done) {
		return results, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bounded pool: %w", err)
	}
	slog.WarnContext(ctx, TimeoutAdvice, "timeout", b.Timeout.String())
	return nil, ErrBatchTimeout
}

// runFile runs a single file job in its own process. It returns false when the
// job was skipped or aborted by runCtx, its result must be discarded then.
func (w worker) runFile(runCtx context.Context, j job.Job) (job.Result, bool) {
	if runCtx.Err() != nil {
		return job.Result{}, false
	}
	s := w.start(runCtx, j)
	defer s.release()

	res := s.wait()
	if runCtx.Err() != nil {
		slog.DebugContext(s.ctx, "job aborted", "exit", int(res.Exit))
		return job.Result{}, false
	}
	res.Status = detect.File(res.Stderr)
	w.report(s.ctx, res)
	return res, true
}

func allDone(done []bool) bool {
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}
