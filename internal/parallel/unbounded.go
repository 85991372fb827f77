package parallel

import (
	"context"
	"io"
	"log/slog"

	"github.com/bednajedna/parabot/internal/detect"
	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/runner"
)

// Unbounded runs one process per tag job without any concurrency limit.
type Unbounded struct {
	Builder      runner.Builder
	Strategy     runner.Strategy
	Console      io.Writer
	CaptureLimit int
}

// Submit starts all jobs, then joins them in spawn order and returns their
// results in that order. Every started process is reaped before Submit
// returns, a job which failed to start is recorded with Exit ExitNotStarted.
// Cancelling ctx kills all processes, which are still reaped.
func (u Unbounded) Submit(ctx context.Context, jobs []job.Job) []job.Result {
	w := worker{
		builder:      u.Builder,
		strategy:     u.Strategy,
		console:      newConsole(u.Console),
		captureLimit: u.CaptureLimit,
	}
	if w.builder == nil {
		w.builder = runner.Robot{}
	}

	slog.DebugContext(ctx, "unbounded pool: spawning", "jobs", len(jobs))

	spawned := make([]*started, 0, len(jobs))
	defer func() {
		for _, s := range spawned {
			s.release()
		}
	}()
	for _, j := range jobs {
		spawned = append(spawned, w.start(ctx, j))
	}

	results := make([]job.Result, len(spawned))
	for i, s := range spawned {
		res := s.wait()
		res.Status = detect.Tag(res.Exit)
		w.report(s.ctx, res)
		s.release()
		results[i] = res
	}
	return results
}
