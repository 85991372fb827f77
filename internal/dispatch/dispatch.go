// Package dispatch routes the requested modes to the worker pools.
//
// Modes are independent and run sequentially in a fixed order: all, folders,
// tags. File modes go to the bounded pool, the tag mode to the unbounded one.
// Outcomes of different modes are kept apart in the Report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/bednajedna/parabot/internal/job"
	"github.com/bednajedna/parabot/internal/log"
	"github.com/bednajedna/parabot/internal/walk"
)

var (
	ErrNoMode = errors.New("no mode selected: use --all, --folders or --tags")
	// ErrOutputCollision rejects a job whose output dir was already taken by a
	// job of the other kind in the same run, e.g. file ./smoke.robot and tag
	// smoke.robot both writing to reports/smoke.robot.
	ErrOutputCollision = errors.New("output dir already used")
)

type Mode int

const (
	ModeAll Mode = iota
	ModeFolders
	ModeTags
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeFolders:
		return "folders"
	case ModeTags:
		return "tags"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Request selects the modes of one invocation. Any combination is valid.
type Request struct {
	All     bool
	Folders []string
	Tags    []string
}

// Modes returns the selected modes in execution order.
func (r Request) Modes() []Mode {
	var modes []Mode
	if r.All {
		modes = append(modes, ModeAll)
	}
	if len(r.Folders) > 0 {
		modes = append(modes, ModeFolders)
	}
	if len(r.Tags) > 0 {
		modes = append(modes, ModeTags)
	}
	return modes
}

// BoundedPool runs file jobs, see parallel.Bounded.
type BoundedPool interface {
	Submit(ctx context.Context, jobs []job.Job) ([]job.Result, error)
}

// UnboundedPool runs tag jobs, see parallel.Unbounded.
type UnboundedPool interface {
	Submit(ctx context.Context, jobs []job.Job) []job.Result
}

// DiscoverFunc returns the test files found under roots, sorted and without
// duplicates. It may return found paths together with an error.
type DiscoverFunc func(ctx context.Context, roots ...string) ([]string, error)

type Dispatcher struct {
	Bounded    BoundedPool
	Unbounded  UnboundedPool
	Discover   DiscoverFunc // nil means walk with walk.DefaultExt
	Root       string       // root of the all mode, "." when empty
	ReportsDir string       // root of tag outputs, job.DefaultReportsDir when empty
}

// Outcome is the result of a single mode. Results is nil when Err is a batch
// level error such as a timeout.
type Outcome struct {
	Mode    Mode
	Results []job.Result
	Err     error
}

func (o Outcome) Failed() bool {
	return o.Err != nil || job.AnyFailed(o.Results)
}

type Report struct {
	Outcomes []Outcome
}

// Failed reports whether any mode failed or any job in it failed.
func (r Report) Failed() bool {
	return slices.ContainsFunc(r.Outcomes, Outcome.Failed)
}

// Err joins the batch level errors of all outcomes.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Mode, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Run executes every mode of req one after another. The returned error is
// ErrNoMode only, failures of modes and jobs are in the Report.
func (d Dispatcher) Run(ctx context.Context, req Request) (Report, error) {
	modes := req.Modes()
	if len(modes) == 0 {
		return Report{}, ErrNoMode
	}

	var report Report
	claimed := make(outputs)
	for _, mode := range modes {
		mctx := log.ContextAttrs(ctx, slog.String("mode", mode.String()))
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Mode: mode, Err: err})
			continue
		}
		var o Outcome
		switch mode {
		case ModeAll:
			root := d.Root
			if root == "" {
				root = "."
			}
			o = d.runFiles(mctx, mode, []string{root}, claimed)
		case ModeFolders:
			o = d.runFiles(mctx, mode, dedup(req.Folders), claimed)
		case ModeTags:
			o = d.runTags(mctx, dedup(req.Tags), claimed)
		}
		logOutcome(mctx, o)
		report.Outcomes = append(report.Outcomes, o)
	}
	return report, nil
}

func (d Dispatcher) discover(ctx context.Context, roots ...string) ([]string, error) {
	if d.Discover == nil {
		return walk.Collect(walk.Roots(ctx, walk.DefaultExt, roots...))
	}
	return d.Discover(ctx, roots...)
}

func (d Dispatcher) runFiles(ctx context.Context, mode Mode, roots []string, claimed outputs) Outcome {
	o := Outcome{Mode: mode}
	paths, batchErr := d.discover(ctx, roots...)
	if batchErr != nil {
		slog.WarnContext(ctx, "discovery failed", "roots", roots, "error", batchErr)
	}

	jobs := make([]job.Job, 0, len(paths))
	for _, path := range paths {
		j, err := job.NewFile(path)
		if err == nil {
			err = claimed.claim(j)
		}
		if err != nil {
			batchErr = errors.Join(batchErr, err)
			continue
		}
		jobs = append(jobs, j)
	}
	if len(jobs) == 0 {
		slog.WarnContext(ctx, "no test files found", "roots", roots)
	}

	results, err := d.Bounded.Submit(ctx, jobs)
	o.Results = results
	o.Err = errors.Join(batchErr, err)
	return o
}

func (d Dispatcher) runTags(ctx context.Context, tags []string, claimed outputs) Outcome {
	o := Outcome{Mode: ModeTags}
	jobs := make([]job.Job, 0, len(tags))
	var errs []error
	for _, tag := range tags {
		j, err := job.NewTag(d.ReportsDir, tag)
		if err == nil {
			err = claimed.claim(j)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, j)
	}
	o.Results = d.Unbounded.Submit(ctx, jobs)
	o.Err = errors.Join(errs...)
	return o
}

func logOutcome(ctx context.Context, o Outcome) {
	var failed int
	for _, r := range o.Results {
		if r.Status.Failed() {
			failed++
		}
	}
	attrs := []any{"jobs", len(o.Results), "failed", failed}
	if o.Err != nil {
		attrs = append(attrs, "error", o.Err)
	}
	if o.Failed() {
		slog.WarnContext(ctx, "mode finished with failures", attrs...)
		return
	}
	slog.InfoContext(ctx, "mode finished", attrs...)
}

// dedup drops repeated values keeping the first occurrence, so no two jobs of
// one mode share an output dir.
func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	ret := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}

// outputs maps the output dirs used in one run to the kind of job using them.
// A file job running again in a later mode reuses its own dir, which is fine.
type outputs map[string]job.Kind

func (o outputs) claim(j job.Job) error {
	key := j.OutputDir
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	if kind, ok := o[key]; ok && kind != j.Kind {
		return fmt.Errorf("%w: %s job %q writes to %s", ErrOutputCollision, j.Kind, j.Target, j.OutputDir)
	}
	o[key] = j.Kind
	return nil
}
