package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bednajedna/parabot/internal/dispatch"
	"github.com/bednajedna/parabot/internal/log"
	"github.com/bednajedna/parabot/internal/model"
	"github.com/bednajedna/parabot/internal/parallel"
	"github.com/bednajedna/parabot/internal/runner"
	"github.com/bednajedna/parabot/internal/walk"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// overrides are the command line values, which take precedence over the
// config file. A nil pointer means the flag was not set.
type overrides struct {
	timeout     *int
	concurrency *int
	strategy    *string
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := slog.Group("parabot",
		slog.String("run_id", uuid.New().String()),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	var ov overrides
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		ov.timeout = &flagTimeout
	}
	if flags.Changed("concurrency") {
		ov.concurrency = &flagConcurrency
	}
	if flags.Changed("strategy") {
		ov.strategy = &flagStrategy
	}

	d, err := newDispatcher(config, ov, os.Stdout)
	if err != nil {
		return err
	}

	req := dispatch.Request{
		All:     flagAll,
		Folders: flagFolders,
		Tags:    flagTags,
	}
	if flags.Changed("timeout") && !req.All && len(req.Folders) == 0 {
		slog.WarnContext(ctx, "--timeout has an effect on --all and --folders only")
	}

	report, err := d.Run(ctx, req)
	if err != nil {
		return err
	}
	return exitError(ctx, report, flagCompatExit)
}

// newDispatcher wires the pools with the configured runner.
func newDispatcher(cfg model.Config, ov overrides, console io.Writer) (dispatch.Dispatcher, error) {
	timeout, err := cfg.Pool.TimeoutDuration()
	if err != nil {
		return dispatch.Dispatcher{}, err
	}
	if ov.timeout != nil {
		if *ov.timeout < 0 {
			return dispatch.Dispatcher{}, fmt.Errorf("--timeout %d is negative", *ov.timeout)
		}
		timeout = time.Duration(*ov.timeout) * time.Second
	}

	concurrency := cfg.Pool.Concurrency
	if ov.concurrency != nil {
		concurrency = *ov.concurrency
	}

	strategyName := cfg.Runner.Strategy
	if ov.strategy != nil {
		strategyName = *ov.strategy
	}
	strategy, err := runner.ParseStrategy(strategyName)
	if err != nil {
		return dispatch.Dispatcher{}, err
	}

	builder := runner.Robot{
		Binary: cfg.Runner.Binary,
		Args:   cfg.Runner.Args,
		Env:    cfg.Runner.Environ(),
	}
	ext := cfg.Discovery.Extension

	return dispatch.Dispatcher{
		Bounded: parallel.Bounded{
			Limit:        concurrency,
			Timeout:      timeout,
			Builder:      builder,
			Strategy:     strategy,
			Console:      console,
			CaptureLimit: cfg.Pool.CaptureLimit,
		},
		Unbounded: parallel.Unbounded{
			Builder:      builder,
			Strategy:     strategy,
			Console:      console,
			CaptureLimit: cfg.Pool.CaptureLimit,
		},
		Discover: func(ctx context.Context, roots ...string) ([]string, error) {
			return walk.Collect(walk.Roots(ctx, ext, roots...))
		},
		ReportsDir: cfg.Reports.Dir,
	}, nil
}

// exitError turns a report into the process exit code. parabot 0.0.1 always
// exited with 0, compat keeps that.
func exitError(ctx context.Context, report dispatch.Report, compat bool) error {
	for _, o := range report.Outcomes {
		for _, r := range o.Results {
			if r.Status.Failed() {
				slog.InfoContext(ctx, "failed job",
					"mode", o.Mode.String(),
					"target", r.Job.Target,
					"status", r.Status.String(),
					"exit", int(r.Exit),
				)
			}
		}
	}
	if !report.Failed() {
		return nil
	}
	if compat {
		slog.WarnContext(ctx, "tests have failed, exiting with 0 because of --compat-exit", "error", report.Err())
		return nil
	}
	if err := report.Err(); err != nil {
		return err
	}
	return errFailed
}
