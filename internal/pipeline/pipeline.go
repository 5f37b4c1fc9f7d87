// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pipeline runs the stages of a pipeline definition in order, handing
// each stage the table produced by the previous one and saving the scorefile
// after every stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/matt-FFFFFF/protpipe/internal/config"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
)

var (
	// ErrBuild is returned when a definition cannot be turned into a pipeline.
	ErrBuild = errors.New("failed to build pipeline")
	// ErrRun is returned when a pipeline stops before its last stage.
	ErrRun = errors.New("pipeline run failed")
)

// Stage is a configured runner and the arguments it is run with.
type Stage struct {
	Prefix     string
	Runner     runner.Runner
	JobStarter jobstarter.JobStarter // nil uses the runner's default
	Options    runner.Options
}

// Pipeline is an ordered list of stages over one work dir.
type Pipeline struct {
	WorkDir  string
	Inputs   poses.Inputs
	Format   poses.Format
	Stages   []Stage
	Progress progress.Reporter // receives stage events, may be nil
}

// Result is what a run produced, also when it failed part way.
type Result struct {
	RunID     string
	Table     *poses.Table // table after the last completed stage
	Scorefile string       // where Table was saved, empty if never saved
	Reports   []*runner.Report
	Failed    *runner.Report // report of the stage that stopped the run
}

// Build validates def and creates its job starters and runners. Tools are
// looked up in reg and located through tools.
func Build(def *config.Pipeline, tools config.Tools, reg runner.Registry) (*Pipeline, error) {
	if err := def.Validate(reg); err != nil {
		return nil, errors.Join(ErrBuild, err)
	}

	format, err := def.Format()
	if err != nil {
		return nil, errors.Join(ErrBuild, err)
	}

	workDir, err := filepath.Abs(def.WorkDir)
	if err != nil {
		return nil, errors.Join(ErrBuild, err)
	}

	starters := make(map[string]jobstarter.JobStarter)

	for _, j := range def.JobStarterDefinitions() {
		js, err := j.Build()
		if err != nil {
			return nil, errors.Join(ErrBuild, err)
		}

		starters[j.Name] = js
	}

	p := &Pipeline{WorkDir: workDir, Inputs: def.Inputs, Format: format}
	fallback := starters[def.DefaultJobStarterName()]

	for i, s := range def.Stages {
		raw, err := s.RawSettings()
		if err != nil {
			return nil, errors.Join(ErrBuild, fmt.Errorf("stage %d (%s): %w", i+1, s.Tool, err))
		}

		r, err := reg.Create(s.Tool, tools.Paths(s.Tool), raw, fallback)
		if err != nil {
			return nil, errors.Join(ErrBuild, fmt.Errorf("stage %d (%s): %w", i+1, s.Tool, err))
		}

		opts, err := s.RunnerOptions()
		if err != nil {
			return nil, errors.Join(ErrBuild, fmt.Errorf("stage %d (%s): %w", i+1, s.Tool, err))
		}

		p.Stages = append(p.Stages, Stage{
			Prefix:     s.Prefix,
			Runner:     r,
			JobStarter: starters[s.JobStarter],
			Options:    opts,
		})
	}

	return p, nil
}

// Run reads the inputs and executes every stage.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	ctx = ctxlog.With(ctx, "run", res.RunID)

	table, err := poses.Parse(ctx, p.WorkDir, p.Inputs)
	if err != nil {
		return res, errors.Join(ErrRun, err)
	}

	res.Table = table

	return res, p.execute(ctx, table, res)
}

// Execute runs every stage starting from table.
func (p *Pipeline) Execute(ctx context.Context, table *poses.Table) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Table: table}
	ctx = ctxlog.With(ctx, "run", res.RunID)

	return res, p.execute(ctx, table, res)
}

func (p *Pipeline) execute(ctx context.Context, table *poses.Table, res *Result) error {
	ctxlog.Info(ctx, "starting pipeline", "poses", table.Len(), "stages", len(p.Stages), "work_dir", table.WorkDir())

	reporter := p.Progress
	if reporter == nil {
		reporter = progress.NullReporter{}
	}

	for i, s := range p.Stages {
		if err := ctx.Err(); err != nil {
			return errors.Join(ErrRun, fmt.Errorf("before stage %d (%s): %w", i+1, s.Runner.Name(), err))
		}

		sctx := ctxlog.With(ctx, "stage", i+1)
		event := progress.Event{Stage: i + 1, Stages: len(p.Stages), Prefix: s.Prefix, Tool: s.Runner.Name()}

		reporter.Report(stamp(event, progress.EventStarted))

		next, rep, err := s.Runner.Run(sctx, table, s.JobStarter, s.Prefix, s.Options)
		if rep != nil {
			res.Reports = append(res.Reports, rep)
			event.Failed = len(rep.Failed)
			event.Dropped = len(rep.Dropped)
		}

		if err != nil {
			res.Failed = rep
			event.Err = err
			reporter.Report(stamp(event, progress.EventFailed))

			return errors.Join(ErrRun, fmt.Errorf("stage %d (%s): %w", i+1, s.Runner.Name(), err))
		}

		event.Poses = next.Len()

		table = next
		res.Table = table

		path, err := table.SaveScores(p.Format)
		if err != nil {
			res.Failed = rep
			event.Err = err
			reporter.Report(stamp(event, progress.EventFailed))

			return errors.Join(ErrRun, err)
		}

		res.Scorefile = path

		if rep != nil && !rep.OK() {
			ctxlog.Warn(sctx, "stage finished with missing poses", "failed", len(rep.Failed), "dropped", len(rep.Dropped))
		}

		ctxlog.Info(sctx, "stage finished", "poses", table.Len(), "scorefile", path)

		if rep != nil && rep.Cached {
			reporter.Report(stamp(event, progress.EventCached))
		} else {
			reporter.Report(stamp(event, progress.EventCompleted))
		}
	}

	return nil
}

func stamp(e progress.Event, t progress.EventType) progress.Event {
	e.Type = t
	e.Timestamp = time.Now()

	return e
}
