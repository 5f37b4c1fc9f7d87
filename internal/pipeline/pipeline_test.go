// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/config"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoring adds a column to every row, or fails.
type scoring struct {
	name  string
	value float64
	err   error
	runs  int
	gotJS jobstarter.JobStarter
}

func (s *scoring) Name() string { return s.name }

func (s *scoring) Run(
	_ context.Context, table *poses.Table, js jobstarter.JobStarter, prefix string, _ runner.Options,
) (*poses.Table, *runner.Report, error) {
	s.runs++
	s.gotJS = js
	rep := &runner.Report{Tool: s.name, Prefix: prefix}

	if s.err != nil {
		return nil, rep, s.err
	}

	out := poses.StageOutput{Prefix: prefix, Mode: poses.OneToOne}
	for _, r := range table.Rows() {
		out.Records = append(out.Records, poses.Record{
			Description: r.Description,
			Location:    r.Pose,
			Source:      r.Description,
			Columns:     map[string]any{"score": s.value},
		})
	}

	next, err := table.Merge(out)
	rep.Records = len(out.Records)

	return next, rep, err
}

func memFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&poses.FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

func TestRun(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "/in/a.pdb", []byte("ATOM"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/b.pdb", []byte("ATOM"), 0o644))

	first, second := &scoring{name: "one", value: 1}, &scoring{name: "two", value: 2}
	p := &Pipeline{
		WorkDir: "/work",
		Inputs:  poses.Inputs{Dir: "/in", Glob: "*.pdb"},
		Format:  poses.FormatCSV,
		Stages: []Stage{
			{Prefix: "s1", Runner: first},
			{Prefix: "s2", Runner: second},
		},
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "/work/work_scores.csv", res.Scorefile)
	require.Len(t, res.Reports, 2)
	assert.Equal(t, []string{"a", "b"}, res.Table.Descriptions())

	saved, err := poses.Load(res.Scorefile, "")
	require.NoError(t, err)
	assert.Equal(t, res.Table.Rows(), saved.Rows())

	col, err := saved.Column("s2_score")
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 2.0}, col)
}

func TestExecute_StopsAtFailingStage(t *testing.T) {
	memFs(t)

	tbl, err := poses.FromPaths("/work", []string{"/in/a.pdb"})
	require.NoError(t, err)

	broken := &scoring{name: "broken", err: errors.New("tool exploded")}
	last := &scoring{name: "last"}
	p := &Pipeline{
		WorkDir: "/work",
		Format:  poses.FormatJSON,
		Stages: []Stage{
			{Prefix: "ok", Runner: &scoring{name: "fine", value: 1}},
			{Prefix: "bad", Runner: broken},
			{Prefix: "never", Runner: last},
		},
	}

	res, err := p.Execute(context.Background(), tbl)
	require.ErrorIs(t, err, ErrRun)
	assert.Contains(t, err.Error(), "stage 2 (broken): tool exploded")

	assert.Zero(t, last.runs)
	require.Len(t, res.Reports, 2)
	assert.Same(t, res.Reports[1], res.Failed)
	assert.Equal(t, "/work/work_scores.json", res.Scorefile)
	assert.True(t, res.Table.HasColumn("ok_score"))
}

func TestExecute_ReportsProgress(t *testing.T) {
	memFs(t)

	tbl, err := poses.FromPaths("/work", []string{"/in/a.pdb", "/in/b.pdb"})
	require.NoError(t, err)

	reporter := progress.NewChannelReporter(16)
	p := &Pipeline{
		WorkDir:  "/work",
		Format:   poses.FormatJSON,
		Progress: reporter,
		Stages: []Stage{
			{Prefix: "ok", Runner: &scoring{name: "fine", value: 1}},
			{Prefix: "bad", Runner: &scoring{name: "broken", err: errors.New("tool exploded")}},
		},
	}

	_, err = p.Execute(context.Background(), tbl)
	require.ErrorIs(t, err, ErrRun)
	reporter.Close()

	var got []progress.Event
	for e := range reporter.Events() {
		got = append(got, e)
	}

	require.Len(t, got, 4)

	types := make([]progress.EventType, len(got))
	for i, e := range got {
		types[i] = e.Type
		assert.Equal(t, 2, e.Stages)
		assert.False(t, e.Timestamp.IsZero())
	}

	assert.Equal(t, []progress.EventType{
		progress.EventStarted, progress.EventCompleted, progress.EventStarted, progress.EventFailed,
	}, types)
	assert.Equal(t, "ok", got[1].Prefix)
	assert.Equal(t, 2, got[1].Poses)
	assert.Equal(t, 2, got[3].Stage)
	assert.EqualError(t, got[3].Err, "tool exploded")
}

func TestExecute_Cancelled(t *testing.T) {
	memFs(t)

	tbl, err := poses.FromPaths("/work", []string{"/in/a.pdb"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scoring{name: "one"}
	res, err := (&Pipeline{Stages: []Stage{{Prefix: "p", Runner: s}}, Format: poses.FormatJSON}).Execute(ctx, tbl)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.runs)
	assert.Same(t, tbl, res.Table)
	assert.Empty(t, res.Scorefile)
}

func TestRun_MissingInputs(t *testing.T) {
	memFs(t)

	_, err := (&Pipeline{WorkDir: "/work", Inputs: poses.Inputs{Paths: []string{"/in/nope.pdb"}}}).Run(context.Background())
	require.ErrorIs(t, err, ErrRun)
	require.ErrorIs(t, err, poses.ErrInputNotFound)
}

type created struct {
	paths    runner.ToolPaths
	settings string
	def      jobstarter.JobStarter
}

func recordingRegistry(got map[string]*created) runner.Registry {
	factory := func(name string) runner.Factory {
		return func(paths runner.ToolPaths, settings []byte, def jobstarter.JobStarter) (runner.Runner, error) {
			if err := paths.Validate(name); err != nil {
				return nil, err
			}

			got[name] = &created{paths: paths, settings: string(settings), def: def}

			return &scoring{name: name}, nil
		}
	}

	return runner.Registry{
		"rfdiffusion": {New: factory("rfdiffusion")},
		"esmfold":     {New: factory("esmfold")},
	}
}

func TestBuild(t *testing.T) {
	def := &config.Pipeline{
		WorkDir:           "/work",
		StorageFormat:     "xlsx",
		DefaultJobStarter: "cpu",
		Inputs:            poses.Inputs{Paths: []string{"/in/a.pdb"}},
		JobStarters: []config.JobStarter{
			{Name: "cpu", Type: config.TypeLocal, MaxCores: 2},
			{Name: "gpu", Type: config.TypeSlurm, MaxCores: 4, GPUs: 1},
		},
		Stages: []config.Stage{
			{Tool: "rfdiffusion", Prefix: "rfd", JobStarter: "gpu", Settings: map[string]any{"num_diffusions": 3}},
			{Tool: "esmfold", Prefix: "esm", OnPartialFailure: "continue"},
		},
	}

	tools := config.Tools{
		"rfdiffusion": {Python: "/py", Script: "/rfd.py"},
		"esmfold":     {Python: "/py", Script: "/esm.py"},
	}

	got := make(map[string]*created)

	p, err := Build(def, tools, recordingRegistry(got))
	require.NoError(t, err)

	assert.Equal(t, "/work", p.WorkDir)
	assert.Equal(t, poses.FormatXLSX, p.Format)
	require.Len(t, p.Stages, 2)

	assert.IsType(t, &jobstarter.Array{}, p.Stages[0].JobStarter)
	assert.Nil(t, p.Stages[1].JobStarter)
	assert.Equal(t, runner.PartialFailureContinue, p.Stages[1].Options.PartialFailure)

	assert.Equal(t, "num_diffusions: 3\n", got["rfdiffusion"].settings)
	assert.Equal(t, "/esm.py", got["esmfold"].paths.Script)
	assert.IsType(t, &jobstarter.Local{}, got["esmfold"].def)
	assert.Equal(t, 2, got["esmfold"].def.Config().MaxCores)
}

func TestBuild_Errors(t *testing.T) {
	got := make(map[string]*created)
	reg := recordingRegistry(got)

	_, err := Build(&config.Pipeline{WorkDir: "/work"}, nil, reg)
	require.ErrorIs(t, err, ErrBuild)
	require.ErrorIs(t, err, config.ErrInvalidPipeline)

	def := &config.Pipeline{
		WorkDir: "/work",
		Inputs:  poses.Inputs{Paths: []string{"/in/a.pdb"}},
		Stages:  []config.Stage{{Tool: "esmfold", Prefix: "esm"}},
	}

	_, err = Build(def, config.Tools{}, reg)
	require.ErrorIs(t, err, ErrBuild)
	require.ErrorIs(t, err, runner.ErrConfiguration)
	assert.Contains(t, err.Error(), "stage 1 (esmfold)")
}
