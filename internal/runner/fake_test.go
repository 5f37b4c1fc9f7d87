// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"context"
	"fmt"
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeTool emits one command per row and fabricates records for the given sources.
type fakeTool struct {
	mode       poses.Mode
	replicates int
	parseFail  map[string]bool
	collectErr error

	cleaned     bool
	gotN        int
	gotSources  []string
	poseOptions map[string]string
}

func (f *fakeTool) Name() string     { return "fake" }
func (f *fakeTool) Mode() poses.Mode { return f.mode }

func (f *fakeTool) Clean(_ context.Context, _ *Env) error {
	f.cleaned = true
	return nil
}

func (f *fakeTool) Tasks(_ context.Context, env *Env, n int) ([]Task, error) {
	f.gotN = n
	f.poseOptions = make(map[string]string)

	items := make([]Item, 0, env.Table.Len())
	for _, d := range env.Table.Descriptions() {
		items = append(items, Item{Source: d, Command: "make " + d})
		f.poseOptions[d] = env.PoseOptions(d)
	}

	return GroupItems(items, n)
}

func (f *fakeTool) Collect(_ context.Context, env *Env, sources []string) ([]poses.Record, []*ParseError, error) {
	f.gotSources = sources

	if f.collectErr != nil {
		return nil, nil, f.collectErr
	}

	var (
		recs  []poses.Record
		perrs []*ParseError
	)

	for _, s := range sources {
		if f.parseFail[s] {
			perrs = append(perrs, &ParseError{Tool: f.Name(), Description: s, Err: fmt.Errorf("no output")})
			continue
		}

		if f.mode == poses.OneToOne {
			recs = append(recs, poses.Record{
				Description: s,
				Location:    env.Dir + "/" + s + ".pdb",
				Source:      s,
				Columns:     map[string]any{"score": float64(len(s))},
			})

			continue
		}

		for i := range f.replicates {
			d := fmt.Sprintf("%s_%04d", s, i+1)
			recs = append(recs, poses.Record{
				Description: d,
				Location:    env.Dir + "/" + d + ".pdb",
				Source:      s,
				Columns:     map[string]any{"index": float64(i + 1)},
			})
		}
	}

	return recs, perrs, nil
}

// fakeStarter records submissions and fails as configured.
type fakeStarter struct {
	cfg     jobstarter.Config
	calls   int
	cmds    []string
	workDir string
	fail    func(cmds []string) error
}

func (s *fakeStarter) Config() jobstarter.Config { return s.cfg }

func (s *fakeStarter) Submit(_ context.Context, cmds []string, workDir string) error {
	s.calls++
	s.cmds = cmds
	s.workDir = workDir

	if s.fail != nil {
		return s.fail(cmds)
	}

	return nil
}

func arrayFailure(indices ...int) func([]string) error {
	return func(cmds []string) error {
		e := &jobstarter.ExecutionError{Strategy: "array", JobID: "1", Total: len(cmds), Partial: true}
		for _, i := range indices {
			e.Failed = append(e.Failed, jobstarter.TaskResult{Index: i, Command: cmds[i], ExitCode: 1, State: "FAILED"})
		}

		return e
	}
}

func memFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

func table(t *testing.T, descs ...string) *poses.Table {
	t.Helper()

	rows := make([]poses.Row, len(descs))
	for i, d := range descs {
		rows[i] = poses.Row{Description: d, Pose: "/in/" + d + ".pdb", InputPose: "/in/" + d + ".pdb"}
	}

	tbl, err := poses.New("/work", rows)
	require.NoError(t, err)

	return tbl
}
