// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package esmfold

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/biofmt"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paths = runner.ToolPaths{Python: "/envs/esm/bin/python", Script: "/opt/esm/esmfold_inference.py"}

// prediction returns a PDB whose CA atoms carry the given pLDDT values.
func prediction(plddt ...float64) string {
	var sb strings.Builder
	for i, b := range plddt {
		fmt.Fprintf(&sb, "ATOM  %5d  N   ALA A%4d    %8.3f%8.3f%8.3f%6.2f%6.2f           N\n", 2*i+1, i+1, 0.0, 0.0, 0.0, 1.0, b)
		fmt.Fprintf(&sb, "ATOM  %5d  CA  ALA A%4d    %8.3f%8.3f%8.3f%6.2f%6.2f           C\n", 2*i+2, i+1, 0.0, 0.0, 0.0, 1.0, b)
	}

	return sb.String()
}

// folder pretends to be ESMFold: it folds every sequence of the batch inputs.
type folder struct {
	fs    afero.Fs
	plddt map[string][]float64
	cmds  []string
}

func (f *folder) Config() jobstarter.Config { return jobstarter.Config{MaxCores: 2} }

func (f *folder) Submit(_ context.Context, cmds []string, workDir string) error {
	f.cmds = cmds

	matches, err := afero.Glob(f.fs, filepath.Join(workDir, InputDir, "*.fa"))
	if err != nil {
		return err
	}

	for _, m := range matches {
		b, err := afero.ReadFile(f.fs, m)
		if err != nil {
			return err
		}

		recs, err := biofmt.ReadFasta(strings.NewReader(string(b)))
		if err != nil {
			return err
		}

		for _, r := range recs {
			p, ok := f.plddt[r.Header]
			if !ok {
				continue
			}

			out := filepath.Join(workDir, PredictionDir, r.Header+".pdb")
			if err := afero.WriteFile(f.fs, out, []byte(prediction(p...)), 0o644); err != nil {
				return err
			}
		}
	}

	return nil
}

func setup(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&runner.FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

func sequences(t *testing.T, fs afero.Fs, seqs map[string]string) *poses.Table {
	t.Helper()

	var files []string

	for _, d := range []string{"a", "b", "c"} {
		s, ok := seqs[d]
		if !ok {
			continue
		}

		path := "/work/mpnn/fastas/" + d + ".fa"
		require.NoError(t, afero.WriteFile(fs, path, []byte(">"+d+"\n"+s+"\n"), 0o644))

		files = append(files, path)
	}

	tbl, err := poses.FromPaths("/work", files)
	require.NoError(t, err)

	return tbl
}

func TestRun(t *testing.T) {
	fs := setup(t)
	tbl := sequences(t, fs, map[string]string{"a": "MKV", "b": "MKVL", "c": "MK"})

	js := &folder{fs: fs, plddt: map[string][]float64{
		"a": {80, 90, 100},
		"b": {50, 60, 70, 80},
		"c": {10, 20},
	}}

	stage, err := New(paths, Settings{ChunkSize: 64}, js)
	require.NoError(t, err)

	out, rep, err := stage.Run(context.Background(), tbl, nil, "esm", runner.Options{Passthrough: []string{"--max-tokens-per-batch 1024"}})
	require.NoError(t, err)
	assert.True(t, rep.OK())

	assert.Equal(t, []string{
		"/envs/esm/bin/python /opt/esm/esmfold_inference.py --fasta /work/esm/input_fastas/fasta_0001.fa " +
			"--chunk_size 64 --max-tokens-per-batch 1024 --output_dir /work/esm/esm_preds",
		"/envs/esm/bin/python /opt/esm/esmfold_inference.py --fasta /work/esm/input_fastas/fasta_0002.fa " +
			"--chunk_size 64 --max-tokens-per-batch 1024 --output_dir /work/esm/esm_preds",
	}, js.cmds)

	batch, err := afero.ReadFile(fs, "/work/esm/input_fastas/fasta_0001.fa")
	require.NoError(t, err)
	assert.Equal(t, ">a\nMKV\n>b\nMKVL\n", string(batch))

	assert.Equal(t, []string{"a", "b", "c"}, out.Descriptions())
	assert.Equal(t, "/work/esm/esm_preds/b.pdb", out.Poses()[1])

	row, err := out.Get("b")
	require.NoError(t, err)
	assert.InDelta(t, 65.0, row.Columns["esm_plddt"], 1e-9)
	assert.Equal(t, []any{50.0, 60.0, 70.0, 80.0}, row.Columns["esm_perres_plddt"])
	assert.Equal(t, 4.0, row.Columns["esm_num_residues"])
	assert.Equal(t, "/work/mpnn/fastas/b.fa", row.Columns["esm_input_location"])
}

func TestRun_MissingPredictionAborts(t *testing.T) {
	fs := setup(t)
	tbl := sequences(t, fs, map[string]string{"a": "MKV", "b": "MKVL"})

	js := &folder{fs: fs, plddt: map[string][]float64{"a": {80, 90, 100}}}
	stage, err := New(paths, DefaultSettings(), js)
	require.NoError(t, err)

	_, _, err = stage.Run(context.Background(), tbl, nil, "esm", runner.Options{})
	require.ErrorIs(t, err, runner.ErrParse)
	assert.Contains(t, err.Error(), "/work/esm/esm_preds/b.pdb")
	assert.Equal(t, 2, tbl.Len())
}

func TestTasks_Errors(t *testing.T) {
	fs := setup(t)

	require.NoError(t, afero.WriteFile(fs, "/in/two.fa", []byte(">x\nMK\n>y\nGG\n"), 0o644))

	tbl, err := poses.FromPaths("/work", []string{"/in/two.fa"})
	require.NoError(t, err)

	env := &runner.Env{Table: tbl, Prefix: "esm", Dir: "/work/esm", Fs: fs}
	_, err = (&tool{paths: paths}).Tasks(context.Background(), env, 1)
	require.ErrorIs(t, err, errInputSequence)

	env.Options.PoseOptionsColumn = "opts"
	_, err = (&tool{paths: paths}).Tasks(context.Background(), env, 1)
	require.ErrorIs(t, err, runner.ErrConfiguration)
}

func TestClean(t *testing.T) {
	fs := setup(t)
	require.NoError(t, afero.WriteFile(fs, "/work/esm/esm_preds/a.pdb", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/esm/input_fastas/fasta_0001.fa", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/esm/esmfold_scores.json", nil, 0o644))

	require.NoError(t, (&tool{}).Clean(context.Background(), &runner.Env{Dir: "/work/esm", Fs: fs}))

	entries, err := afero.ReadDir(fs, "/work/esm")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "esmfold_scores.json", entries[0].Name())
}

func TestRegistered(t *testing.T) {
	_, err := runner.DefaultRegistry.Create(Name, paths, []byte("chunk_size: -1"), nil)
	require.ErrorIs(t, err, runner.ErrConfiguration)

	_, err = runner.DefaultRegistry.Create(Name, runner.ToolPaths{}, nil, nil)
	require.ErrorIs(t, err, runner.ErrConfiguration)
}
