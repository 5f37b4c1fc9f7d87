// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package esmfold runs ESMFold structure prediction as a pipeline stage.
//
// Every batch gets one multi-record FASTA file whose headers are the row
// descriptions; the prediction of a row is esm_preds/<description>.pdb with
// per-residue pLDDT in the B-factor column.
package esmfold

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/matt-FFFFFF/protpipe/internal/batcher"
	"github.com/matt-FFFFFF/protpipe/internal/biofmt"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/spf13/afero"
)

const (
	// Name is the registered tool name.
	Name = "esmfold"
	// InputDir holds the batch FASTA files.
	InputDir = "input_fastas"
	// PredictionDir holds the predicted structures.
	PredictionDir = "esm_preds"
)

var errInputSequence = errors.New("pose is not a single-sequence FASTA file")

var _ runner.Tool = (*tool)(nil)

type tool struct {
	paths    runner.ToolPaths
	settings Settings
}

// New returns an ESMFold stage.
func New(paths runner.ToolPaths, s Settings, def jobstarter.JobStarter) (*runner.Stage, error) {
	if err := paths.Validate(Name); err != nil {
		return nil, err
	}

	if s.ChunkSize < 0 {
		return nil, &runner.ConfigurationError{Tool: Name, Field: "chunk_size", Reason: "must not be negative"}
	}

	return runner.NewStage(&tool{paths: paths, settings: s}, def), nil
}

func (t *tool) Name() string     { return Name }
func (t *tool) Mode() poses.Mode { return poses.OneToOne }

// Clean removes predictions and batch inputs of a previous run.
func (t *tool) Clean(_ context.Context, env *runner.Env) error {
	for _, d := range []string{InputDir, PredictionDir} {
		if err := env.Fs.RemoveAll(filepath.Join(env.Dir, d)); err != nil {
			return err
		}
	}

	return nil
}

func (t *tool) Tasks(_ context.Context, env *runner.Env, n int) ([]runner.Task, error) {
	if env.Options.PoseOptionsColumn != "" {
		return nil, &runner.ConfigurationError{
			Tool: Name, Field: "pose_options_column",
			Reason: "sequences are folded in batches, per-pose options are not supported",
		}
	}

	opts, err := runner.ParseOptions(env.GlobalOptions(), "")
	if err != nil {
		return nil, &runner.ConfigurationError{Tool: Name, Field: "options", Reason: err.Error()}
	}

	opts.SetDefault("output_dir", jobstarter.Quote(filepath.Join(env.Dir, PredictionDir)))

	if t.settings.ChunkSize > 0 {
		opts.SetDefault("chunk_size", strconv.Itoa(t.settings.ChunkSize))
	}

	inDir := filepath.Join(env.Dir, InputDir)
	for _, d := range []string{inDir, filepath.Join(env.Dir, PredictionDir)} {
		if err := env.Fs.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}

	groups, err := batcher.Split(env.Table.Rows(), n)
	if err != nil {
		return nil, err
	}

	tasks := make([]runner.Task, len(groups))

	for i, g := range groups {
		recs := make([]biofmt.FastaRecord, len(g))
		sources := make([]string, len(g))

		for j, r := range g {
			seq, err := readSequence(env.Fs, r.Pose)
			if err != nil {
				return nil, fmt.Errorf("pose %s: %w", r.Description, err)
			}

			recs[j] = biofmt.FastaRecord{Header: r.Description, Sequence: seq}
			sources[j] = r.Description
		}

		path := filepath.Join(inDir, fmt.Sprintf("fasta_%04d.fa", i+1))
		if err := writeFasta(env.Fs, path, recs); err != nil {
			return nil, err
		}

		cmd := t.paths.Prefix() + " --fasta " + jobstarter.Quote(path) + " " + opts.String()
		tasks[i] = runner.Task{Command: cmd, Sources: sources}
	}

	return tasks, nil
}

// Collect scores the prediction of every source.
func (t *tool) Collect(_ context.Context, env *runner.Env, sources []string) ([]poses.Record, []*runner.ParseError, error) {
	var (
		records []poses.Record
		perrs   []*runner.ParseError
	)

	for _, src := range sources {
		loc := filepath.Join(env.Dir, PredictionDir, src+".pdb")

		s, err := readStructure(env.Fs, loc)
		if err != nil {
			perrs = append(perrs, &runner.ParseError{Tool: Name, Description: src, Path: loc, Err: err})
			continue
		}

		perRes := make([]any, 0, s.NumResidues())
		for _, b := range s.BFactors() {
			perRes = append(perRes, b)
		}

		records = append(records, poses.Record{
			Description: src,
			Location:    loc,
			Source:      src,
			Columns: map[string]any{
				"plddt":        s.MeanBFactor(),
				"perres_plddt": perRes,
				"num_residues": s.NumResidues(),
			},
		})
	}

	return records, perrs, nil
}

func readSequence(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	recs, err := biofmt.ReadFasta(f)
	if err != nil {
		return "", err
	}

	if len(recs) != 1 || recs[0].Sequence == "" {
		return "", fmt.Errorf("%w: %s holds %d records", errInputSequence, path, len(recs))
	}

	return recs[0].Sequence, nil
}

func readStructure(fs afero.Fs, path string) (biofmt.Structure, error) {
	f, err := fs.Open(path)
	if err != nil {
		return biofmt.Structure{}, err
	}
	defer f.Close() //nolint:errcheck

	return biofmt.ReadPDB(f)
}

func writeFasta(fs afero.Fs, path string, recs []biofmt.FastaRecord) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}

	if err := biofmt.WriteFasta(f, recs...); err != nil {
		f.Close() //nolint:errcheck
		return err
	}

	return f.Close()
}
