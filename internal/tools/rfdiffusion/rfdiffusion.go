// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package rfdiffusion runs RFdiffusion backbone generation as a pipeline stage.
//
// Each input row yields num_diffusions backbones. RFdiffusion numbers its outputs
// <description>_0, <description>_1 ...; they are renamed to the 1-based, zero
// padded <description>_0001 ... so that stripping the last index layer leads
// back to the parent row.
package rfdiffusion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/matt-FFFFFF/protpipe/internal/biofmt"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/spf13/afero"
)

const (
	// Name is the registered tool name.
	Name = "rfdiffusion"
	// OutputDir is the directory below the stage directory holding the backbones.
	OutputDir = "output_pdbs"
)

var errNoOutput = errors.New("no backbones written")

var _ runner.Tool = (*tool)(nil)

type tool struct {
	paths    runner.ToolPaths
	settings Settings
}

// New returns an RFdiffusion stage.
func New(paths runner.ToolPaths, s Settings, def jobstarter.JobStarter) (*runner.Stage, error) {
	if err := paths.Validate(Name); err != nil {
		return nil, err
	}

	if s.NumDiffusions < 1 {
		return nil, &runner.ConfigurationError{
			Tool:   Name,
			Field:  "num_diffusions",
			Reason: fmt.Sprintf("must be at least 1, got %d", s.NumDiffusions),
		}
	}

	return runner.NewStage(&tool{paths: paths, settings: s}, def), nil
}

func (t *tool) Name() string     { return Name }
func (t *tool) Mode() poses.Mode { return poses.OneToMany }

// Clean removes the backbones and trajectories of a previous run.
func (t *tool) Clean(_ context.Context, env *runner.Env) error {
	return env.Fs.RemoveAll(filepath.Join(env.Dir, OutputDir))
}

func (t *tool) Tasks(_ context.Context, env *runner.Env, n int) ([]runner.Task, error) {
	dir := filepath.Join(env.Dir, OutputDir)
	if err := env.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	items := make([]runner.Item, 0, env.Table.Len())

	for _, row := range env.Table.Rows() {
		// Stale files of an interrupted run would be picked up as outputs.
		if err := removeOutputs(env.Fs, dir, row.Description); err != nil {
			return nil, err
		}

		cmd, err := t.command(env, row, dir)
		if err != nil {
			return nil, err
		}

		items = append(items, runner.Item{Source: row.Description, Command: cmd})
	}

	return runner.GroupItems(items, n)
}

func (t *tool) command(env *runner.Env, row poses.Row, dir string) (string, error) {
	opts, err := runner.ParseHydraOptions(env.GlobalOptions(), env.PoseOptions(row.Description))
	if err != nil {
		return "", &runner.ConfigurationError{Tool: Name, Field: "options", Reason: err.Error()}
	}

	opts.SetDefault("inference.output_prefix", jobstarter.Quote(filepath.Join(dir, row.Description)))
	opts.SetDefault("inference.input_pdb", jobstarter.Quote(row.Pose))
	opts.SetDefault("inference.num_designs", strconv.Itoa(t.settings.NumDiffusions))

	return t.paths.Prefix() + " " + opts.String(), nil
}

// Collect renames the outputs of every source and reads the residue count of each backbone.
func (t *tool) Collect(_ context.Context, env *runner.Env, sources []string) ([]poses.Record, []*runner.ParseError, error) {
	dir := filepath.Join(env.Dir, OutputDir)

	entries, err := afero.ReadDir(env.Fs, dir)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	var (
		records []poses.Record
		perrs   []*runner.ParseError
	)

	for _, src := range sources {
		outputs := rawOutputs(names, src)
		if len(outputs) == 0 {
			perrs = append(perrs, &runner.ParseError{
				Tool: Name, Description: src, Path: dir,
				Err: fmt.Errorf("%w for %s", errNoOutput, src),
			})

			continue
		}

		// Highest index first so a rename never lands on a file still to be renamed.
		for i := len(outputs) - 1; i >= 0; i-- {
			for _, f := range outputs[i].files {
				ext := f[len(outputs[i].stem):]
				if err := env.Fs.Rename(filepath.Join(dir, f), filepath.Join(dir, outputs[i].renamed+ext)); err != nil {
					return nil, nil, err
				}
			}
		}

		for _, o := range outputs {
			if !slices.Contains(o.files, o.stem+".pdb") {
				continue
			}

			loc := filepath.Join(dir, o.renamed+".pdb")

			rec, perr := record(env.Fs, src, o.renamed, loc)
			if perr != nil {
				perrs = append(perrs, perr)
				continue
			}

			records = append(records, rec)
		}
	}

	return records, perrs, nil
}

func record(fs afero.Fs, src, desc, loc string) (poses.Record, *runner.ParseError) {
	f, err := fs.Open(loc)
	if err != nil {
		return poses.Record{}, &runner.ParseError{Tool: Name, Description: desc, Path: loc, Err: err}
	}
	defer f.Close() //nolint:errcheck

	s, err := biofmt.ReadPDB(f)
	if err != nil {
		return poses.Record{}, &runner.ParseError{Tool: Name, Description: desc, Path: loc, Err: err}
	}

	return poses.Record{
		Description: desc,
		Location:    loc,
		Source:      src,
		Columns:     map[string]any{"num_residues": s.NumResidues()},
	}, nil
}

type output struct {
	index   int
	stem    string   // <source>_<index> as written by RFdiffusion
	renamed string   // <source>_<index+1, 4 digits>
	files   []string // every file of the design, e.g. .pdb and .trb
}

// rawOutputs returns the designs written for src ordered by index.
func rawOutputs(names []string, src string) []output {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(src) + `_(\d+)(\..+)$`)
	byIndex := make(map[int]*output)

	for _, n := range names {
		m := re.FindStringSubmatch(n)
		if m == nil {
			continue
		}

		i, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		o, ok := byIndex[i]
		if !ok {
			stem := src + "_" + m[1]
			o = &output{index: i, stem: stem, renamed: fmt.Sprintf("%s_%04d", src, i+1)}
			byIndex[i] = o
		}

		o.files = append(o.files, n)
	}

	out := make([]output, 0, len(byIndex))
	for _, o := range byIndex {
		out = append(out, *o)
	}

	slices.SortFunc(out, func(a, b output) int { return a.index - b.index })

	return out
}

func removeOutputs(fs afero.Fs, dir, src string) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return err
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(src) + `_\d+\.`)

	for _, e := range entries {
		if e.IsDir() || !re.MatchString(e.Name()) {
			continue
		}

		if err := fs.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}
