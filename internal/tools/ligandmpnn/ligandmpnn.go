// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ligandmpnn runs LigandMPNN sequence design as a pipeline stage.
//
// Poses are handed to LigandMPNN in batches through --pdb_path_multi JSON files.
// When per-pose options are in use every pose gets its own command instead.
// LigandMPNN writes seqs/<pose file stem>.fa with the native sequence first;
// every following record becomes a row <parent>_0001, <parent>_0002 ... whose
// pose is a single-record FASTA file below fastas/.
package ligandmpnn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/matt-FFFFFF/protpipe/internal/batcher"
	"github.com/matt-FFFFFF/protpipe/internal/biofmt"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/spf13/afero"
)

const (
	// Name is the registered tool name.
	Name = "ligandmpnn"
	// SeqsDir holds the FASTA files written by LigandMPNN.
	SeqsDir = "seqs"
	// BackbonesDir holds the backbones written by LigandMPNN.
	BackbonesDir = "backbones"
	// FastaDir holds one FASTA file per designed sequence.
	FastaDir = "fastas"
	// InputDir holds the --pdb_path_multi and --fixed_residues_multi files.
	InputDir = "input_json_files"
)

var errNoDesigns = errors.New("no designed sequences")

var _ runner.Tool = (*tool)(nil)

type tool struct {
	paths    runner.ToolPaths
	settings Settings
}

// New returns a LigandMPNN stage.
func New(paths runner.ToolPaths, s Settings, def jobstarter.JobStarter) (*runner.Stage, error) {
	if err := paths.Validate(Name); err != nil {
		return nil, err
	}

	switch {
	case s.NumSequences < 1:
		return nil, &runner.ConfigurationError{Tool: Name, Field: "nseq", Reason: fmt.Sprintf("must be at least 1, got %d", s.NumSequences)}
	case !slices.Contains(modelTypes, s.ModelType):
		return nil, &runner.ConfigurationError{Tool: Name, Field: "model_type", Reason: fmt.Sprintf("%q is not one of %v", s.ModelType, modelTypes)}
	case s.Temperature <= 0:
		return nil, &runner.ConfigurationError{Tool: Name, Field: "temperature", Reason: "must be positive"}
	}

	return runner.NewStage(&tool{paths: paths, settings: s}, def), nil
}

func (t *tool) Name() string     { return Name }
func (t *tool) Mode() poses.Mode { return poses.OneToMany }

// Clean removes the outputs and input files of a previous run.
func (t *tool) Clean(_ context.Context, env *runner.Env) error {
	for _, d := range []string{SeqsDir, BackbonesDir, FastaDir, InputDir} {
		if err := env.Fs.RemoveAll(filepath.Join(env.Dir, d)); err != nil {
			return err
		}
	}

	return nil
}

func (t *tool) Tasks(_ context.Context, env *runner.Env, n int) ([]runner.Task, error) {
	rows := env.Table.Rows()

	if err := uniqueStems(rows); err != nil {
		return nil, err
	}

	fixed, err := t.fixedResidues(env.Table)
	if err != nil {
		return nil, err
	}

	if env.Options.PoseOptionsColumn != "" {
		return t.poseTasks(env, rows, fixed, n)
	}

	groups, err := batcher.Split(rows, n)
	if err != nil {
		return nil, err
	}

	inDir := filepath.Join(env.Dir, InputDir)
	if err := env.Fs.MkdirAll(inDir, 0o755); err != nil {
		return nil, err
	}

	tasks := make([]runner.Task, len(groups))

	for i, g := range groups {
		opts, err := t.options(env, "")
		if err != nil {
			return nil, err
		}

		pdbs := make(map[string]string, len(g))
		fixedMulti := make(map[string]string, len(g))
		sources := make([]string, len(g))

		for j, r := range g {
			pdbs[r.Pose] = ""
			fixedMulti[r.Pose] = fixed[r.Description]
			sources[j] = r.Description
		}

		path := filepath.Join(inDir, fmt.Sprintf("pdbs_%04d.json", i+1))
		if err := writeJSON(env.Fs, path, pdbs); err != nil {
			return nil, err
		}

		opts.SetDefault("pdb_path_multi", jobstarter.Quote(path))

		if fixed != nil {
			path := filepath.Join(inDir, fmt.Sprintf("fixed_residues_%04d.json", i+1))
			if err := writeJSON(env.Fs, path, fixedMulti); err != nil {
				return nil, err
			}

			opts.SetDefault("fixed_residues_multi", jobstarter.Quote(path))
		}

		tasks[i] = runner.Task{Command: t.paths.Prefix() + " " + opts.String(), Sources: sources}
	}

	return tasks, nil
}

func (t *tool) poseTasks(env *runner.Env, rows []poses.Row, fixed map[string]string, n int) ([]runner.Task, error) {
	items := make([]runner.Item, len(rows))

	for i, r := range rows {
		opts, err := t.options(env, env.PoseOptions(r.Description))
		if err != nil {
			return nil, err
		}

		opts.SetDefault("pdb_path", jobstarter.Quote(r.Pose))

		if res := fixed[r.Description]; res != "" {
			opts.SetDefault("fixed_residues", jobstarter.Quote(res))
		}

		items[i] = runner.Item{Source: r.Description, Command: t.paths.Prefix() + " " + opts.String()}
	}

	return runner.GroupItems(items, n)
}

func (t *tool) options(env *runner.Env, pose string) (runner.FlagOptions, error) {
	opts, err := runner.ParseOptions(env.GlobalOptions(), pose)
	if err != nil {
		return opts, &runner.ConfigurationError{Tool: Name, Field: "options", Reason: err.Error()}
	}

	opts.SetDefault("model_type", t.settings.ModelType)
	opts.SetDefault("out_folder", jobstarter.Quote(env.Dir))
	opts.SetDefault("number_of_batches", strconv.Itoa(t.settings.NumSequences))
	opts.SetDefault("batch_size", "1")
	opts.SetDefault("temperature", strconv.FormatFloat(t.settings.Temperature, 'g', -1, 64))

	return opts, nil
}

// fixedResidues reads the fixed residue column. Values are strings like
// "A12 A13" or lists of residue ids. A nil map means no column is configured.
func (t *tool) fixedResidues(table *poses.Table) (map[string]string, error) {
	col := t.settings.FixedResColumn
	if col == "" {
		return nil, nil
	}

	vals, err := table.Column(col)
	if err != nil {
		return nil, &runner.ConfigurationError{Tool: Name, Field: "fixed_res_column", Reason: err.Error()}
	}

	out := make(map[string]string, len(vals))

	for i, d := range table.Descriptions() {
		switch v := vals[i].(type) {
		case nil:
		case string:
			out[d] = v
		case []any:
			ids := make([]string, len(v))
			for j, id := range v {
				s, ok := id.(string)
				if !ok {
					return nil, &runner.ConfigurationError{
						Tool: Name, Field: "fixed_res_column",
						Reason: fmt.Sprintf("pose %s: residue id %v is not a string", d, id),
					}
				}

				ids[j] = s
			}

			out[d] = strings.Join(ids, " ")
		default:
			return nil, &runner.ConfigurationError{
				Tool: Name, Field: "fixed_res_column",
				Reason: fmt.Sprintf("pose %s: column %s holds %T, want string or list", d, col, v),
			}
		}
	}

	return out, nil
}

// Collect splits the output of every source into one FASTA file per design.
func (t *tool) Collect(_ context.Context, env *runner.Env, sources []string) ([]poses.Record, []*runner.ParseError, error) {
	outDir := filepath.Join(env.Dir, FastaDir)
	if err := env.Fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, err
	}

	var (
		records []poses.Record
		perrs   []*runner.ParseError
	)

	for _, src := range sources {
		row, err := env.Table.Get(src)
		if err != nil {
			return nil, nil, err
		}

		path := filepath.Join(env.Dir, SeqsDir, stem(row.Pose)+".fa")

		designs, err := readDesigns(env.Fs, path)
		if err != nil {
			perrs = append(perrs, &runner.ParseError{Tool: Name, Description: src, Path: path, Err: err})
			continue
		}

		for i, d := range designs {
			desc := fmt.Sprintf("%s_%04d", src, i+1)

			cols, err := designColumns(d)
			if err != nil {
				perrs = append(perrs, &runner.ParseError{Tool: Name, Description: desc, Path: path, Err: err})
				continue
			}

			loc := filepath.Join(outDir, desc+".fa")
			if err := writeFasta(env.Fs, loc, biofmt.FastaRecord{Header: desc, Sequence: d.Sequence}); err != nil {
				return nil, nil, err
			}

			records = append(records, poses.Record{Description: desc, Location: loc, Source: src, Columns: cols})
		}
	}

	return records, perrs, nil
}

// readDesigns returns the records of a LigandMPNN output file after the native sequence.
func readDesigns(fs afero.Fs, path string) ([]biofmt.FastaRecord, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	recs, err := biofmt.ReadFasta(f)
	if err != nil {
		return nil, err
	}

	if len(recs) < 2 {
		return nil, errNoDesigns
	}

	return recs[1:], nil
}

func designColumns(rec biofmt.FastaRecord) (map[string]any, error) {
	fields := biofmt.HeaderFields(rec.Header)
	cols := map[string]any{"sequence": rec.Sequence}

	for _, c := range []struct{ column, key string }{
		{"overall_confidence", "overall_confidence"},
		{"seq_rec", "seq_rec"},
		{"temperature", "T"},
		{"seed", "seed"},
	} {
		v, err := biofmt.FloatField(fields, c.key)
		if err != nil {
			return nil, err
		}

		cols[c.column] = v
	}

	// protein_mpnn and the membrane models do not report ligand confidence.
	if _, ok := fields["ligand_confidence"]; ok {
		v, err := biofmt.FloatField(fields, "ligand_confidence")
		if err != nil {
			return nil, err
		}

		cols["ligand_confidence"] = v
	}

	return cols, nil
}

func uniqueStems(rows []poses.Row) error {
	seen := make(map[string]string, len(rows))

	for _, r := range rows {
		s := stem(r.Pose)
		if other, ok := seen[s]; ok {
			return &runner.ConfigurationError{
				Tool: Name, Field: "poses",
				Reason: fmt.Sprintf("poses %s and %s share the file name %s, their outputs would collide", other, r.Description, s),
			}
		}

		seen[s] = r.Description
	}

	return nil
}

func stem(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

func writeJSON(fs afero.Fs, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, path, b, 0o644)
}

func writeFasta(fs afero.Fs, path string, recs ...biofmt.FastaRecord) error {
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
