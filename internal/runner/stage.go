// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var _ Runner = (*Stage)(nil)

// Stage turns a Tool into a Runner.
type Stage struct {
	tool Tool
	def  jobstarter.JobStarter
}

// NewStage binds tool to a default job starter, which may be nil when every
// call supplies one.
func NewStage(tool Tool, def jobstarter.JobStarter) *Stage {
	return &Stage{tool: tool, def: def}
}

// Name implements Runner.
func (s *Stage) Name() string {
	return s.tool.Name()
}

// ScoresFile returns where the records of a stage are cached.
func ScoresFile(workDir, prefix, tool string) string {
	return filepath.Join(workDir, prefix, tool+"_scores.json")
}

// Run implements Runner.
func (s *Stage) Run(
	ctx context.Context, table *poses.Table, js jobstarter.JobStarter, prefix string, opts Options,
) (*poses.Table, *Report, error) {
	name := s.tool.Name()

	if prefix == "" {
		return nil, nil, &ConfigurationError{Tool: name, Field: "prefix", Reason: "must not be empty"}
	}

	if js == nil {
		js = s.def
	}

	if js == nil {
		return nil, nil, &ConfigurationError{Tool: name, Field: "jobstarter", Reason: "none given and no default bound"}
	}

	ctx = ctxlog.With(ctx, "tool", name, "prefix", prefix)
	report := &Report{Tool: name, Prefix: prefix}
	abort := func(err error) (*poses.Table, *Report, error) {
		return nil, report, errors.Join(ErrStage, fmt.Errorf("%s stage %q: %w", name, prefix, err))
	}

	if cols := table.ColumnsWithPrefix(prefix); len(cols) > 0 {
		msg := fmt.Sprintf("prefix %q already used by %d columns, values of affected rows are overwritten", prefix, len(cols))
		report.warn(msg)
		ctxlog.Warn(ctx, msg)
	}

	fs := FsFactory()
	env := &Env{
		Table:   table,
		Prefix:  prefix,
		Dir:     filepath.Join(table.WorkDir(), prefix),
		Options: opts,
		Fs:      fs,
	}

	if err := fs.MkdirAll(env.Dir, dirPerm); err != nil {
		return abort(err)
	}

	var err error
	if env.poseOptions, err = poseOptions(table, name, opts.PoseOptionsColumn); err != nil {
		return nil, nil, err
	}

	scores := ScoresFile(table.WorkDir(), prefix, name)

	if !opts.Overwrite {
		cached, ok, err := readScores(fs, scores)
		if err != nil {
			return abort(err)
		}

		if ok {
			ctxlog.Info(ctx, "reusing cached scores", "path", scores, "records", len(cached.Records))
			report.Cached = true
			cachedLosses(ctx, table, cached, report)

			return s.merge(table, prefix, opts, cached.Records, report, abort)
		}
	} else {
		if err := fs.Remove(scores); err != nil && !errors.Is(err, os.ErrNotExist) {
			return abort(err)
		}

		if err := s.tool.Clean(ctx, env); err != nil {
			return abort(err)
		}
	}

	n := opts.NumBatches
	if n == 0 {
		n = js.Config().MaxCores
	}

	if n < 0 {
		return nil, nil, &ConfigurationError{Tool: name, Field: "num_batches", Reason: fmt.Sprintf("must not be negative, got %d", n)}
	}

	tasks, err := s.tool.Tasks(ctx, env, n)
	if err != nil {
		return abort(err)
	}

	cmds := make([]string, len(tasks))
	for i, t := range tasks {
		cmds[i] = t.Command
	}

	ctxlog.Info(ctx, "running stage", "rows", table.Len(), "tasks", len(tasks), "dir", env.Dir)

	sources, err := s.submit(ctx, js, tasks, cmds, env.Dir, opts, report)
	if err != nil {
		return abort(err)
	}

	records, perrs, err := s.tool.Collect(ctx, env, sources)
	if err != nil {
		return abort(err)
	}

	if len(perrs) > 0 {
		if s.tool.Mode() != poses.OneToMany {
			var merr error
			for _, pe := range perrs {
				merr = multierror.Append(merr, pe)
			}

			return abort(merr)
		}

		for _, pe := range perrs {
			report.Dropped = append(report.Dropped, pe.Description)
			report.warn(pe.Error())
			ctxlog.Warn(ctx, "dropping pose with unusable output", "pose", pe.Description, "error", pe.Err)
		}
	}

	cache := scoreCache{Records: records, Failed: report.Failed, Dropped: report.Dropped}
	if err := writeScores(fs, scores, cache); err != nil {
		return abort(err)
	}

	return s.merge(table, prefix, opts, records, report, abort)
}

// submit runs cmds and returns the sources whose tasks succeeded.
func (s *Stage) submit(
	ctx context.Context, js jobstarter.JobStarter, tasks []Task, cmds []string, dir string, opts Options, report *Report,
) ([]string, error) {
	var sources []string

	err := js.Submit(ctx, cmds, dir)
	if err == nil {
		for _, t := range tasks {
			sources = append(sources, t.Sources...)
		}

		return sources, nil
	}

	var execErr *jobstarter.ExecutionError
	if !errors.As(err, &execErr) || !execErr.Partial || opts.PartialFailure != PartialFailureContinue || execErr.AllFailed() {
		return nil, err
	}

	failed := execErr.FailedIndices()

	for i, t := range tasks {
		if _, hit := slices.BinarySearch(failed, i); hit {
			report.Failed = append(report.Failed, t.Sources...)
			continue
		}

		sources = append(sources, t.Sources...)
	}

	msg := fmt.Sprintf("%d of %d tasks failed, continuing with %d poses; logs in %s", len(failed), len(tasks), len(sources), dir)
	report.warn(msg)
	ctxlog.Warn(ctx, msg, "failed", report.Failed)

	return sources, nil
}

func (s *Stage) merge(
	table *poses.Table, prefix string, opts Options, records []poses.Record, report *Report,
	abort func(error) (*poses.Table, *Report, error),
) (*poses.Table, *Report, error) {
	merged, err := table.Merge(poses.StageOutput{
		Prefix:   prefix,
		Mode:     s.tool.Mode(),
		Additive: opts.Additive,
		Records:  records,
	})
	if err != nil {
		return abort(err)
	}

	report.Records = len(records)

	return merged, report, nil
}

func poseOptions(table *poses.Table, tool, column string) (map[string]string, error) {
	if column == "" {
		return nil, nil
	}

	vals, err := table.Column(column)
	if err != nil {
		return nil, &ConfigurationError{Tool: tool, Field: "pose_options_column", Reason: err.Error()}
	}

	out := make(map[string]string, len(vals))

	for i, d := range table.Descriptions() {
		switch v := vals[i].(type) {
		case nil:
		case string:
			out[d] = v
		default:
			return nil, &ConfigurationError{
				Tool:   tool,
				Field:  "pose_options_column",
				Reason: fmt.Sprintf("pose %s: column %s holds %T, want string", d, column, v),
			}
		}
	}

	return out, nil
}

// scoreCache is the on-disk form of a finished stage. Failed and Dropped keep
// the losses of the original run so a cached rerun reports them again.
type scoreCache struct {
	Records []poses.Record `json:"records"`
	Failed  []string       `json:"failed,omitempty"`
	Dropped []string       `json:"dropped,omitempty"`
}

// cachedLosses reports the rows of table that have no cached record.
func cachedLosses(ctx context.Context, table *poses.Table, cache scoreCache, report *Report) {
	seen := make(map[string]struct{}, len(cache.Records))
	for _, r := range cache.Records {
		seen[r.Source] = struct{}{}
	}

	var missing []string

	for _, d := range table.Descriptions() {
		if _, ok := seen[d]; ok {
			continue
		}

		switch {
		case slices.Contains(cache.Failed, d):
			report.Failed = append(report.Failed, d)
		case slices.Contains(cache.Dropped, d):
			report.Dropped = append(report.Dropped, d)
		default:
			report.Dropped = append(report.Dropped, d)
			missing = append(missing, d)
		}
	}

	if len(report.Failed)+len(report.Dropped) == 0 {
		return
	}

	msg := fmt.Sprintf("cached scores lack %d of %d poses: failed %v, dropped %v",
		len(report.Failed)+len(report.Dropped), table.Len(), report.Failed, report.Dropped)
	report.warn(msg)
	ctxlog.Warn(ctx, msg, "unrecorded", missing)
}

func readScores(fs afero.Fs, path string) (scoreCache, bool, error) {
	var cache scoreCache

	b, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return cache, false, nil
	}

	if err != nil {
		return cache, false, err
	}

	// Older caches hold a bare record list.
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &cache.Records)
	} else {
		err = json.Unmarshal(b, &cache)
	}

	if err != nil {
		return cache, false, fmt.Errorf("cached scores %s: %w", path, err)
	}

	return cache, true, nil
}

func writeScores(fs afero.Fs, path string, cache scoreCache) error {
	if cache.Records == nil {
		cache.Records = []poses.Record{}
	}

	b, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, path, b, filePerm)
}
