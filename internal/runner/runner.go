// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/matt-FFFFFF/protpipe/internal/batcher"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/spf13/afero"
)

// FsFactory returns the filesystem tools read outputs from and write inputs to.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Runner is one configured tool.
type Runner interface {
	// Name returns the tool name.
	Name() string
	// Run executes the tool for every row of table and returns the merged table.
	// js overrides the runner's default job starter when not nil.
	// The input table is never modified.
	Run(ctx context.Context, table *poses.Table, js jobstarter.JobStarter, prefix string, opts Options) (*poses.Table, *Report, error)
}

// PartialFailurePolicy decides what a stage does when some cluster tasks fail.
type PartialFailurePolicy int

const (
	// PartialFailureAbort fails the stage on any failed task.
	PartialFailureAbort PartialFailurePolicy = iota
	// PartialFailureContinue merges the outputs of the tasks that succeeded and
	// reports the failed poses. Only starters reporting independent task
	// outcomes allow this; local batches always abort.
	PartialFailureContinue
)

func (p PartialFailurePolicy) String() string {
	if p == PartialFailureContinue {
		return "continue"
	}

	return "abort"
}

// ParsePartialFailurePolicy accepts "abort", "continue" or "" (abort).
func ParsePartialFailurePolicy(s string) (PartialFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PartialFailureAbort, nil
	case "continue":
		return PartialFailureContinue, nil
	}

	return PartialFailureAbort, &ConfigurationError{Field: "on_partial_failure", Reason: fmt.Sprintf("unknown policy %q, want abort or continue", s)}
}

// Options are the settings every stage understands. Tool specific settings
// live on the tool's own runner.
type Options struct {
	// NumBatches is the number of commands the work is grouped into.
	// Zero uses the job starter's MaxCores.
	NumBatches int
	// Overwrite re-runs the tool even when cached scores exist, removing
	// the cached scores and stale outputs first.
	Overwrite bool
	// PartialFailure selects what happens when some cluster tasks fail.
	PartialFailure PartialFailurePolicy
	// Additive keeps the parent rows of one-to-many stages.
	Additive bool
	// PoseOptionsColumn names a table column holding per-pose option strings,
	// which override the stage-wide Passthrough options.
	PoseOptionsColumn string
	// Passthrough is handed to the tool command line verbatim.
	Passthrough []string
}

// ToolPaths locates a tool's interpreter and entry script.
type ToolPaths struct {
	Python string `yaml:"python" hcl:"python,optional"`
	Script string `yaml:"script" hcl:"script,optional"`
}

// Validate returns a *ConfigurationError naming the first missing path.
func (p ToolPaths) Validate(tool string) error {
	if p.Script == "" {
		return &ConfigurationError{Tool: tool, Field: "script", Reason: "no script path set"}
	}

	if p.Python == "" {
		return &ConfigurationError{Tool: tool, Field: "python", Reason: "no interpreter path set"}
	}

	return nil
}

// Prefix renders "<python> <script>" for the start of a command line.
func (p ToolPaths) Prefix() string {
	return jobstarter.Quote(p.Python) + " " + jobstarter.Quote(p.Script)
}

// Env is what a Tool sees while building commands and reading outputs.
type Env struct {
	Table   *poses.Table
	Prefix  string
	Dir     string // <workdir>/<prefix>, created before the tool is called
	Options Options
	Fs      afero.Fs

	poseOptions map[string]string
}

// PoseOptions returns the per-pose option string of a row, "" when none.
func (e *Env) PoseOptions(description string) string {
	return e.poseOptions[description]
}

// GlobalOptions returns the stage-wide passthrough options as one string.
func (e *Env) GlobalOptions() string {
	return strings.Join(e.Options.Passthrough, " ")
}

// Task is one command handed to the job starter, covering the rows in Sources.
type Task struct {
	Command string
	Sources []string
}

// Item is the command for a single row.
type Item struct {
	Source  string
	Command string
}

// GroupItems batches per-row commands into at most n tasks, chaining the
// commands of a group with &&.
func GroupItems(items []Item, n int) ([]Task, error) {
	cmds := make([]string, len(items))
	for i, it := range items {
		cmds[i] = it.Command
	}

	batches, err := batcher.Commands(cmds, n)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, len(batches))
	next := 0

	for i, line := range batcher.Lines(batches) {
		sources := make([]string, len(batches[i].Commands))
		for j := range sources {
			sources[j] = items[next].Source
			next++
		}

		tasks[i] = Task{Command: line, Sources: sources}
	}

	return tasks, nil
}

// Tool is the tool specific part of a stage.
type Tool interface {
	// Name is the tool name; cached scores are stored as <name>_scores.json.
	Name() string
	// Mode tells how the tool's records relate to the input rows.
	Mode() poses.Mode
	// Clean removes outputs of a previous run from env.Dir.
	Clean(ctx context.Context, env *Env) error
	// Tasks builds the commands for every row of env.Table, in at most n tasks.
	Tasks(ctx context.Context, env *Env, n int) ([]Task, error)
	// Collect reads the outputs produced for the given rows. Items whose
	// output is unusable are returned as parse errors; a non-nil error aborts.
	Collect(ctx context.Context, env *Env, sources []string) ([]poses.Record, []*ParseError, error)
}
