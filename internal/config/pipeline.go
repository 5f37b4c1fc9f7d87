// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Job starter types.
const (
	TypeLocal = "local"
	TypeSlurm = "slurm"
)

// DefaultJobStarterName names the local job starter used when none is defined.
const DefaultJobStarterName = "local"

var (
	// ErrParsePipeline is returned when a pipeline file is not valid YAML or HCL.
	ErrParsePipeline = errors.New("failed to parse pipeline definition")
	// ErrInvalidPipeline is returned by Validate.
	ErrInvalidPipeline = errors.New("invalid pipeline definition")
)

// Pipeline is the definition of a pipeline run.
type Pipeline struct {
	// Directory all stage directories and the scorefile are created in.
	WorkDir string `yaml:"work_dir" hcl:"work_dir" docdesc:"Directory all stage outputs and the scorefile are written to"` //nolint:lll
	// Storage format of the scorefile.
	StorageFormat string `yaml:"storage_format,omitempty" hcl:"storage_format,optional" docdesc:"Scorefile format: json, csv, yaml, xlsx or sqlite, defaults to json"` //nolint:lll
	// Job starter used by stages that do not name one.
	DefaultJobStarter string `yaml:"default_jobstarter,omitempty" hcl:"default_jobstarter,optional" docdesc:"Job starter used by stages that do not name one"` //nolint:lll
	// Input structures.
	Inputs poses.Inputs `yaml:"inputs" hcl:"inputs,block" docdesc:"Input structures: paths, or a dir and glob"` //nolint:lll
	// Named job starters.
	JobStarters []JobStarter `yaml:"jobstarters,omitempty" hcl:"jobstarter,block" docdesc:"Named job starters, a local one is added when none is given"` //nolint:lll
	// Stages in execution order.
	Stages []Stage `yaml:"stages" hcl:"stage,block" docdesc:"Stages in execution order"` //nolint:lll
}

// JobStarter is the definition of a named job starter.
type JobStarter struct {
	// Name stages refer to the job starter by.
	Name string `yaml:"name" hcl:"name,label" docdesc:"Name stages refer to the job starter by"`
	// Type is local or slurm.
	Type string `yaml:"type" hcl:"type" docdesc:"local or slurm"`
	// Maximum concurrent processes or array tasks.
	MaxCores int `yaml:"max_cores,omitempty" hcl:"max_cores,optional" docdesc:"Maximum concurrent processes or array tasks, defaults to the number of CPUs"` //nolint:lll
	// GPUs per array task.
	GPUs int `yaml:"gpus,omitempty" hcl:"gpus,optional" docdesc:"GPUs per array task (slurm)"`
	// Cluster partition.
	Partition string `yaml:"partition,omitempty" hcl:"partition,optional" docdesc:"Cluster partition (slurm)"`
	// Wall time per task as a Go duration.
	TimeLimit string `yaml:"time_limit,omitempty" hcl:"time_limit,optional" docdesc:"Wall time per task, e.g. 2h30m (slurm)"` //nolint:lll
	// Prefix of scratch files and the cluster job name.
	JobName string `yaml:"job_name,omitempty" hcl:"job_name,optional" docdesc:"Prefix of scratch files and the cluster job name"` //nolint:lll
	// Additional attempts for failed tasks.
	Retries int `yaml:"retries,omitempty" hcl:"retries,optional" docdesc:"Additional attempts for failed tasks"` //nolint:lll
	// Raw scheduler options.
	Options []string `yaml:"options,omitempty" hcl:"options,optional" docdesc:"Raw scheduler options, e.g. --mem=16G (slurm)"` //nolint:lll
	// Scheduler command paths.
	Sbatch  string `yaml:"sbatch,omitempty" hcl:"sbatch,optional" docdesc:"Path of sbatch (slurm)"`
	Sacct   string `yaml:"sacct,omitempty" hcl:"sacct,optional" docdesc:"Path of sacct (slurm)"`
	Scancel string `yaml:"scancel,omitempty" hcl:"scancel,optional" docdesc:"Path of scancel (slurm)"`
}

// Stage is the definition of one tool run.
type Stage struct {
	// Registered tool name.
	Tool string `yaml:"tool" hcl:"tool,label" docdesc:"Registered tool name"`
	// Column prefix and stage directory name.
	Prefix string `yaml:"prefix" hcl:"prefix" docdesc:"Column prefix and stage directory name"`
	// Job starter name, defaults to the pipeline default.
	JobStarter string `yaml:"jobstarter,omitempty" hcl:"jobstarter,optional" docdesc:"Job starter name, defaults to default_jobstarter"` //nolint:lll
	// Number of commands the work is grouped into.
	NumBatches int `yaml:"num_batches,omitempty" hcl:"num_batches,optional" docdesc:"Number of commands the work is grouped into, defaults to the job starter's max_cores"` //nolint:lll
	// Re-run even when cached scores exist.
	Overwrite bool `yaml:"overwrite,omitempty" hcl:"overwrite,optional" docdesc:"Re-run even when cached scores exist"` //nolint:lll
	// Keep the parent rows of one-to-many tools.
	Additive bool `yaml:"additive,omitempty" hcl:"additive,optional" docdesc:"Keep the parent rows of one-to-many tools"` //nolint:lll
	// abort or continue.
	OnPartialFailure string `yaml:"on_partial_failure,omitempty" hcl:"on_partial_failure,optional" docdesc:"abort or continue when some cluster tasks fail"` //nolint:lll
	// Column holding per-pose tool options.
	PoseOptionsColumn string `yaml:"pose_options_column,omitempty" hcl:"pose_options_column,optional" docdesc:"Column holding per-pose tool options"` //nolint:lll
	// Options passed to the tool verbatim.
	Options []string `yaml:"options,omitempty" hcl:"options,optional" docdesc:"Options passed to the tool verbatim"` //nolint:lll
	// Tool specific settings from YAML.
	Settings map[string]any `yaml:"settings,omitempty" docdesc:"Tool specific settings, see protpipe config tools"` //nolint:lll
	// Tool specific settings from HCL.
	HCLSettings cty.Value `yaml:"-" hcl:"settings,optional"`
}

// Parse decodes a pipeline definition. Files named *.hcl are HCL, anything
// else is YAML. Unknown YAML keys are rejected.
func Parse(filename string, data []byte) (*Pipeline, error) {
	p := new(Pipeline)

	if strings.EqualFold(filepath.Ext(filename), ".hcl") {
		name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)) + ".hcl"
		if err := hclsimple.Decode(name, data, nil, p); err != nil {
			return nil, errors.Join(ErrParsePipeline, err)
		}

		return p, nil
	}

	if err := yaml.UnmarshalWithOptions(data, p, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.Join(ErrParsePipeline, fmt.Errorf("%s: %w", filename, err))
	}

	return p, nil
}

// Validate checks the definition against the tools known to reg and
// reports every problem found.
func (p *Pipeline) Validate(reg runner.Registry) error {
	var err error

	if p.WorkDir == "" {
		err = multierror.Append(err, errors.New("work_dir is required"))
	}

	if p.StorageFormat != "" {
		if _, ferr := poses.ParseFormat(p.StorageFormat); ferr != nil {
			err = multierror.Append(err, ferr)
		}
	}

	if len(p.Inputs.Paths) == 0 && p.Inputs.Dir == "" {
		err = multierror.Append(err, errors.New("inputs need paths or a dir"))
	}

	names := make(map[string]bool)

	for _, j := range p.JobStarterDefinitions() {
		if names[j.Name] {
			err = multierror.Append(err, fmt.Errorf("jobstarter %q defined twice", j.Name))
		}

		names[j.Name] = true

		if _, jerr := j.Config(); jerr != nil {
			err = multierror.Append(err, fmt.Errorf("jobstarter %q: %w", j.Name, jerr))
		}
	}

	if !names[p.DefaultJobStarterName()] {
		err = multierror.Append(err, fmt.Errorf("default_jobstarter %q is not defined", p.DefaultJobStarterName()))
	}

	if len(p.Stages) == 0 {
		err = multierror.Append(err, errors.New("no stages defined"))
	}

	prefixes := make(map[string]bool)

	for i, s := range p.Stages {
		where := fmt.Sprintf("stage %d (%s)", i+1, s.Tool)

		if _, ok := reg[s.Tool]; !ok {
			err = multierror.Append(err, fmt.Errorf("%s: %w: %q, known tools: %v", where, runner.ErrUnknownTool, s.Tool, reg.Names()))
		}

		switch {
		case s.Prefix == "":
			err = multierror.Append(err, fmt.Errorf("%s: prefix is required", where))
		case prefixes[s.Prefix]:
			err = multierror.Append(err, fmt.Errorf("%s: prefix %q already used by an earlier stage", where, s.Prefix))
		}

		prefixes[s.Prefix] = true

		if s.JobStarter != "" && !names[s.JobStarter] {
			err = multierror.Append(err, fmt.Errorf("%s: jobstarter %q is not defined", where, s.JobStarter))
		}

		if _, serr := s.RunnerOptions(); serr != nil {
			err = multierror.Append(err, fmt.Errorf("%s: %w", where, serr))
		}

		if _, serr := s.RawSettings(); serr != nil {
			err = multierror.Append(err, fmt.Errorf("%s: %w", where, serr))
		}
	}

	if err != nil {
		return errors.Join(ErrInvalidPipeline, err)
	}

	return nil
}

// Format returns the scorefile format, json when unset.
func (p *Pipeline) Format() (poses.Format, error) {
	if p.StorageFormat == "" {
		return poses.FormatJSON, nil
	}

	return poses.ParseFormat(p.StorageFormat)
}

// JobStarterDefinitions returns the defined job starters, or a single local
// one using every CPU when none is defined.
func (p *Pipeline) JobStarterDefinitions() []JobStarter {
	if len(p.JobStarters) > 0 {
		return p.JobStarters
	}

	return []JobStarter{{Name: DefaultJobStarterName, Type: TypeLocal}}
}

// DefaultJobStarterName returns the job starter used by stages that name none.
func (p *Pipeline) DefaultJobStarterName() string {
	if p.DefaultJobStarter != "" {
		return p.DefaultJobStarter
	}

	return p.JobStarterDefinitions()[0].Name
}

// Config converts the definition to a jobstarter.Config.
func (j JobStarter) Config() (jobstarter.Config, error) {
	cfg := jobstarter.Config{
		MaxCores:  j.MaxCores,
		GPUs:      j.GPUs,
		Partition: j.Partition,
		JobName:   j.JobName,
		Retries:   j.Retries,
		Options:   j.Options,
	}

	if cfg.MaxCores == 0 {
		cfg.MaxCores = runtime.NumCPU()
	}

	if j.TimeLimit != "" {
		d, err := time.ParseDuration(j.TimeLimit)
		if err != nil {
			return cfg, fmt.Errorf("time_limit: %w", err)
		}

		cfg.TimeLimit = d
	}

	if j.Type != TypeLocal && j.Type != TypeSlurm {
		return cfg, fmt.Errorf("type %q must be %s or %s", j.Type, TypeLocal, TypeSlurm)
	}

	return cfg, cfg.Validate()
}

// Build creates the job starter.
func (j JobStarter) Build() (jobstarter.JobStarter, error) {
	cfg, err := j.Config()
	if err != nil {
		return nil, fmt.Errorf("jobstarter %q: %w", j.Name, err)
	}

	if j.Type == TypeLocal {
		return jobstarter.NewLocal(cfg)
	}

	return jobstarter.NewArray(cfg, jobstarter.Slurm{
		SbatchPath:  j.Sbatch,
		SacctPath:   j.Sacct,
		ScancelPath: j.Scancel,
	})
}

// RunnerOptions converts the stage settings every tool understands.
func (s Stage) RunnerOptions() (runner.Options, error) {
	policy, err := runner.ParsePartialFailurePolicy(s.OnPartialFailure)
	if err != nil {
		return runner.Options{}, err
	}

	if s.NumBatches < 0 {
		return runner.Options{}, &runner.ConfigurationError{
			Tool: s.Tool, Field: "num_batches", Reason: fmt.Sprintf("must not be negative, got %d", s.NumBatches),
		}
	}

	return runner.Options{
		NumBatches:        s.NumBatches,
		Overwrite:         s.Overwrite,
		PartialFailure:    policy,
		Additive:          s.Additive,
		PoseOptionsColumn: s.PoseOptionsColumn,
		Passthrough:       s.Options,
	}, nil
}

// RawSettings returns the tool specific settings as YAML, nil when there are none.
// HCL settings are rendered as JSON, which is valid YAML.
func (s Stage) RawSettings() ([]byte, error) {
	if len(s.Settings) > 0 {
		return yaml.Marshal(s.Settings)
	}

	if s.HCLSettings.IsNull() {
		return nil, nil
	}

	if !s.HCLSettings.Type().IsObjectType() && !s.HCLSettings.Type().IsMapType() {
		return nil, fmt.Errorf("settings must be an object, got %s", s.HCLSettings.Type().FriendlyName())
	}

	return ctyjson.SimpleJSONValue{Value: s.HCLSettings}.MarshalJSON()
}
