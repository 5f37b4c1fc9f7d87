// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

const maxStatusErrors = 5

var (
	// ErrNoScheduler is returned when an Array starter is built without a Scheduler.
	ErrNoScheduler = errors.New("no cluster scheduler configured")
	// ErrSubmit is returned when the scheduler rejects a job script.
	ErrSubmit = errors.New("array job submission failed")
	// ErrStatus is returned when the scheduler cannot be queried repeatedly.
	ErrStatus = errors.New("array job status unavailable")
)

// PollInterval is the minimum time between two status queries of a submitted array job.
var PollInterval = 10 * time.Second

// Scheduler submits array-job scripts to a cluster and reports task states.
type Scheduler interface {
	// Submit queues the script at path and returns the job id.
	Submit(ctx context.Context, scriptPath string) (string, error)
	// Status returns the states of the tasks of jobID known so far, keyed by array index.
	Status(ctx context.Context, jobID string) (map[int]TaskState, error)
	// Cancel cancels every task of jobID.
	Cancel(ctx context.Context, jobID string) error
}

// TaskState is a scheduler's view of one array task.
type TaskState struct {
	State    string
	ExitCode int
}

var terminalStates = map[string]struct{}{
	"COMPLETED":     {},
	"FAILED":        {},
	"CANCELLED":     {},
	"TIMEOUT":       {},
	"OUT_OF_MEMORY": {},
	"NODE_FAIL":     {},
	"PREEMPTED":     {},
	"BOOT_FAIL":     {},
	"DEADLINE":      {},
}

// Terminal reports whether the task will not change state anymore.
func (s TaskState) Terminal() bool {
	_, ok := terminalStates[s.State]
	return ok
}

// Succeeded reports whether the task completed with exit code 0.
func (s TaskState) Succeeded() bool {
	return s.State == "COMPLETED" && s.ExitCode == 0
}

var _ JobStarter = (*Array)(nil)

// Array submits all commands as one cluster array job.
type Array struct {
	cfg       Config
	scheduler Scheduler
}

// NewArray validates cfg and returns an array starter submitting through s.
func NewArray(cfg Config, s Scheduler) (*Array, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if s == nil {
		return nil, ErrNoScheduler
	}

	return &Array{cfg: cfg, scheduler: s}, nil
}

// Config implements JobStarter.
func (a *Array) Config() Config {
	return a.cfg
}

// Submit implements JobStarter. Each command is one array task; at most MaxCores
// tasks run at once. Failed tasks are reported individually and never affect the
// others. Cancelling ctx cancels the array job.
func (a *Array) Submit(ctx context.Context, cmds []string, workDir string) error {
	if len(cmds) == 0 {
		return nil
	}

	fs := FsFactory()
	name := a.cfg.jobName()
	ctx = ctxlog.With(ctx, "strategy", "array", "job", name)

	cmdFile, err := prepareWorkDir(fs, workDir, name, cmds)
	if err != nil {
		return err
	}

	results := make([]TaskResult, len(cmds))
	for i, c := range cmds {
		out, errPath := logPaths(workDir, name, i)
		results[i] = TaskResult{Index: i, Command: c, StdoutPath: out, StderrPath: errPath, ExitCode: -1}
	}

	pending := make([]int, len(cmds))
	for i := range pending {
		pending[i] = i
	}

	var jobID string

	for attempt := 0; len(pending) > 0 && attempt <= a.cfg.Retries; attempt++ {
		script := filepath.Join(workDir, fmt.Sprintf("%s_%d.sh", name, attempt))
		if err := afero.WriteFile(fs, script, []byte(a.script(workDir, cmdFile, pending)), scriptPerm); err != nil {
			return errors.Join(ErrWorkDir, err)
		}

		jobID, err = a.scheduler.Submit(ctx, script)
		if err != nil {
			return errors.Join(ErrSubmit, fmt.Errorf("script %s: %w", script, err))
		}

		ctxlog.Info(ctx, "array job submitted", "jobID", jobID, "tasks", len(pending), "attempt", attempt, "script", script)

		states, err := a.wait(ctx, jobID, pending)
		if err != nil {
			return err
		}

		next := pending[:0:0]

		for _, i := range pending {
			st := states[i]
			results[i].State = st.State
			results[i].ExitCode = st.ExitCode
			results[i].Err = nil

			if !st.Succeeded() {
				if results[i].ExitCode == 0 {
					results[i].ExitCode = -1
				}

				results[i].Err = fmt.Errorf("array task %s_%d ended in state %s", jobID, i, st.State)
				next = append(next, i)
			}
		}

		pending = next
	}

	failed := collectFailures(results)
	if len(failed) == 0 {
		ctxlog.Info(ctx, "array job finished", "jobID", jobID, "tasks", len(cmds))
		return nil
	}

	ctxlog.Warn(ctx, "array job finished with failed tasks", "jobID", jobID, "failed", len(failed), "tasks", len(cmds))

	return &ExecutionError{
		Strategy: "array",
		JobID:    jobID,
		WorkDir:  workDir,
		Total:    len(cmds),
		Failed:   failed,
		Partial:  true,
	}
}

// wait polls the scheduler until every index in want is terminal.
func (a *Array) wait(ctx context.Context, jobID string, want []int) (map[int]TaskState, error) {
	limiter := rate.NewLimiter(rate.Every(PollInterval), 1)
	statusErrors := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, a.cancel(ctx, jobID, err)
		}

		states, err := a.scheduler.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, a.cancel(ctx, jobID, ctx.Err())
			}

			statusErrors++
			ctxlog.Warn(ctx, "array job status query failed", "jobID", jobID, "error", err, "attempt", statusErrors)

			if statusErrors >= maxStatusErrors {
				return nil, errors.Join(ErrStatus, fmt.Errorf("job %s: %w", jobID, err))
			}

			continue
		}

		statusErrors = 0
		remaining := 0

		for _, i := range want {
			if !states[i].Terminal() {
				remaining++
			}
		}

		if remaining == 0 {
			return states, nil
		}

		ctxlog.Debug(ctx, "array job running", "jobID", jobID, "remaining", remaining)
	}
}

func (a *Array) cancel(ctx context.Context, jobID string, cause error) error {
	ctxlog.Warn(ctx, "cancelling array job", "jobID", jobID, "cause", cause)

	if err := a.scheduler.Cancel(context.WithoutCancel(ctx), jobID); err != nil {
		return errors.Join(cause, err)
	}

	return cause
}

// script renders an array-job script running the given command indices.
// Task i executes line i+1 of cmdFile.
func (a *Array) script(workDir, cmdFile string, indices []int) string {
	name := a.cfg.jobName()
	ids := make([]string, len(indices))

	for i, idx := range indices {
		ids[i] = strconv.Itoa(idx)
	}

	var sb strings.Builder

	sb.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&sb, "#SBATCH --job-name=%s\n", name)
	fmt.Fprintf(&sb, "#SBATCH --array=%s%%%d\n", compactRanges(indices, ids), a.cfg.MaxCores)
	fmt.Fprintf(&sb, "#SBATCH --output=%s\n", filepath.Join(workDir, name+"_%a.out"))
	fmt.Fprintf(&sb, "#SBATCH --error=%s\n", filepath.Join(workDir, name+"_%a.err"))

	sb.WriteString("#SBATCH --ntasks=1\n")

	if a.cfg.GPUs > 0 {
		fmt.Fprintf(&sb, "#SBATCH --gres=gpu:%d\n", a.cfg.GPUs)
	}

	if a.cfg.Partition != "" {
		fmt.Fprintf(&sb, "#SBATCH --partition=%s\n", a.cfg.Partition)
	}

	if a.cfg.TimeLimit > 0 {
		fmt.Fprintf(&sb, "#SBATCH --time=%s\n", slurmDuration(a.cfg.TimeLimit))
	}

	for _, o := range a.cfg.Options {
		fmt.Fprintf(&sb, "#SBATCH %s\n", o)
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "cd %s || exit 1\n", Quote(workDir))
	fmt.Fprintf(&sb, "cmd=$(sed -n \"$((SLURM_ARRAY_TASK_ID + 1))p\" %s)\n", Quote(cmdFile))
	sb.WriteString("exec /bin/sh -c \"$cmd\"\n")

	return sb.String()
}

// compactRanges renders sorted indices as a SLURM array spec, e.g. "0-9" or "1,4-6".
func compactRanges(indices []int, ids []string) string {
	var parts []string

	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}

		if j == i {
			parts = append(parts, ids[i])
		} else {
			parts = append(parts, ids[i]+"-"+ids[j])
		}

		i = j + 1
	}

	return strings.Join(parts, ",")
}

// slurmDuration formats d as [D-]HH:MM:SS, rounding up to whole seconds.
func slurmDuration(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	days := secs / 86400
	h := (secs % 86400) / 3600
	m := (secs % 3600) / 60
	s := secs % 60

	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, s)
	}

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
