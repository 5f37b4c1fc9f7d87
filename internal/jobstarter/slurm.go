// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrSchedulerOutput is returned when sbatch or sacct print something unexpected.
var ErrSchedulerOutput = errors.New("unexpected scheduler output")

// RunCommand executes a scheduler client binary and returns its stdout.
var RunCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return out, nil
}

var _ Scheduler = Slurm{}

// Slurm talks to a SLURM cluster through sbatch, sacct and scancel.
type Slurm struct {
	SbatchPath  string // defaults to "sbatch"
	SacctPath   string // defaults to "sacct"
	ScancelPath string // defaults to "scancel"
}

// Submit implements Scheduler.
func (s Slurm) Submit(ctx context.Context, scriptPath string) (string, error) {
	out, err := RunCommand(ctx, orDefault(s.SbatchPath, "sbatch"), "--parsable", scriptPath)
	if err != nil {
		return "", err
	}

	// --parsable prints "jobid" or "jobid;cluster"
	id, _, _ := strings.Cut(strings.TrimSpace(string(out)), ";")
	if _, err := strconv.Atoi(id); err != nil {
		return "", fmt.Errorf("%w: sbatch printed %q", ErrSchedulerOutput, string(out))
	}

	return id, nil
}

// Status implements Scheduler. Tasks that sacct still lists as a range
// (e.g. 123_[4-9%2]) are reported only once the range is in a terminal state,
// as happens when a pending array is cancelled.
func (s Slurm) Status(ctx context.Context, jobID string) (map[int]TaskState, error) {
	out, err := RunCommand(ctx, orDefault(s.SacctPath, "sacct"),
		"-j", jobID, "-n", "-P", "-X", "-o", "JobID,State,ExitCode")
	if err != nil {
		return nil, err
	}

	return parseSacct(jobID, out)
}

// Cancel implements Scheduler.
func (s Slurm) Cancel(ctx context.Context, jobID string) error {
	_, err := RunCommand(ctx, orDefault(s.ScancelPath, "scancel"), jobID)
	return err
}

// parseSacct reads `JobID|State|ExitCode` lines as printed by sacct -P.
func parseSacct(jobID string, out []byte) (map[int]TaskState, error) {
	states := make(map[int]TaskState)
	sc := bufio.NewScanner(bytes.NewReader(out))

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: sacct line %q", ErrSchedulerOutput, line)
		}

		base, task, ok := strings.Cut(fields[0], "_")
		if !ok || base != jobID {
			continue
		}

		state, _, _ := strings.Cut(strings.TrimSpace(fields[1]), " ")
		code, _, _ := strings.Cut(fields[2], ":")

		exit, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("%w: exit code %q", ErrSchedulerOutput, fields[2])
		}

		ts := TaskState{State: state, ExitCode: exit}

		if !strings.HasPrefix(task, "[") {
			idx, err := strconv.Atoi(task)
			if err != nil {
				continue
			}

			states[idx] = ts

			continue
		}

		// tasks that never started stay grouped, e.g. 123_[4-9%2]
		if !ts.Terminal() {
			continue
		}

		indices, err := expandArrayRange(task)
		if err != nil {
			return nil, err
		}

		for _, idx := range indices {
			if _, seen := states[idx]; !seen {
				states[idx] = ts
			}
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Join(ErrSchedulerOutput, err)
	}

	return states, nil
}

// expandArrayRange lists the indices of a bracketed array spec such as
// "[0-3,7,10-20:5%2]". The throttle after '%' is ignored.
func expandArrayRange(spec string) ([]int, error) {
	inner, ok := strings.CutPrefix(spec, "[")
	if !ok {
		return nil, fmt.Errorf("%w: array range %q", ErrSchedulerOutput, spec)
	}

	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return nil, fmt.Errorf("%w: array range %q", ErrSchedulerOutput, spec)
	}

	inner, _, _ = strings.Cut(inner, "%")

	var out []int

	for _, part := range strings.Split(inner, ",") {
		span, stepStr, hasStep := strings.Cut(part, ":")
		loStr, hiStr, isRange := strings.Cut(span, "-")

		lo, err := strconv.Atoi(loStr)
		if err != nil {
			return nil, fmt.Errorf("%w: array range %q", ErrSchedulerOutput, spec)
		}

		hi, step := lo, 1

		if isRange {
			if hi, err = strconv.Atoi(hiStr); err != nil || hi < lo {
				return nil, fmt.Errorf("%w: array range %q", ErrSchedulerOutput, spec)
			}
		}

		if hasStep {
			if step, err = strconv.Atoi(stepStr); err != nil || step < 1 {
				return nil, fmt.Errorf("%w: array range %q", ErrSchedulerOutput, spec)
			}
		}

		for i := lo; i <= hi; i += step {
			out = append(out, i)
		}
	}

	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}
