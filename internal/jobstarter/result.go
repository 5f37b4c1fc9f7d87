// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrExecution is matched by every *ExecutionError.
var ErrExecution = errors.New("job execution failed")

// TaskResult is the outcome of one submitted command.
type TaskResult struct {
	Index      int    // position of the command in the submitted list
	Command    string // the command line
	ExitCode   int    // process exit code, -1 if it never ran or was killed
	State      string // scheduler state for cluster tasks
	Err        error  // why the task failed, nil on success
	StdoutPath string
	StderrPath string
}

// Failed reports whether the task did not complete successfully.
func (r TaskResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// ExecutionError reports the tasks of a submission that failed.
type ExecutionError struct {
	Strategy string       // "local" or "array"
	JobID    string       // cluster job id, empty for local runs
	WorkDir  string       // where scripts and logs were written
	Total    int          // number of submitted commands
	Failed   []TaskResult // failed tasks in index order
	// Partial is true when each task succeeded or failed on its own, so the
	// outputs of successful tasks can be used. Local batches are all-or-nothing.
	Partial bool
}

// Error implements error. It lists every failing command and where to find its logs.
func (e *ExecutionError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: %d of %d %s tasks failed in %s", ErrExecution, len(e.Failed), e.Total, e.Strategy, e.WorkDir)

	if e.JobID != "" {
		fmt.Fprintf(&sb, " (job %s)", e.JobID)
	}

	for _, f := range e.Failed {
		fmt.Fprintf(&sb, "\n  task %d exit code %d", f.Index, f.ExitCode)

		if f.State != "" {
			fmt.Fprintf(&sb, " state %s", f.State)
		}

		if f.Err != nil {
			fmt.Fprintf(&sb, ": %v", f.Err)
		}

		fmt.Fprintf(&sb, "\n    command: %s", f.Command)

		if f.StderrPath != "" {
			fmt.Fprintf(&sb, "\n    stderr:  %s", f.StderrPath)
		}
	}

	return sb.String()
}

// Is lets errors.Is(err, ErrExecution) match.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// FailedIndices returns the indices of the failed commands in ascending order.
func (e *ExecutionError) FailedIndices() []int {
	out := make([]int, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f.Index
	}

	slices.Sort(out)

	return out
}

// AllFailed reports whether no task succeeded.
func (e *ExecutionError) AllFailed() bool {
	return len(e.Failed) >= e.Total
}

func collectFailures(results []TaskResult) []TaskResult {
	var failed []TaskResult

	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}

	return failed
}
