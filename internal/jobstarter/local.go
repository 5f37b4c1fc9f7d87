// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	// waitDelay bounds how long Wait blocks on output copying after a killed process exits.
	waitDelay = 5 * time.Second
)

var (
	// ErrCouldNotStartProcess is returned when the shell could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrLogFile is returned when a task's log file cannot be created or closed.
	ErrLogFile = errors.New("task log file error")
)

var _ JobStarter = (*Local)(nil)

// Local runs commands as child processes of this process.
type Local struct {
	cfg Config
}

// NewLocal validates cfg and returns a local starter. Cluster-only fields are ignored.
func NewLocal(cfg Config) (*Local, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Local{cfg: cfg}, nil
}

// Config implements JobStarter.
func (l *Local) Config() Config {
	return l.cfg
}

// Submit implements JobStarter. It starts at most MaxCores commands at a time and
// waits for all of them. Cancelling ctx kills the running processes.
func (l *Local) Submit(ctx context.Context, cmds []string, workDir string) error {
	if len(cmds) == 0 {
		return nil
	}

	fs := FsFactory()
	name := l.cfg.jobName()
	logger := ctxlog.Logger(ctx).With("strategy", "local", "job", name)

	if _, err := prepareWorkDir(fs, workDir, name, cmds); err != nil {
		return err
	}

	logger.Info("starting local jobs", "tasks", len(cmds), "maxCores", l.cfg.MaxCores, "workDir", workDir)

	results := make([]TaskResult, len(cmds))
	pending := make([]int, len(cmds))

	for i := range cmds {
		pending[i] = i
	}

	for attempt := 0; len(pending) > 0 && attempt <= l.cfg.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying failed tasks", "attempt", attempt, "tasks", len(pending))
		}

		g := new(errgroup.Group)
		g.SetLimit(l.cfg.MaxCores)

		for _, i := range pending {
			g.Go(func() error {
				results[i] = runTask(ctx, fs, workDir, name, i, cmds[i])
				return nil
			})
		}

		_ = g.Wait()

		pending = pending[:0]

		for i, r := range results {
			if r.Failed() {
				pending = append(pending, i)
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	failed := collectFailures(results)
	if len(failed) == 0 {
		logger.Info("local jobs finished", "tasks", len(cmds))
		return nil
	}

	return &ExecutionError{
		Strategy: "local",
		WorkDir:  workDir,
		Total:    len(cmds),
		Failed:   failed,
		Partial:  false,
	}
}

// runTask runs one command through the shell, writing its output to log files in workDir.
func runTask(ctx context.Context, fs afero.Fs, workDir, name string, index int, command string) TaskResult {
	outPath, errPath := logPaths(workDir, name, index)
	res := TaskResult{
		Index:      index,
		Command:    command,
		StdoutPath: outPath,
		StderrPath: errPath,
	}
	logger := ctxlog.Logger(ctx).With("task", index)

	stdout, err := fs.Create(outPath)
	if err != nil {
		res.ExitCode = -1
		res.Err = errors.Join(ErrLogFile, err)

		return res
	}

	stderr, err := fs.Create(errPath)
	if err != nil {
		_ = stdout.Close()
		res.ExitCode = -1
		res.Err = errors.Join(ErrLogFile, err)

		return res
	}

	cmd := exec.CommandContext(ctx, Shell(), commandSwitch, command)
	cmd.Dir = workDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()

	logger.Debug("starting process", "command", command)

	runErr := cmd.Run()

	var closeErr error
	if err := stdout.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}

	if err := stderr.Close(); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}

	var exitErr *exec.ExitError

	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			res.Err = errors.Join(ctx.Err(), runErr)
		}

		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
	default:
		res.ExitCode = -1
		res.Err = errors.Join(ErrCouldNotStartProcess, runErr)
	}

	if closeErr != nil {
		res.Err = errors.Join(res.Err, ErrLogFile, closeErr)
	}

	if res.Failed() && res.Err == nil {
		res.Err = fmt.Errorf("exit status %d", res.ExitCode)
	}

	logger.Debug("process finished", "exitCode", res.ExitCode, "duration", time.Since(start).Round(time.Millisecond))

	return res
}
