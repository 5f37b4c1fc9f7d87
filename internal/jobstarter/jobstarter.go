// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

const (
	defaultJobName = "protpipe"
	dirPerm        = 0o755
	filePerm       = 0o644
	scriptPerm     = 0o755
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid job starter configuration")
	// ErrWorkDir is returned when the working directory or a scratch file cannot be written.
	ErrWorkDir = errors.New("cannot prepare working directory")
)

// FsFactory returns the filesystem scratch files are written to.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// JobStarter executes commands and blocks until all of them have terminated.
type JobStarter interface {
	// Submit runs every command in cmds with workDir as working directory.
	// An empty cmds is a no-op. If any command fails, the returned error is an *ExecutionError.
	Submit(ctx context.Context, cmds []string, workDir string) error
	// Config returns the configuration the starter was built with.
	Config() Config
}

// Config describes the concurrency ceiling and resource requests of a job starter.
// It is a plain value; starters keep their own copy.
type Config struct {
	MaxCores  int           // maximum simultaneous processes or array slots
	GPUs      int           // accelerators requested per task (cluster only)
	Partition string        // cluster queue (cluster only)
	TimeLimit time.Duration // wall time per task, zero for the queue default (cluster only)
	JobName   string        // prefix for scratch files and the cluster job name
	Retries   int           // additional attempts for failed tasks
	Options   []string      // raw scheduler options, e.g. "--mem=16G"
}

// Validate checks the numeric limits.
func (c Config) Validate() error {
	var err error

	if c.MaxCores <= 0 {
		err = multierror.Append(err, fmt.Errorf("max cores must be positive, got %d", c.MaxCores))
	}

	if c.GPUs < 0 {
		err = multierror.Append(err, fmt.Errorf("gpus must not be negative, got %d", c.GPUs))
	}

	if c.Retries < 0 {
		err = multierror.Append(err, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}

	if c.TimeLimit < 0 {
		err = multierror.Append(err, fmt.Errorf("time limit must not be negative, got %s", c.TimeLimit))
	}

	if err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}

func (c Config) jobName() string {
	if c.JobName == "" {
		return defaultJobName
	}

	return c.JobName
}

// prepareWorkDir creates workDir and records the submitted commands, one per line.
func prepareWorkDir(fs afero.Fs, workDir, jobName string, cmds []string) (string, error) {
	if err := fs.MkdirAll(workDir, dirPerm); err != nil {
		return "", errors.Join(ErrWorkDir, err)
	}

	cmdFile := filepath.Join(workDir, jobName+"_cmds")
	if err := afero.WriteFile(fs, cmdFile, []byte(strings.Join(cmds, "\n")+"\n"), filePerm); err != nil {
		return "", errors.Join(ErrWorkDir, err)
	}

	return cmdFile, nil
}

func logPaths(workDir, jobName string, index int) (string, string) {
	base := filepath.Join(workDir, fmt.Sprintf("%s_%d", jobName, index))
	return base + ".out", base + ".err"
}
