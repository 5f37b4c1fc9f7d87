// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the run command.
package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/protpipe/internal/config"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/matt-FFFFFF/protpipe/internal/pipeline"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/matt-FFFFFF/protpipe/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag                    = "file"
	toolsFlag                   = "tools"
	envFlag                     = "env"
	outFlag                     = "out"
	fromTableFlag               = "from-table"
	showPosesFlag               = "show-poses"
	tuiFlag                     = "tui"
	configTimeoutFlag           = "config-timeout"
	configTimeoutSecondsDefault = 30
	cliExitStr                  = ""
)

var (
	// ErrLoadConfig is returned when the tools, environment or pipeline definition cannot be loaded.
	ErrLoadConfig = errors.New("failed to load configuration")
	// ErrWriteResults is returned when the results cannot be written.
	ErrWriteResults = errors.New("failed to write results")
)

// Registry holds the tools a pipeline may use.
var Registry = runner.DefaultRegistry

// RunCmd is the command that runs a pipeline definition.
var RunCmd = &cli.Command{
	Name: "run",
	Description: `Run the pipeline defined in a YAML or HCL file.
Every stage is executed in order and the pose table is saved to the work dir
after each stage. Stages whose scores exist from an earlier run are not
executed again unless they set overwrite.

Definition URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.

Tool locations come from the tools file and PROTPIPE_<TOOL>_PYTHON / PROTPIPE_<TOOL>_SCRIPT,
which may be set in a .env file.
`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    fileFlag,
			Aliases: []string{"f"},
			Usage: "Specify the URL of the pipeline definition. " +
				"Supports Hashicorp's go-getter syntax for fetching files from various sources.",
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:      toolsFlag,
			Usage:     "YAML file mapping tool names to their python and script paths",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      envFlag,
			Usage:     "Environment file loaded before the tools file, ignored when missing",
			TakesFile: true,
			Value:     ".env",
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      outFlag,
			Usage:     "Also write the final table to this file, the format follows the extension",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.StringFlag{
			Name:      fromTableFlag,
			Usage:     "Start from a saved pose table instead of the definition's inputs",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.BoolFlag{
			Name:        showPosesFlag,
			Usage:       "List failed and dropped poses in the summary",
			DefaultText: "false",
			Value:       false,
			OnlyOnce:    true,
		},
		&cli.BoolFlag{
			Name:        tuiFlag,
			Usage:       "Show stage progress in an interactive terminal UI, log output is printed afterwards",
			DefaultText: "false",
			Value:       false,
			OnlyOnce:    true,
		},
		&cli.IntFlag{
			Name:    configTimeoutFlag,
			Aliases: []string{"timeout"},
			Usage: "Set the maximum time in seconds to wait for the definition to be fetched. " +
				"Defaults to 30 seconds.",
			Value: configTimeoutSecondsDefault,
		},
	},
	Action: actionFunc,
}

type options struct {
	url       string
	tools     string
	env       string
	out       string
	fromTable string
	timeout   time.Duration
	output    *pipeline.OutputOptions
	tui       []tea.ProgramOption // shows the TUI when non-nil
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	ctx = ctxlog.With(ctx, "command", cmd.Name)

	opts := options{
		url:       cmd.String(fileFlag),
		tools:     cmd.String(toolsFlag),
		env:       cmd.String(envFlag),
		out:       cmd.String(outFlag),
		fromTable: cmd.String(fromTableFlag),
		timeout:   time.Duration(cmd.Int(configTimeoutFlag)) * time.Second,
		output:    pipeline.DefaultOutputOptions(),
	}
	opts.output.ShowPoses = cmd.Bool(showPosesFlag)

	if cmd.Bool(tuiFlag) {
		opts.tui = []tea.ProgramOption{tea.WithOutput(cmd.Root().Writer)}
	}

	if opts.url == "" {
		ctxlog.Error(ctx, "Please specify the pipeline definition using the --file or -f flag.")
		return cli.Exit(cliExitStr, 1)
	}

	if err := execute(ctx, cmd.Root().Writer, opts); err != nil {
		ctxlog.Error(ctx, "pipeline failed", "error", err)
		return cli.Exit(cliExitStr, 1)
	}

	return nil
}

// execute loads the configuration, runs the pipeline and writes the summary to w.
// The summary and the output table are written also when a stage fails.
func execute(ctx context.Context, w io.Writer, opts options) error {
	if opts.env != "" {
		if err := config.LoadDotEnv(opts.env); err != nil {
			return errors.Join(ErrLoadConfig, err)
		}
	}

	tools, err := config.LoadTools(opts.tools)
	if err != nil {
		return errors.Join(ErrLoadConfig, err)
	}

	cfgCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	def, err := config.Load(cfgCtx, opts.url)
	if err != nil {
		return errors.Join(ErrLoadConfig, err)
	}

	p, err := pipeline.Build(def, tools, Registry)
	if err != nil {
		return err
	}

	var start *poses.Table

	if opts.fromTable != "" {
		if start, err = poses.Load(opts.fromTable, p.WorkDir); err != nil {
			return errors.Join(ErrLoadConfig, err)
		}
	}

	var (
		res    *pipeline.Result
		runErr error
	)

	work := func(ctx context.Context) error {
		if start != nil {
			res, runErr = p.Execute(ctx, start)
		} else {
			res, runErr = p.Run(ctx)
		}

		return runErr
	}

	if opts.tui != nil {
		err = runWithTUI(ctx, w, p, opts.tui, work)
	} else {
		err = work(ctx)
	}

	if res == nil {
		return err
	}

	if werr := res.WriteText(w, opts.output); werr != nil {
		return errors.Join(err, ErrWriteResults, werr)
	}

	if opts.out != "" && res.Table != nil {
		if werr := res.Table.Save(opts.out); werr != nil {
			return errors.Join(err, ErrWriteResults, werr)
		}

		ctxlog.Info(ctx, "table written", "path", opts.out, "poses", res.Table.Len())
	}

	return err
}

// runWithTUI runs the pipeline behind the terminal UI. Log records are held
// back and written to w once the UI has exited.
func runWithTUI(
	ctx context.Context, w io.Writer, p *pipeline.Pipeline, opts []tea.ProgramOption, work func(context.Context) error,
) error {
	var logs bytes.Buffer

	defer func() {
		_, _ = logs.WriteTo(w)
	}()

	ctx = ctxlog.New(ctx, slog.New(ctxlog.NewPrettyHandler(&slog.HandlerOptions{
		Level: ctxlog.LevelVar,
	}, ctxlog.WithDestinationWriter(&logs))))

	stages := make([]tui.StageInfo, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = tui.StageInfo{Prefix: s.Prefix, Tool: s.Runner.Name()}
	}

	r := tui.NewRunner(ctx, stages, opts...)
	p.Progress = r.Reporter()

	return r.Run(ctx, work)
}
