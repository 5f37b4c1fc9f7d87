// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the protpipe command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/protpipe"
	"github.com/matt-FFFFFF/protpipe/cmd/protpipe/config"
	"github.com/matt-FFFFFF/protpipe/cmd/protpipe/run"
	"github.com/matt-FFFFFF/protpipe/cmd/protpipe/show"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/matt-FFFFFF/protpipe/internal/signalbroker"
	_ "github.com/matt-FFFFFF/protpipe/internal/tools/alltools"
	"github.com/urfave/cli/v3"
)

const (
	logLevelFlag  = "log-level"
	logFormatFlag = "log-format"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		config.ConfigCmd,
		run.RunCmd,
		show.ShowCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "protpipe",
	Description: `protpipe runs protein design pipelines. Each stage hands the poses of the
previous stage to a structure tool (RFdiffusion, LigandMPNN, ESMFold), runs it
locally or as a SLURM array job, and merges the tool's scores into the pose table.
The table is saved after every stage.`,
	Usage:     "protpipe run -f pipeline.yaml",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "Log level: DEBUG, INFO, WARN or ERROR",
			Value:   "WARN",
			Sources: cli.EnvVars(ctxlog.LevelEnv),
		},
		&cli.StringFlag{
			Name:  logFormatFlag,
			Usage: "Log format: text or json",
			Value: "text",
		},
	},
	Before:                setupLogging,
	EnableShellCompletion: true,
}

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	lvl, err := ctxlog.ParseLevel(cmd.String(logLevelFlag))
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}

	ctxlog.LevelVar.Set(lvl)

	switch f := cmd.String(logFormatFlag); f {
	case "text":
		return ctx, nil
	case "json":
		return ctxlog.New(ctx, ctxlog.NewJSON(cmd.ErrWriter)), nil
	default:
		return ctx, cli.Exit(fmt.Sprintf("unknown log format %q, want text or json", f), 1)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", protpipe.Version, protpipe.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	// Check if the context was cancelled (e.g., due to signals)
	if ctx.Err() != nil {
		ctxlog.Error(ctx, "command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Error(ctx, "command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Info(ctx, "command completed successfully")
}
