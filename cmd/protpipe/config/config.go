// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config contains the config command and its subcommands.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matt-FFFFFF/protpipe/internal/config"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/matt-FFFFFF/protpipe/internal/schema"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag          = "file"
	hclFlag           = "hcl"
	formatFlag        = "format"
	toolArg           = "tool"
	fetchTimeout      = 30 * time.Second
	formatMarkdown    = "markdown"
	formatJSON        = "json"
	formatYAML        = "yaml"
	defaultToolFormat = formatMarkdown
)

// ErrUnknownTool is returned when documentation is requested for an unregistered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the tools that are documented and validated against.
var Registry = runner.DefaultRegistry

// ConfigCmd groups the commands that describe and check pipeline definitions.
var ConfigCmd = &cli.Command{
	Name:  "config",
	Usage: "Get info on the pipeline definition format and the available tools",
	Commands: []*cli.Command{
		exampleCmd,
		validateCmd,
		toolsCmd,
		schemaCmd,
	},
}

var exampleCmd = &cli.Command{
	Name:  "example",
	Usage: "Print an example pipeline definition",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  hclFlag,
			Usage: "Print the example as HCL instead of YAML",
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		example := config.ExampleYAML
		if cmd.Bool(hclFlag) {
			example = config.ExampleHCL
		}

		_, err := io.WriteString(cmd.Root().Writer, example)

		return err
	},
}

var validateCmd = &cli.Command{
	Name:  "validate",
	Usage: "Load a pipeline definition and report every problem found",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     fileFlag,
			Aliases:  []string{"f"},
			Usage:    "URL of the pipeline definition, in go-getter syntax",
			Required: true,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		if err := validate(ctx, cmd.Root().Writer, cmd.String(fileFlag)); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return nil
	},
}

func validate(ctx context.Context, w io.Writer, url string) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	def, err := config.Load(ctx, url)
	if err != nil {
		return err
	}

	if err := def.Validate(Registry); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s: %d stages, valid\n", url, len(def.Stages))

	return err
}

var toolsCmd = &cli.Command{
	Name:  "tools",
	Usage: "List the available tools or document the settings of one",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: toolArg,
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        formatFlag,
			Usage:       "Output format: markdown, json or yaml",
			DefaultText: defaultToolFormat,
			Value:       defaultToolFormat,
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		if err := tools(cmd.Root().Writer, cmd.StringArg(toolArg), cmd.String(formatFlag)); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return nil
	},
}

func tools(w io.Writer, name, format string) error {
	if name == "" {
		return listTools(w)
	}

	reg, ok := Registry[name]
	if !ok {
		return fmt.Errorf("%w: %s, known tools: %s", ErrUnknownTool, name, strings.Join(Registry.Names(), ", "))
	}

	switch strings.ToLower(format) {
	case formatMarkdown, "md":
		return schema.WriteMarkdown(w, runner.Registry{name: reg})
	case formatJSON:
		s, err := schema.Tool(reg)
		if err != nil {
			return err
		}

		return schema.WriteJSON(w, s)
	case formatYAML:
		return schema.WriteYAMLExample(w, name, reg)
	}

	return fmt.Errorf("invalid format %q, valid formats: markdown, json, yaml", format)
}

func listTools(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("Available tools:\n\n")

	for _, name := range Registry.Names() {
		fmt.Fprintf(&sb, "  %-15s - %s\n", name, Registry[name].Description)
	}

	sb.WriteString("\nUse 'protpipe config tools <tool>' to see the settings of a tool.\n")
	sb.WriteString("Use 'protpipe config schema' for the JSON Schema of a pipeline definition.\n")

	_, err := io.WriteString(w, sb.String())

	return err
}

var schemaCmd = &cli.Command{
	Name:  "schema",
	Usage: "Print the JSON Schema of a YAML pipeline definition",
	Action: func(_ context.Context, cmd *cli.Command) error {
		s, err := schema.Pipeline(Registry)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to generate JSON schema: %v", err), 1)
		}

		return schema.WriteJSON(cmd.Root().Writer, s)
	},
}
