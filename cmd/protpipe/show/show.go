// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show contains the show command.
package show

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/protpipe/internal/color"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/urfave/cli/v3"
)

const (
	fileArg     = "file"
	columnsFlag = "columns"
	jsonFlag    = "json"
	sortFlag    = "sort"
	jsonIndent  = 2
)

var (
	// ErrReadFile is returned when the table cannot be loaded.
	ErrReadFile = errors.New("failed to read table")
	// ErrWriteResults is returned when the table cannot be written to stdout.
	ErrWriteResults = errors.New("failed to write table to stdout")
)

// ShowCmd is the command that prints a saved pose table.
var ShowCmd = &cli.Command{
	Name:        "show",
	Usage:       "Print a saved pose table",
	Description: "Print a pose table saved as json, csv, yaml, xlsx or sqlite.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      fileArg,
			UsageText: "TABLEFILE",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    columnsFlag,
			Aliases: []string{"c"},
			Usage:   "Columns to print, comma separated. Defaults to every column",
		},
		&cli.BoolFlag{
			Name:  jsonFlag,
			Usage: "Print the rows as JSON objects",
		},
		&cli.BoolFlag{
			Name:  sortFlag,
			Usage: "Order rows by pose description",
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		path := cmd.StringArg(fileArg)
		if path == "" {
			return cli.Exit("Please provide a table file to show", 1)
		}

		t, err := poses.Load(path, "")
		if err != nil {
			return cli.Exit(errors.Join(ErrReadFile, err).Error(), 1)
		}

		if cmd.Bool(sortFlag) {
			t = t.Sorted()
		}

		if err := write(cmd.Root().Writer, t, cmd.StringSlice(columnsFlag), cmd.Bool(jsonFlag)); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return nil
	},
}

func write(w io.Writer, t *poses.Table, columns []string, asJSON bool) error {
	if len(columns) == 0 {
		columns = t.Columns()
	}

	for _, c := range columns {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: %s", poses.ErrUnknownColumn, c)
		}
	}

	if asJSON {
		return writeJSON(w, color.For(w), t, columns)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(columns, "\t")) //nolint:errcheck

	for _, r := range t.Rows() {
		cells := make([]string, len(columns))
		for i, c := range columns {
			v, _ := r.Value(c)
			cells[i] = cell(v)
		}

		fmt.Fprintln(tw, strings.Join(cells, "\t")) //nolint:errcheck
	}

	if err := tw.Flush(); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

func writeJSON(w io.Writer, p color.Painter, t *poses.Table, columns []string) error {
	rows := make([]any, 0, t.Len())

	for _, r := range t.Rows() {
		obj := make(map[string]any, len(columns))
		for _, c := range columns {
			obj[c], _ = r.Value(c)
		}

		rows = append(rows, obj)
	}

	f := colorjson.NewFormatter()
	f.Indent = jsonIndent
	f.DisabledColor = !p.Enabled()

	b, err := f.Marshal(rows)
	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(b)
}
