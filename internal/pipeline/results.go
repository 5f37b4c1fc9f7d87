// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/protpipe/internal/color"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
)

// OutputOptions controls what WriteText includes.
type OutputOptions struct {
	ShowPoses    bool // list failed and dropped poses instead of counting them
	ShowWarnings bool
}

// DefaultOutputOptions returns the options used by the run command.
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{ShowWarnings: true}
}

// WriteText writes one status line per stage report followed by the scorefile.
func (r *Result) WriteText(w io.Writer, opts *OutputOptions) error {
	if opts == nil {
		opts = DefaultOutputOptions()
	}

	p := color.For(w)

	var sb strings.Builder

	for _, rep := range r.Reports {
		writeReport(&sb, p, rep, rep == r.Failed, opts)
	}

	switch {
	case r.Scorefile != "":
		fmt.Fprintf(&sb, "%s %s\n", p.Paint("scorefile:", color.Bold), r.Scorefile)
	case r.Table != nil:
		fmt.Fprintf(&sb, "%s %d poses, not saved\n", p.Paint("scorefile:", color.Bold), r.Table.Len())
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func writeReport(sb *strings.Builder, p color.Painter, rep *runner.Report, failed bool, opts *OutputOptions) {
	var status string

	switch {
	case failed:
		status = p.Status(statusMark(false), false)
	case rep.Cached:
		status = p.Paint("~", color.FgYellow)
	default:
		status = p.Status(statusMark(rep.OK()), rep.OK())
	}

	fmt.Fprintf(sb, "%s %s (%s): %d records", status, p.Paint(rep.Prefix, color.Bold), rep.Tool, rep.Records)

	if rep.Cached {
		sb.WriteString(" (cached)")
	}

	if len(rep.Failed) > 0 {
		fmt.Fprintf(sb, ", %s", p.Paint(fmt.Sprintf("%d failed", len(rep.Failed)), color.FgRed))
	}

	if len(rep.Dropped) > 0 {
		fmt.Fprintf(sb, ", %s", p.Paint(fmt.Sprintf("%d dropped", len(rep.Dropped)), color.FgYellow))
	}

	sb.WriteString("\n")

	if opts.ShowPoses {
		writeList(sb, p.Paint("➜ failed:", color.FgRed), rep.Failed)
		writeList(sb, p.Paint("➜ dropped:", color.FgYellow), rep.Dropped)
	}

	if opts.ShowWarnings {
		for _, msg := range rep.Warnings {
			fmt.Fprintf(sb, "  %s %s\n", p.Paint("➜ warning:", color.FgYellow), msg)
		}
	}
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}

	fmt.Fprintf(sb, "  %s %s\n", label, strings.Join(items, ", "))
}

func statusMark(ok bool) string {
	if ok {
		return "✓"
	}

	return "✗"
}
