// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

const (
	// NoColor is the environment variable that disables color output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces color output.
	ForceColor = "FORCE_COLOR"
	reset      = "\033[0m"
	prefix     = "\033["
	suffix     = "m"
)

// Code is an ANSI select graphic rendition code.
type Code int

// Codes used by protpipe output.
const (
	Reset     Code = 0
	Bold      Code = 1
	Faint     Code = 2
	FgRed     Code = 31
	FgGreen   Code = 32
	FgYellow  Code = 33
	FgMagenta Code = 35
	FgCyan    Code = 36
	FgWhite   Code = 37
	FgHiBlack Code = 90
	FgHiWhite Code = 97
)

// Painter applies codes to strings when enabled.
type Painter struct {
	enabled bool
}

// For returns a painter for output written to w.
func For(w io.Writer) Painter {
	return Painter{enabled: capable(w)}
}

// New returns a painter that emits escape codes only when enabled is true.
func New(enabled bool) Painter {
	return Painter{enabled: enabled}
}

// Enabled reports whether p emits escape codes.
func (p Painter) Enabled() bool {
	return p.enabled
}

// Paint wraps s in codes and a trailing reset.
func (p Painter) Paint(s string, codes ...Code) string {
	if !p.enabled || len(codes) == 0 {
		return s
	}

	var sb strings.Builder

	sb.Grow(len(s) + len(prefix) + len(suffix) + len(reset) + 4*len(codes))
	sb.WriteString(prefix)

	for i, c := range codes {
		if i > 0 {
			sb.WriteByte(';')
		}

		sb.WriteString(strconv.Itoa(int(c)))
	}

	sb.WriteString(suffix)
	sb.WriteString(s)
	sb.WriteString(reset)

	return sb.String()
}

// Status paints s green when ok and red otherwise.
func (p Painter) Status(s string, ok bool) string {
	if ok {
		return p.Paint(s, FgGreen)
	}

	return p.Paint(s, Bold, FgRed)
}

func capable(w io.Writer) bool {
	if os.Getenv(NoColor) != "" {
		return false
	}

	if os.Getenv(ForceColor) != "" {
		return true
	}

	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}
