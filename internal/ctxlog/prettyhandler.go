// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/TylerBrock/colorjson"
	"github.com/matt-FFFFFF/protpipe/internal/color"
)

var (
	// ErrMarshalAttribute is returned when a record's attributes cannot be encoded.
	ErrMarshalAttribute = errors.New("error when marshaling attribute")
	// ErrIoWrite is returned when the destination writer fails.
	ErrIoWrite = errors.New("error when writing to output")
)

// TimeFormat is the timestamp layout used by PrettyHandler.
const TimeFormat = "[15:04:05.000]"

// PrettyHandler renders records as `[time] LEVEL: message {attrs}` lines.
type PrettyHandler struct {
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	group  string
	mu     *sync.Mutex
	writer io.Writer
	colour bool
}

// Option configures a PrettyHandler.
type Option func(h *PrettyHandler)

// WithDestinationWriter sets the writer records are written to.
func WithDestinationWriter(w io.Writer) Option {
	return func(h *PrettyHandler) {
		h.writer = w
	}
}

// WithColour forces ANSI colour output.
func WithColour() Option {
	return func(h *PrettyHandler) {
		h.colour = true
	}
}

// WithAutoColour enables colour when stdout can take it, see color.For.
func WithAutoColour() Option {
	return func(h *PrettyHandler) {
		h.colour = color.For(os.Stdout).Enabled()
	}
}

// NewPrettyHandler creates a PrettyHandler. Output defaults to os.Stderr.
func NewPrettyHandler(opts *slog.HandlerOptions, options ...Option) *PrettyHandler {
	h := &PrettyHandler{
		mu:     &sync.Mutex{},
		writer: os.Stderr,
	}
	if opts != nil {
		h.opts = *opts
	}

	for _, o := range options {
		o(h)
	}

	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}

	return level >= min
}

// WithAttrs implements slog.Handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)

	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}

	return &c
}

// WithGroup implements slog.Handler. Group names prefix subsequent keys.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.group = h.qualifyKey(name)

	return &c
}

// Handle implements slog.Handler.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(fields, a)
	}

	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.qualify(a))
		return true
	})

	var out strings.Builder

	if !r.Time.IsZero() {
		out.WriteString(h.paint(r.Time.Format(TimeFormat), color.FgWhite))
		out.WriteString(" ")
	}

	out.WriteString(h.paint(r.Level.String()+":", levelColour(r.Level)))
	out.WriteString(" ")
	out.WriteString(h.paint(r.Message, color.FgHiWhite))

	if len(fields) > 0 {
		b, err := h.formatFields(fields)
		if err != nil {
			return errors.Join(ErrMarshalAttribute, err)
		}

		out.WriteString(" ")
		out.Write(b)
	}

	out.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.writer, out.String()); err != nil {
		return errors.Join(ErrIoWrite, err)
	}

	return nil
}

func (h *PrettyHandler) formatFields(fields map[string]any) ([]byte, error) {
	// normalise to JSON-native types so colorjson can render every value
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err //nolint:wrapcheck
	}

	f := colorjson.NewFormatter()
	f.DisabledColor = !h.colour

	return f.Marshal(plain) //nolint:wrapcheck
}

func (h *PrettyHandler) paint(s string, code color.Code) string {
	return color.New(h.colour).Paint(s, code)
}

func (h *PrettyHandler) qualify(a slog.Attr) slog.Attr {
	a.Key = h.qualifyKey(a.Key)
	if h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(nil, a)
	}

	return a
}

func (h *PrettyHandler) qualifyKey(k string) string {
	if h.group == "" {
		return k
	}

	return h.group + "." + k
}

func addAttr(fields map[string]any, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			ga.Key = a.Key + "." + ga.Key
			addAttr(fields, ga)
		}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			fields[a.Key] = err.Error()
			return
		}

		fields[a.Key] = v.Any()
	default:
		fields[a.Key] = v.Any()
	}
}

func levelColour(l slog.Level) color.Code {
	switch {
	case l <= slog.LevelDebug:
		return color.FgWhite
	case l < slog.LevelWarn:
		return color.FgCyan
	case l < slog.LevelError:
		return color.FgYellow
	case l == slog.LevelError:
		return color.FgRed
	}

	return color.FgMagenta
}
