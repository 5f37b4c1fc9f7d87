// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level, opts ...Option) *slog.Logger {
	opts = append([]Option{WithDestinationWriter(buf)}, opts...)
	return slog.New(NewPrettyHandler(&slog.HandlerOptions{Level: level}, opts...))
}

func TestPrettyHandler_Plain(t *testing.T) {
	var buf bytes.Buffer

	newTestLogger(&buf, slog.LevelDebug).Info("submitted", "tasks", 3)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "["), "line should start with a timestamp")
	assert.Contains(t, line, "INFO: submitted")
	assert.Contains(t, line, `"tasks": 3`)
	assert.NotContains(t, line, "\033[")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	logger := newTestLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Debug("hidden too")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "WARN: shown")
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer

	logger := newTestLogger(&buf, slog.LevelInfo).
		With("stage", "mpnn").
		WithGroup("job").
		With("id", "42")
	logger.Info("polling", "pending", 2)

	out := buf.String()
	assert.Contains(t, out, `"stage": "mpnn"`)
	assert.Contains(t, out, `"job.id": "42"`)
	assert.Contains(t, out, `"job.pending": 2`)
}

func TestPrettyHandler_ErrorAttr(t *testing.T) {
	var buf bytes.Buffer

	newTestLogger(&buf, slog.LevelInfo).Error("stage failed", "error", errors.New("boom"))
	assert.Contains(t, buf.String(), `"error": "boom"`)
}

func TestPrettyHandler_Colour(t *testing.T) {
	var buf bytes.Buffer

	logger := newTestLogger(&buf, slog.LevelInfo, WithColour())
	logger.Error("red")
	logger.Warn("amber")

	out := buf.String()
	assert.Contains(t, out, "\033[31mERROR:\033[0m \033[97mred\033[0m")
	assert.Contains(t, out, "\033[33mWARN:\033[0m")
}

func TestPrettyHandler_AutoColourHonoursNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")

	h := NewPrettyHandler(nil, WithAutoColour())
	assert.False(t, h.colour)
}

func TestTimeFormat(t *testing.T) {
	assert.Equal(t, "[15:04:05.000]", TimeFormat)
}
