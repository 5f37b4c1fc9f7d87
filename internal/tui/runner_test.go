// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headless(out *bytes.Buffer) []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(out), tea.WithoutSignalHandler()}
}

func TestRunner_Run(t *testing.T) {
	var out bytes.Buffer

	r := NewRunner(context.Background(), stages[:1], headless(&out)...)

	err := r.Run(context.Background(), func(_ context.Context) error {
		r.Reporter().Report(progress.Event{Stage: 1, Type: progress.EventStarted, Timestamp: time.Now()})
		r.Reporter().Report(progress.Event{Stage: 1, Type: progress.EventCompleted, Poses: 2, Timestamp: time.Now()})

		return nil
	})
	require.NoError(t, err)

	done, doneErr := r.model.Done()
	assert.True(t, done)
	assert.NoError(t, doneErr)
	assert.Equal(t, StatusSuccess, r.model.Stages()[0].Status)
	assert.Contains(t, out.String(), "rfdiffusion")
}

func TestRunner_RunReturnsWorkError(t *testing.T) {
	var out bytes.Buffer

	boom := errors.New("boom")
	r := NewRunner(context.Background(), stages, headless(&out)...)

	err := r.Run(context.Background(), func(_ context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTUI)
}

func TestRunner_CancelledContext(t *testing.T) {
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, stages, headless(&out)...)

	err := r.Run(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()

		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTUI)
}

func TestTUIReporter_ClosedDropsEvents(t *testing.T) {
	rep := NewTUIReporter(nil)
	rep.Close()

	assert.NotPanics(t, func() {
		rep.Report(progress.Event{Stage: 1})
	})
}
