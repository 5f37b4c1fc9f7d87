// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
)

// ErrTUI is returned when the terminal UI fails.
var ErrTUI = errors.New("terminal UI failed")

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *TUIReporter
	mutex    sync.Mutex
}

var _ progress.Reporter = (*TUIReporter)(nil)

// TUIReporter implements progress.Reporter and forwards events to the TUI.
type TUIReporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewTUIReporter creates a new TUI progress reporter.
func NewTUIReporter(program *tea.Program) *TUIReporter {
	return &TUIReporter{
		program: program,
	}
}

// Report implements progress.Reporter.
func (tr *TUIReporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.
func (tr *TUIReporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	tr.closed = true
}

// NewRunner creates a TUI runner listing stages. The program stops when ctx is cancelled.
func NewRunner(ctx context.Context, stages []StageInfo, opts ...tea.ProgramOption) *Runner {
	model := NewModel(stages)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewTUIReporter(program),
	}
}

// Reporter returns the progress reporter feeding this runner's display.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run shows the TUI while work runs in the background and returns work's error.
// Leaving the TUI early cancels the context passed to work and waits for it to return.
func (r *Runner) Run(ctx context.Context, work func(context.Context) error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workDone := make(chan error, 1)

	go func() {
		err := work(ctx)

		r.reporter.Close()
		r.program.Send(PipelineDoneMsg{Err: err})
		workDone <- err
	}()

	_, tuiErr := r.program.Run()

	cancel()

	workErr := <-workDone

	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		return errors.Join(workErr, ErrTUI, tuiErr)
	}

	return workErr
}
