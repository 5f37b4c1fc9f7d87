// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
)

// StageStatus is the display state of one stage.
type StageStatus int

const (
	StatusPending StageStatus = iota
	StatusRunning
	StatusSuccess
	StatusCached
	StatusFailed
)

// String returns a string representation of the stage status.
func (s StageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusCached:
		return "cached"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageInfo names a stage before it runs.
type StageInfo struct {
	Prefix string
	Tool   string
}

// StageNode is the display state of one stage.
type StageNode struct {
	StageInfo
	Status    StageStatus
	StartTime time.Time
	EndTime   time.Time
	Poses     int
	Failed    int
	Dropped   int
	ErrorMsg  string
}

// Elapsed returns how long the stage ran, or has been running at now.
func (n *StageNode) Elapsed(now time.Time) time.Duration {
	switch {
	case n.StartTime.IsZero():
		return 0
	case n.EndTime.IsZero():
		return now.Sub(n.StartTime)
	default:
		return n.EndTime.Sub(n.StartTime)
	}
}

func (n *StageNode) apply(e progress.Event) {
	switch e.Type {
	case progress.EventStarted:
		n.Status = StatusRunning
		n.StartTime = e.Timestamp
	case progress.EventCompleted:
		n.Status = StatusSuccess
	case progress.EventCached:
		n.Status = StatusCached
	case progress.EventFailed:
		n.Status = StatusFailed
		if e.Err != nil {
			n.ErrorMsg = e.Err.Error()
		}
	}

	if e.Type != progress.EventStarted {
		n.EndTime = e.Timestamp
		n.Poses = e.Poses
		n.Failed = e.Failed
		n.Dropped = e.Dropped
	}
}

// Model is the bubbletea model of a pipeline run.
type Model struct {
	stages   []*StageNode
	spinner  spinner.Model
	styles   *Styles
	width    int
	done     bool
	err      error
	quitting bool
	now      func() time.Time
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Pending lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Cached  lipgloss.Style
	Failed  lipgloss.Style
	Detail  lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Cached: lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Detail: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
	}
}

// NewModel creates a model showing the given stages as pending.
func NewModel(stages []StageInfo) *Model {
	m := &Model{
		stages:  make([]*StageNode, len(stages)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles:  NewStyles(),
		now:     time.Now,
	}

	for i, s := range stages {
		m.stages[i] = &StageNode{StageInfo: s}
	}

	m.spinner.Style = m.styles.Running

	return m
}

// Stages returns the display state of every stage.
func (m *Model) Stages() []*StageNode {
	return m.stages
}

// Done reports whether the pipeline returned, and with which error.
func (m *Model) Done() (bool, error) {
	return m.done, m.err
}

// processEvent updates the stage an event refers to. Stages beyond the known
// list are added.
func (m *Model) processEvent(e progress.Event) {
	if e.Stage < 1 {
		return
	}

	for len(m.stages) < e.Stage {
		m.stages = append(m.stages, &StageNode{})
	}

	n := m.stages[e.Stage-1]
	if n.Prefix == "" {
		n.Prefix = e.Prefix
	}

	if n.Tool == "" {
		n.Tool = e.Tool
	}

	n.apply(e)
}
