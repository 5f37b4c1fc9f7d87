// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/protpipe/internal/progress"
)

const durationRounding = 100 * time.Millisecond

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// PipelineDoneMsg indicates that the pipeline returned.
type PipelineDoneMsg struct {
	Err error
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case ProgressEventMsg:
		m.processEvent(msg.Event)
		return m, nil

	case PipelineDoneMsg:
		m.done = true
		m.err = msg.Err

		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var view strings.Builder

	view.WriteString(m.styles.Title.Render("🧬 protpipe"))
	view.WriteString("\n")

	prefixWidth, toolWidth := 0, 0
	for _, n := range m.stages {
		prefixWidth = max(prefixWidth, len(n.Prefix))
		toolWidth = max(toolWidth, len(n.Tool))
	}

	now := m.now()
	for i, n := range m.stages {
		m.renderStage(&view, i+1, n, prefixWidth, toolWidth, now)
	}

	switch {
	case m.done && m.err != nil:
		view.WriteString(m.styles.Failed.Render("\n⚠️  pipeline stopped, see the summary below"))
	case m.done:
		view.WriteString(m.styles.Success.Render("\n✅ pipeline finished"))
	case m.quitting:
		view.WriteString(m.styles.Failed.Render("\ncancelling pipeline..."))
	default:
		view.WriteString(m.styles.Help.Render("q: cancel"))
	}

	view.WriteString("\n")

	return view.String()
}

func (m *Model) renderStage(sb *strings.Builder, pos int, n *StageNode, prefixWidth, toolWidth int, now time.Time) {
	icon, style := m.statusIcon(n.Status)
	line := fmt.Sprintf("%s %d/%d %-*s  %-*s  %s",
		icon, pos, len(m.stages), prefixWidth, n.Prefix, toolWidth, n.Tool, style.Render(n.Status.String()))

	if n.Status != StatusPending {
		line += " " + m.styles.Detail.Render(n.Elapsed(now).Round(durationRounding).String())
	}

	sb.WriteString(line)
	sb.WriteString("\n")

	switch n.Status {
	case StatusSuccess, StatusCached:
		detail := fmt.Sprintf("%d poses", n.Poses)
		if n.Failed > 0 || n.Dropped > 0 {
			detail += fmt.Sprintf(", %d failed, %d dropped", n.Failed, n.Dropped)
		}

		sb.WriteString("    " + m.styles.Detail.Render(detail) + "\n")
	case StatusFailed:
		if n.ErrorMsg != "" {
			sb.WriteString("    " + m.styles.Error.Render(firstLine(n.ErrorMsg, m.width-4)) + "\n")
		}
	}
}

func (m *Model) statusIcon(s StageStatus) (string, lipgloss.Style) {
	switch s {
	case StatusRunning:
		return m.spinner.View(), m.styles.Running
	case StatusSuccess:
		return "✅", m.styles.Success
	case StatusCached:
		return "♻️ ", m.styles.Cached
	case StatusFailed:
		return "❌", m.styles.Failed
	default:
		return "⏳", m.styles.Pending
	}
}

// firstLine returns the first line of s, cut to width when width is positive.
func firstLine(s string, width int) string {
	s, _, _ = strings.Cut(s, "\n")
	if r := []rune(s); width > 0 && len(r) > width {
		return string(r[:width])
	}

	return s
}
