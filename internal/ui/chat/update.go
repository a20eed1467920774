// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.controller.Dispose()
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Stop):
			if m.viewState() != StateReady {
				m.controller.Stop()
				return m, nil
			}

		case key.Matches(msg, m.keyMap.Submit):
			m.submit()
			return m, nil

		case key.Matches(msg, m.keyMap.PageUp):
			m.viewport.HalfViewUp()
			return m, nil

		case key.Matches(msg, m.keyMap.PageDown):
			m.viewport.HalfViewDown()
			return m, nil

		case key.Matches(msg, m.keyMap.Up):
			m.viewport.LineUp(1)
			return m, nil

		case key.Matches(msg, m.keyMap.Down):
			m.viewport.LineDown(1)
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case StreamTickMsg:
		if m.gate.ShouldRender(m.state.Version()) {
			m.refreshViewport()
		}
		cmds = append(cmds, streamTickCmd())

	case SettingsMsg:
		m.showMeta = msg.ShowMeta
		m.markdown = msg.Markdown
		m.gate.Force()
		m.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit sends the current input through the controller.
func (m *Model) submit() {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return
	}

	if err := m.controller.Send(text, nil); err != nil {
		m.lastErr = err.Error()
		return
	}
	m.lastErr = ""
	m.input.Reset()
	m.gate.Force()
	m.refreshViewport()
}

// resize recomputes component dimensions for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	// Header, input and status bar each take a fixed slice; the
	// transcript gets the rest.
	contentHeight := height - chromeHeight
	if contentHeight < 3 {
		contentHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(width, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = contentHeight
	}
	m.input.Width = width - 4

	m.gate.Force()
	m.refreshViewport()
}

// refreshViewport re-renders the transcript and keeps the view pinned to
// the bottom while streaming.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.viewState() == StateStreaming {
		m.viewport.GotoBottom()
	}
}
