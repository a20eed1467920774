// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/loomchat/internal/metrics"
	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/util"
)

// chromeHeight is the number of rows taken by header, input and status
// bar around the transcript viewport.
const chromeHeight = 6

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return m.theme.App.Render(b.String())
}

// renderHeader renders the top banner.
func (m *Model) renderHeader() string {
	title := m.theme.HeaderBrand.Render("loomchat")
	return m.theme.Header.Width(m.width).Render(title)
}

// renderInput renders the input area with the prompt.
func (m *Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the full message list for the viewport.
func (m *Model) renderTranscript() string {
	sid := m.currentSession()
	msgs := m.state.Messages(sid)
	if len(msgs) == 0 {
		return m.theme.ThinkingText.Render("\n  Start a conversation. Enter sends, Esc stops a running generation.\n")
	}

	wrap := m.width - 6
	if wrap < 20 {
		wrap = 20
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(m.renderMessage(msg, wrap))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage renders one message bubble.
func (m *Model) renderMessage(msg model.ChatMessage, wrap int) string {
	var b strings.Builder

	switch msg.Role {
	case model.RoleUser:
		b.WriteString(m.theme.UserLabel.Render(msg.Role.DisplayName()))
		b.WriteString("\n")
		body := lipgloss.NewStyle().Width(wrap).Render(msg.Text)
		b.WriteString(m.theme.UserBubble.Render(body))
		for _, att := range msg.Attachments {
			b.WriteString("\n")
			b.WriteString(m.theme.AttachmentTag.Render("  + " + att.Name))
		}

	case model.RoleAssistant:
		b.WriteString(m.theme.AssistantLabel.Render(msg.Role.DisplayName()))
		if msg.IsStreaming() {
			b.WriteString(" " + m.spin.View())
		}
		b.WriteString("\n")

		text := msg.Text
		if text == "" && msg.IsStreaming() {
			text = m.theme.ThinkingText.Render("thinking...")
		} else if msg.Finalized && m.markdown {
			text = strings.TrimRight(m.theme.RenderMarkdown(text, wrap), "\n")
		} else {
			text = lipgloss.NewStyle().Width(wrap).Render(text)
		}
		b.WriteString(m.theme.AssistantBody.Render(text))

		if note := cancelNote(msg); note != "" {
			b.WriteString("\n")
			b.WriteString(m.theme.CancelledNote.Render("  " + note))
		}
		if m.showMeta {
			if line := metricsLine(msg); line != "" {
				b.WriteString("\n")
				b.WriteString(m.theme.MetricsText.Render("  " + line))
			}
		}
	}

	b.WriteString("\n")
	return b.String()
}

// cancelNote returns a marker for turns that were stopped by the user.
func cancelNote(msg model.ChatMessage) string {
	if msg.Meta == nil || msg.Meta.Flat == nil {
		return ""
	}
	if msg.Meta.Flat.StopReason == "user_cancelled" {
		return "stopped by user"
	}
	return ""
}

// metricsLine renders a finalized message's generation metrics.
func metricsLine(msg model.ChatMessage) string {
	if !msg.Finalized || msg.Meta == nil {
		return ""
	}
	return metrics.Format(msg.Meta.Flat)
}

// =============================================================================
// STATUS BAR
// =============================================================================

// renderStatusBar renders the bottom status line: state, last-run
// metrics, shortcuts, and any surfaced error.
func (m *Model) renderStatusBar() string {
	var state string
	switch m.viewState() {
	case StateStreaming:
		state = m.theme.StatusBusy.Render("streaming")
	case StateQueued:
		state = m.theme.StatusQueued.Render("queued")
	default:
		state = m.theme.StatusReady.Render("ready")
	}

	parts := []string{state}

	if m.lastErr != "" {
		parts = append(parts, m.theme.ErrorText.Render(m.lastErr))
	} else if m.metrics != nil {
		if line := m.metrics.FormatLast(m.currentSession()); line != "" {
			parts = append(parts, m.theme.MetricsText.Render(line))
		}
	}

	var help []string
	for _, binding := range m.keyMap.ShortHelp() {
		h := binding.Help()
		help = append(help,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	parts = append(parts, strings.Join(help, "  "))

	// UNICODE: width-aware truncation keeps wide runes from breaking the
	// status line layout.
	line := util.TruncateWidth(strings.Join(parts, "  |  "), m.width-2)
	return m.theme.StatusBar.Width(m.width).Render(line)
}
