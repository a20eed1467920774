// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout containers
	App       lipgloss.Style
	Container lipgloss.Style

	// Header
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style

	// Message bubbles
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantBody  lipgloss.Style
	AttachmentTag  lipgloss.Style
	CancelledNote  lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusReady  lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusQueued lipgloss.Style
	MetricsText  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Spinner and loading
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style

	// Errors
	ErrorText lipgloss.Style

	// markdown renders finalized assistant text, lazily constructed and
	// rebuilt when the wrap width changes
	markdown *glamour.TermRenderer
	mdWidth  int
}

// NewTheme creates a theme with all styles configured. name selects the
// background mode ("dark", "light"); anything else detects the terminal.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()

	isDark := termenv.HasDarkBackground()
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserBubbleFg)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantBubbleFg)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(UserBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.AssistantBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(AssistantBubbleBorder).
		BorderLeft(true).
		PaddingLeft(1)

	t.AttachmentTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.CancelledNote = lipgloss.NewStyle().
		Foreground(Rose).
		Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusReady = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.StatusQueued = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	t.MetricsText = lipgloss.NewStyle().Foreground(TextMuted)

	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().Foreground(TextSecondary)

	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).Bold(true)
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// RenderMarkdown renders finalized assistant text as markdown for the
// given wrap width. Falls back to the raw text when rendering fails, so a
// glamour problem never hides a response.
func (t *Theme) RenderMarkdown(text string, width int) string {
	if width < 20 {
		width = 20
	}

	if t.markdown == nil || t.mdWidth != width {
		style := "light"
		if t.IsDark {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return text
		}
		t.markdown = r
		t.mdWidth = width
	}

	out, err := t.markdown.Render(text)
	if err != nil {
		return text
	}
	return out
}
