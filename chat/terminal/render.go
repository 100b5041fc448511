package terminal

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const wordWrap = 100

var (
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	noticeStyle    = lipgloss.NewStyle().Faint(true)
)

// renderer formats REPL output. The zero value prints plain text.
type renderer struct {
	color    bool
	markdown *glamour.TermRenderer
}

func newRenderer(color, markdown bool) *renderer {
	r := &renderer{color: color}
	if markdown {
		// Falls back to plain replies when the renderer cannot be built.
		r.markdown, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrap),
		)
	}
	return r
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *renderer) prompt() string {
	return r.style(userStyle, "You") + ": "
}

func (r *renderer) reply(name, text string) string {
	if r.markdown != nil {
		if out, err := r.markdown.Render(text); err == nil {
			text = strings.Trim(out, "\n")
		}
	}
	return r.style(assistantStyle, name) + ": " + text
}

func (r *renderer) notice(text string) string {
	return r.style(noticeStyle, text)
}

func (r *renderer) alert(text string) string {
	return r.style(errorStyle, text)
}
