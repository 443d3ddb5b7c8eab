package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/exajoy/aider/core/session"
	"github.com/muesli/reflow/wordwrap"
)

const (
	promptSymbol    = "> "
	streamingCursor = "▍"
)

var (
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "245"}).Italic(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"}).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"}).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "242", Dark: "241"})
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"})
)

func rolePrefix(message session.Message) (string, lipgloss.Style) {
	if message.IsError() {
		return "Error: ", errorStyle
	}
	switch message.Role {
	case session.RoleUser:
		return "You: ", userStyle
	case session.RoleAssistant:
		return "AI: ", assistantStyle
	default:
		return "", systemStyle
	}
}

func renderMessage(message session.Message, width int) string {
	prefix, style := rolePrefix(message)

	text := message.Text
	switch message.Status {
	case session.StatusInProgress:
		text += streamingCursor
	case session.StatusIncomplete:
		text += " [interrupted]"
	}

	body := prefix + text
	if width > 0 {
		body = strings.TrimSuffix(wordwrap.String(body, width), "\n")
	}

	if message.IsError() || message.Role == session.RoleSystem {
		return style.Render(body)
	}
	// Only the role label is colored; reply text keeps the terminal default.
	if rest, ok := strings.CutPrefix(body, prefix); ok {
		return style.Render(prefix) + rest
	}
	return body
}

func renderHistory(history []session.Message, width int) string {
	rendered := make([]string, 0, len(history))
	for _, message := range history {
		rendered = append(rendered, renderMessage(message, width))
	}
	return strings.Join(rendered, "\n\n")
}

func renderStatus(awaiting bool) string {
	if awaiting {
		return statusStyle.Render("Waiting for response... (Esc to quit)")
	}
	return statusStyle.Render("Enter to send, Esc to quit")
}

func renderPrompt(draft string) string {
	return promptStyle.Render(promptSymbol) + draft + "█"
}
