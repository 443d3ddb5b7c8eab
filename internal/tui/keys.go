package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/exajoy/aider/core/events"
)

// translateKey maps a terminal key message to input events. Pasted text
// arrives as one message and becomes one event per rune.
func translateKey(msg tea.KeyMsg) []events.InputEvent {
	var mods events.Modifiers
	if msg.Alt {
		mods |= events.ModAlt
	}

	switch msg.Type {
	case tea.KeyRunes:
		translated := make([]events.InputEvent, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			translated = append(translated, events.NewRuneKeyPress(r, mods))
		}
		return translated
	case tea.KeySpace:
		return []events.InputEvent{events.NewRuneKeyPress(' ', mods)}
	case tea.KeyEnter:
		return []events.InputEvent{events.NewKeyPress(events.KeyEnter, mods)}
	case tea.KeyBackspace:
		return []events.InputEvent{events.NewKeyPress(events.KeyBackspace, mods)}
	case tea.KeyEsc:
		return []events.InputEvent{events.NewKeyPress(events.KeyEsc, mods)}
	case tea.KeyCtrlC:
		return []events.InputEvent{events.NewRuneKeyPress('c', mods|events.ModCtrl)}
	default:
		return []events.InputEvent{events.NewKeyPress(events.KeyOther, mods)}
	}
}

// isScrollKey reports keys handled by the history viewport itself.
func isScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		return true
	}
	return false
}
