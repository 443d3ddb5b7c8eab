package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/exajoy/aider/core/events"
)

func TestTranslateKey(t *testing.T) {
	testCases := []struct {
		name     string
		msg      tea.KeyMsg
		expected []events.KeyPress
	}{
		{
			name:     "single rune",
			msg:      tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")},
			expected: []events.KeyPress{events.NewRuneKeyPress('a', 0)},
		},
		{
			name: "pasted runes",
			msg:  tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé"), Paste: true},
			expected: []events.KeyPress{
				events.NewRuneKeyPress('h', 0),
				events.NewRuneKeyPress('é', 0),
			},
		},
		{
			name:     "alt rune",
			msg:      tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true},
			expected: []events.KeyPress{events.NewRuneKeyPress('x', events.ModAlt)},
		},
		{
			name:     "space",
			msg:      tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")},
			expected: []events.KeyPress{events.NewRuneKeyPress(' ', 0)},
		},
		{
			name:     "enter",
			msg:      tea.KeyMsg{Type: tea.KeyEnter},
			expected: []events.KeyPress{events.NewKeyPress(events.KeyEnter, 0)},
		},
		{
			name:     "backspace",
			msg:      tea.KeyMsg{Type: tea.KeyBackspace},
			expected: []events.KeyPress{events.NewKeyPress(events.KeyBackspace, 0)},
		},
		{
			name:     "escape",
			msg:      tea.KeyMsg{Type: tea.KeyEsc},
			expected: []events.KeyPress{events.NewKeyPress(events.KeyEsc, 0)},
		},
		{
			name:     "ctrl+c",
			msg:      tea.KeyMsg{Type: tea.KeyCtrlC},
			expected: []events.KeyPress{events.NewRuneKeyPress('c', events.ModCtrl)},
		},
		{
			name:     "unmapped key",
			msg:      tea.KeyMsg{Type: tea.KeyTab},
			expected: []events.KeyPress{events.NewKeyPress(events.KeyOther, 0)},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			translated := translateKey(testCase.msg)
			if len(translated) != len(testCase.expected) {
				t.Fatalf("expected %d events, got %d", len(testCase.expected), len(translated))
			}
			for i, input := range translated {
				if !sameInput(input, testCase.expected[i]) {
					t.Fatalf("event %d: expected %+v, got %+v", i, testCase.expected[i], input)
				}
			}
		})
	}
}

func TestScrollKeysStayInTerminal(t *testing.T) {
	for _, keyType := range []tea.KeyType{tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown} {
		if !isScrollKey(tea.KeyMsg{Type: keyType}) {
			t.Fatalf("expected %v to scroll the history", keyType)
		}
	}
	if isScrollKey(tea.KeyMsg{Type: tea.KeyEnter}) {
		t.Fatalf("enter must not be treated as a scroll key")
	}
}

// sameInput compares events by payload; timestamps always differ.
func sameInput(a, b events.InputEvent) bool {
	switch a := a.(type) {
	case events.KeyPress:
		b, ok := b.(events.KeyPress)
		return ok && a.Code == b.Code && a.Rune == b.Rune && a.Modifiers == b.Modifiers
	case events.Resize:
		b, ok := b.(events.Resize)
		return ok && a.Width == b.Width && a.Height == b.Height
	}
	return false
}
