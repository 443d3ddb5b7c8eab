package events

const (
	// KindKeyPress identifies a single key press on the input device.
	KindKeyPress Kind = "input.key_press"
	// KindResize identifies a change of the terminal dimensions.
	KindResize Kind = "input.resize"
)

// InputEvent is a closed set of user interactions captured from the input
// device.
type InputEvent interface {
	Event
	inputEvent()
}

type KeyCode int

const (
	KeyOther KeyCode = iota
	// KeyRune is a printable character, carried in KeyPress.Rune.
	KeyRune
	KeyEnter
	KeyBackspace
	KeyEsc
)

func (c KeyCode) String() string {
	switch c {
	case KeyRune:
		return "rune"
	case KeyEnter:
		return "enter"
	case KeyBackspace:
		return "backspace"
	case KeyEsc:
		return "esc"
	default:
		return "other"
	}
}

type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModAlt
	ModShift
)

// Has reports whether all modifiers in m are set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod == mod
}

// KeyPress carries one key press.
type KeyPress struct {
	Base
	Code      KeyCode
	Rune      rune
	Modifiers Modifiers
}

// NewKeyPress creates a key press event for a non-printable key.
func NewKeyPress(code KeyCode, modifiers Modifiers) KeyPress {
	return KeyPress{Base: NewBase(KindKeyPress), Code: code, Modifiers: modifiers}
}

// NewRuneKeyPress creates a key press event for a printable character.
func NewRuneKeyPress(r rune, modifiers Modifiers) KeyPress {
	return KeyPress{Base: NewBase(KindKeyPress), Code: KeyRune, Rune: r, Modifiers: modifiers}
}

// Resize carries the new dimensions of the terminal.
type Resize struct {
	Base
	Width  int
	Height int
}

// NewResize creates a resize event.
func NewResize(width, height int) Resize {
	return Resize{Base: NewBase(KindResize), Width: width, Height: height}
}

func (KeyPress) inputEvent() {}
func (Resize) inputEvent()   {}

var (
	_ InputEvent = KeyPress{}
	_ InputEvent = Resize{}
)
