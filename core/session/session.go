// Package session holds the chat state mutated by the control loop: the
// message history and the input draft.
//
// A Session is not safe for concurrent use. It is owned by a single writer;
// readers get independent copies through Snapshot.
package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

const DefaultWelcome = "Welcome to AI Chat!"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Status string

const (
	// StatusInProgress marks the assistant record still receiving text.
	StatusInProgress Status = "in_progress"
	StatusSealed     Status = "sealed"
	// StatusIncomplete marks partial assistant text cut off by a failure.
	StatusIncomplete Status = "incomplete"
	// StatusFailed marks an error record; Text holds the error message.
	StatusFailed Status = "failed"
)

type Message struct {
	ID        string
	Role      Role
	Text      string
	Status    Status
	CreatedAt time.Time
}

func (m Message) IsError() bool {
	return m.Status == StatusFailed
}

// Snapshot is a point-in-time copy of the session handed to renderers.
type Snapshot struct {
	History []Message
	Draft   string
	// Awaiting is set while a response stream is open.
	Awaiting bool
}

type Session struct {
	history []Message
	draft   string

	// inProgress indexes the open assistant record, -1 when there is none.
	inProgress int
}

type Option func(*Session)

// WithWelcome replaces the system record the session starts with. An empty
// text starts the session with an empty history.
func WithWelcome(text string) Option {
	return func(s *Session) {
		s.history = s.history[:0]
		if text != "" {
			s.history = append(s.history, newMessage(RoleSystem, text, StatusSealed))
		}
	}
}

func New(opts ...Option) *Session {
	s := &Session{
		history:    []Message{newMessage(RoleSystem, DefaultWelcome, StatusSealed)},
		inProgress: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newMessage(role Role, text string, status Status) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func (s *Session) Draft() string {
	return s.draft
}

func (s *Session) InsertRune(r rune) {
	s.draft += string(r)
}

// Backspace removes the last rune of the draft. It reports false when the
// draft was already empty.
func (s *Session) Backspace() bool {
	if s.draft == "" {
		return false
	}
	_, size := utf8.DecodeLastRuneInString(s.draft)
	s.draft = s.draft[:len(s.draft)-size]
	return true
}

// SubmitDraft turns the draft into a user record and clears it, returning the
// trimmed prompt to send. The record keeps the draft as typed. A blank draft
// is cleared without appending anything and ok is false.
func (s *Session) SubmitDraft() (prompt string, ok bool) {
	draft := s.draft
	s.draft = ""

	prompt = strings.TrimSpace(draft)
	if prompt == "" {
		return "", false
	}

	s.history = append(s.history, newMessage(RoleUser, draft, StatusSealed))
	return prompt, true
}

// BeginAssistant opens an empty in-progress assistant record. It is a no-op
// returning false when one is already open.
func (s *Session) BeginAssistant() bool {
	if s.inProgress >= 0 {
		return false
	}

	s.history = append(s.history, newMessage(RoleAssistant, "", StatusInProgress))
	s.inProgress = len(s.history) - 1
	return true
}

// AppendDelta appends text to the open assistant record, opening one first if
// the stream never announced its start.
func (s *Session) AppendDelta(text string) {
	s.BeginAssistant()
	s.history[s.inProgress].Text += text
}

// Seal closes the open assistant record. It reports false when none was open.
func (s *Session) Seal() bool {
	if s.inProgress < 0 {
		return false
	}

	s.history[s.inProgress].Status = StatusSealed
	s.inProgress = -1
	return true
}

// Fail closes the current exchange with an error record. An empty open
// record is converted in place; one that already holds text is kept as
// incomplete and the error record is appended after it.
func (s *Session) Fail(message string) {
	if s.inProgress >= 0 {
		open := &s.history[s.inProgress]
		s.inProgress = -1
		if open.Text == "" {
			open.Text = message
			open.Status = StatusFailed
			return
		}
		open.Status = StatusIncomplete
	}

	s.history = append(s.history, newMessage(RoleAssistant, message, StatusFailed))
}

// InProgress returns the open assistant record, if any.
func (s *Session) InProgress() (Message, bool) {
	if s.inProgress < 0 {
		return Message{}, false
	}
	return s.history[s.inProgress], true
}

func (s *Session) Len() int {
	return len(s.history)
}

// History returns a copy of the records. Message holds only value fields, so
// a flat copy is fully independent of the session.
func (s *Session) History() []Message {
	var history []Message
	if err := copier.Copy(&history, &s.history); err != nil {
		panic(fmt.Sprintf("session: copying history: %v", err))
	}
	return history
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{History: s.History(), Draft: s.draft}
}
