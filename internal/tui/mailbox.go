package tui

import (
	"sync"

	"github.com/exajoy/aider/core/session"
)

// mailbox keeps only the most recent snapshot. put never blocks, so the
// control loop is never held up by a slow terminal.
type mailbox struct {
	mu      sync.Mutex
	latest  session.Snapshot
	pending bool
	ready   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(snapshot session.Snapshot) {
	m.mu.Lock()
	m.latest = snapshot
	m.pending = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() (session.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending {
		return session.Snapshot{}, false
	}
	m.pending = false
	return m.latest, true
}
