// Package tui is the terminal front end of the chat: a bubbletea program that
// captures key presses for the control loop and draws the session snapshots
// it publishes.
package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/session"
)

type Terminal struct {
	mailbox *mailbox
	options []tea.ProgramOption
	done    chan struct{}
}

type TerminalOption func(*Terminal)

func WithIO(in io.Reader, out io.Writer) TerminalOption {
	return func(t *Terminal) {
		t.options = append(t.options, tea.WithInput(in), tea.WithOutput(out))
	}
}

func New(opts ...TerminalOption) *Terminal {
	t := &Terminal{
		mailbox: newMailbox(),
		options: []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render publishes a snapshot to the terminal. It never blocks; only the
// latest snapshot is drawn.
func (t *Terminal) Render(snapshot session.Snapshot) {
	t.mailbox.put(snapshot)
}

// Capture runs the terminal program until ctx is done or the program exits,
// forwarding key presses and resizes into out. It can be called once.
func (t *Terminal) Capture(ctx context.Context, out chan<- events.InputEvent) error {
	defer close(t.done)

	program := tea.NewProgram(newModel(ctx, out), t.options...)

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go t.pump(pumpCtx, program)

	go func() {
		<-pumpCtx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		logger.ErrorContext(ctx, "terminal program failed", "error", err)
		return fmt.Errorf("error running terminal: %w", err)
	}
	return nil
}

// Wait blocks until Capture has returned and the terminal is restored.
func (t *Terminal) Wait() {
	<-t.done
}

func (t *Terminal) pump(ctx context.Context, program *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.mailbox.ready:
			if snapshot, ok := t.mailbox.take(); ok {
				program.Send(snapshotMsg{snapshot: snapshot})
			}
		}
	}
}
