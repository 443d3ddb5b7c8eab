package orchestration

import (
	"context"

	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/session"
)

const DefaultQueueCapacity = 32

type OrchestratorOption func(*Orchestrator)

// Streamer starts one response stream per call. The returned channel must end
// with a terminal event; a channel closed without one is treated as a failed
// stream.
type Streamer interface {
	Stream(ctx context.Context, prompt string) <-chan events.StreamEvent
}

func WithStreamer(streamer Streamer) OrchestratorOption {
	return func(o *Orchestrator) { o.streamer = streamer }
}

// Renderer receives a snapshot after every event the loop applies. Render is
// called from the loop goroutine and should return quickly.
type Renderer interface {
	Render(session.Snapshot)
}

type RendererFunc func(session.Snapshot)

func (f RendererFunc) Render(snapshot session.Snapshot) { f(snapshot) }

func WithRenderer(renderer Renderer) OrchestratorOption {
	return func(o *Orchestrator) { o.renderer = renderer }
}

// InputSource captures events from an input device and forwards them into
// out, blocking while out is full. Capture returns when ctx is done or the
// device is exhausted and must not close out.
type InputSource interface {
	Capture(ctx context.Context, out chan<- events.InputEvent) error
}

type InputSourceFunc func(ctx context.Context, out chan<- events.InputEvent) error

func (f InputSourceFunc) Capture(ctx context.Context, out chan<- events.InputEvent) error {
	return f(ctx, out)
}

func WithInputSource(source InputSource) OrchestratorOption {
	return func(o *Orchestrator) { o.inputSource = source }
}

func WithSession(s *session.Session) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.session = s
		}
	}
}

// WithQueueCapacity bounds the input queue. Non-positive values are ignored.
func WithQueueCapacity(capacity int) OrchestratorOption {
	return func(o *Orchestrator) {
		if capacity > 0 {
			o.queueCapacity = capacity
		}
	}
}
