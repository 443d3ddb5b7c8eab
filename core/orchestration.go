package orchestration

import (
	"context"
	"errors"

	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const errStreamClosed = "response stream closed unexpectedly"

type loopState int

const (
	stateIdle loopState = iota
	stateAwaitingResponse
)

func (s loopState) String() string {
	if s == stateAwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// Orchestrator is the chat control loop. It merges user input and response
// stream events into one ordered sequence and is the only writer of the
// session while Run is active.
type Orchestrator struct {
	session     *session.Session
	streamer    Streamer
	renderer    Renderer
	inputSource InputSource

	queueCapacity int

	state     loopState
	responses <-chan events.StreamEvent
	exit      bool

	exchangeSpan   trace.Span
	exchangeDeltas int
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		session:       session.New(),
		queueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run renders once, then consumes events until an exit key is pressed, the
// input source is exhausted, or ctx is done. Pending response streams are
// abandoned when Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer o.endExchange(nil)

	inputs := make(chan events.InputEvent, o.queueCapacity)
	captureErr := make(chan error, 1)
	if o.inputSource != nil {
		capture := panicSafeNamedWorker("input capture", func(ctx context.Context) error {
			return o.inputSource.Capture(ctx, inputs)
		})
		go func() {
			defer close(inputs)
			captureErr <- capture(ctx)
		}()
	}

	o.render()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case input, ok := <-inputs:
			if !ok {
				if err := <-captureErr; err != nil && !errors.Is(err, context.Canceled) {
					logger.ErrorContext(ctx, "input capture stopped", "error", err)
					return err
				}
				return nil
			}

			o.handleInput(ctx, input)
			o.render()
			if o.exit {
				return nil
			}

		case event, ok := <-o.responses:
			if !ok {
				o.responses = nil
				event = events.NewStreamFailed(errStreamClosed)
			}

			o.handleStreamEvent(event)
			o.render()
		}
	}
}

func (o *Orchestrator) handleInput(ctx context.Context, input events.InputEvent) {
	switch typedInput := input.(type) {
	case events.KeyPress:
		o.handleKeyPress(ctx, typedInput)
	case events.Resize:
		// Layout belongs to the renderer; the redraw is all that is needed.
	}
}

func isExitKey(key events.KeyPress) bool {
	if key.Code == events.KeyEsc {
		return true
	}
	return key.Code == events.KeyRune && key.Rune == 'c' && key.Modifiers.Has(events.ModCtrl)
}

func (o *Orchestrator) handleKeyPress(ctx context.Context, key events.KeyPress) {
	if isExitKey(key) {
		o.exit = true
		return
	}

	switch key.Code {
	case events.KeyEnter:
		if o.state == stateAwaitingResponse {
			logger.DebugContext(ctx, "ignoring submit while a response is streaming")
			return
		}
		prompt, ok := o.session.SubmitDraft()
		if !ok {
			return
		}
		o.startExchange(ctx, prompt)

	case events.KeyBackspace:
		o.session.Backspace()

	case events.KeyRune:
		if key.Modifiers.Has(events.ModCtrl) || key.Modifiers.Has(events.ModAlt) {
			return
		}
		o.session.InsertRune(key.Rune)
	}
}

func (o *Orchestrator) startExchange(ctx context.Context, prompt string) {
	_, span := tracer.Start(ctx, "chat exchange")
	span.SetAttributes(attribute.Int("request.prompt_length", len(prompt)))
	o.exchangeSpan = span
	o.exchangeDeltas = 0

	o.state = stateAwaitingResponse
	if o.streamer == nil {
		o.responses = nil
		o.handleStreamEvent(events.NewStreamFailed("no response streamer configured"))
		return
	}
	o.responses = o.streamer.Stream(ctx, prompt)
}

func (o *Orchestrator) handleStreamEvent(event events.StreamEvent) {
	if o.state != stateAwaitingResponse {
		return
	}

	switch typedEvent := event.(type) {
	case events.StreamStarted:
		o.session.BeginAssistant()
		if o.exchangeSpan != nil {
			o.exchangeSpan.AddEvent("response started")
		}

	case events.StreamTextDelta:
		o.session.AppendDelta(typedEvent.Text)
		o.exchangeDeltas++

	case events.StreamCompleted:
		o.session.Seal()
		o.finishExchange(nil)

	case events.StreamFailed:
		o.session.Fail(typedEvent.Message)
		o.finishExchange(errors.New(typedEvent.Message))
	}
}

func (o *Orchestrator) finishExchange(err error) {
	o.state = stateIdle
	o.responses = nil
	o.endExchange(err)
}

func (o *Orchestrator) endExchange(err error) {
	if o.exchangeSpan == nil {
		return
	}

	o.exchangeSpan.SetAttributes(attribute.Int("response.deltas", o.exchangeDeltas))
	if err != nil {
		o.exchangeSpan.RecordError(err)
		o.exchangeSpan.SetStatus(codes.Error, err.Error())
	}
	o.exchangeSpan.End()
	o.exchangeSpan = nil
}

func (o *Orchestrator) render() {
	if o.renderer == nil {
		return
	}

	snapshot := o.session.Snapshot()
	snapshot.Awaiting = o.state == stateAwaitingResponse
	o.renderer.Render(snapshot)
}
