package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/llms/sse"
	"github.com/exajoy/aider/core/transport"
	"github.com/exajoy/aider/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultModel         = "gpt-4.1-mini"
	DefaultQueueCapacity = 32

	// NoResponsePlaceholder is returned by Complete when the response carries
	// no text.
	NoResponsePlaceholder = "<no response>"
)

// ErrStreamIncomplete is reported when the byte stream ends before a terminal
// event was decoded.
var ErrStreamIncomplete = errors.New("stream ended before completion")

type Config struct {
	Model        string
	Instructions string
	// QueueCapacity bounds the channel returned by Stream.
	QueueCapacity int
}

// Streamer issues requests against the Responses API. It holds no per-request
// state and is safe for concurrent use.
type Streamer struct {
	client transport.Client
	config Config
}

func NewStreamer(client transport.Client, config Config) *Streamer {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}

	return &Streamer{client: client, config: config}
}

// Stream opens one streaming request for prompt and returns a fresh channel of
// decoded events. The channel always ends with exactly one terminal event and
// is then closed, unless ctx is cancelled first, in which case pending events
// are abandoned.
func (s *Streamer) Stream(ctx context.Context, prompt string) <-chan events.StreamEvent {
	out := make(chan events.StreamEvent, s.config.QueueCapacity)
	go s.stream(ctx, prompt, out)
	return out
}

func (s *Streamer) stream(ctx context.Context, prompt string, out chan<- events.StreamEvent) {
	defer close(out)

	ctx, span := tracer.Start(ctx, "prompt llm stream")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", s.config.Model))

	seq := sequencer{out: out}
	defer func() {
		span.SetAttributes(attribute.Int("response.forwarded_events", seq.forwarded))
	}()

	failed := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.DebugContext(ctx, "response stream failed", "error", err)
		seq.emit(ctx, events.NewStreamFailed(err.Error()))
	}

	requestBodyBytes, err := s.requestBody(prompt, true)
	if err != nil {
		failed(err)
		return
	}

	requestToFirstTokenTime := time.Now()
	span.AddEvent("request started")
	body, err := s.client.Open(ctx, requestBodyBytes)
	if err != nil {
		failed(err)
		return
	}
	defer body.Close()

	var readErr error
	for frame, err := range sse.Frames(body) {
		if err != nil {
			readErr = err
			break
		}

		event, ok := DecodeFrame(frame)
		if !ok {
			continue
		}
		if seq.forwarded == 0 {
			setFirstEventTime(span, requestToFirstTokenTime)
		}
		if !seq.emit(ctx, event) {
			break
		}
	}

	if seq.terminated || ctx.Err() != nil {
		return
	}

	if readErr != nil {
		failed(fmt.Errorf("error reading streamed response: %w", readErr))
		return
	}
	failed(ErrStreamIncomplete)
}

func setFirstEventTime(span trace.Span, requestStarted time.Time) {
	span.SetAttributes(attribute.Float64("response.request_to_first_event_time", time.Since(requestStarted).Seconds()))
	span.AddEvent("received first event")
}

func (s *Streamer) requestBody(prompt string, stream bool) ([]byte, error) {
	reqBody := requestBody{
		Model:  s.config.Model,
		Input:  prompt,
		Stream: stream,
	}
	if s.config.Instructions != "" {
		reqBody.Instructions = utils.Ptr(s.config.Instructions)
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}
	return requestBodyBytes, nil
}

// sequencer forwards decoded events while keeping the per-request ordering
// contract: one start at most, nothing after a terminal event.
type sequencer struct {
	out        chan<- events.StreamEvent
	started    bool
	terminated bool
	forwarded  int
}

// emit reports whether the caller should keep feeding events.
func (q *sequencer) emit(ctx context.Context, event events.StreamEvent) bool {
	if q.terminated {
		return false
	}

	if _, ok := event.(events.StreamStarted); ok {
		if q.started {
			return true
		}
		q.started = true
	}

	select {
	case <-ctx.Done():
		return false
	case q.out <- event:
	}
	q.forwarded++

	if events.IsTerminal(event) {
		q.terminated = true
		return false
	}
	return true
}
