package openai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/exajoy/aider/core/events"
)

const chunkPrefix = "data:"

type streamingEventType string

const (
	streamingEventResponseCreated         streamingEventType = "response.created"
	streamingEventResponseCompleted       streamingEventType = "response.completed"
	streamingEventResponseFailed          streamingEventType = "response.failed"
	streamingEventResponseOutputTextDelta streamingEventType = "response.output_text.delta"
	streamingEventResponseRefusalDelta    streamingEventType = "response.refusal.delta"
	streamingEventResponseError           streamingEventType = "response.error"
	streamingEventError                   streamingEventType = "error"
)

type streamingBody struct {
	Type streamingEventType `json:"type"`

	// Delta is set on text and refusal deltas.
	Delta *string `json:"delta"`

	// Error is set on response.error.
	Error json.RawMessage `json:"error"`

	// Message is set on top level error events.
	Message string `json:"message"`

	// Response is set on lifecycle events; only its error matters here.
	Response *struct {
		Error json.RawMessage `json:"error"`
	} `json:"response"`
}

// DecodeFrame classifies a single SSE frame. Frames that carry no payload,
// are not JSON, or have a discriminator this client does not act on yield
// ok == false. That is expected for event: lines, blank separators and
// heartbeats and is never an error.
func DecodeFrame(frame string) (event events.StreamEvent, ok bool) {
	chunk := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(frame), chunkPrefix))
	if len(chunk) == 0 || chunk[0] != '{' {
		return nil, false
	}

	var body streamingBody
	if err := json.Unmarshal([]byte(chunk), &body); err != nil {
		return nil, false
	}

	switch body.Type {
	case streamingEventResponseCreated:
		return events.NewStreamStarted(), true

	case streamingEventResponseCompleted:
		return events.NewStreamCompleted(), true

	case streamingEventResponseOutputTextDelta, streamingEventResponseRefusalDelta:
		if body.Delta == nil {
			return nil, false
		}
		return events.NewStreamTextDelta(*body.Delta), true

	case streamingEventResponseError:
		if len(body.Error) == 0 {
			return events.NewStreamFailed(stringifyPayload(json.RawMessage(chunk))), true
		}
		return events.NewStreamFailed(stringifyPayload(body.Error)), true

	case streamingEventError:
		if body.Message != "" {
			return events.NewStreamFailed(body.Message), true
		}
		return events.NewStreamFailed(stringifyPayload(json.RawMessage(chunk))), true

	case streamingEventResponseFailed:
		if body.Response == nil || len(body.Response.Error) == 0 || string(body.Response.Error) == "null" {
			return events.NewStreamFailed("response failed"), true
		}
		return events.NewStreamFailed(stringifyPayload(body.Response.Error)), true

	default:
		return nil, false
	}
}

// stringifyPayload renders an error payload for display: JSON strings are
// unquoted, everything else is compacted.
func stringifyPayload(payload json.RawMessage) string {
	var text string
	if err := json.Unmarshal(payload, &text); err == nil {
		return text
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, payload); err != nil {
		return string(payload)
	}
	return compacted.String()
}
