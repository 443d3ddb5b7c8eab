package events

const (
	// KindStreamStarted identifies creation of a response stream.
	KindStreamStarted Kind = "stream.started"
	// KindStreamTextDelta identifies an incremental piece of response text.
	KindStreamTextDelta Kind = "stream.text_delta"
	// KindStreamCompleted identifies successful completion of a response stream.
	KindStreamCompleted Kind = "stream.completed"
	// KindStreamFailed identifies a failed response stream.
	KindStreamFailed Kind = "stream.failed"
)

// StreamEvent is a closed set of events decoded from a response stream. The
// unexported marker method keeps the set closed to this package so type
// switches over it can be exhaustive.
type StreamEvent interface {
	Event
	streamEvent()
}

// StreamStarted marks that the provider created the response.
type StreamStarted struct{ Base }

// NewStreamStarted creates a stream started event.
func NewStreamStarted() StreamStarted {
	return StreamStarted{Base: NewBase(KindStreamStarted)}
}

// StreamTextDelta carries a piece of response text, either regular output or
// refusal content.
type StreamTextDelta struct {
	Base
	Text string
}

// NewStreamTextDelta creates a text delta event.
func NewStreamTextDelta(text string) StreamTextDelta {
	return StreamTextDelta{Base: NewBase(KindStreamTextDelta), Text: text}
}

// StreamCompleted marks the end of a successful response stream.
type StreamCompleted struct{ Base }

// NewStreamCompleted creates a stream completed event.
func NewStreamCompleted() StreamCompleted {
	return StreamCompleted{Base: NewBase(KindStreamCompleted)}
}

// StreamFailed marks the end of a response stream that did not complete.
type StreamFailed struct {
	Base
	Message string
}

// NewStreamFailed creates a stream failed event.
func NewStreamFailed(message string) StreamFailed {
	return StreamFailed{Base: NewBase(KindStreamFailed), Message: message}
}

func (StreamStarted) streamEvent()   {}
func (StreamTextDelta) streamEvent() {}
func (StreamCompleted) streamEvent() {}
func (StreamFailed) streamEvent()    {}

// IsTerminal reports whether no further events can follow event on the same
// stream.
func IsTerminal(event StreamEvent) bool {
	switch event.(type) {
	case StreamCompleted, StreamFailed:
		return true
	default:
		return false
	}
}

var (
	_ StreamEvent = StreamStarted{}
	_ StreamEvent = StreamTextDelta{}
	_ StreamEvent = StreamCompleted{}
	_ StreamEvent = StreamFailed{}
)
