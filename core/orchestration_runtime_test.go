package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/llms/openai"
	"github.com/exajoy/aider/core/session"
)

type scriptedStreamer struct {
	prompts chan string
	respond func(ctx context.Context, prompt string) <-chan events.StreamEvent
}

func (s *scriptedStreamer) Stream(ctx context.Context, prompt string) <-chan events.StreamEvent {
	if s.prompts != nil {
		s.prompts <- prompt
	}
	return s.respond(ctx, prompt)
}

func replay(script ...events.StreamEvent) func(context.Context, string) <-chan events.StreamEvent {
	return func(context.Context, string) <-chan events.StreamEvent {
		stream := make(chan events.StreamEvent, len(script))
		for _, event := range script {
			stream <- event
		}
		close(stream)
		return stream
	}
}

type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots []session.Snapshot
	updated   chan struct{}
	delay     time.Duration
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{updated: make(chan struct{}, 1)}
}

func (r *snapshotRecorder) Render(snapshot session.Snapshot) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()

	select {
	case r.updated <- struct{}{}:
	default:
	}
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *snapshotRecorder) last() session.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[len(r.snapshots)-1]
}

func (r *snapshotRecorder) waitFor(t *testing.T, description string, predicate func(session.Snapshot) bool) session.Snapshot {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if n := len(r.snapshots); n > 0 && predicate(r.snapshots[n-1]) {
			snapshot := r.snapshots[n-1]
			r.mu.Unlock()
			return snapshot
		}
		r.mu.Unlock()

		select {
		case <-r.updated:
		case <-timeout:
			t.Fatalf("timed out waiting for %s", description)
		}
	}
}

type channelInput chan events.InputEvent

func (c channelInput) Capture(ctx context.Context, out chan<- events.InputEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case input, ok := <-c:
			if !ok {
				return nil
			}
			select {
			case out <- input:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c channelInput) typeText(text string) {
	for _, r := range text {
		c <- events.NewRuneKeyPress(r, 0)
	}
}

func (c channelInput) press(code events.KeyCode) {
	c <- events.NewKeyPress(code, 0)
}

func start(t *testing.T, o *Orchestrator) <-chan error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the loop to exit")
		return nil
	}
}

// lastRecord returns the zero Message for an empty history.
func lastRecord(snapshot session.Snapshot) session.Message {
	if len(snapshot.History) == 0 {
		return session.Message{}
	}
	return snapshot.History[len(snapshot.History)-1]
}

func isIdleAssistantReply(snapshot session.Snapshot) bool {
	return !snapshot.Awaiting && lastRecord(snapshot).Role == session.RoleAssistant
}

func TestRunStreamsAnswerIntoHistory(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	streamer := &scriptedStreamer{
		prompts: make(chan string, 1),
		respond: replay(
			events.NewStreamStarted(),
			events.NewStreamTextDelta("Hel"),
			events.NewStreamTextDelta("lo"),
			events.NewStreamCompleted(),
		),
	}
	o := NewOrchestrator(WithStreamer(streamer), WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("hi")
	input.press(events.KeyEnter)

	snapshot := recorder.waitFor(t, "sealed answer", isIdleAssistantReply)
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prompt := <-streamer.prompts; prompt != "hi" {
		t.Fatalf("expected prompt %q, got %q", "hi", prompt)
	}

	history := snapshot.History
	if len(history) != 3 {
		t.Fatalf("expected welcome, prompt and answer, got %+v", history)
	}
	if history[1].Role != session.RoleUser || history[1].Text != "hi" {
		t.Fatalf("unexpected user record: %+v", history[1])
	}
	if history[2].Text != "Hello" || history[2].Status != session.StatusSealed {
		t.Fatalf("unexpected assistant record: %+v", history[2])
	}
	if snapshot.Draft != "" {
		t.Fatalf("expected empty draft, got %q", snapshot.Draft)
	}

	// Initial render, three keys, four stream events and the exit key.
	if got := recorder.count(); got != 9 {
		t.Fatalf("expected 9 renders, got %d", got)
	}
}

func TestRunKeepsAtMostOneResponseInFlight(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	live := make(chan events.StreamEvent)
	streamer := &scriptedStreamer{
		prompts: make(chan string, 4),
		respond: func(context.Context, string) <-chan events.StreamEvent { return live },
	}
	o := NewOrchestrator(WithStreamer(streamer), WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("a")
	input.press(events.KeyEnter)
	recorder.waitFor(t, "awaiting state", func(s session.Snapshot) bool { return s.Awaiting })

	input.typeText("b")
	input.press(events.KeyEnter)
	input.typeText("c")
	recorder.waitFor(t, "draft kept while awaiting", func(s session.Snapshot) bool { return s.Draft == "bc" })

	if len(streamer.prompts) != 1 {
		t.Fatalf("expected a single stream to be started, got %d", len(streamer.prompts))
	}

	live <- events.NewStreamStarted()
	live <- events.NewStreamTextDelta("ok")
	live <- events.NewStreamCompleted()
	snapshot := recorder.waitFor(t, "sealed answer", isIdleAssistantReply)

	if snapshot.Draft != "bc" {
		t.Fatalf("expected draft to survive the response, got %q", snapshot.Draft)
	}
	if len(snapshot.History) != 3 || lastRecord(snapshot).Text != "ok" {
		t.Fatalf("unexpected history: %+v", snapshot.History)
	}

	input.press(events.KeyEnter)
	recorder.waitFor(t, "second exchange", func(s session.Snapshot) bool { return s.Awaiting })
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first, second := <-streamer.prompts, <-streamer.prompts; first != "a" || second != "bc" {
		t.Fatalf("unexpected prompts %q and %q", first, second)
	}
}

func TestRunRecordsFailures(t *testing.T) {
	testCases := []struct {
		name     string
		script   []events.StreamEvent
		expected []session.Message
	}{
		{
			name: "failure after partial text",
			script: []events.StreamEvent{
				events.NewStreamStarted(),
				events.NewStreamTextDelta("par"),
				events.NewStreamFailed("boom"),
			},
			expected: []session.Message{
				{Role: session.RoleAssistant, Text: "par", Status: session.StatusIncomplete},
				{Role: session.RoleAssistant, Text: "boom", Status: session.StatusFailed},
			},
		},
		{
			name:   "failure before start",
			script: []events.StreamEvent{events.NewStreamFailed("unauthorized")},
			expected: []session.Message{
				{Role: session.RoleAssistant, Text: "unauthorized", Status: session.StatusFailed},
			},
		},
		{
			name: "stream closed without terminal event",
			script: []events.StreamEvent{
				events.NewStreamStarted(),
			},
			expected: []session.Message{
				{Role: session.RoleAssistant, Text: errStreamClosed, Status: session.StatusFailed},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			input := make(channelInput, 16)
			recorder := newSnapshotRecorder()
			o := NewOrchestrator(
				WithSession(session.New(session.WithWelcome(""))),
				WithStreamer(&scriptedStreamer{respond: replay(testCase.script...)}),
				WithRenderer(recorder),
				WithInputSource(input),
			)
			done := start(t, o)

			input.typeText("q")
			input.press(events.KeyEnter)
			snapshot := recorder.waitFor(t, "failure record", func(s session.Snapshot) bool {
				return !s.Awaiting && lastRecord(s).IsError()
			})
			input.press(events.KeyEsc)
			if err := waitDone(t, done); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			replies := snapshot.History[1:]
			if len(replies) != len(testCase.expected) {
				t.Fatalf("expected %d reply records, got %+v", len(testCase.expected), replies)
			}
			for i, expected := range testCase.expected {
				got := replies[i]
				if got.Role != expected.Role || got.Text != expected.Text || got.Status != expected.Status {
					t.Fatalf("record %d: expected %+v, got %+v", i, expected, got)
				}
			}
		})
	}
}

type truncatedTransport struct{ body string }

func (c truncatedTransport) Open(context.Context, []byte) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(c.body)), nil
}

func TestRunReturnsToIdleWhenProviderStreamEndsAbruptly(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	client := truncatedTransport{body: "data: {\"type\":\"response.created\"}\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n"}
	o := NewOrchestrator(
		WithStreamer(openai.NewStreamer(client, openai.Config{})),
		WithRenderer(recorder),
		WithInputSource(input),
	)
	done := start(t, o)

	input.typeText("hi")
	input.press(events.KeyEnter)
	snapshot := recorder.waitFor(t, "failure record", func(s session.Snapshot) bool {
		return !s.Awaiting && lastRecord(s).IsError()
	})

	input.typeText("again")
	recorder.waitFor(t, "draft editable after failure", func(s session.Snapshot) bool { return s.Draft == "again" })
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := snapshot.History
	partial := history[len(history)-2]
	if partial.Text != "Hel" || partial.Status != session.StatusIncomplete {
		t.Fatalf("expected partial text to be kept, got %+v", partial)
	}
	if failure := lastRecord(snapshot); failure.Text != openai.ErrStreamIncomplete.Error() {
		t.Fatalf("unexpected failure record: %+v", failure)
	}
}

func TestRunDeliversEveryEventUnderBackpressure(t *testing.T) {
	const count = 100

	input := make(channelInput)
	recorder := newSnapshotRecorder()
	recorder.delay = time.Millisecond
	streamer := &scriptedStreamer{respond: func(ctx context.Context, _ string) <-chan events.StreamEvent {
		stream := make(chan events.StreamEvent)
		go func() {
			defer close(stream)
			send := func(event events.StreamEvent) bool {
				select {
				case stream <- event:
					return true
				case <-ctx.Done():
					return false
				}
			}
			if !send(events.NewStreamStarted()) {
				return
			}
			for i := range count {
				if !send(events.NewStreamTextDelta(fmt.Sprintf("%d,", i))) {
					return
				}
			}
			send(events.NewStreamCompleted())
		}()
		return stream
	}}
	o := NewOrchestrator(WithStreamer(streamer), WithRenderer(recorder), WithInputSource(input), WithQueueCapacity(1))
	done := start(t, o)

	var typed strings.Builder
	for i := range count {
		r := rune('a' + i%26)
		typed.WriteRune(r)
		input <- events.NewRuneKeyPress(r, 0)
	}
	recorder.waitFor(t, "typed draft", func(s session.Snapshot) bool { return s.Draft == typed.String() })

	input.press(events.KeyEnter)
	snapshot := recorder.waitFor(t, "streamed answer", isIdleAssistantReply)
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var expected strings.Builder
	for i := range count {
		fmt.Fprintf(&expected, "%d,", i)
	}
	if lastRecord(snapshot).Text != expected.String() {
		t.Fatalf("deltas were lost or reordered: %q", lastRecord(snapshot).Text)
	}
	if history := snapshot.History; history[len(history)-2].Text != typed.String() {
		t.Fatalf("keystrokes were lost or reordered: %q", history[len(history)-2].Text)
	}
}

func TestRunIgnoresBlankSubmissions(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	streamer := &scriptedStreamer{prompts: make(chan string, 1), respond: replay()}
	o := NewOrchestrator(WithStreamer(streamer), WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("  ")
	input.press(events.KeyEnter)
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := recorder.last()
	if snapshot.Draft != "" || len(snapshot.History) != 1 || snapshot.Awaiting {
		t.Fatalf("expected blank submission to only clear the draft, got %+v", snapshot)
	}
	if len(streamer.prompts) != 0 {
		t.Fatalf("expected no stream to be started")
	}
}

func TestRunHandlesEditingKeys(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	o := NewOrchestrator(WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("hey")
	input.press(events.KeyBackspace)
	input <- events.NewRuneKeyPress('x', events.ModAlt)
	input <- events.NewResize(80, 24)
	input.typeText("c")
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if draft := recorder.last().Draft; draft != "hec" {
		t.Fatalf("expected draft %q, got %q", "hec", draft)
	}
	// Every consumed event triggers a redraw, including the resize and the
	// ignored modifier combination.
	if got := recorder.count(); got != 9 {
		t.Fatalf("expected 9 renders, got %d", got)
	}
}

func TestRunExitKeys(t *testing.T) {
	testCases := []struct {
		name string
		key  events.KeyPress
	}{
		{name: "escape", key: events.NewKeyPress(events.KeyEsc, 0)},
		{name: "ctrl+c", key: events.NewRuneKeyPress('c', events.ModCtrl)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			input := make(channelInput, 1)
			o := NewOrchestrator(WithInputSource(input))
			done := start(t, o)

			input <- testCase.key
			if err := waitDone(t, done); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunExitsWhileAwaitingResponse(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	abandoned := make(chan struct{})
	streamer := &scriptedStreamer{respond: func(ctx context.Context, _ string) <-chan events.StreamEvent {
		go func() {
			<-ctx.Done()
			close(abandoned)
		}()
		return make(chan events.StreamEvent)
	}}
	o := NewOrchestrator(WithStreamer(streamer), WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("hi")
	input.press(events.KeyEnter)
	recorder.waitFor(t, "awaiting state", func(s session.Snapshot) bool { return s.Awaiting })
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-abandoned:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the pending stream to be cancelled")
	}
}

func TestRunStopsWhenInputSourceEnds(t *testing.T) {
	input := make(channelInput, 4)
	recorder := newSnapshotRecorder()
	o := NewOrchestrator(WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("ab")
	close(input)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft := recorder.last().Draft; draft != "ab" {
		t.Fatalf("expected queued input to be applied before exit, got %q", draft)
	}
}

func TestRunReturnsCaptureError(t *testing.T) {
	deviceErr := errors.New("terminal went away")
	o := NewOrchestrator(WithInputSource(InputSourceFunc(func(context.Context, chan<- events.InputEvent) error {
		return deviceErr
	})))

	if err := waitDone(t, start(t, o)); !errors.Is(err, deviceErr) {
		t.Fatalf("expected capture error, got %v", err)
	}
}

func TestRunReturnsContextError(t *testing.T) {
	recorder := newSnapshotRecorder()
	o := NewOrchestrator(WithRenderer(recorder))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	recorder.waitFor(t, "initial render", func(session.Snapshot) bool { return true })
	cancel()

	if err := waitDone(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunWithoutStreamerFailsSubmission(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	o := NewOrchestrator(WithRenderer(recorder), WithInputSource(input))
	done := start(t, o)

	input.typeText("hi")
	input.press(events.KeyEnter)
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := recorder.last()
	if snapshot.Awaiting || !lastRecord(snapshot).IsError() {
		t.Fatalf("expected an error record and idle state, got %+v", snapshot)
	}
}

func TestRunRecoversFromCapturePanic(t *testing.T) {
	o := NewOrchestrator(WithInputSource(InputSourceFunc(func(context.Context, chan<- events.InputEvent) error {
		panic("keyboard exploded")
	})))

	err := waitDone(t, start(t, o))
	if err == nil || !strings.Contains(err.Error(), "keyboard exploded") {
		t.Fatalf("expected the panic to surface as an error, got %v", err)
	}
}

func TestRunWithEmptyHistoryWaitsForFirstRecord(t *testing.T) {
	input := make(channelInput, 16)
	recorder := newSnapshotRecorder()
	o := NewOrchestrator(
		WithSession(session.New(session.WithWelcome(""))),
		WithStreamer(&scriptedStreamer{respond: replay(events.NewStreamFailed("denied"))}),
		WithRenderer(recorder),
		WithInputSource(input),
	)
	done := start(t, o)

	initial := recorder.waitFor(t, "initial render", func(session.Snapshot) bool { return true })
	if len(initial.History) != 0 {
		t.Fatalf("expected an empty history, got %+v", initial.History)
	}
	if isIdleAssistantReply(initial) || lastRecord(initial).IsError() {
		t.Fatalf("an empty history must not look like a reply")
	}

	input.typeText("q")
	input.press(events.KeyEnter)
	snapshot := recorder.waitFor(t, "failure record", func(s session.Snapshot) bool {
		return !s.Awaiting && lastRecord(s).IsError()
	})
	input.press(events.KeyEsc)
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshot.History) != 2 || lastRecord(snapshot).Text != "denied" {
		t.Fatalf("unexpected history: %+v", snapshot.History)
	}
}
