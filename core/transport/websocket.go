package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// WebSocketClient talks to streaming relays over a WebSocket. The request is
// sent as a single text message; every received message is appended to the
// byte stream and terminated with a newline if it lacks one, so each message
// forms at least one frame.
type WebSocketClient struct {
	url        string
	credential Credential
	dialer     *websocket.Dialer
}

func NewWebSocketClient(baseURL string, credential Credential) *WebSocketClient {
	return &WebSocketClient{
		url:        endpoint(baseURL),
		credential: credential,
		dialer:     websocket.DefaultDialer,
	}
}

func (c *WebSocketClient) Open(ctx context.Context, body []byte) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "open websocket stream")
	defer span.End()
	header := requestHeader(c.credential)
	span.SetAttributes(
		attribute.String("request.url", c.url),
		attribute.String("request.id", header.Get(RequestIDHeader)),
	)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			err = fmt.Errorf("error dialing websocket: %w", statusError(resp))
		} else {
			err = fmt.Errorf("error dialing websocket: %w", err)
		}
		span.RecordError(err)
		return nil, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		conn.Close()
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	pr, pw := io.Pipe()
	stream := &websocketStream{conn: conn, reader: pr, done: make(chan struct{})}

	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stream.done:
		}
	}()

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					pw.Close()
				} else {
					pw.CloseWithError(fmt.Errorf("error reading websocket message: %w", err))
				}
				return
			}

			if len(message) == 0 || message[len(message)-1] != '\n' {
				message = append(message, '\n')
			}
			if _, err := pw.Write(message); err != nil {
				// Reader side closed, nobody is listening anymore.
				logger.DebugContext(ctx, "dropping websocket message", "error", err)
				return
			}
		}
	}()

	return stream, nil
}

type websocketStream struct {
	conn      *websocket.Conn
	reader    *io.PipeReader
	done      chan struct{}
	closeOnce sync.Once
}

func (s *websocketStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *websocketStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = errors.Join(s.reader.Close(), s.conn.Close())
	})
	return err
}
