// Package transport issues the outbound provider call and hands the response
// body back as a plain byte stream.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries a client generated id for correlating a call with
// provider side logs.
const RequestIDHeader = "X-Client-Request-Id"

// Client opens one outbound call per invocation. body is the encoded request
// and the returned reader yields the response bytes as they arrive. Callers
// must close the reader.
type Client interface {
	Open(ctx context.Context, body []byte) (io.ReadCloser, error)
}

// Credential is authentication material passed through to the provider
// untouched.
type Credential struct {
	value string
}

func NewCredential(value string) Credential {
	return Credential{value: strings.TrimSpace(value)}
}

func (c Credential) IsZero() bool {
	return c.value == ""
}

func (c Credential) String() string {
	if c.IsZero() {
		return ""
	}
	return "[redacted]"
}

func (c Credential) bearer() string {
	return "Bearer " + c.value
}

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StatusError is returned when the provider answers with a non-OK status.
type StatusError struct {
	StatusCode int
	Status     string
	// Message is the provider supplied error message, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("non-OK HTTP status: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("non-OK HTTP status: %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// New picks the transport matching the scheme of baseURL: ws and wss dial a
// WebSocket, http and https use plain HTTP.
func New(baseURL string, credential Credential) (Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing base URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return NewHTTPClient(baseURL, credential), nil
	case "ws", "wss":
		return NewWebSocketClient(baseURL, credential), nil
	default:
		return nil, fmt.Errorf("unsupported base URL scheme %q", parsed.Scheme)
	}
}

func endpoint(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/responses"
}

func requestHeader(credential Credential) http.Header {
	header := http.Header{}
	header.Set(RequestIDHeader, uuid.NewString())
	if !credential.IsZero() {
		header.Set("Authorization", credential.bearer())
	}
	return header
}
