package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

type HTTPClient struct {
	url        string
	credential Credential
	client     *http.Client
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the instrumented default client, mostly for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

func NewHTTPClient(baseURL string, credential Credential, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		url:        endpoint(baseURL),
		credential: credential,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Open(ctx context.Context, body []byte) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "open http stream")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	req.Header = requestHeader(c.credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	span.SetAttributes(
		attribute.String("request.url", req.URL.String()),
		attribute.String("request.id", req.Header.Get(RequestIDHeader)),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		err := statusError(resp)
		span.RecordError(err)
		logger.DebugContext(ctx, "provider rejected request", "status", resp.Status, "error", err)
		return nil, err
	}

	return resp.Body, nil
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func statusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return statusErr
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(errorBody, &envelope); err == nil && envelope.Error.Message != "" {
		statusErr.Message = envelope.Error.Message
	}
	return statusErr
}
