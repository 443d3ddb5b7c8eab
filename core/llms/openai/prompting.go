package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/exajoy/aider/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Complete issues a single non-streaming request and returns the first text
// payload of the response, NoResponsePlaceholder when there is none.
func (s *Streamer) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", s.config.Model))

	text, err := s.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (s *Streamer) complete(ctx context.Context, prompt string) (string, error) {
	requestBodyBytes, err := s.requestBody(prompt, false)
	if err != nil {
		return "", err
	}

	body, err := s.client.Open(ctx, requestBodyBytes)
	if err != nil {
		return "", err
	}
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	var responseBody generalResponseBody
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}

	text, err := firstOutputText(responseBody)
	if err != nil {
		return "", err
	}
	if text == nil {
		logger.DebugContext(ctx, "response carried no text output", "outputs", len(responseBody.Output))
	}
	return utils.ValueOr(text, NoResponsePlaceholder), nil
}

// firstOutputText returns nil when no message carries a text or refusal
// payload.
func firstOutputText(responseBody generalResponseBody) (*string, error) {
	for _, output := range responseBody.Output {
		var outputType generalResponseBodyOutputType
		if err := json.Unmarshal(output, &outputType); err != nil {
			return nil, fmt.Errorf("error unmarshalling output type: %w", err)
		}
		if outputType.Type != generalResponseBodyOutputTypeMessage {
			continue
		}

		var outputMessage generalResponseBodyOutputMessage
		if err := json.Unmarshal(output, &outputMessage); err != nil {
			return nil, fmt.Errorf("error unmarshalling output message: %w", err)
		}

		for _, content := range outputMessage.Content {
			var contentType generalResponseBodyOutputMessageType
			if err := json.Unmarshal(content, &contentType); err != nil {
				return nil, fmt.Errorf("error unmarshalling output message content: %w", err)
			}

			switch contentType.Type {
			case "output_text":
				var outputText generalResponseBodyOutputMessageContentOutputText
				if err := json.Unmarshal(content, &outputText); err != nil {
					return nil, fmt.Errorf("error unmarshalling output message content output text: %w", err)
				}
				if outputText.Text != nil {
					return outputText.Text, nil
				}
			case "refusal":
				var outputRefusal generalResponseBodyOutputMessageContentRefusal
				if err := json.Unmarshal(content, &outputRefusal); err != nil {
					return nil, fmt.Errorf("error unmarshalling output message content refusal: %w", err)
				}
				if outputRefusal.Refusal != nil {
					return outputRefusal.Refusal, nil
				}
			}
		}
	}

	return nil, nil
}
