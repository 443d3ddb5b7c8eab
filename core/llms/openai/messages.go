package openai

import "encoding/json"

type requestBody struct {
	Model        string  `json:"model"`
	Input        string  `json:"input"`
	Stream       bool    `json:"stream"`
	Instructions *string `json:"instructions,omitempty"`
}

type generalResponseBody struct {
	Output []json.RawMessage `json:"output"`
}

type generalResponseBodyOutputType struct {
	// Type is the type of the output item.
	Type generalResponseBodyOutputTypeType `json:"type"`
}

type generalResponseBodyOutputMessage struct {
	// Content is the content of the output message.
	Content []json.RawMessage `json:"content,omitempty"`
}

type generalResponseBodyOutputMessageType struct {
	// Type is the type of the output message. 'output_text' or 'refusal'.
	Type string `json:"type"`
}

// generalResponseBodyOutputMessageContentOutputText is text output from the
// model.
type generalResponseBodyOutputMessageContentOutputText struct {
	Text *string `json:"text"`
}

// generalResponseBodyOutputMessageContentRefusal is a refusal from the model.
type generalResponseBodyOutputMessageContentRefusal struct {
	Refusal *string `json:"refusal"`
}

type generalResponseBodyOutputTypeType string

const (
	generalResponseBodyOutputTypeMessage generalResponseBodyOutputTypeType = "message"
)
