package domain

import "encoding/json"

// ResultEnvelope is one decoded line from a vendor results file. It
// carries the correlation id assigned at preparation time plus the
// model output wrapped in one of a closed set of shapes. Each known
// shape is modelled as an explicit optional-field structure; a new
// vendor format is a new field here and a new branch in payloadText,
// never an ad hoc key probe.
type ResultEnvelope struct {
	// CustomID correlates the result with a source record.
	CustomID string `json:"custom_id"`

	// Response is the chat-completion style wrapper:
	// response.body.choices[0].message.content.
	Response *CompletionResponse `json:"response,omitempty"`

	// Result is the message-batch style wrapper:
	// result.message.content[0].text.
	Result *MessageResult `json:"result,omitempty"`

	// Error is the vendor-reported per-request error, if any.
	Error *VendorError `json:"error,omitempty"`
}

// CompletionResponse wraps a chat-completion body.
type CompletionResponse struct {
	StatusCode int             `json:"status_code,omitempty"`
	Body       *CompletionBody `json:"body,omitempty"`
}

// CompletionBody holds the chat-completion choices.
type CompletionBody struct {
	Choices []CompletionChoice `json:"choices"`
}

// CompletionChoice is one completion alternative; only the first is used.
type CompletionChoice struct {
	Message CompletionMessage `json:"message"`
}

// CompletionMessage carries the generated text of a completion choice.
type CompletionMessage struct {
	Content string `json:"content"`
}

// MessageResult wraps a message-batch result.
type MessageResult struct {
	Type    string        `json:"type,omitempty"`
	Message *BatchMessage `json:"message,omitempty"`
}

// BatchMessage holds the content blocks of a message-batch result.
type BatchMessage struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one element of a message content sequence.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// VendorError is a per-request error reported inside an envelope.
type VendorError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeEnvelope parses a single results line.
func DecodeEnvelope(line []byte) (*ResultEnvelope, error) {
	var env ResultEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// payloadText returns the candidate payload string from whichever
// known shape the envelope carries, or false when neither matches.
func (e *ResultEnvelope) payloadText() (string, bool) {
	if e.Response != nil && e.Response.Body != nil && len(e.Response.Body.Choices) > 0 {
		return e.Response.Body.Choices[0].Message.Content, true
	}
	if e.Result != nil && e.Result.Message != nil && len(e.Result.Message.Content) > 0 {
		return e.Result.Message.Content[0].Text, true
	}
	return "", false
}
