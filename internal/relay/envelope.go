package relay

import (
	"bytes"
	"encoding/json"
)

// Fragment roles on the client wire.
const (
	RoleTool      = "tool"
	RoleAssistant = "assistant"
)

// DoneSentinel marks the logical end of an answer. It is never shown to the client.
const DoneSentinel = "[DONE]"

// Fragment is one {role, content} element of an envelope.
type Fragment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice wraps the fragment list. Envelopes always carry exactly one.
type Choice struct {
	Messages []Fragment `json:"messages"`
}

// Envelope is the unified unit of output sent to the chat client.
type Envelope struct {
	ID              string          `json:"id"`
	Model           string          `json:"model"`
	Created         int64           `json:"created"`
	Object          string          `json:"object"`
	Choices         []Choice        `json:"choices"`
	HistoryMetadata json.RawMessage `json:"history_metadata"`
}

// Fragments returns the fragment list of the single choice.
func (e *Envelope) Fragments() []Fragment {
	if e == nil || len(e.Choices) == 0 {
		return nil
	}
	return e.Choices[0].Messages
}

// ErrorEnvelope reports a failed turn. Error is a string or a provider error object.
type ErrorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

// Correlation identifies the turn an envelope belongs to.
type Correlation struct {
	// ID replaces the upstream id when non-empty.
	ID string
	// HistoryMetadata is copied onto every envelope; nil becomes {}.
	HistoryMetadata json.RawMessage
}

var emptyObject = json.RawMessage(`{}`)

func (c Correlation) metadata() json.RawMessage {
	if len(bytes.TrimSpace(c.HistoryMetadata)) == 0 {
		return emptyObject
	}
	return c.HistoryMetadata
}

// MarshalLine serializes v as one NDJSON line. HTML characters are not escaped so
// answer text reaches the client byte for byte.
func MarshalLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrorLine builds an error envelope line around a plain message.
func ErrorLine(message string) []byte {
	msg, _ := json.Marshal(message)
	line, err := MarshalLine(ErrorEnvelope{Error: msg})
	if err != nil {
		return []byte(`{"error":"internal error"}` + "\n")
	}
	return line
}
