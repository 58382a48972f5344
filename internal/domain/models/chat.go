package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message roles used on the client wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Content part types accepted in multimodal user messages.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ChatMessage is one message as the chat client sends it.
// Content is either a JSON string or an array of ContentPart.
type ChatMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Date    string          `json:"date,omitempty"`
}

// ImageURL is the image reference of an image_url part.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of a multimodal content array.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// IsMultipart reports whether Content is an array of parts.
func (m ChatMessage) IsMultipart() bool {
	trimmed := bytes.TrimSpace(m.Content)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Parts decodes a multipart content array. A plain string content yields one text part.
func (m ChatMessage) Parts() ([]ContentPart, error) {
	if !m.IsMultipart() {
		return []ContentPart{{Type: PartText, Text: m.Text()}}, nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// Text returns the message text: the string content, or the text parts joined by newlines.
func (m ChatMessage) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	if !m.IsMultipart() {
		var s string
		if err := json.Unmarshal(m.Content, &s); err != nil {
			return ""
		}
		return s
	}
	parts, err := m.Parts()
	if err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// StringContent encodes s as a JSON string content value.
func StringContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// TurnRequest is the inbound body of /conversation and the /history turn routes.
type TurnRequest struct {
	ConversationID  string          `json:"conversation_id,omitempty"`
	Messages        []ChatMessage   `json:"messages"`
	Model           string          `json:"model,omitempty"`
	HistoryMetadata json.RawMessage `json:"history_metadata,omitempty"`
}

// LastMessage returns the final message, or nil when there are none.
func (r *TurnRequest) LastMessage() *ChatMessage {
	if len(r.Messages) == 0 {
		return nil
	}
	return &r.Messages[len(r.Messages)-1]
}
