package models

import (
	"encoding/json"
	"time"
)

// Conversation is one chat thread owned by a single user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a persisted chat message.
// Content is kept as the raw JSON the client sent (string or content parts).
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	UserID         string          `json:"userId"`
	Role           string          `json:"role"`
	Content        json.RawMessage `json:"content"`
	Feedback       *string         `json:"feedback,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// HistoryMessage is the shape returned by /history/read.
type HistoryMessage struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	Feedback  *string         `json:"feedback,omitempty"`
}

// ConversationMessages is the /history/read response body.
type ConversationMessages struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
}

// MessageFeedback is the /history/message_feedback response body.
type MessageFeedback struct {
	MessageID string `json:"message_id"`
	Feedback  string `json:"message_feedback"`
}
