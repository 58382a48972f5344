package services

import (
	"context"
	"iter"

	"chatrelay/internal/domain/models"
)

// TurnResult is the outcome of one chat turn.
// Exactly one of Body or Stream is set.
type TurnResult struct {
	TurnID string
	// Status and Body carry a buffered answer, already serialized as one NDJSON line.
	Status int
	Body   []byte
	// Stream yields serialized envelopes in upstream order. It is single use.
	Stream iter.Seq[[]byte]
}

// Streamed reports whether the result is delivered incrementally.
func (r *TurnResult) Streamed() bool {
	return r.Stream != nil
}

// ConversationService runs chat turns against the configured completion backend.
type ConversationService interface {
	// Converse validates req, dispatches it upstream and returns the client-facing result.
	// Errors returned here happen before any output was produced.
	Converse(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (*TurnResult, error)
}
