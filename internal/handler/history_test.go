package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
)

// fakeHistory records the arguments of the last call and returns err for every method.
type fakeHistory struct {
	err            error
	ensureErr      error
	conversationID string
	title          string
	offset         int
	messageID      string
	feedback       string
}

func (f *fakeHistory) Generate(_ context.Context, _ *models.AuthenticatedUser, req *models.TurnRequest) (*services.TurnResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.TurnResult{Status: http.StatusOK, Body: []byte("{}\n")}, nil
}

func (f *fakeHistory) Update(_ context.Context, _ *models.AuthenticatedUser, req *models.TurnRequest) (string, error) {
	f.conversationID = req.ConversationID
	return "conv-1", f.err
}

func (f *fakeHistory) MessageFeedback(_ context.Context, _ *models.AuthenticatedUser, messageID, feedback string) (*models.MessageFeedback, error) {
	f.messageID, f.feedback = messageID, feedback
	if f.err != nil {
		return nil, f.err
	}
	return &models.MessageFeedback{MessageID: messageID, Feedback: feedback}, nil
}

func (f *fakeHistory) Delete(_ context.Context, _ *models.AuthenticatedUser, conversationID string) error {
	f.conversationID = conversationID
	return f.err
}

func (f *fakeHistory) List(_ context.Context, _ *models.AuthenticatedUser, offset int) ([]models.Conversation, error) {
	f.offset = offset
	if f.err != nil {
		return nil, f.err
	}
	return []models.Conversation{}, nil
}

func (f *fakeHistory) Read(_ context.Context, _ *models.AuthenticatedUser, conversationID string) (*models.ConversationMessages, error) {
	f.conversationID = conversationID
	if f.err != nil {
		return nil, f.err
	}
	return &models.ConversationMessages{ConversationID: conversationID, Messages: []models.HistoryMessage{}}, nil
}

func (f *fakeHistory) Rename(_ context.Context, _ *models.AuthenticatedUser, conversationID, title string) (*models.Conversation, error) {
	f.conversationID, f.title = conversationID, title
	if f.err != nil {
		return nil, f.err
	}
	return &models.Conversation{ID: conversationID, Title: title}, nil
}

func (f *fakeHistory) DeleteAll(_ context.Context, _ *models.AuthenticatedUser) (int, error) {
	return 3, f.err
}

func (f *fakeHistory) Clear(_ context.Context, _ *models.AuthenticatedUser, conversationID string) error {
	f.conversationID = conversationID
	return f.err
}

func (f *fakeHistory) Ensure(context.Context) error {
	return f.ensureErr
}

func TestHistoryHandler_Routes(t *testing.T) {
	tests := []struct {
		name     string
		call     func(h *HistoryHandler) http.HandlerFunc
		method   string
		target   string
		body     string
		wantBody string
		check    func(t *testing.T, f *fakeHistory)
	}{
		{
			name:     "update",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.Update },
			method:   http.MethodPost,
			target:   "/history/update",
			body:     `{"conversation_id":"conv-1","messages":[{"role":"assistant","content":"hi"}]}`,
			wantBody: `{"success":true}`,
			check: func(t *testing.T, f *fakeHistory) {
				if f.conversationID != "conv-1" {
					t.Errorf("conversation id = %q", f.conversationID)
				}
			},
		},
		{
			name:     "feedback",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.MessageFeedback },
			method:   http.MethodPost,
			target:   "/history/message_feedback",
			body:     `{"message_id":"m-1","message_feedback":"positive"}`,
			wantBody: `{"message_id":"m-1","message_feedback":"positive"}`,
		},
		{
			name:     "delete",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.Delete },
			method:   http.MethodDelete,
			target:   "/history/delete",
			body:     `{"conversation_id":"conv-1"}`,
			wantBody: `{"message":"Successfully deleted conversation and messages","conversation_id":"conv-1"}`,
		},
		{
			name:     "list with offset",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.List },
			method:   http.MethodGet,
			target:   "/history/list?offset=25",
			wantBody: `[]`,
			check: func(t *testing.T, f *fakeHistory) {
				if f.offset != 25 {
					t.Errorf("offset = %d", f.offset)
				}
			},
		},
		{
			name:     "read",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.Read },
			method:   http.MethodPost,
			target:   "/history/read",
			body:     `{"conversation_id":"conv-1"}`,
			wantBody: `{"conversation_id":"conv-1","messages":[]}`,
		},
		{
			name:   "rename",
			call:   func(h *HistoryHandler) http.HandlerFunc { return h.Rename },
			method: http.MethodPost,
			target: "/history/rename",
			body:   `{"conversation_id":"conv-1","title":"Trip plans"}`,
			check: func(t *testing.T, f *fakeHistory) {
				if f.title != "Trip plans" {
					t.Errorf("title = %q", f.title)
				}
			},
		},
		{
			name:     "delete all",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.DeleteAll },
			method:   http.MethodDelete,
			target:   "/history/delete_all",
			wantBody: `{"message":"Successfully deleted conversation and messages for user alice"}`,
		},
		{
			name:     "clear",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.Clear },
			method:   http.MethodPost,
			target:   "/history/clear",
			body:     `{"conversation_id":"conv-1"}`,
			wantBody: `{"message":"Successfully deleted messages in conversation","conversation_id":"conv-1"}`,
		},
		{
			name:     "generate",
			call:     func(h *HistoryHandler) http.HandlerFunc { return h.Generate },
			method:   http.MethodPost,
			target:   "/history/generate",
			body:     `{"messages":[{"role":"user","content":"hi"}]}`,
			wantBody: "{}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeHistory{}
			h := NewHistoryHandler(f, discardLogger())
			rec := httptest.NewRecorder()
			tt.call(h)(rec, request(tt.method, tt.target, tt.body))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestHistoryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("conversation conv-1: %w", domain.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: conversation_id is required", domain.ErrValidation), http.StatusBadRequest},
		{"not configured", fmt.Errorf("history store: %w", domain.ErrNotConfigured), http.StatusInternalServerError},
		{"conflict", fmt.Errorf("message m-1: %w", domain.ErrConflict), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistoryHandler(&fakeHistory{err: tt.err}, discardLogger())
			rec := httptest.NewRecorder()
			h.Read(rec, request(http.MethodPost, "/history/read", `{"conversation_id":"conv-1"}`))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode[map[string]any](t, rec)
			if _, ok := body["error"]; !ok {
				t.Errorf("body has no error key: %s", rec.Body.String())
			}
		})
	}
}

func TestHistoryHandler_ListRejectsBadOffset(t *testing.T) {
	h := NewHistoryHandler(&fakeHistory{}, discardLogger())
	rec := httptest.NewRecorder()
	h.List(rec, request(http.MethodGet, "/history/list?offset=ten", ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHistoryHandler_Ensure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"working", nil, http.StatusOK},
		{"not configured", fmt.Errorf("history store: %w", domain.ErrNotConfigured), http.StatusNotFound},
		{"unreachable", fmt.Errorf("ping: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistoryHandler(&fakeHistory{ensureErr: tt.err}, discardLogger())
			rec := httptest.NewRecorder()
			h.Ensure(rec, request(http.MethodGet, "/history/ensure", ""))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
