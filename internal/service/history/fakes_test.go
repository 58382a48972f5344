package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore implements both history repositories over maps.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	messages      []models.Message
	clock         time.Time
	pingErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: map[string]models.Conversation{},
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type conversationRepo struct{ *memoryStore }
type messageRepo struct{ *memoryStore }

func (r conversationRepo) Create(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conv.ID]; ok {
		return domain.ErrConflict
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = r.tick()
		conv.UpdatedAt = conv.CreatedAt
	}
	r.conversations[conv.ID] = *conv
	return nil
}

func (r conversationRepo) Get(_ context.Context, userID, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &conv, nil
}

func (r conversationRepo) List(_ context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r conversationRepo) UpdateTitle(_ context.Context, userID, id, title string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = r.tick()
	r.conversations[id] = conv
	return &conv, nil
}

func (r conversationRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r conversationRepo) Ping(context.Context) error {
	return r.pingErr
}

func (r messageRepo) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[msg.ConversationID]
	if !ok || conv.UserID != msg.UserID {
		return domain.ErrNotFound
	}
	msg.CreatedAt = r.tick()
	msg.UpdatedAt = msg.CreatedAt
	conv.UpdatedAt = msg.CreatedAt
	r.conversations[conv.ID] = conv
	r.messages = append(r.messages, *msg)
	return nil
}

func (r messageRepo) List(_ context.Context, userID, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r messageRepo) UpdateFeedback(_ context.Context, userID, messageID, feedback string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == messageID && r.messages[i].UserID == userID {
			r.messages[i].Feedback = &feedback
			m := r.messages[i]
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r messageRepo) DeleteByConversation(_ context.Context, userID, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	var deleted int64
	for _, m := range r.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return deleted, nil
}

type fakeChat struct {
	mu   sync.Mutex
	reqs []models.TurnRequest
}

func (f *fakeChat) Converse(_ context.Context, _ *models.AuthenticatedUser, req *models.TurnRequest) (*services.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, *req)
	return &services.TurnResult{TurnID: "turn-1", Status: 200, Body: []byte("{}\n")}, nil
}

type fakeTitles struct {
	result services.TitleResult
	calls  int
}

func (f *fakeTitles) GenerateTitle(context.Context, []models.ChatMessage) services.TitleResult {
	f.calls++
	return f.result
}

type fakeBlobs struct {
	mu      sync.Mutex
	uploads map[string]string
	failOn  string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: map[string]string{}}
}

func (f *fakeBlobs) UploadImage(_ context.Context, name, data string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && data == f.failOn {
		return "", errors.New("bucket unavailable")
	}
	f.uploads[name] = data
	return "https://blobs.example/" + name + ".png?sig=1", nil
}

func (f *fakeBlobs) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for name := range f.uploads {
		if strings.HasPrefix(name, prefix) {
			delete(f.uploads, name)
			n++
		}
	}
	return n, nil
}
