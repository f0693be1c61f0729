package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	msgs     map[string]domain.ChatMessage
	order    []string
	saves    int
	saveErr  error
	byChatID map[string][]string
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string]domain.ChatMessage), byChatID: make(map[string][]string)}
}

func (s *memStore) Save(_ context.Context, _ string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, exists := s.msgs[msg.ID]; !exists {
		s.order = append(s.order, msg.ID)
		s.byChatID[msg.ChatID] = append(s.byChatID[msg.ChatID], msg.ID)
	}
	s.msgs[msg.ID] = msg
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := msg
	return &copy, nil
}

func (s *memStore) List(_ context.Context, chatID string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChatMessage
	for _, id := range s.order {
		if msg := s.msgs[id]; msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func placeholderMessage(id, chatID string, payload domain.ArtifactPayload) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        id,
		ChatID:    chatID,
		Role:      domain.MessageRoleAssistant,
		Parts:     []domain.MessagePart{{Type: "text", Text: RenderArtifact(payload)}},
		CreatedAt: time.Now(),
	}
}

func TestApplyCompletionExactRequestIDWins(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Two concurrent pending generations in one chat.
	_ = store.Save(ctx, "u1", placeholderMessage("m1", "c1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f1", RequestID: "r1",
	}))
	_ = store.Save(ctx, "u1", placeholderMessage("m2", "c1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f2", RequestID: "r2",
	}))

	p := NewPatcher(store, nil, zerolog.Nop())
	err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f2", RequestID: "r2", Kind: domain.ArtifactKindImage, URL: "https://x/r2.webp",
	})
	if err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}

	m2, _ := store.Get(ctx, "m2")
	payload, _ := ParseArtifact(m2.Parts[0].Text)
	if payload.Status != "completed" || payload.ImageURL != "https://x/r2.webp" {
		t.Fatalf("m2 payload = %+v, want completed", payload)
	}

	// The r1 placeholder must be untouched.
	m1, _ := store.Get(ctx, "m1")
	payload1, _ := ParseArtifact(m1.Parts[0].Text)
	if payload1.Status != "pending" {
		t.Fatalf("m1 payload = %+v, cross-contaminated", payload1)
	}
}

func TestApplyCompletionProjectIDFallback(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_ = store.Save(ctx, "u1", placeholderMessage("m1", "c1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f1", RequestID: "r-old",
	}))

	p := NewPatcher(store, nil, zerolog.Nop())
	// requestId does not match, projectId does: priority-2 still updates it.
	err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f1", RequestID: "r-new", Kind: domain.ArtifactKindImage, URL: "https://x/y.webp",
	})
	if err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}

	m1, _ := store.Get(ctx, "m1")
	payload, _ := ParseArtifact(m1.Parts[0].Text)
	if payload.Status != "completed" {
		t.Fatalf("payload = %+v, want completed via projectId fallback", payload)
	}
}

func TestApplyCompletionPendingFallback(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_ = store.Save(ctx, "u1", placeholderMessage("m1", "c1", domain.ArtifactPayload{
		Status: "streaming", Kind: domain.ArtifactKindImage,
	}))

	p := NewPatcher(store, nil, zerolog.Nop())
	err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f9", Kind: domain.ArtifactKindImage, URL: "https://x/y.webp",
	})
	if err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}

	m1, _ := store.Get(ctx, "m1")
	payload, _ := ParseArtifact(m1.Parts[0].Text)
	if payload.Status != "completed" {
		t.Fatalf("payload = %+v, want completed via pending fallback", payload)
	}
}

func TestApplyCompletionIdempotent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_ = store.Save(ctx, "u1", placeholderMessage("m1", "c1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f1", RequestID: "r1",
	}))

	p := NewPatcher(store, nil, zerolog.Nop())
	completion := Completion{ProjectID: "f1", RequestID: "r1", Kind: domain.ArtifactKindImage, URL: "https://x/y.webp"}

	if err := p.ApplyCompletion(ctx, "c1", completion); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	savesAfterFirst := store.saves

	if err := p.ApplyCompletion(ctx, "c1", completion); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if store.saves != savesAfterFirst {
		t.Fatalf("second apply wrote %d extra saves, want 0", store.saves-savesAfterFirst)
	}
}

func TestApplyCompletionSynthesizesWhenNoMatch(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	p := NewPatcher(store, nil, zerolog.Nop())
	err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f1", Kind: domain.ArtifactKindVideo, URL: "https://x/y.mp4", Prompt: "a storm over the sea",
	})
	if err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}

	msgs, _ := store.List(ctx, "c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 synthesized", len(msgs))
	}
	msg := msgs[0]
	if msg.Role != domain.MessageRoleAssistant {
		t.Fatalf("role = %q", msg.Role)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].URL != "https://x/y.mp4" {
		t.Fatalf("attachments = %+v", msg.Attachments)
	}
	if !strings.Contains(msg.Parts[0].Text, "a storm over the sea") {
		t.Fatalf("video message should carry the prompt, got %q", msg.Parts[0].Text)
	}
}

func TestApplyCompletionUsesSideTable(t *testing.T) {
	store := newMemStore()
	table := NewMemorySideTable()
	ctx := context.Background()

	p := NewPatcher(store, table, zerolog.Nop())
	msgID, err := p.WritePlaceholder(ctx, "c1", "u1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f1", RequestID: "r1",
	})
	if err != nil {
		t.Fatalf("WritePlaceholder: %v", err)
	}

	if err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f1", RequestID: "r1", Kind: domain.ArtifactKindImage, URL: "https://x/y.webp",
	}); err != nil {
		t.Fatalf("ApplyCompletion: %v", err)
	}

	msg, _ := store.Get(ctx, msgID)
	payload, _ := ParseArtifact(msg.Parts[0].Text)
	if payload.Status != "completed" {
		t.Fatalf("payload = %+v", payload)
	}

	// Entry is dropped after use.
	if _, _, ok, _ := table.Lookup(ctx, "r1"); ok {
		t.Fatal("side-table entry should be forgotten after completion")
	}
}

func TestApplyCompletionSaveFailureSurfaces(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Save(ctx, "u1", placeholderMessage("m1", "c1", domain.ArtifactPayload{
		Status: "pending", Kind: domain.ArtifactKindImage, ProjectID: "f1",
	}))
	store.saveErr = errors.New("db down")

	p := NewPatcher(store, nil, zerolog.Nop())
	err := p.ApplyCompletion(ctx, "c1", Completion{
		ProjectID: "f1", Kind: domain.ArtifactKindImage, URL: "https://x/y.webp",
	})
	if err == nil {
		t.Fatal("expected save failure to surface")
	}
}
