package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

// Patcher bridges "a generation completed" to "the chat transcript reflects
// it". Placeholders are written when a generation starts and rewritten in
// place by the matching completion; when no placeholder can be located a new
// assistant message is synthesized instead.
type Patcher struct {
	store  MessageStore
	table  SideTable
	logger zerolog.Logger
	now    func() time.Time
}

// NewPatcher builds a Patcher. table may be nil, in which case every lookup
// falls back to the priority scan.
func NewPatcher(store MessageStore, table SideTable, logger zerolog.Logger) *Patcher {
	return &Patcher{store: store, table: table, logger: logger, now: time.Now}
}

// WritePlaceholder appends the pending artifact to the chat and registers the
// requestId in the side-table. Returns the new message id.
func (p *Patcher) WritePlaceholder(ctx context.Context, chatID, userID string, payload domain.ArtifactPayload) (string, error) {
	if payload.Timestamp == 0 {
		payload.Timestamp = p.now().UnixMilli()
	}
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      domain.MessageRoleAssistant,
		Parts:     []domain.MessagePart{{Type: "text", Text: RenderArtifact(payload)}},
		CreatedAt: p.now(),
	}
	if err := p.store.Save(ctx, userID, msg); err != nil {
		return "", err
	}

	if p.table != nil && payload.RequestID != "" {
		if err := p.table.Put(ctx, payload.RequestID, chatID, msg.ID); err != nil {
			// The scan fallback still finds the placeholder, so a
			// side-table write failure is not fatal.
			p.logger.Warn().Err(err).Str("request_id", payload.RequestID).Msg("chat: side-table put failed")
		}
	}
	return msg.ID, nil
}

// ApplyCompletion locates the placeholder for the completion and rewrites it,
// or synthesizes a new assistant message when nothing matches. Applying the
// same completion twice is a no-op.
func (p *Patcher) ApplyCompletion(ctx context.Context, chatID string, c Completion) error {
	if msg, ok := p.lookupSideTable(ctx, chatID, c); ok {
		return p.patchMessage(ctx, msg, c)
	}

	msg, score := p.scan(ctx, chatID, c)
	if msg != nil && score > 0 {
		return p.patchMessage(ctx, msg, c)
	}

	return p.synthesize(ctx, chatID, c)
}

// lookupSideTable resolves the completion through the requestId side-table.
// Entries pointing at another chat are ignored rather than trusted.
func (p *Patcher) lookupSideTable(ctx context.Context, chatID string, c Completion) (*domain.ChatMessage, bool) {
	if p.table == nil || c.RequestID == "" {
		return nil, false
	}
	tableChat, messageID, ok, err := p.table.Lookup(ctx, c.RequestID)
	if err != nil {
		p.logger.Warn().Err(err).Str("request_id", c.RequestID).Msg("chat: side-table lookup failed")
		return nil, false
	}
	if !ok || tableChat != chatID {
		return nil, false
	}
	msg, err := p.store.Get(ctx, messageID)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", messageID).Msg("chat: side-table points at missing message")
		return nil, false
	}
	return msg, true
}

// scan walks the transcript newest-to-oldest scoring every artifact-shaped
// assistant text part. The highest score wins; among equals the most recent
// candidate is kept. Unparseable parts are skipped per part.
func (p *Patcher) scan(ctx context.Context, chatID string, c Completion) (*domain.ChatMessage, int) {
	msgs, err := p.store.List(ctx, chatID)
	if err != nil {
		p.logger.Error().Err(err).Str("chat_id", chatID).Msg("chat: transcript scan failed")
		return nil, 0
	}

	var best *domain.ChatMessage
	bestScore := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role != domain.MessageRoleAssistant {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type != "text" {
				continue
			}
			payload, ok := ParseArtifact(part.Text)
			if !ok {
				continue
			}
			if score := Score(payload, c); score > bestScore {
				m := msg
				best = &m
				bestScore = score
			}
		}
	}
	return best, bestScore
}

// patchMessage rewrites the matched artifact part in place and persists the
// message. Already-completed artifacts are left untouched.
func (p *Patcher) patchMessage(ctx context.Context, msg *domain.ChatMessage, c Completion) error {
	patched := false
	for i, part := range msg.Parts {
		if part.Type != "text" {
			continue
		}
		payload, ok := ParseArtifact(part.Text)
		if !ok || Score(payload, c) == 0 {
			continue
		}
		if payload.Status == string(domain.JobStatusCompleted) {
			return nil // idempotent: late arrivals are no-ops
		}
		text, ok := patchJSON(part.Text, c, p.now().UnixMilli())
		if !ok {
			continue
		}
		msg.Parts[i].Text = text
		patched = true
		break
	}
	if !patched {
		return p.synthesize(ctx, msg.ChatID, c)
	}

	if err := p.store.Save(ctx, "", *msg); err != nil {
		// Logged, not retried: the tracker state is already completed and a
		// refresh may lose this update.
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("chat: persist patched message failed")
		return err
	}
	p.forget(ctx, c)
	return nil
}

// synthesize appends a fresh assistant message carrying the result when no
// placeholder could be located.
func (p *Patcher) synthesize(ctx context.Context, chatID string, c Completion) error {
	name := "generated." + extensionFor(c)
	msg := domain.ChatMessage{
		ID:     uuid.NewString(),
		ChatID: chatID,
		Role:   domain.MessageRoleAssistant,
		Attachments: []domain.Attachment{{
			URL:         c.URL,
			Name:        name,
			ContentType: contentTypeFor(c),
		}},
		CreatedAt: p.now(),
	}
	switch c.Kind {
	case domain.ArtifactKindVideo:
		text := "Video generation completed."
		if c.Prompt != "" {
			text = fmt.Sprintf("Video generation completed: %s", c.Prompt)
		}
		msg.Parts = []domain.MessagePart{{Type: "text", Text: text}}
	default:
		msg.Parts = []domain.MessagePart{{Type: "text", Text: "Image generation completed."}}
	}

	if err := p.store.Save(ctx, "", msg); err != nil {
		p.logger.Error().Err(err).Str("chat_id", chatID).Msg("chat: persist synthesized message failed")
		return err
	}
	p.forget(ctx, c)
	return nil
}

func (p *Patcher) forget(ctx context.Context, c Completion) {
	if p.table == nil || c.RequestID == "" {
		return
	}
	if err := p.table.Forget(ctx, c.RequestID); err != nil {
		p.logger.Debug().Err(err).Str("request_id", c.RequestID).Msg("chat: side-table forget failed")
	}
}

func extensionFor(c Completion) string {
	if c.Kind == domain.ArtifactKindVideo {
		return "mp4"
	}
	return "webp"
}

func contentTypeFor(c Completion) string {
	if c.Kind == domain.ArtifactKindVideo {
		return "video/mp4"
	}
	return "image/webp"
}
