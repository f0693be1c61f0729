package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/sqlinline"
)

// MessageStore is the persistence contract the patcher depends on. Repo is
// the production implementation; tests plug in an in-memory one.
type MessageStore interface {
	Save(ctx context.Context, userID string, msg domain.ChatMessage) error
	Get(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	List(ctx context.Context, chatID string) ([]domain.ChatMessage, error)
}

// Repo persists chats and messages through the inline SQL layer.
type Repo struct {
	sql    infra.SQLExecutor
	logger zerolog.Logger
}

func NewRepo(sql infra.SQLExecutor, logger zerolog.Logger) *Repo {
	return &Repo{sql: sql, logger: logger}
}

// Save upserts the message by id. When userID is non-empty the parent chat
// row is created first if absent, titled from the message text.
func (r *Repo) Save(ctx context.Context, userID string, msg domain.ChatMessage) error {
	if msg.ID == "" || msg.ChatID == "" {
		return fmt.Errorf("chat: message id and chat id are required")
	}

	if userID != "" {
		title := GenerateChatTitle(msg)
		if _, err := r.sql.Exec(ctx, sqlinline.QEnsureChat, msg.ChatID, userID, title); err != nil {
			return fmt.Errorf("chat: ensure chat: %w", err)
		}
	}

	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return fmt.Errorf("chat: encode parts: %w", err)
	}
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("chat: encode attachments: %w", err)
	}

	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertMessage, msg.ID, msg.ChatID, string(msg.Role), parts, attachments, msg.CreatedAt); err != nil {
		return fmt.Errorf("chat: save message: %w", err)
	}
	return nil
}

// Get fetches one message by id. domain.ErrNotFound when absent.
func (r *Repo) Get(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectMessageByID, messageID)
	msg, err := scanMessage(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

// List returns the chat transcript in creation order.
func (r *Repo) List(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectChatMessages, chatID)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			r.logger.Error().Err(err).Str("chat_id", chatID).Msg("chat: skipping unscannable message")
			continue
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

// GetChat fetches the chat row. domain.ErrNotFound when absent.
func (r *Repo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectChatByID, chatID)
	var c domain.Chat
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	var role string
	var parts, attachments []byte
	if err := row.Scan(&msg.ID, &msg.ChatID, &role, &parts, &attachments, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Role = domain.MessageRole(role)
	if len(parts) > 0 {
		if err := json.Unmarshal(parts, &msg.Parts); err != nil {
			return nil, fmt.Errorf("chat: decode parts: %w", err)
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("chat: decode attachments: %w", err)
		}
	}
	return &msg, nil
}

// GenerateChatTitle derives a chat title from the message. Artifact JSON is
// not a useful title, so the embedded prompt is preferred when present.
func GenerateChatTitle(msg domain.ChatMessage) string {
	for _, part := range msg.Parts {
		if part.Type != "text" || part.Text == "" {
			continue
		}
		if payload, ok := ParseArtifact(part.Text); ok {
			if payload.Prompt != "" {
				return truncateTitle(payload.Prompt)
			}
			continue
		}
		return truncateTitle(part.Text)
	}
	return "New chat"
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= 80 {
		return s
	}
	runes := []rune(s)
	return string(runes[:79]) + "…"
}
