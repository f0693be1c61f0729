package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

type saveMessageRequest struct {
	ChatID      string           `json:"chat_id" validate:"required"`
	MessageID   string           `json:"message_id,omitempty"`
	Role        string           `json:"role" validate:"required,oneof=user assistant system"`
	Parts       []messagePartDTO `json:"parts" validate:"required,min=1,dive"`
	Attachments []attachmentDTO  `json:"attachments,omitempty" validate:"omitempty,dive"`
}

type messagePartDTO struct {
	Type string `json:"type" validate:"required"`
	Text string `json:"text,omitempty"`
}

type attachmentDTO struct {
	URL         string `json:"url" validate:"required,url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// SaveMessage upserts one chat message, creating the parent chat on first
// contact.
func (a *App) SaveMessage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req saveMessageRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	msg := domain.ChatMessage{
		ID:        req.MessageID,
		ChatID:    req.ChatID,
		Role:      domain.MessageRole(req.Role),
		CreatedAt: time.Now(),
	}
	for _, p := range req.Parts {
		msg.Parts = append(msg.Parts, domain.MessagePart{Type: p.Type, Text: p.Text})
	}
	for _, att := range req.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{URL: att.URL, Name: att.Name, ContentType: att.ContentType})
	}

	if err := a.Messages.Save(r.Context(), userID, msg); err != nil {
		a.Logger.Error().Err(err).Str("chat_id", req.ChatID).Msg("save message failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save message")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"id": msg.ID, "chat_id": msg.ChatID})
}

// ChatMessages returns the chat transcript in creation order. The chat must
// belong to the requesting user.
func (a *App) ChatMessages(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}

	msgs, err := a.Messages.List(r.Context(), chatID)
	if err != nil {
		a.Logger.Error().Err(err).Str("chat_id", chatID).Msg("list messages failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load messages")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"chat_id": chatID, "messages": messagesDTO(msgs)})
}

func (a *App) ownedChat(w http.ResponseWriter, r *http.Request, chatID, userID string) (*domain.Chat, bool) {
	c, err := a.Messages.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "chat not found")
		} else {
			a.Logger.Error().Err(err).Str("chat_id", chatID).Msg("load chat failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load chat")
		}
		return nil, false
	}
	if c.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "chat not found")
		return nil, false
	}
	return c, true
}

type messageDTO struct {
	ID          string           `json:"id"`
	Role        string           `json:"role"`
	Parts       []messagePartDTO `json:"parts"`
	Attachments []attachmentDTO  `json:"attachments,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func messagesDTO(msgs []domain.ChatMessage) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, msg := range msgs {
		dto := messageDTO{ID: msg.ID, Role: string(msg.Role), CreatedAt: msg.CreatedAt}
		for _, p := range msg.Parts {
			dto.Parts = append(dto.Parts, messagePartDTO{Type: p.Type, Text: p.Text})
		}
		for _, att := range msg.Attachments {
			dto.Attachments = append(dto.Attachments, attachmentDTO{URL: att.URL, Name: att.Name, ContentType: att.ContentType})
		}
		out = append(out, dto)
	}
	return out
}
