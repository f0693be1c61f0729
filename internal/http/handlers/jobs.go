package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}
	state := a.Tracker.State(chatID)
	if state == nil {
		a.error(w, http.StatusNotFound, "not_found", "no generation for this chat")
		return
	}
	a.json(w, http.StatusOK, state)
}

// JobForceCheck asks the provider for the project status immediately instead
// of waiting for the next poll tick or stream event.
func (a *App) JobForceCheck(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}
	state, err := a.Tracker.ForceCheck(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no generation for this chat")
			return
		}
		a.Logger.Error().Err(err).Str("chat_id", chatID).Msg("force check failed")
		a.error(w, http.StatusBadGateway, "provider_error", "status check failed")
		return
	}
	a.json(w, http.StatusOK, state)
}

// JobReset tears down tracking for the chat and forgets its state.
func (a *App) JobReset(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}
	a.Tracker.Reset(chatID)
	a.json(w, http.StatusOK, map[string]string{"status": "reset"})
}
