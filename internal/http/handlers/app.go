package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/balance"
	"github.com/fortunto2/super-turbo-sub006/internal/chat"
	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/middleware"
	"github.com/fortunto2/super-turbo-sub006/internal/storage"
	"github.com/fortunto2/super-turbo-sub006/internal/track"
)

var validate = validator.New()

// App carries the wired services into the HTTP handlers.
type App struct {
	SQL      infra.SQLExecutor
	Config   *infra.Config
	Logger   zerolog.Logger
	Tracker  *track.Manager
	Balance  *balance.Service
	Messages *chat.Repo
	Files    *storage.FileStore
	Fetch    *http.Client
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// decode unmarshals and validates a request payload. A false return means the
// response has already been written.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := validate.Struct(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	return true
}
