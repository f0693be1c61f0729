package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

func (a *App) BalanceMe(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	current, err := a.Balance.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("balance read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "balance": current})
}

type adminBalanceRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Amount int    `json:"amount" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

func (a *App) AdminBalanceAdd(w http.ResponseWriter, r *http.Request) {
	var req adminBalanceRequest
	if !a.decode(w, r, &req) {
		return
	}
	after, err := a.Balance.Add(r.Context(), req.UserID, req.Amount, req.Reason)
	a.adminBalanceResponse(w, req.UserID, after, err)
}

func (a *App) AdminBalanceSet(w http.ResponseWriter, r *http.Request) {
	var req adminBalanceRequest
	if !a.decode(w, r, &req) {
		return
	}
	after, err := a.Balance.Set(r.Context(), req.UserID, req.Amount, req.Reason)
	a.adminBalanceResponse(w, req.UserID, after, err)
}

func (a *App) adminBalanceResponse(w http.ResponseWriter, userID string, after int, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "unknown user")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("balance mutation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "balance": after})
}

func (a *App) AdminBalanceTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := a.Balance.Transactions(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("transaction list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load transactions")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "transactions": txs})
}
