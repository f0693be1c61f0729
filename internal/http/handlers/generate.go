package handlers

import (
	"errors"
	"net/http"

	"github.com/fortunto2/super-turbo-sub006/internal/balance"
	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/middleware"
	"github.com/fortunto2/super-turbo-sub006/internal/superduper"
)

type imageGenerateRequest struct {
	ChatID         string `json:"chat_id" validate:"required"`
	Prompt         string `json:"prompt" validate:"required,max=4000"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	Style          string `json:"style,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	Quality        string `json:"quality,omitempty" validate:"omitempty,oneof=standard high-quality ultra-quality"`
	Seed           int    `json:"seed,omitempty"`
	SourceImageURL string `json:"source_image_url,omitempty" validate:"omitempty,url"`
}

type videoGenerateRequest struct {
	ChatID          string `json:"chat_id" validate:"required"`
	Prompt          string `json:"prompt" validate:"required,max=4000"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	Model           string `json:"model,omitempty"`
	Style           string `json:"style,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Quality         string `json:"quality,omitempty" validate:"omitempty,oneof=standard high-quality ultra-quality"`
	DurationSeconds int    `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
	FrameRate       int    `json:"frame_rate,omitempty" validate:"omitempty,min=1,max=120"`
	SourceImageURL  string `json:"source_image_url,omitempty" validate:"omitempty,url"`
}

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req imageGenerateRequest
	if !a.decode(w, r, &req) {
		return
	}

	state, err := a.Tracker.GenerateImage(r.Context(), req.ChatID, userID, superduper.ImageRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		Style:          req.Style,
		Resolution:     req.Resolution,
		Quality:        req.Quality,
		Seed:           req.Seed,
		SourceImageURL: req.SourceImageURL,
	})
	a.generateResponse(w, r, state, err)
}

func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoGenerateRequest
	if !a.decode(w, r, &req) {
		return
	}

	state, err := a.Tracker.GenerateVideo(r.Context(), req.ChatID, userID, superduper.VideoRequest{
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		Model:           req.Model,
		Style:           req.Style,
		Resolution:      req.Resolution,
		Quality:         req.Quality,
		DurationSeconds: req.DurationSeconds,
		FrameRate:       req.FrameRate,
		SourceImageURL:  req.SourceImageURL,
	})
	a.generateResponse(w, r, state, err)
}

func (a *App) generateResponse(w http.ResponseWriter, r *http.Request, state any, err error) {
	if err == nil {
		a.json(w, http.StatusAccepted, state)
		return
	}
	if be, ok := domain.AsInsufficientBalance(err); ok {
		locale := middleware.LocaleFromContext(r.Context())
		a.json(w, http.StatusPaymentRequired, map[string]any{
			"error":            string(be.Type),
			"message":          balance.FormatError(locale, be),
			"cost":             be.Cost,
			"availableCredits": be.AvailableCredits,
		})
		return
	}
	if errors.Is(err, domain.ErrDuplicateOperation) {
		a.error(w, http.StatusConflict, "conflict", "a generation is already running for this chat")
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "unknown user")
		return
	}
	a.Logger.Error().Err(err).Msg("generation request failed")
	a.error(w, http.StatusInternalServerError, "internal", "generation request failed")
}
