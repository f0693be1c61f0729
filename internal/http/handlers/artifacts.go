package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fortunto2/super-turbo-sub006/internal/chat"
	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/pkg/zip"
)

type artifactDTO struct {
	MessageID    string `json:"message_id"`
	Kind         string `json:"kind"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// ChatArtifacts lists the completed generations embedded in the transcript.
func (a *App) ChatArtifacts(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}

	artifacts, err := a.completedArtifacts(r, chatID)
	if err != nil {
		a.Logger.Error().Err(err).Str("chat_id", chatID).Msg("list artifacts failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load artifacts")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"chat_id": chatID, "artifacts": artifacts})
}

// ChatArtifactsZip streams a zip archive of every completed artifact in the
// chat. Bytes are cached on disk so repeated exports do not re-download.
func (a *App) ChatArtifactsZip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	chatID := chi.URLParam(r, "chat_id")
	if _, ok := a.ownedChat(w, r, chatID, userID); !ok {
		return
	}

	artifacts, err := a.completedArtifacts(r, chatID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load artifacts")
		return
	}
	if len(artifacts) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed artifacts in this chat")
		return
	}

	var assets []zip.Asset
	for i, art := range artifacts {
		data, err := a.artifactBytes(r, art.URL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("url", art.URL).Msg("artifact fetch failed, skipping")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%03d_%s%s", i+1, art.Kind, extFromURL(art.URL, art.Kind)),
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusBadGateway, "provider_error", "no artifact could be fetched")
		return
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("chat_id", chatID).Msg("artifact archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chatID+"-artifacts.zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) completedArtifacts(r *http.Request, chatID string) ([]artifactDTO, error) {
	msgs, err := a.Messages.List(r.Context(), chatID)
	if err != nil {
		return nil, err
	}
	var out []artifactDTO
	for _, msg := range msgs {
		if msg.Role != domain.MessageRoleAssistant {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type != "text" {
				continue
			}
			payload, ok := chat.ParseArtifact(part.Text)
			if !ok || payload.Status != string(domain.JobStatusCompleted) || payload.ResultURL() == "" {
				continue
			}
			out = append(out, artifactDTO{
				MessageID:    msg.ID,
				Kind:         string(payload.Kind),
				URL:          payload.ResultURL(),
				ThumbnailURL: payload.ThumbnailURL,
				Prompt:       payload.Prompt,
				Timestamp:    payload.Timestamp,
			})
		}
	}
	return out, nil
}

// artifactBytes reads from the on-disk cache first and downloads on a miss.
func (a *App) artifactBytes(r *http.Request, url string) ([]byte, error) {
	sum := sha256.Sum256([]byte(url))
	key := "artifacts/" + hex.EncodeToString(sum[:16]) + path.Ext(trimQueryString(url))

	if a.Files != nil {
		if data, err := a.Files.Read(r.Context(), key); err == nil {
			return data, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			a.Logger.Debug().Err(err).Str("key", key).Msg("artifact cache read failed")
		}
	}

	client := a.Fetch
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch artifact: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, err
	}

	if a.Files != nil {
		if _, err := a.Files.Write(r.Context(), key, data); err != nil {
			a.Logger.Debug().Err(err).Str("key", key).Msg("artifact cache write failed")
		}
	}
	return data, nil
}

func extFromURL(url, kind string) string {
	if ext := path.Ext(trimQueryString(url)); ext != "" {
		return ext
	}
	if kind == string(domain.ArtifactKindVideo) {
		return ".mp4"
	}
	return ".webp"
}

func trimQueryString(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		return url[:idx]
	}
	return url
}
