package superduper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

// ErrMissingToken indicates that the client was configured without credentials.
var ErrMissingToken = errors.New("superduper: api token is required")

// Options configures the SuperDuperAI REST client.
type Options struct {
	Token          string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the SuperDuperAI generation backend.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	timeout    time.Duration
}

// NewClient validates the options and builds a client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, errors.New("superduper: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		token:      opts.Token,
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger,
		timeout:    timeout,
	}, nil
}

// ImageRequest captures the inputs for image generation.
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	Style          string `json:"style,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Seed           int    `json:"seed,omitempty"`
	SourceImageURL string `json:"source_image_url,omitempty"`
	ChatID         string `json:"chat_id,omitempty"`
}

// VideoRequest captures the inputs for video generation.
type VideoRequest struct {
	Prompt          string `json:"prompt"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	Model           string `json:"model,omitempty"`
	Style           string `json:"style,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Quality         string `json:"quality,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
	FrameRate       int    `json:"frame_rate,omitempty"`
	SourceImageURL  string `json:"source_image_url,omitempty"`
	ChatID          string `json:"chat_id,omitempty"`
}

// GenerateResult is the normalized response of both generate endpoints. The
// provider hands back overlapping identifiers for one attempt; callers keep
// all of them because events and polls may reference any of the three.
type GenerateResult struct {
	Success   bool   `json:"success"`
	ProjectID string `json:"projectId"`
	RequestID string `json:"requestId"`
	FileID    string `json:"fileId"`
	Error     string `json:"error,omitempty"`
}

// ProjectStatus is the polled state of a provider-side job.
type ProjectStatus struct {
	ID    string        `json:"id"`
	Data  []ProjectData `json:"data"`
	Tasks []ProjectTask `json:"tasks"`
}

type ProjectData struct {
	Value ProjectValue `json:"value"`
}

type ProjectValue struct {
	URL          string `json:"url,omitempty"`
	FileID       string `json:"file_id,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
}

type ProjectTask struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// CompletedURL returns the first result URL present in the data array, empty
// when the job has produced nothing yet.
func (p *ProjectStatus) CompletedURL() (url, thumbnail string) {
	if p == nil {
		return "", ""
	}
	for _, item := range p.Data {
		if item.Value.URL != "" {
			return item.Value.URL, item.Value.ThumbnailURL
		}
	}
	return "", ""
}

// Failed reports whether any provider task ended in an error state.
func (p *ProjectStatus) Failed() bool {
	if p == nil {
		return false
	}
	for _, task := range p.Tasks {
		if strings.EqualFold(task.Status, "error") || strings.EqualFold(task.Status, "failed") {
			return true
		}
	}
	return false
}

// GenerateImage submits an image generation request.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/generate-image", req)
}

// GenerateVideo submits a video generation request.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/generate-video", req)
}

func (c *Client) generate(ctx context.Context, path string, payload any) (*GenerateResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("superduper: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("superduper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("superduper: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("superduper: read response: %w", err)
	}

	var result GenerateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("superduper: decode response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Str("error", msg).Msg("superduper: generate failed")
		return nil, fmt.Errorf("superduper: generate failed: %s: %w", msg, domain.ErrProviderFailure)
	}

	return &result, nil
}

// Project fetches the polled status for a project id.
func (c *Client) Project(ctx context.Context, projectID string) (*ProjectStatus, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("superduper: project id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/project/"+projectID, nil)
	if err != nil {
		return nil, fmt.Errorf("superduper: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("superduper: project status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("superduper: project %s: %w", projectID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("superduper: project status %d: %w", resp.StatusCode, domain.ErrProviderFailure)
	}

	var status ProjectStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("superduper: decode project status: %w", err)
	}
	return &status, nil
}
