package superduper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "https://example.com"}); err != ErrMissingToken {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate-image" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var req ImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Prompt != "a red fox" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		_ = json.NewEncoder(w).Encode(GenerateResult{
			Success:   true,
			ProjectID: "f1",
			RequestID: "r1",
			FileID:    "file1",
		})
	}))
	defer srv.Close()

	client, err := NewClient(Options{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "a red fox"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if res.ProjectID != "f1" || res.RequestID != "r1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestGenerateImageProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(GenerateResult{Success: false, Error: "bad prompt"})
	}))
	defer srv.Close()

	client, err := NewClient(Options{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("GenerateImage error = %v, want ErrProviderFailure", err)
	}
}

func TestProjectCompletedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/project/f1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ProjectStatus{
			ID: "f1",
			Data: []ProjectData{
				{Value: ProjectValue{FileID: "pending"}},
				{Value: ProjectValue{URL: "https://x/y.webp", ThumbnailURL: "https://x/y_t.webp"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Options{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	status, err := client.Project(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	url, thumb := status.CompletedURL()
	if url != "https://x/y.webp" || thumb != "https://x/y_t.webp" {
		t.Fatalf("CompletedURL = %q, %q", url, thumb)
	}
}

func TestProjectFailed(t *testing.T) {
	status := &ProjectStatus{Tasks: []ProjectTask{{Type: "txt2img", Status: "ERROR"}}}
	if !status.Failed() {
		t.Fatal("expected failed status")
	}
	ok := &ProjectStatus{Tasks: []ProjectTask{{Type: "txt2img", Status: "in_progress"}}}
	if ok.Failed() {
		t.Fatal("in_progress should not be failed")
	}
}
