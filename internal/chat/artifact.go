package chat

import (
	"encoding/json"
	"strings"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

// Completion is the normalized payload of a finished generation, as handed to
// the patcher by the tracker.
type Completion struct {
	ProjectID    string
	RequestID    string
	Kind         domain.ArtifactKind
	URL          string
	ThumbnailURL string
	Prompt       string
}

// ParseArtifact extracts an artifact payload from a message text part. Both
// the fenced-code-block form and the bare-JSON form are accepted. Returns
// false for anything that does not decode into an artifact-shaped object.
func ParseArtifact(text string) (domain.ArtifactPayload, bool) {
	raw, _ := extractJSON(text)
	if raw == "" {
		return domain.ArtifactPayload{}, false
	}

	var payload domain.ArtifactPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.ArtifactPayload{}, false
	}
	if payload.Status == "" {
		return domain.ArtifactPayload{}, false
	}
	return payload, true
}

// extractJSON returns the JSON object embedded in the text and whether it was
// fenced. Parse failures are signaled by an empty string; callers skip the
// candidate silently.
func extractJSON(text string) (raw string, fenced bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimPrefix(trimmed, "```json")
		body = strings.TrimPrefix(body, "```")
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		body = strings.TrimSpace(body)
		if strings.HasPrefix(body, "{") {
			return body, true
		}
		return "", false
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, false
	}
	return "", false
}

// Score ranks a candidate payload against a completion. Exact requestId match
// beats same-project match beats any still-pending artifact; zero means the
// candidate is not a match at all. The scan applies this newest-to-oldest and
// the highest score wins.
func Score(p domain.ArtifactPayload, c Completion) int {
	if c.RequestID != "" && p.RequestID != "" && p.RequestID == c.RequestID {
		return 3
	}
	if c.ProjectID != "" && p.ProjectID != "" && p.ProjectID == c.ProjectID {
		return 2
	}
	if p.Pending() {
		return 1
	}
	return 0
}

// RenderArtifact serializes the payload into the fenced-code-block form used
// for placeholders written by this service.
func RenderArtifact(p domain.ArtifactPayload) string {
	raw, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return "```json\n" + string(raw) + "\n```"
}

// patchJSON rewrites the artifact object inside text for a completion while
// preserving every field it does not own, including ones this service never
// wrote. The original form (fenced or bare) is kept.
func patchJSON(text string, c Completion, now int64) (string, bool) {
	raw, fenced := extractJSON(text)
	if raw == "" {
		return "", false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", false
	}

	obj["status"] = string(domain.JobStatusCompleted)
	obj["progress"] = 100
	obj["timestamp"] = now
	if c.Kind == domain.ArtifactKindVideo {
		obj["videoUrl"] = c.URL
	} else {
		obj["imageUrl"] = c.URL
	}
	if c.ThumbnailURL != "" {
		obj["thumbnailUrl"] = c.ThumbnailURL
	}
	if c.RequestID != "" {
		obj["requestId"] = c.RequestID
	}
	delete(obj, "error")

	out, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	if fenced {
		return "```json\n" + string(out) + "\n```", true
	}
	return string(out), true
}
