package domain

// ArtifactStatus mirrors JobStatus inside a serialized artifact payload. The
// legacy "streaming" value is still accepted on read and treated as pending.
const ArtifactStatusStreaming = "streaming"

// ArtifactPayload is the JSON object embedded in an assistant message text
// part. It carries the lifecycle of one generated image or video from the
// moment the placeholder is written until the completion event rewrites it.
type ArtifactPayload struct {
	Status       string       `json:"status"`
	Kind         ArtifactKind `json:"kind"`
	ProjectID    string       `json:"projectId"`
	RequestID    string       `json:"requestId,omitempty"`
	FileID       string       `json:"fileId,omitempty"`
	Prompt       string       `json:"prompt,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	VideoURL     string       `json:"videoUrl,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
	Progress     int          `json:"progress,omitempty"`
	Error        string       `json:"error,omitempty"`
	Timestamp    int64        `json:"timestamp,omitempty"`
}

// Pending reports whether the payload still awaits a completion event.
func (p ArtifactPayload) Pending() bool {
	switch p.Status {
	case string(JobStatusPending), string(JobStatusProcessing), ArtifactStatusStreaming:
		return true
	}
	return false
}

// ResultURL returns the URL slot for the payload's kind.
func (p ArtifactPayload) ResultURL() string {
	if p.Kind == ArtifactKindVideo {
		return p.VideoURL
	}
	return p.ImageURL
}
