package transport

import (
	"path"
	"strings"
)

// EventType enumerates the provider stream event kinds the tracker reacts to.
type EventType string

const (
	EventTypeFile      EventType = "file"
	EventTypeSubscribe EventType = "subscribe"
	EventTypeProgress  EventType = "progress"
	EventTypeError     EventType = "error"
)

// EventObject carries the result payload of a file event.
type EventObject struct {
	Type         string `json:"type,omitempty"`
	URL          string `json:"url,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Event is one JSON message received from a provider project/file channel.
type Event struct {
	Type      EventType    `json:"type"`
	ProjectID string       `json:"projectId,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
	Progress  int          `json:"progress,omitempty"`
	Error     string       `json:"error,omitempty"`
	Object    *EventObject `json:"object,omitempty"`
}

// FileURL returns the result URL when the event is a completed-file event,
// empty otherwise.
func (e Event) FileURL() string {
	if e.Type != EventTypeFile || e.Object == nil {
		return ""
	}
	return e.Object.URL
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
}

// IsVideoResult reports whether a file URL or content type denotes a video.
// The URL extension is checked first; a video/* content type also qualifies.
func IsVideoResult(url, contentType string) bool {
	ext := strings.ToLower(path.Ext(trimQuery(url)))
	if _, ok := videoExtensions[ext]; ok {
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "video/")
}

func trimQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}
