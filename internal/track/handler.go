package track

import (
	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/transport"
)

// Result is the extracted payload of a completion event.
type Result struct {
	ProjectID    string              `json:"project_id"`
	RequestID    string              `json:"request_id,omitempty"`
	Kind         domain.ArtifactKind `json:"kind"`
	URL          string              `json:"url"`
	ThumbnailURL string              `json:"thumbnail_url,omitempty"`
}

// CompletionHandler returns a handler closed over a target project id. It
// discards events for other projects, ignores everything that is not a
// completed-file event with a URL, and for the video domain additionally
// requires the URL or content type to look like a video. Matching events are
// recorded in the store's debug slot and forwarded to onResult. Subscription
// confirmations flip the channel into the store's connected set.
func (s *Store) CompletionHandler(channel, projectID string, kind domain.ArtifactKind, onResult func(Result)) Handler {
	return func(ev transport.Event) {
		if ev.ProjectID != "" && projectID != "" && ev.ProjectID != projectID {
			return // cross-talk from another project on a shared channel
		}

		switch ev.Type {
		case transport.EventTypeSubscribe:
			s.MarkConnected(channel)
			return
		case transport.EventTypeFile:
		default:
			return
		}

		url := ev.FileURL()
		if url == "" {
			return
		}

		var contentType string
		var thumbnail string
		if ev.Object != nil {
			contentType = ev.Object.ContentType
			thumbnail = ev.Object.ThumbnailURL
		}
		if kind == domain.ArtifactKindVideo && !transport.IsVideoResult(url, contentType) {
			return
		}

		res := Result{
			ProjectID:    projectID,
			RequestID:    ev.RequestID,
			Kind:         kind,
			URL:          url,
			ThumbnailURL: thumbnail,
		}
		s.setLastResult(res)
		onResult(res)
	}
}
