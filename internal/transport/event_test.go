package transport

import "testing"

func TestIsVideoResult(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        bool
	}{
		{"https://cdn.example.com/out/clip.mp4", "", true},
		{"https://cdn.example.com/out/clip.webm?sig=abc", "", true},
		{"https://cdn.example.com/out/pic.webp", "", false},
		{"https://cdn.example.com/out/file.bin", "video/mp4", true},
		{"https://cdn.example.com/out/file.bin", "image/png", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := IsVideoResult(tc.url, tc.contentType); got != tc.want {
			t.Fatalf("IsVideoResult(%q, %q) = %v, want %v", tc.url, tc.contentType, got, tc.want)
		}
	}
}

func TestEventFileURL(t *testing.T) {
	ev := Event{Type: EventTypeFile, Object: &EventObject{URL: "https://x/y.webp"}}
	if got := ev.FileURL(); got != "https://x/y.webp" {
		t.Fatalf("FileURL = %q", got)
	}

	if got := (Event{Type: EventTypeSubscribe}).FileURL(); got != "" {
		t.Fatalf("subscribe event should have no file URL, got %q", got)
	}
	if got := (Event{Type: EventTypeFile}).FileURL(); got != "" {
		t.Fatalf("file event without object should have no URL, got %q", got)
	}
}
