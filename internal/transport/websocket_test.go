package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestWSDialerReceivesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ws/project.p1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		_ = ws.WriteJSON(Event{Type: EventTypeSubscribe, ProjectID: "p1"})
		_ = ws.WriteJSON(Event{
			Type:      EventTypeFile,
			ProjectID: "p1",
			Object:    &EventObject{Type: "image", URL: "https://x/y.webp"},
		})
	}))
	defer srv.Close()

	dialer := &WSDialer{
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger:  zerolog.Nop(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialer.Dial(ctx, "project.p1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	first := <-conn.Events()
	if first.Type != EventTypeSubscribe {
		t.Fatalf("first event = %+v, want subscribe", first)
	}

	second := <-conn.Events()
	if second.FileURL() != "https://x/y.webp" {
		t.Fatalf("second event = %+v, want file completion", second)
	}
}

func TestWSDialerDialFailure(t *testing.T) {
	dialer := &WSDialer{BaseURL: "ws://127.0.0.1:1", Logger: zerolog.Nop()}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := dialer.Dial(ctx, "project.p1"); err == nil {
		t.Fatal("expected dial error")
	}
}
