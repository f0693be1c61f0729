package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SSEDialer opens Server-Sent-Events subscriptions against the provider's
// /api/v1/events/<channel> endpoint. Used for the video domain.
type SSEDialer struct {
	BaseURL       string
	Token         string
	MaxReconnects int
	HTTPClient    *http.Client
	Logger        zerolog.Logger
}

type sseConn struct {
	events chan Event
	cancel context.CancelFunc
}

func (c *sseConn) Events() <-chan Event { return c.events }

func (c *sseConn) Close() error {
	c.cancel()
	return nil
}

// Dial opens the event stream and starts parsing frames. Stream drops trigger
// reconnection bounded by MaxReconnects, after which the events channel is
// closed.
func (d *SSEDialer) Dial(ctx context.Context, channel string) (Conn, error) {
	url := strings.TrimRight(d.BaseURL, "/") + "/api/v1/events/" + channel

	ctx, cancel := context.WithCancel(ctx)
	conn := &sseConn{events: make(chan Event, 16), cancel: cancel}

	body, err := d.open(ctx, url)
	if err != nil {
		cancel()
		return nil, err
	}

	go d.readLoop(ctx, url, body, conn.events)
	return conn, nil
}

func (d *SSEDialer) open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse: unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

func (d *SSEDialer) readLoop(ctx context.Context, url string, resp *http.Response, events chan<- Event) {
	defer close(events)

	attempts := 0
	for {
		err := d.pump(ctx, resp, events)
		resp.Body.Close()
		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts > d.maxReconnects() {
			d.Logger.Warn().Str("url", url).Int("attempts", attempts-1).Msg("sse: reconnect budget exhausted")
			return
		}
		d.Logger.Debug().Err(err).Str("url", url).Int("attempt", attempts).Msg("sse: reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}

		resp, err = d.open(ctx, url)
		if err != nil {
			d.Logger.Warn().Err(err).Str("url", url).Msg("sse: reconnect failed")
			return
		}
	}
}

// pump parses the text/event-stream framing: only `data:` fields matter here,
// multi-line data frames are joined before decoding, blank lines dispatch.
func (d *SSEDialer) pump(ctx context.Context, resp *http.Response, events chan<- Event) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				d.dispatch(ctx, strings.Join(data, "\n"), events)
				data = data[:0]
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment/keep-alive
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
	if len(data) > 0 {
		d.dispatch(ctx, strings.Join(data, "\n"), events)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("sse: stream closed")
}

func (d *SSEDialer) dispatch(ctx context.Context, payload string, events chan<- Event) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		d.Logger.Debug().Err(err).Msg("sse: skipping undecodable frame")
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (d *SSEDialer) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	// No overall timeout: the stream is long-lived.
	return http.DefaultClient
}

func (d *SSEDialer) maxReconnects() int {
	if d.MaxReconnects <= 0 {
		return 3
	}
	return d.MaxReconnects
}

var _ Dialer = (*SSEDialer)(nil)
