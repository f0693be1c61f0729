package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSDialer opens WebSocket subscriptions against the provider's
// /api/v1/ws/<channel> endpoint. Used for the image domain.
type WSDialer struct {
	BaseURL       string
	Token         string
	MaxReconnects int
	Logger        zerolog.Logger
}

type wsConn struct {
	events chan Event
	cancel context.CancelFunc

	mu      sync.Mutex
	current *websocket.Conn
}

func (c *wsConn) Events() <-chan Event { return c.events }

// Close cancels the subscription and unblocks any in-flight read.
func (c *wsConn) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current.Close()
	}
	return nil
}

func (c *wsConn) swap(ws *websocket.Conn) {
	c.mu.Lock()
	c.current = ws
	c.mu.Unlock()
}

// Dial connects to the channel and starts the read loop. Connection errors
// trigger reconnection with a fixed delay, bounded by MaxReconnects; once the
// budget is spent the events channel is closed and the subscription is dead.
func (d *WSDialer) Dial(ctx context.Context, channel string) (Conn, error) {
	url := strings.TrimRight(d.BaseURL, "/") + "/api/v1/ws/" + channel

	ctx, cancel := context.WithCancel(ctx)
	conn := &wsConn{events: make(chan Event, 16), cancel: cancel}

	ws, err := d.connect(ctx, url)
	if err != nil {
		cancel()
		return nil, err
	}
	conn.swap(ws)

	go d.readLoop(ctx, url, conn)
	return conn, nil
}

func (d *WSDialer) connect(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := map[string][]string{}
	if d.Token != "" {
		header["Authorization"] = []string{"Bearer " + d.Token}
	}
	ws, _, err := dialer.DialContext(ctx, url, header)
	return ws, err
}

func (d *WSDialer) readLoop(ctx context.Context, url string, conn *wsConn) {
	defer close(conn.events)

	attempts := 0
	for {
		err := d.pump(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts > d.maxReconnects() {
			d.Logger.Warn().Str("url", url).Int("attempts", attempts-1).Msg("websocket: reconnect budget exhausted")
			return
		}
		d.Logger.Debug().Err(err).Str("url", url).Int("attempt", attempts).Msg("websocket: reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}

		ws, err := d.connect(ctx, url)
		if err != nil {
			d.Logger.Warn().Err(err).Str("url", url).Msg("websocket: reconnect failed")
			return
		}
		conn.swap(ws)
	}
}

func (d *WSDialer) pump(ctx context.Context, conn *wsConn) error {
	conn.mu.Lock()
	ws := conn.current
	conn.mu.Unlock()

	defer ws.Close()
	for {
		var ev Event
		if err := ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case conn.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *WSDialer) maxReconnects() int {
	if d.MaxReconnects <= 0 {
		return 3
	}
	return d.MaxReconnects
}

var _ Dialer = (*WSDialer)(nil)
