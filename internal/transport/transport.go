package transport

import "context"

// Conn is one live event-stream subscription to a provider channel. Events is
// closed when the connection is done for good, including after the bounded
// reconnection budget is exhausted.
type Conn interface {
	Events() <-chan Event
	Close() error
}

// Dialer opens a Conn for a provider channel such as "project.<id>" or
// "file.<id>". The image domain dials WebSocket, the video domain SSE; the
// tracker store does not care which.
type Dialer interface {
	Dial(ctx context.Context, channel string) (Conn, error)
}
