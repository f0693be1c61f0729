package track

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/transport"
)

// Handler consumes events fanned out from one provider channel.
type Handler func(transport.Event)

// Registration ties a handler to the channel it was registered against, so it
// can be removed without touching the connection lifecycle.
type Registration struct {
	channel string
	fn      Handler
}

// Store owns zero or more live event-stream connections, each identified by a
// provider channel ("project.<id>", "file.<id>"), and fans incoming events
// out to every handler registered for that channel. One Store exists per
// generation domain: the image domain dials WebSocket, the video domain SSE.
type Store struct {
	dialer        transport.Dialer
	logger        zerolog.Logger
	leakThreshold int

	mu        sync.Mutex
	conns     map[string]transport.Conn
	regs      map[string][]*Registration
	connected map[string]struct{}
	last      *Result // last completion seen, kept for debug introspection
}

// DebugInfo is a snapshot of the store's registries, used by the leak guard
// and the debug endpoint.
type DebugInfo struct {
	Connections       int      `json:"connections"`
	Handlers          int      `json:"handlers"`
	ConnectedChannels []string `json:"connected_channels"`
	LastResult        *Result  `json:"last_result,omitempty"`
}

// NewStore builds a Store for one generation domain. leakThreshold bounds the
// number of registered handlers before the next Connect force-cleans the
// registry; zero or negative applies the default of 8.
func NewStore(dialer transport.Dialer, logger zerolog.Logger, leakThreshold int) *Store {
	if leakThreshold <= 0 {
		leakThreshold = 8
	}
	return &Store{
		dialer:        dialer,
		logger:        logger,
		leakThreshold: leakThreshold,
		conns:         make(map[string]transport.Conn),
		regs:          make(map[string][]*Registration),
		connected:     make(map[string]struct{}),
	}
}

// Connect ensures a live connection for the channel and registers the given
// handlers against it. Idempotent per channel: when a connection already
// exists the socket is untouched and new handlers are merged in. When the
// total handler count has crossed the leak threshold, everything is
// force-cleaned first, so churn from repeated subscribe/unsubscribe cycles
// cannot accumulate leaked registrations.
func (s *Store) Connect(ctx context.Context, channel string, handlers ...Handler) ([]*Registration, error) {
	s.mu.Lock()
	if s.handlerCountLocked() > s.leakThreshold {
		s.logger.Warn().
			Int("handlers", s.handlerCountLocked()).
			Int("threshold", s.leakThreshold).
			Msg("track: handler leak detected, force cleaning")
		s.forceCleanupLocked()
	}

	regs := make([]*Registration, 0, len(handlers))
	for _, fn := range handlers {
		reg := &Registration{channel: channel, fn: fn}
		s.regs[channel] = append(s.regs[channel], reg)
		regs = append(regs, reg)
	}

	if _, ok := s.conns[channel]; ok {
		s.mu.Unlock()
		return regs, nil
	}
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, channel)
	if err != nil {
		s.Remove(regs...)
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.conns[channel]; ok {
		// Lost the race against a concurrent Connect for the same channel.
		s.mu.Unlock()
		_ = conn.Close()
		_ = existing
		return regs, nil
	}
	s.conns[channel] = conn
	s.mu.Unlock()

	go s.fanout(channel, conn)
	return regs, nil
}

// AddHandlers merges handlers for a channel without touching the socket.
func (s *Store) AddHandlers(channel string, handlers ...Handler) []*Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs := make([]*Registration, 0, len(handlers))
	for _, fn := range handlers {
		reg := &Registration{channel: channel, fn: fn}
		s.regs[channel] = append(s.regs[channel], reg)
		regs = append(regs, reg)
	}
	return regs
}

// Remove drops handler registrations without touching the socket lifecycle.
func (s *Store) Remove(regs ...*Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range regs {
		if reg == nil {
			continue
		}
		list := s.regs[reg.channel]
		for i, candidate := range list {
			if candidate == reg {
				s.regs[reg.channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(s.regs[reg.channel]) == 0 {
			delete(s.regs, reg.channel)
		}
	}
}

// Cleanup closes the channel's connection and drops all of its handlers.
func (s *Store) Cleanup(channel string) {
	s.mu.Lock()
	conn := s.conns[channel]
	delete(s.conns, channel)
	delete(s.regs, channel)
	delete(s.connected, channel)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// ForceCleanup closes every connection and empties the registries. It is the
// circuit breaker behind the leak guard and is also exposed for operational
// use.
func (s *Store) ForceCleanup() {
	s.mu.Lock()
	s.forceCleanupLocked()
	s.mu.Unlock()
}

func (s *Store) forceCleanupLocked() {
	for channel, conn := range s.conns {
		delete(s.conns, channel)
		if conn != nil {
			_ = conn.Close()
		}
	}
	s.regs = make(map[string][]*Registration)
	s.connected = make(map[string]struct{})
}

// MarkConnected records a subscription confirmation for the channel.
func (s *Store) MarkConnected(channel string) {
	s.mu.Lock()
	s.connected[channel] = struct{}{}
	s.mu.Unlock()
}

// IsConnected reports whether a subscription confirmation has been seen.
func (s *Store) IsConnected(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.connected[channel]
	return ok
}

// DebugInfo returns registry counts for leak detection and introspection.
func (s *Store) DebugInfo() DebugInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := make([]string, 0, len(s.connected))
	for channel := range s.connected {
		channels = append(channels, channel)
	}
	return DebugInfo{
		Connections:       len(s.conns),
		Handlers:          s.handlerCountLocked(),
		ConnectedChannels: channels,
		LastResult:        s.last,
	}
}

func (s *Store) handlerCountLocked() int {
	total := 0
	for _, list := range s.regs {
		total += len(list)
	}
	return total
}

func (s *Store) setLastResult(res Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}

// fanout dispatches every event from the connection to the handlers currently
// registered for the channel. The handler list is snapshotted per event so a
// handler may remove itself during dispatch.
func (s *Store) fanout(channel string, conn transport.Conn) {
	for ev := range conn.Events() {
		s.mu.Lock()
		snapshot := make([]*Registration, len(s.regs[channel]))
		copy(snapshot, s.regs[channel])
		s.mu.Unlock()

		for _, reg := range snapshot {
			reg.fn(ev)
		}
	}

	// Stream is gone for good; drop the connection entry so a later Connect
	// redials. Handlers stay registered: a poll fallback may still complete
	// the job they are waiting for.
	s.mu.Lock()
	if s.conns[channel] == conn {
		delete(s.conns, channel)
		delete(s.connected, channel)
	}
	s.mu.Unlock()
}
