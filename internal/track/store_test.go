package track

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/transport"
)

type fakeConn struct {
	events    chan transport.Event
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event, 8)}
}

func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.events) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectIsIdempotentPerChannel(t *testing.T) {
	dialer := &fakeDialer{}
	store := NewStore(dialer, zerolog.Nop(), 8)

	var mu sync.Mutex
	var got []string
	record := func(tag string) Handler {
		return func(transport.Event) {
			mu.Lock()
			got = append(got, tag)
			mu.Unlock()
		}
	}

	if _, err := store.Connect(context.Background(), "project.p1", record("a")); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if _, err := store.Connect(context.Background(), "project.p1", record("b")); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if dialer.Dials() != 1 {
		t.Fatalf("dials = %d, want 1", dialer.Dials())
	}

	dialer.Conn(0).events <- transport.Event{Type: transport.EventTypeProgress}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, "both handlers should see the event")
}

func TestConnectLeakGuardForceCleans(t *testing.T) {
	dialer := &fakeDialer{}
	store := NewStore(dialer, zerolog.Nop(), 2)

	noop := func(transport.Event) {}
	if _, err := store.Connect(context.Background(), "project.p1", noop, noop, noop); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := store.DebugInfo().Handlers; got != 3 {
		t.Fatalf("handlers = %d, want 3", got)
	}

	// Threshold is 2, so the next Connect must wipe the registry first.
	if _, err := store.Connect(context.Background(), "project.p2", noop); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	info := store.DebugInfo()
	if info.Handlers != 1 {
		t.Fatalf("handlers after force clean = %d, want 1", info.Handlers)
	}
	if info.Connections != 1 {
		t.Fatalf("connections after force clean = %d, want 1", info.Connections)
	}
}

func TestRemoveDropsOnlyTheGivenRegistration(t *testing.T) {
	dialer := &fakeDialer{}
	store := NewStore(dialer, zerolog.Nop(), 8)

	noop := func(transport.Event) {}
	regs, err := store.Connect(context.Background(), "project.p1", noop, noop)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	store.Remove(regs[0])
	if got := store.DebugInfo().Handlers; got != 1 {
		t.Fatalf("handlers = %d, want 1", got)
	}
	store.Remove(regs[0]) // double remove is harmless
	if got := store.DebugInfo().Handlers; got != 1 {
		t.Fatalf("handlers = %d, want 1 after double remove", got)
	}
}

func TestClosedStreamAllowsRedial(t *testing.T) {
	dialer := &fakeDialer{}
	store := NewStore(dialer, zerolog.Nop(), 8)

	if _, err := store.Connect(context.Background(), "project.p1", func(transport.Event) {}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	dialer.Conn(0).Close()

	waitFor(t, func() bool {
		return store.DebugInfo().Connections == 0
	}, "connection entry should drop when the stream closes")

	if _, err := store.Connect(context.Background(), "project.p1"); err != nil {
		t.Fatalf("redial Connect: %v", err)
	}
	if dialer.Dials() != 2 {
		t.Fatalf("dials = %d, want 2 after redial", dialer.Dials())
	}
}

func TestCleanupClosesConnectionAndHandlers(t *testing.T) {
	dialer := &fakeDialer{}
	store := NewStore(dialer, zerolog.Nop(), 8)

	if _, err := store.Connect(context.Background(), "project.p1", func(transport.Event) {}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	store.MarkConnected("project.p1")

	store.Cleanup("project.p1")
	info := store.DebugInfo()
	if info.Connections != 0 || info.Handlers != 0 || len(info.ConnectedChannels) != 0 {
		t.Fatalf("registry not empty after Cleanup: %+v", info)
	}
}
