package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SideTable maps a requestId to the chat message holding its placeholder, so
// completion lookup is O(1) and unambiguous instead of a heuristic scan over
// the transcript. Entries expire: a job that never completes must not pin its
// mapping forever.
type SideTable interface {
	Put(ctx context.Context, requestID, chatID, messageID string) error
	Lookup(ctx context.Context, requestID string) (chatID, messageID string, ok bool, err error)
	Forget(ctx context.Context, requestID string) error
}

const sideTableKeyPrefix = "artifact:req:"

// RedisSideTable stores the mapping in Redis with a TTL.
type RedisSideTable struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSideTable(rdb *redis.Client, ttl time.Duration) *RedisSideTable {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisSideTable{rdb: rdb, ttl: ttl}
}

func (t *RedisSideTable) Put(ctx context.Context, requestID, chatID, messageID string) error {
	return t.rdb.Set(ctx, sideTableKeyPrefix+requestID, chatID+"/"+messageID, t.ttl).Err()
}

func (t *RedisSideTable) Lookup(ctx context.Context, requestID string) (string, string, bool, error) {
	value, err := t.rdb.Get(ctx, sideTableKeyPrefix+requestID).Result()
	if err == redis.Nil {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	chatID, messageID, found := strings.Cut(value, "/")
	if !found {
		return "", "", false, fmt.Errorf("sidetable: malformed entry %q", value)
	}
	return chatID, messageID, true, nil
}

func (t *RedisSideTable) Forget(ctx context.Context, requestID string) error {
	return t.rdb.Del(ctx, sideTableKeyPrefix+requestID).Err()
}

var _ SideTable = (*RedisSideTable)(nil)

// MemorySideTable is a process-local SideTable for tests and for deployments
// without Redis. TTL is not enforced; the map is bounded by job volume within
// one process lifetime.
type MemorySideTable struct {
	mu      sync.Mutex
	entries map[string][2]string
}

func NewMemorySideTable() *MemorySideTable {
	return &MemorySideTable{entries: make(map[string][2]string)}
}

func (t *MemorySideTable) Put(_ context.Context, requestID, chatID, messageID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[requestID] = [2]string{chatID, messageID}
	return nil
}

func (t *MemorySideTable) Lookup(_ context.Context, requestID string) (string, string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[requestID]
	if !ok {
		return "", "", false, nil
	}
	return entry[0], entry[1], true, nil
}

func (t *MemorySideTable) Forget(_ context.Context, requestID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestID)
	return nil
}

var _ SideTable = (*MemorySideTable)(nil)
