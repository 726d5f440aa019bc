// Package cache keeps resolved calendar weeks so repeated calendar renders do
// not re-run the plan/library merge. Entries are opaque bytes; every service
// that mutates a week invalidates it.
//
// Each week carries a generation that Invalidate bumps. Get reports the
// generation it saw and Set only stores when it is still current, so a
// resolution that raced an edit never lands after the edit's invalidation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WeekCache stores resolved weeks keyed by client, program and week key.
type WeekCache interface {
	// Get returns the cached value, if any, and the week's generation. The
	// generation is returned on a miss too; pass it to Set.
	Get(ctx context.Context, clientID, programID, weekKey string) (value []byte, gen int64, ok bool, err error)
	// Set stores value unless the week was invalidated after gen was read.
	Set(ctx context.Context, clientID, programID, weekKey string, gen int64, value []byte) error
	Invalidate(ctx context.Context, clientID, programID string, weekKeys ...string) error
}

func entryKey(prefix, clientID, programID, weekKey string) string {
	return fmt.Sprintf("%s:week:%s:%s:%s", prefix, clientID, programID, weekKey)
}

func genKey(prefix, clientID, programID, weekKey string) string {
	return fmt.Sprintf("%s:gen:%s:%s:%s", prefix, clientID, programID, weekKey)
}

// Noop disables caching.
type Noop struct{}

func (Noop) Get(context.Context, string, string, string) ([]byte, int64, bool, error) {
	return nil, 0, false, nil
}
func (Noop) Set(context.Context, string, string, string, int64, []byte) error { return nil }
func (Noop) Invalidate(context.Context, string, string, ...string) error      { return nil }

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process WeekCache with a fixed TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	gens    map[string]int64
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]int64),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, clientID, programID, weekKey string) ([]byte, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey("mem", clientID, programID, weekKey)
	gen := m.gens[k]
	e, ok := m.entries[k]
	if !ok {
		return nil, gen, false, nil
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, k)
		return nil, gen, false, nil
	}
	return append([]byte(nil), e.value...), gen, true, nil
}

func (m *Memory) Set(_ context.Context, clientID, programID, weekKey string, gen int64, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey("mem", clientID, programID, weekKey)
	if m.gens[k] != gen {
		return nil
	}
	m.entries[k] = memoryEntry{
		value:   append([]byte(nil), value...),
		expires: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, clientID, programID string, weekKeys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wk := range weekKeys {
		k := entryKey("mem", clientID, programID, wk)
		delete(m.entries, k)
		m.gens[k]++
	}
	return nil
}
