package state

import (
	"context"
	"sync"
	"time"

	"medusa-storefront/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type memoryRepo struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMemory keeps state in process memory. Values vanish on restart.
func NewMemory(ttl time.Duration) Repository {
	return &memoryRepo{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func memoryKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

func (r *memoryRepo) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	k := memoryKey(sessionID, key)
	r.mu.RLock()
	e, ok := r.entries[k]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.now().After(e.expiresAt) {
		r.mu.Lock()
		delete(r.entries, k)
		r.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (r *memoryRepo) Set(_ context.Context, sessionID, key string, value []byte) error {
	r.mu.Lock()
	r.entries[memoryKey(sessionID, key)] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: r.now().Add(r.ttl),
	}
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) SetIfAbsent(_ context.Context, sessionID, key string, value []byte) (bool, error) {
	k := memoryKey(sessionID, key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[k]; ok && !r.now().After(e.expiresAt) {
		return false, nil
	}
	r.entries[k] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: r.now().Add(r.ttl),
	}
	return true, nil
}

func (r *memoryRepo) Delete(_ context.Context, sessionID, key string) error {
	r.mu.Lock()
	delete(r.entries, memoryKey(sessionID, key))
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) Ping(context.Context) error {
	return nil
}
