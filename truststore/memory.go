package truststore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goSignIn/identity"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	nowF    func() time.Time
}

// NewMemory returns an empty Memory store. A nil now uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	return &Memory{
		records: make(map[string]Record),
		nowF:    nowOrDefault(now),
	}
}

func (m *Memory) IsTrusted(_ context.Context, ref identity.Ref) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[ref.Key()]
	return ok, nil
}

// Whitelist records ref. Repeated calls keep the first timestamp.
func (m *Memory) Whitelist(_ context.Context, ref identity.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[ref.Key()]; ok {
		return nil
	}
	m.records[ref.Key()] = Record{Identity: ref, WhitelistedAt: m.nowF()}
	return nil
}

func (m *Memory) Revoke(_ context.Context, ref identity.Ref) error {
	m.mu.Lock()
	delete(m.records, ref.Key())
	m.mu.Unlock()
	return nil
}

// Record returns the whitelist entry for ref.
func (m *Memory) Record(_ context.Context, ref identity.Ref) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ref.Key()]
	return rec, ok, nil
}

// Len returns the number of whitelisted identities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
