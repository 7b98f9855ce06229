package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/packdb/packdb/internal/entry"
)

type memKey struct {
	ownerID int64
	pack    string
}

// MemStore is an in-memory Queries implementation for tests and development.
// Transact runs the function directly: there is no rollback.
type MemStore struct {
	mu      sync.Mutex
	entries map[memKey][]entry.Entry
	order   []memKey
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[memKey][]entry.Entry)}
}

func (m *MemStore) Transact(_ context.Context, fn func(q Queries) error) error {
	return fn(m)
}

func (m *MemStore) ListPacks(_ context.Context, ownerID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var packs []string
	for _, k := range m.order {
		if k.ownerID == ownerID && len(m.entries[k]) > 0 {
			packs = append(packs, k.pack)
		}
	}
	return packs, nil
}

func (m *MemStore) PackExists(_ context.Context, ownerID int64, pack string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[memKey{ownerID, pack}]) > 0, nil
}

func (m *MemStore) RemovePack(_ context.Context, ownerID int64, pack string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{ownerID, pack}
	removed := len(m.entries[k]) > 0
	delete(m.entries, k)
	return removed, nil
}

func (m *MemStore) ListEntries(_ context.Context, ownerID int64, pack string, mode MatchMode) ([]entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entry.Entry
	for _, k := range m.order {
		if k.ownerID != ownerID {
			continue
		}
		match := k.pack == pack
		if mode == MatchPrefix {
			match = strings.HasPrefix(k.pack, pack)
		}
		if match {
			out = append(out, m.entries[k]...)
		}
	}
	return out, nil
}

func (m *MemStore) EntryExists(_ context.Context, ownerID int64, pack string, e entry.Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(memKey{ownerID, pack}, e) >= 0, nil
}

func (m *MemStore) ToggleEntry(_ context.Context, ownerID int64, pack string, e entry.Entry, onlyRemove bool) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{ownerID, pack}
	if i := m.indexOf(k, e); i >= 0 {
		m.entries[k] = append(m.entries[k][:i], m.entries[k][i+1:]...)
		return false, nil
	}
	if onlyRemove {
		return true, nil
	}
	m.insert(k, e)
	return true, nil
}

func (m *MemStore) RemoveAllReferencesTo(_ context.Context, ownerID int64, externalPack string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := entry.Entry{Type: entry.TypeExternalPack, Data: externalPack}
	for _, k := range m.order {
		if k.ownerID != ownerID {
			continue
		}
		if i := m.indexOf(k, ref); i >= 0 {
			m.entries[k] = append(m.entries[k][:i], m.entries[k][i+1:]...)
		}
	}
	return nil
}

func (m *MemStore) CountEntries(_ context.Context, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, es := range m.entries {
		if k.ownerID == ownerID {
			n += len(es)
		}
	}
	return n, nil
}

func (m *MemStore) InsertMissing(_ context.Context, ownerID int64, pack string, entries []entry.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{ownerID, pack}
	inserted := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return inserted, err
		}
		if m.indexOf(k, e) < 0 {
			m.insert(k, e)
			inserted++
		}
	}
	return inserted, nil
}

// indexOf and insert assume the mutex is held.
func (m *MemStore) indexOf(k memKey, e entry.Entry) int {
	for i, have := range m.entries[k] {
		if have == e {
			return i
		}
	}
	return -1
}

func (m *MemStore) insert(k memKey, e entry.Entry) {
	seen := false
	for _, have := range m.order {
		if have == k {
			seen = true
			break
		}
	}
	if !seen {
		m.order = append(m.order, k)
	}
	m.entries[k] = append(m.entries[k], e)
}
