// internal/ledger/ledger.go
package ledger

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/law-makers/harvest/pkg/models"
)

// Ledger remembers which announcement identities have been fully persisted.
//
// Load is called once before a run and Flush once after it. Add must only
// be called after an announcement's output is on disk.
type Ledger interface {
	Load() error
	Contains(identity string) bool
	Add(identity string)
	Flush() error
	Len() int
	Entries() []models.LedgerEntry
	Close() error
}

// Open returns the ledger for site under siteDir using the named backend
func Open(backend, siteDir, site string) (Ledger, error) {
	switch backend {
	case "", "json":
		return NewFileLedger(filepath.Join(siteDir, fmt.Sprintf("processed_%s.json", site))), nil
	case "sqlite":
		return NewSQLiteLedger(filepath.Join(siteDir, fmt.Sprintf("processed_%s.db", site)))
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

// memory is the in-process set both backends share
type memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	pending []models.LedgerEntry
	now     func() time.Time
}

func (m *memory) Contains(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[models.NormalizeIdentity(identity)]
	return ok
}

func (m *memory) Add(identity string) {
	id := models.NormalizeIdentity(identity)
	if id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok {
		return
	}
	at := m.now().UTC()
	m.entries[id] = at
	m.pending = append(m.pending, models.LedgerEntry{Identity: id, ProcessedAt: at})
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns every entry ordered by processing time, then identity
func (m *memory) Entries() []models.LedgerEntry {
	m.mu.RLock()
	out := make([]models.LedgerEntry, 0, len(m.entries))
	for id, at := range m.entries {
		out = append(out, models.LedgerEntry{Identity: id, ProcessedAt: at})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].ProcessedAt.Before(out[j].ProcessedAt)
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

func (m *memory) load(entries []models.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]time.Time, len(entries))
	m.pending = nil
	for _, e := range entries {
		if id := models.NormalizeIdentity(e.Identity); id != "" {
			m.entries[id] = e.ProcessedAt
		}
	}
}

func (m *memory) takePending() []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending
	m.pending = nil
	return p
}

func (m *memory) restorePending(p []models.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(p, m.pending...)
}
