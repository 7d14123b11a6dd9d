package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/harvest/pkg/models"
	"github.com/rs/zerolog/log"
)

// fileFormat is the on-disk JSON document
type fileFormat struct {
	Entries     []models.LedgerEntry `json:"entries"`
	LastUpdated time.Time            `json:"last_updated"`
	TotalCount  int                  `json:"total_count"`
}

// FileLedger keeps the ledger in a single JSON file
type FileLedger struct {
	memory
	path string
}

// NewFileLedger returns a ledger stored at path. Nothing is read until Load.
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{memory: memory{entries: make(map[string]time.Time), now: time.Now}, path: path}
}

// Path returns the backing file
func (l *FileLedger) Path() string { return l.path }

// Load reads the file. A missing file is an empty ledger; a corrupt one is
// logged and treated as empty so a run can still proceed.
func (l *FileLedger) Load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.load(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().
			Str("path", l.path).
			Err(err).
			Msg("Ledger file is corrupt, starting empty")
		l.load(nil)
		return nil
	}
	l.load(doc.Entries)

	log.Debug().
		Str("path", l.path).
		Int("entries", l.Len()).
		Msg("Ledger loaded")
	return nil
}

// Flush rewrites the file atomically
func (l *FileLedger) Flush() error {
	pending := l.takePending()

	entries := l.Entries()
	doc := fileFormat{
		Entries:     entries,
		LastUpdated: l.now().UTC(),
		TotalCount:  len(entries),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		l.restorePending(pending)
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := writeAtomic(l.path, data); err != nil {
		l.restorePending(pending)
		return err
	}

	log.Debug().
		Str("path", l.path).
		Int("entries", len(entries)).
		Int("new", len(pending)).
		Msg("Ledger flushed")
	return nil
}

// Close is a no-op for the file backend
func (l *FileLedger) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ledger-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
