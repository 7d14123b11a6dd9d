package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/harvest/pkg/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteLedger keeps the ledger in a SQLite table
type SQLiteLedger struct {
	memory
	db *sql.DB
}

// NewSQLiteLedger opens (creating if needed) the database at dbPath
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &SQLiteLedger{memory: memory{entries: make(map[string]time.Time), now: time.Now}, db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger (
		identity TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL
	);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Load reads every row into memory
func (l *SQLiteLedger) Load() error {
	rows, err := l.db.Query(`SELECT identity, processed_at FROM ledger`)
	if err != nil {
		return fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return fmt.Errorf("failed to scan ledger row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			log.Warn().Str("identity", id).Str("processed_at", at).Msg("Unparseable ledger timestamp")
		}
		entries = append(entries, models.LedgerEntry{Identity: id, ProcessedAt: t})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	l.load(entries)
	return nil
}

// Flush inserts entries added since the last flush in one transaction
func (l *SQLiteLedger) Flush() error {
	pending := l.takePending()
	if len(pending) == 0 {
		return nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		l.restorePending(pending)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO ledger (identity, processed_at) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		l.restorePending(pending)
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range pending {
		if _, err := stmt.Exec(e.Identity, e.ProcessedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			l.restorePending(pending)
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		l.restorePending(pending)
		return fmt.Errorf("failed to commit ledger: %w", err)
	}

	log.Debug().Int("new", len(pending)).Msg("Ledger flushed")
	return nil
}

// Close closes the database connection
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
