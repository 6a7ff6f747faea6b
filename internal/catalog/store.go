// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
)

// Store wraps a pooled sqlx.DB connection to the SQLite idea catalog. The
// catalog holds the per-idea metadata (owner, priority, final priority) that
// the retrieval payloads and the context assembler resolve through ideaKey.
type Store struct {
	db *sqlx.DB
}

// IdeaRecord mirrors one row of the ideas table.
type IdeaRecord struct {
	Key               string  `db:"key"`
	Department        string  `db:"department"`
	Owner             string  `db:"owner"`
	Priority          string  `db:"priority"`
	IntegrationEffort string  `db:"integration_effort"`
	Risk              string  `db:"risk"`
	FinalPrio         float64 `db:"final_prio"`
}

// Open constructs a Store backed by the SQLite database at the provided
// path, migrating the schema on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`CREATE TABLE IF NOT EXISTS ideas (
                key TEXT NOT NULL,
                department TEXT NOT NULL,
                owner TEXT NOT NULL DEFAULT '',
                priority TEXT NOT NULL DEFAULT '',
                integration_effort TEXT NOT NULL DEFAULT '',
                risk TEXT NOT NULL DEFAULT '',
                final_prio REAL NOT NULL DEFAULT 0,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                PRIMARY KEY(department, key)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_ideas_key ON ideas(key);`,
}

// ReplaceIdeas reseeds the catalog from the workshop collections in a single
// transaction. Re-running ingestion therefore overwrites rather than
// accumulates.
func (s *Store) ReplaceIdeas(ctx context.Context, collections []kb.Collection) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reseed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ideas`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear ideas: %w", err)
	}
	const insert = `INSERT INTO ideas (key, department, owner, priority, integration_effort, risk, final_prio)
                VALUES (:key, :department, :owner, :priority, :integration_effort, :risk, :final_prio)`
	for _, collection := range collections {
		department := strings.TrimSpace(collection.Department)
		if department == "" {
			continue
		}
		for _, idea := range collection.Ideas {
			if strings.TrimSpace(idea.Key) == "" {
				continue
			}
			record := IdeaRecord{
				Key:               idea.Key,
				Department:        department,
				Owner:             idea.Owner,
				Priority:          idea.Priority,
				IntegrationEffort: idea.IntegrationEffort,
				Risk:              idea.Risk,
				FinalPrio:         idea.FinalPrio,
			}
			if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert idea %s/%s: %w", department, idea.Key, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reseed: %w", err)
	}
	return nil
}

// Lookup returns the idea record for the given idea key. The bool result is
// false when no idea carries that key.
func (s *Store) Lookup(ctx context.Context, ideaKey string) (IdeaRecord, bool, error) {
	if s == nil || s.db == nil {
		return IdeaRecord{}, false, errors.New("catalog store not initialised")
	}
	trimmed := strings.TrimSpace(ideaKey)
	if trimmed == "" {
		return IdeaRecord{}, false, nil
	}
	var record IdeaRecord
	err := s.db.GetContext(ctx, &record,
		`SELECT key, department, owner, priority, integration_effort, risk, final_prio
                 FROM ideas WHERE key = ? LIMIT 1`, trimmed)
	if errors.Is(err, sql.ErrNoRows) {
		return IdeaRecord{}, false, nil
	}
	if err != nil {
		return IdeaRecord{}, false, fmt.Errorf("lookup idea: %w", err)
	}
	return record, true, nil
}

// Departments lists the distinct department names present in the catalog.
func (s *Store) Departments(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog store not initialised")
	}
	var departments []string
	if err := s.db.SelectContext(ctx, &departments,
		`SELECT DISTINCT department FROM ideas ORDER BY department`); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}
