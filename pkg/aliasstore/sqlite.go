package aliasstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the file-backed SQLite stores.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// NewSQLite opens the pure-Go SQLite store at cfg.Path. Missing parent
// directories are created. The schema is created on first use.
func NewSQLite(cfg SQLiteConfig) (Store, error) {
	dsn, err := sqliteDSN(cfg, func(busy int64) string {
		return fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", busy)
	})
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	configurePool(db, cfg.MaxOpenConns)

	return newSQLStore(db, sqliteDialect), nil
}

func sqliteDSN(cfg SQLiteConfig, params func(busyMillis int64) string) (string, error) {
	if cfg.Path == "" {
		return "", fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", unavailable("create data directory", err)
			}
		}
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?%s", cfg.Path, params(busy.Milliseconds())), nil
}

func configurePool(db *sql.DB, maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
}
