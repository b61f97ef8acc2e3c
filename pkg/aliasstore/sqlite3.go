package aliasstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite3 opens the cgo SQLite store at cfg.Path. It shares the schema
// and queries of NewSQLite and differs only in the driver.
func NewSQLite3(cfg SQLiteConfig) (Store, error) {
	dsn, err := sqliteDSN(cfg, func(busy int64) string {
		return fmt.Sprintf("_busy_timeout=%d&_journal_mode=WAL", busy)
	})
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open sqlite3", err)
	}
	configurePool(db, cfg.MaxOpenConns)

	return newSQLStore(db, sqliteDialect), nil
}
