package aliasstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgres opens a PostgreSQL store through database/sql and lib/pq.
func NewPostgres(dsn string, maxConns int) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, unavailable("open postgres", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	return newSQLStore(db, postgresDialect), nil
}
