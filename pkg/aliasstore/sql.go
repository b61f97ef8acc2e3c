package aliasstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// dialect captures the differences between the database/sql backends.
type dialect struct {
	name string

	// bind returns the placeholder for the n-th (1-based) parameter.
	bind func(n int) string
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		bind: func(n int) string { return fmt.Sprintf("?%d", n) },
	}
	postgresDialect = dialect{
		name: "postgres",
		bind: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// sqlStore implements Store on database/sql. The schema is created lazily
// and a failed creation is retried on the next call.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	schemaMu    sync.Mutex
	schemaReady bool

	lookupQuery string
	upsertQuery string
	insertQuery string
	listQuery   string
	statsQuery  string

	closeOnce sync.Once
	closeErr  error
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	b := d.bind
	return &sqlStore{
		db:      db,
		dialect: d,
		now:     time.Now,

		lookupQuery: fmt.Sprintf(`
			SELECT alias, internal_thread_id, created_at, updated_at, refresh_count
			FROM %s
			WHERE alias = %s`, TableName, b(1)),

		upsertQuery: fmt.Sprintf(`
			INSERT INTO %[1]s (alias, internal_thread_id, created_at, updated_at, refresh_count)
			VALUES (%[2]s, %[3]s, %[4]s, %[4]s, 0)
			ON CONFLICT (alias) DO UPDATE SET
				internal_thread_id = excluded.internal_thread_id,
				updated_at = excluded.updated_at,
				refresh_count = %[1]s.refresh_count + %[5]s`,
			TableName, b(1), b(2), b(3), b(4)),

		insertQuery: fmt.Sprintf(`
			INSERT INTO %s (alias, internal_thread_id, created_at, updated_at, refresh_count)
			VALUES (%s, %s, %s, %s, 0)
			ON CONFLICT (alias) DO NOTHING`,
			TableName, b(1), b(2), b(3), b(3)),

		listQuery: fmt.Sprintf(`
			SELECT alias, internal_thread_id, created_at, updated_at, refresh_count
			FROM %s
			ORDER BY alias`, TableName),

		statsQuery: fmt.Sprintf(`
			SELECT COUNT(*), COALESCE(SUM(refresh_count), 0)
			FROM %s`, TableName),
	}
}

func schemaDDL() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			alias TEXT PRIMARY KEY,
			internal_thread_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			refresh_count INTEGER NOT NULL DEFAULT 0
		)`, TableName)
}

// ensureSchema creates the alias table once per store.
func (s *sqlStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schemaDDL()); err != nil {
		return unavailable("create schema", err)
	}
	s.schemaReady = true
	return nil
}

// Lookup returns the record for alias, or nil when absent.
func (s *sqlStore) Lookup(ctx context.Context, alias string) (*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.lookupQuery, alias))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return rec, nil
}

// Upsert writes alias -> internalID in a single statement.
func (s *sqlStore) Upsert(ctx context.Context, alias, internalID string, bumpRefresh bool) error {
	if err := validate(alias, internalID); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	bump := 0
	if bumpRefresh {
		bump = 1
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, alias, internalID, formatTime(s.now()), bump); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// LookupOrCreate inserts alias -> internalID unless a row exists, then
// reads the stored row back.
func (s *sqlStore) LookupOrCreate(ctx context.Context, alias, internalID string) (*Record, error) {
	if err := validate(alias, internalID); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, s.insertQuery, alias, internalID, formatTime(s.now())); err != nil {
		return nil, unavailable("insert", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.lookupQuery, alias))
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return rec, nil
}

// List returns all records ordered by alias.
func (s *sqlStore) List(ctx context.Context) ([]*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

// Stats returns the record count and refresh sum.
func (s *sqlStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Stats{}, err
	}

	var st Stats
	if err := s.db.QueryRowContext(ctx, s.statsQuery).Scan(&st.Aliases, &st.Refreshes); err != nil {
		return Stats{}, unavailable("stats", err)
	}
	return st, nil
}

// Ping verifies the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database. Safe to call more than once.
func (s *sqlStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec              Record
		created, updated string
	)
	if err := row.Scan(&rec.Alias, &rec.InternalID, &created, &updated, &rec.RefreshCount); err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return &rec, nil
}
