package aliasstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxStore implements Store on a native pgx connection pool.
type pgxStore struct {
	pool *pgxpool.Pool
	now  func() time.Time

	// queries share their text with the database/sql postgres backend.
	queries *sqlStore

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPgx opens a PostgreSQL store on a pgx pool. The pool connects lazily,
// so an unreachable server surfaces on first use rather than here.
func NewPgx(ctx context.Context, dsn string, maxConns int) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, unavailable("open pgx pool", err)
	}

	return &pgxStore{
		pool:    pool,
		now:     time.Now,
		queries: newSQLStore(nil, postgresDialect),
	}, nil
}

func (s *pgxStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}
	if _, err := s.pool.Exec(ctx, schemaDDL()); err != nil {
		return unavailable("create schema", err)
	}
	s.schemaReady = true
	return nil
}

func (s *pgxStore) Lookup(ctx context.Context, alias string) (*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, s.queries.lookupQuery, alias))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return rec, nil
}

func (s *pgxStore) Upsert(ctx context.Context, alias, internalID string, bumpRefresh bool) error {
	if err := validate(alias, internalID); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	var bump int64
	if bumpRefresh {
		bump = 1
	}
	if _, err := s.pool.Exec(ctx, s.queries.upsertQuery, alias, internalID, formatTime(s.now()), bump); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s *pgxStore) LookupOrCreate(ctx context.Context, alias, internalID string) (*Record, error) {
	if err := validate(alias, internalID); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	if _, err := s.pool.Exec(ctx, s.queries.insertQuery, alias, internalID, formatTime(s.now())); err != nil {
		return nil, unavailable("insert", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, s.queries.lookupQuery, alias))
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return rec, nil
}

func (s *pgxStore) List(ctx context.Context) ([]*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, s.queries.listQuery)
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

func (s *pgxStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Stats{}, err
	}

	var st Stats
	if err := s.pool.QueryRow(ctx, s.queries.statsQuery).Scan(&st.Aliases, &st.Refreshes); err != nil {
		return Stats{}, unavailable("stats", err)
	}
	return st, nil
}

func (s *pgxStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *pgxStore) Close() error {
	s.pool.Close()
	return nil
}
