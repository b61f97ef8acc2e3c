package aliasstore

import (
	"context"
	"errors"
	"fmt"

	"tapcanvas/threadgate/pkg/config"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendSQLite3  = "sqlite3"
	BackendPostgres = "postgres"
	BackendPgx      = "pgx"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// Open creates the store selected by cfg.Backend. Opening never touches the
// schema; that happens on the first operation.
func Open(ctx context.Context, cfg config.AliasesConfig) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLite(SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case BackendSQLite3:
		return NewSQLite3(SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case BackendPostgres:
		return NewPostgres(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	case BackendPgx:
		return NewPgx(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	case BackendBolt:
		return NewBolt(BoltConfig{Path: cfg.Bolt.Path, Timeout: cfg.Bolt.Timeout})
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown alias backend %q", cfg.Backend)
	}
}

// ErrorRecorder receives the name of every store operation that failed with
// ErrUnavailable.
type ErrorRecorder interface {
	RecordStoreError(op string)
}

// Instrument wraps store so that storage failures are reported to rec.
func Instrument(store Store, rec ErrorRecorder) Store {
	if rec == nil {
		return store
	}
	return &instrumented{Store: store, rec: rec}
}

type instrumented struct {
	Store
	rec ErrorRecorder
}

func (i *instrumented) observe(op string, err error) error {
	if err != nil && errors.Is(err, ErrUnavailable) {
		i.rec.RecordStoreError(op)
	}
	return err
}

func (i *instrumented) Lookup(ctx context.Context, alias string) (*Record, error) {
	rec, err := i.Store.Lookup(ctx, alias)
	return rec, i.observe("lookup", err)
}

func (i *instrumented) Upsert(ctx context.Context, alias, internalID string, bumpRefresh bool) error {
	return i.observe("upsert", i.Store.Upsert(ctx, alias, internalID, bumpRefresh))
}

func (i *instrumented) LookupOrCreate(ctx context.Context, alias, internalID string) (*Record, error) {
	rec, err := i.Store.LookupOrCreate(ctx, alias, internalID)
	return rec, i.observe("insert", err)
}

func (i *instrumented) List(ctx context.Context) ([]*Record, error) {
	recs, err := i.Store.List(ctx)
	return recs, i.observe("list", err)
}

func (i *instrumented) Stats(ctx context.Context) (Stats, error) {
	st, err := i.Store.Stats(ctx)
	return st, i.observe("stats", err)
}
