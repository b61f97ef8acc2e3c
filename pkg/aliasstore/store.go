package aliasstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TableName is the relational table (or bolt bucket) holding alias records.
const TableName = "thread_aliases"

// ErrUnavailable marks failures of the backing storage. Callers treat it as
// a soft failure and relay traffic without alias handling.
var ErrUnavailable = errors.New("alias storage unavailable")

// Record maps a client-facing alias to the upstream's current thread id.
type Record struct {
	Alias        string    `json:"alias"`
	InternalID   string    `json:"internal_thread_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	RefreshCount int64     `json:"refresh_count"`
}

// Stats summarises the alias table.
type Stats struct {
	Aliases   int64 `json:"aliases"`
	Refreshes int64 `json:"refreshes"`
}

// Store persists alias records. Implementations are safe for concurrent use.
type Store interface {
	// Lookup returns the record for alias, or nil and no error when absent.
	// The backing schema is created on first use.
	Lookup(ctx context.Context, alias string) (*Record, error)

	// Upsert inserts or replaces the internal id of alias in one atomic
	// step. When bumpRefresh is set the refresh count of an existing record
	// is incremented by one.
	Upsert(ctx context.Context, alias, internalID string, bumpRefresh bool) error

	// LookupOrCreate stores alias -> internalID only when alias has no
	// record, and returns whatever record is stored afterwards. An existing
	// record is never modified.
	LookupOrCreate(ctx context.Context, alias, internalID string) (*Record, error)

	// List returns every record ordered by alias.
	List(ctx context.Context) ([]*Record, error)

	// Stats returns the record count and the sum of refresh counts.
	Stats(ctx context.Context) (Stats, error)

	// Ping verifies the storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// timeFormat is used for the textual created_at and updated_at columns.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func validate(alias, internalID string) error {
	if alias == "" {
		return errors.New("alias cannot be empty")
	}
	if internalID == "" {
		return errors.New("internal id cannot be empty")
	}
	return nil
}
