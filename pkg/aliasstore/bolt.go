package aliasstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var aliasBucket = []byte(TableName)

// BoltConfig configures the embedded bbolt store.
type BoltConfig struct {
	Path    string
	Timeout time.Duration
}

// boltStore keeps one JSON-encoded Record per alias key.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt opens (or creates) the bbolt file at cfg.Path.
func NewBolt(cfg BoltConfig) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("bolt path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, unavailable("create data directory", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, unavailable("open bolt", err)
	}

	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Lookup(_ context.Context, alias string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(aliasBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(alias))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return rec, nil
}

func (s *boltStore) Upsert(_ context.Context, alias, internalID string, bumpRefresh bool) error {
	if err := validate(alias, internalID); err != nil {
		return err
	}

	now := s.now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(aliasBucket)
		if err != nil {
			return err
		}

		rec := Record{Alias: alias, CreatedAt: now}
		if data := b.Get([]byte(alias)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if bumpRefresh {
				rec.RefreshCount++
			}
		}
		rec.InternalID = internalID
		rec.UpdatedAt = now

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(alias), data)
	})
	if err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (s *boltStore) LookupOrCreate(_ context.Context, alias, internalID string) (*Record, error) {
	if err := validate(alias, internalID); err != nil {
		return nil, err
	}

	var rec Record
	now := s.now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(aliasBucket)
		if err != nil {
			return err
		}
		if data := b.Get([]byte(alias)); data != nil {
			return json.Unmarshal(data, &rec)
		}

		rec = Record{Alias: alias, InternalID: internalID, CreatedAt: now, UpdatedAt: now}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(alias), data)
	})
	if err != nil {
		return nil, unavailable("insert", err)
	}
	return &rec, nil
}

func (s *boltStore) List(_ context.Context) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(aliasBucket)
		if b == nil {
			return nil
		}
		// bbolt iterates keys in byte order, which gives the alias ordering.
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

func (s *boltStore) Stats(ctx context.Context) (Stats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Aliases: int64(len(records))}
	for _, rec := range records {
		st.Refreshes += rec.RefreshCount
	}
	return st, nil
}

func (s *boltStore) Ping(_ context.Context) error {
	if err := s.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
