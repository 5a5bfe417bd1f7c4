// Package catalog stores the local services a daemon announces. It is edited by the CLI
// and read by the daemon, it is not a copy of the announcer registry.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	ServicesBucket = "services"
)

type Config struct {
	Path        string        `yaml:"path" env:"USD_CATALOG_PATH" env-default:"usd.db"`
	Serializer  string        `yaml:"serializer" env:"USD_CATALOG_SERIALIZER" env-default:"msgpack"`
	OpenTimeout time.Duration `yaml:"open_timeout" env:"USD_CATALOG_OPEN_TIMEOUT" env-default:"1s"`
	// Debounce coalesces bursts of file events into one reload
	Debounce time.Duration `yaml:"debounce" env:"USD_CATALOG_DEBOUNCE" env-default:"250ms"`
	FileMode os.FileMode   `yaml:"-"`
}

type Catalog struct {
	db         *bbolt.DB
	mu         sync.RWMutex
	serializer Serializer
}

var _ Store = (*Catalog)(nil)

// Open opens the catalog for writing, creating the file if needed
func Open(cfg Config) (*Catalog, error) {
	return open(cfg, false)
}

func open(cfg Config, readOnly bool) (*Catalog, error) {
	serializer, err := NewSerializer(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = time.Second
	}

	db, err := bbolt.Open(cfg.Path, cfg.FileMode, &bbolt.Options{
		Timeout:  cfg.OpenTimeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", cfg.Path, err)
	}

	if !readOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(ServicesBucket)); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		}
	}

	return &Catalog{
		db:         db,
		serializer: serializer,
	}, nil
}

// Load reads every record and releases the file right away, so a daemon never
// holds the lock the CLI needs. A missing file is an empty catalog.
func Load(cfg Config) ([]Record, error) {
	if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	c, err := open(cfg, true)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.List()
}

func (c *Catalog) Close() error {
	if c.db == nil {
		return ErrNilDB
	}
	return c.db.Close()
}

// Put creates or replaces the record with rec.ID
func (c *Catalog) Put(rec Record) error {
	return c.PutAll([]Record{rec})
}

// PutAll stores recs in one transaction, nothing is stored if one of them is invalid
func (c *Catalog) PutAll(recs []Record) error {
	recs = slices.Clone(recs)
	now := time.Now().UTC()
	encoded := make([][]byte, len(recs))
	for i := range recs {
		if err := recs[i].Service().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		if recs[i].UpdatedAt.IsZero() {
			recs[i].UpdatedAt = now
		}
		data, err := c.serializer.Serialize(&recs[i])
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(ServicesBucket))
		if err != nil {
			return err
		}
		for i := range recs {
			if err := bucket.Put([]byte(recs[i].ID), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Catalog) Get(id string) (Record, error) {
	var rec Record

	c.mu.RLock()
	defer c.mu.RUnlock()

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ServicesBucket))
		if bucket == nil {
			return ErrNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		return c.serializer.Deserialize(data, &rec)
	})

	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every record ordered by id
func (c *Catalog) List() ([]Record, error) {
	var recs []Record

	c.mu.RLock()
	defer c.mu.RUnlock()

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ServicesBucket))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var rec Record
			if err := c.serializer.Deserialize(v, &rec); err != nil {
				return fmt.Errorf("record %q: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ServicesBucket))
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
}
