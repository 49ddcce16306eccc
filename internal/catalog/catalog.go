// Package catalog persists named stores and key sets in a bbolt file so they
// can be reused as operands across CLI invocations and scenarios.
//
// Values are kept in codec form. Refs survive only by ID: reading an entry
// back gives refs without hosts.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"

	"github.com/roach88/strata/internal/codec"
	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/seq"
)

// Kind selects the bucket an entry lives in.
type Kind string

const (
	KindStore Kind = "stores"
	KindSet   Kind = "sets"
)

// Kinds lists every bucket in a fixed order.
var Kinds = []Kind{KindStore, KindSet}

// ErrNotFound is returned when a name has no entry.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is a bbolt-backed name -> value map.
//
// Thread-safety: a Catalog may be shared between goroutines. bbolt
// serializes writers.
type Catalog struct {
	bdb    *bbolt.DB
	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	timeout time.Duration
	noSync  bool
}

// WithLogger sets the logger used for write events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds the wait for the file lock held by another process.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithNoSync skips fsync after commits. Only for tests.
func WithNoSync() Option {
	return func(o *options) { o.noSync = true }
}

// Open creates or opens a catalog file and ensures both buckets exist.
func Open(path string, opts ...Option) (*Catalog, error) {
	o := options{logger: slog.Default(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = o.timeout
	bopt.NoSync = o.noSync

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, k := range Kinds {
			if _, err := tx.CreateBucketIfNotExists(bucketName(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("catalog: create buckets: %w", err)
	}

	return &Catalog{bdb: bdb, logger: o.logger}, nil
}

// Close releases the file.
func (c *Catalog) Close() error {
	if c.bdb == nil {
		return nil
	}
	return c.bdb.Close()
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.bdb.Path() }

// PutStore saves s under name, replacing any previous store.
func (c *Catalog) PutStore(name string, s *seq.Store) error {
	if s == nil {
		return seq.InvalidArgument("catalog.put", "store is nil")
	}
	data, err := codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("catalog: encode %q: %w", name, err)
	}
	if err := c.put(KindStore, name, data); err != nil {
		return err
	}
	c.logger.Info("store saved", "name", name, "length", s.Len(), "bytes", len(data))
	return nil
}

// Store loads the store saved under name.
func (c *Catalog) Store(name string, refs *seq.RefTable) (*seq.Store, error) {
	data, err := c.get(KindStore, name)
	if err != nil {
		return nil, err
	}
	s, err := codec.UnmarshalStore(data, refs)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode %q: %w", name, err)
	}
	return s, nil
}

// PutSet saves a key set under name together with its equality name.
func (c *Catalog) PutSet(name string, s *keyset.Set) error {
	if s == nil {
		return seq.InvalidArgument("catalog.put", "set is nil")
	}
	data, err := codec.MarshalSet(s)
	if err != nil {
		return fmt.Errorf("catalog: encode %q: %w", name, err)
	}
	if err := c.put(KindSet, name, data); err != nil {
		return err
	}
	c.logger.Info("set saved", "name", name, "size", s.Size(), "equality", s.Equality().Name())
	return nil
}

// Set loads the key set saved under name.
func (c *Catalog) Set(name string, refs *seq.RefTable) (*keyset.Set, error) {
	data, err := c.get(KindSet, name)
	if err != nil {
		return nil, err
	}
	s, err := codec.UnmarshalSet(data, refs)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode %q: %w", name, err)
	}
	return s, nil
}

// Names returns the entry names of a kind in byte order.
func (c *Catalog) Names(kind Kind) ([]string, error) {
	if !slices.Contains(Kinds, kind) {
		return nil, fmt.Errorf("catalog: unknown kind %q", kind)
	}
	var names []string
	err := c.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName(kind)).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Delete removes an entry. Deleting a missing name returns ErrNotFound.
func (c *Catalog) Delete(kind Kind, name string) error {
	if !slices.Contains(Kinds, kind) {
		return fmt.Errorf("catalog: unknown kind %q", kind)
	}
	err := c.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(kind))
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
		}
		return b.Delete([]byte(name))
	})
	if err != nil {
		return err
	}
	c.logger.Info("entry deleted", "kind", string(kind), "name", name)
	return nil
}

func (c *Catalog) put(kind Kind, name string, data []byte) error {
	if name == "" {
		return seq.InvalidArgument("catalog.put", "name is empty")
	}
	err := c.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName(kind)).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("catalog: put %q: %w", name, err)
	}
	return nil
}

func (c *Catalog) get(kind Kind, name string) ([]byte, error) {
	var data []byte
	err := c.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName(kind)).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
		}
		// Bolt memory is only valid inside the transaction.
		data = slices.Clone(v)
		return nil
	})
	return data, err
}

func bucketName(k Kind) []byte {
	return unsafe.Slice(unsafe.StringData(string(k)), len(k))
}
