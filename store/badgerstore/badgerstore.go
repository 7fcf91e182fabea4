// Package badgerstore provides the store.Store backed by BadgerDB, for runs
// whose inputs and results must outlive the process.
//
// Each table is stored whole under one key: the dense values plus a validity
// bitmap, CBOR encoded. A manifest key records the on-disk format version,
// the model fingerprint and the registered table sizes; opening a store
// written under an incompatible format or a different model structure fails.
// Staged writes live under their own keys until Promote folds them into the
// table keys. Stages do not survive a reopen; leftover staged keys are swept
// on Open.
package badgerstore

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/couplex/couplex/logger"
	"github.com/couplex/couplex/store"
)

// Store is a BadgerDB-backed value store. It is safe for concurrent use;
// concurrent writes to the same table are serialized by transaction conflict
// retries.
type Store struct {
	db          *badger.DB
	log         zerolog.Logger
	fingerprint []byte

	mu     sync.RWMutex
	tables map[string]int
}

type options struct {
	inMemory    bool
	syncWrites  bool
	fingerprint []byte
	log         zerolog.Logger
}

// Option configures a Store at Open.
type Option func(*options)

// WithInMemory keeps the database in memory, without touching the
// filesystem. The path given to Open is ignored.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// WithSyncWrites makes every write wait for the write-ahead log to reach
// disk.
func WithSyncWrites() Option {
	return func(o *options) { o.syncWrites = true }
}

// WithFingerprint binds the store to a model structure, typically
// model.Fingerprint. Opening an existing store recorded under a different
// fingerprint fails; a store without a recorded fingerprint adopts this one.
func WithFingerprint(fp []byte) Option {
	return func(o *options) { o.fingerprint = append([]byte(nil), fp...) }
}

// WithLogger overrides the logger inherited from the logger package.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := options{log: logger.Logger().With().Str("store", "badger").Logger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	bopts := badger.DefaultOptions(path).WithLogger(nil)
	if cfg.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if cfg.syncWrites {
		bopts = bopts.WithSyncWrites(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %q: %w", path, err)
	}
	s := &Store{
		db:          db,
		log:         cfg.log,
		fingerprint: cfg.fingerprint,
		tables:      make(map[string]int),
	}
	if err := s.loadManifest(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.sweepStages(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Register(name string, size int) error {
	if size < 0 {
		return fmt.Errorf("badgerstore: negative size %d for table %q", size, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tables[name]; ok {
		if cur != size {
			return fmt.Errorf("badgerstore: table %q already registered with size %d, got %d", name, cur, size)
		}
		return nil
	}
	s.tables[name] = size
	if err := s.writeManifest(); err != nil {
		delete(s.tables, name)
		return err
	}
	return nil
}

func (s *Store) Read(name string, indices []int) (store.Values, error) {
	size, ok := s.tableSize(name)
	if !ok {
		return store.Values{}, fmt.Errorf("badgerstore: unknown table %q", name)
	}
	if err := checkIndices(name, indices, size); err != nil {
		return store.Values{}, err
	}
	var out store.Values
	err := s.db.View(func(txn *badger.Txn) error {
		cur, err := getBlob(txn, tableKey(name), name, size)
		if err != nil {
			return err
		}
		out = store.NewValues(len(indices))
		for i, idx := range indices {
			if x, ok := cur.Get(idx); ok {
				out.Set(i, x)
			}
		}
		return nil
	})
	if err != nil {
		return store.Values{}, err
	}
	return out, nil
}

func (s *Store) Write(name string, indices []int, vals store.Values) error {
	if vals.Len() != len(indices) {
		return fmt.Errorf("badgerstore: %d values for %d indices in table %q", vals.Len(), len(indices), name)
	}
	size, ok := s.tableSize(name)
	if !ok {
		return fmt.Errorf("badgerstore: unknown table %q", name)
	}
	if err := checkIndices(name, indices, size); err != nil {
		return err
	}
	key := tableKey(name)
	return s.update(func(txn *badger.Txn) error {
		cur, err := getBlob(txn, key, name, size)
		if err != nil {
			return err
		}
		mergeAt(cur, indices, vals)
		return setBlob(txn, key, cur)
	})
}

// Stage opens a working area over the store. The name scopes the staged keys
// and must be unique among live stages.
func (s *Store) Stage(name string) (store.Stage, error) {
	return &stage{name: name, parent: s, staged: make(map[string]struct{})}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) tableSize(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.tables[name]
	return n, ok
}

// update runs fn in a read-write transaction, retrying while it loses
// conflicts to concurrent writers.
func (s *Store) update(fn func(*badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// sweepStages drops staged keys left behind by a run that neither promoted
// nor discarded them.
func (s *Store) sweepStages() error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(stagePrefix); it.ValidForPrefix(stagePrefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}
	s.log.Warn().Int("keys", len(stale)).Msg("dropping staged values left by an interrupted run")
	return s.update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func checkIndices(name string, indices []int, size int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= size {
			return fmt.Errorf("badgerstore: index %d out of range for table %q (size %d)", idx, name, size)
		}
	}
	return nil
}

var (
	manifestKey = []byte("m")
	stagePrefix = []byte("s/")
)

func tableKey(name string) []byte { return []byte("t/" + name) }

func stageKey(stage, table string) []byte { return []byte("s/" + stage + "/" + table) }
