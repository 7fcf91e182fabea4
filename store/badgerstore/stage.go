package badgerstore

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/couplex/couplex/internal/utils"
	"github.com/couplex/couplex/store"
)

// stage layers staged table keys over the store. Reads fall through to the
// table keys for entries not staged; Promote folds every staged blob into its
// table key in one transaction.
type stage struct {
	name   string
	parent *Store

	mu     sync.Mutex
	staged map[string]struct{}
	done   bool
}

func (st *stage) Register(name string, size int) error {
	if err := st.closed(); err != nil {
		return err
	}
	return st.parent.Register(name, size)
}

func (st *stage) Read(name string, indices []int) (store.Values, error) {
	if err := st.closed(); err != nil {
		return store.Values{}, err
	}
	size, ok := st.parent.tableSize(name)
	if !ok {
		return store.Values{}, fmt.Errorf("badgerstore: unknown table %q", name)
	}
	if err := checkIndices(name, indices, size); err != nil {
		return store.Values{}, err
	}
	var out store.Values
	err := st.parent.db.View(func(txn *badger.Txn) error {
		base, err := getBlob(txn, tableKey(name), name, size)
		if err != nil {
			return err
		}
		over, err := getBlob(txn, stageKey(st.name, name), name, size)
		if err != nil {
			return err
		}
		out = store.NewValues(len(indices))
		for i, idx := range indices {
			if x, ok := over.Get(idx); ok {
				out.Set(i, x)
			} else if x, ok := base.Get(idx); ok {
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

func (st *stage) Write(name string, indices []int, vals store.Values) error {
	if err := st.closed(); err != nil {
		return err
	}
	if vals.Len() != len(indices) {
		return fmt.Errorf("badgerstore: %d values for %d indices in table %q", vals.Len(), len(indices), name)
	}
	size, ok := st.parent.tableSize(name)
	if !ok {
		return fmt.Errorf("badgerstore: unknown table %q", name)
	}
	if err := checkIndices(name, indices, size); err != nil {
		return err
	}
	key := stageKey(st.name, name)
	err := st.parent.update(func(txn *badger.Txn) error {
		cur, err := getBlob(txn, key, name, size)
		if err != nil {
			return err
		}
		mergeAt(cur, indices, vals)
		return setBlob(txn, key, cur)
	})
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.staged[name] = struct{}{}
	st.mu.Unlock()
	return nil
}

func (st *stage) Promote() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return fmt.Errorf("badgerstore: stage %q already closed", st.name)
	}
	st.done = true
	return st.parent.update(func(txn *badger.Txn) error {
		for _, name := range utils.SortedKeys(st.staged) {
			size, ok := st.parent.tableSize(name)
			if !ok {
				return fmt.Errorf("badgerstore: unknown table %q", name)
			}
			key := stageKey(st.name, name)
			over, err := getBlob(txn, key, name, size)
			if err != nil {
				return err
			}
			base, err := getBlob(txn, tableKey(name), name, size)
			if err != nil {
				return err
			}
			for i := 0; i < size; i++ {
				if x, ok := over.Get(i); ok {
					base.Set(i, x)
				}
			}
			if err := setBlob(txn, tableKey(name), base); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (st *stage) Discard() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return fmt.Errorf("badgerstore: stage %q already closed", st.name)
	}
	st.done = true
	return st.parent.update(func(txn *badger.Txn) error {
		for _, name := range utils.SortedKeys(st.staged) {
			if err := txn.Delete(stageKey(st.name, name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (st *stage) closed() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return fmt.Errorf("badgerstore: stage %q already closed", st.name)
	}
	return nil
}
