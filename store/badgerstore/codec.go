package badgerstore

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/couplex/couplex/store"
)

// blob is the stored form of one table: the dense values over the full
// domain and the validity bitmap in its binary marshaling.
type blob struct {
	Size  int
	Data  []float64
	Valid []byte
}

func encodeBlob(b blob) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(b)
}

func decodeBlob(data []byte, b *blob) error {
	dm, err := cbor.DecOptions{
		MaxArrayElements: 2147483647,
	}.DecMode()
	if err != nil {
		return err
	}
	return dm.Unmarshal(data, b)
}

// values materializes the blob as dense table values.
func (b blob) values() (store.Values, error) {
	if len(b.Data) == 0 {
		return store.NewValues(b.Size), nil
	}
	if len(b.Data) != b.Size {
		return store.Values{}, fmt.Errorf("badgerstore: blob holds %d values for size %d", len(b.Data), b.Size)
	}
	vals := store.Values{Data: b.Data, Valid: bitset.New(uint(b.Size))}
	if len(b.Valid) > 0 {
		if err := vals.Valid.UnmarshalBinary(b.Valid); err != nil {
			return store.Values{}, fmt.Errorf("badgerstore: corrupt validity bitmap: %w", err)
		}
	}
	return vals, nil
}

// getBlob reads the dense values stored under key. A missing key is an
// all-invalid table of the registered size.
func getBlob(txn *badger.Txn, key []byte, name string, size int) (store.Values, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.NewValues(size), nil
	}
	if err != nil {
		return store.Values{}, err
	}
	var vals store.Values
	err = item.Value(func(data []byte) error {
		var b blob
		if err := decodeBlob(data, &b); err != nil {
			return fmt.Errorf("badgerstore: decode table %q: %w", name, err)
		}
		if b.Size != size {
			return fmt.Errorf("badgerstore: table %q stored with size %d, registered %d", name, b.Size, size)
		}
		v, err := b.values()
		if err != nil {
			return err
		}
		vals = v
		return nil
	})
	if err != nil {
		return store.Values{}, err
	}
	return vals, nil
}

func setBlob(txn *badger.Txn, key []byte, vals store.Values) error {
	valid, err := vals.Valid.MarshalBinary()
	if err != nil {
		return err
	}
	data, err := encodeBlob(blob{Size: vals.Len(), Data: vals.Data, Valid: valid})
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// mergeAt applies the valid entries of vals at the given dense indices.
func mergeAt(dst store.Values, indices []int, vals store.Values) {
	for i, idx := range indices {
		if x, ok := vals.Get(i); ok {
			dst.Set(idx, x)
		}
	}
}
