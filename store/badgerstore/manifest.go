package badgerstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/blang/semver/v4"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the on-disk layout version recorded in the manifest.
// Stores written under a different major version cannot be opened.
const FormatVersion = "1.0.0"

var errFingerprintMismatch = errors.New("trying to open a store written under a different model structure")

// manifest is the store's self-description, kept under its own key and
// rewritten on every table registration.
type manifest struct {
	Format      string
	Fingerprint []byte
	Tables      map[string]int
}

func (s *Store) loadManifest() error {
	var (
		man   manifest
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(data []byte) error {
			dm, err := cbor.DecOptions{}.DecMode()
			if err != nil {
				return err
			}
			return dm.Unmarshal(data, &man)
		})
	})
	if err != nil {
		return fmt.Errorf("badgerstore: read manifest: %w", err)
	}
	if !found {
		return s.writeManifest()
	}
	if err := s.checkManifest(man); err != nil {
		return err
	}
	if man.Tables != nil {
		s.tables = man.Tables
	}
	if len(s.fingerprint) == 0 {
		s.fingerprint = man.Fingerprint
		return nil
	}
	if len(man.Fingerprint) == 0 {
		// first open with a fingerprint, record it
		return s.writeManifest()
	}
	return nil
}

// checkManifest gates the open on the recorded format version and model
// fingerprint. A different major format is an error; any other version skew
// only warns.
func (s *Store) checkManifest(man manifest) error {
	binaryVersion, err := semver.Parse(FormatVersion)
	if err != nil {
		return err
	}
	storedVersion, err := semver.Parse(man.Format)
	if err != nil {
		return fmt.Errorf("badgerstore: invalid format version %q in manifest: %w", man.Format, err)
	}
	if storedVersion.Major != binaryVersion.Major {
		return fmt.Errorf("badgerstore: store format %s is not compatible with library format %s", storedVersion, binaryVersion)
	}
	if binaryVersion.Compare(storedVersion) != 0 {
		s.log.Warn().Str("store", storedVersion.String()).Str("library", binaryVersion.String()).
			Msg("store was written under a different format version")
	}
	if len(s.fingerprint) > 0 && len(man.Fingerprint) > 0 && !bytes.Equal(s.fingerprint, man.Fingerprint) {
		return errFingerprintMismatch
	}
	return nil
}

// writeManifest persists the current manifest. Callers that mutate the table
// registry hold s.mu.
func (s *Store) writeManifest() error {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	data, err := em.Marshal(manifest{
		Format:      FormatVersion,
		Fingerprint: s.fingerprint,
		Tables:      s.tables,
	})
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey, data)
	})
}
