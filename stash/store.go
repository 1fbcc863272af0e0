package stash

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/zoedberg/lnpbp/contract"
	"github.com/zoedberg/lnpbp/strict"
)

const (
	// DefaultStoreFilename is the default database filename of a Store.
	DefaultStoreFilename = "stash.db"
)

var (
	// consignmentBucketName is the name of the bucket holding accepted
	// consignments keyed by contract id.
	consignmentBucketName = []byte("consignments")

	// ErrConsignmentNotFound is returned when no consignment is stored
	// for the requested contract.
	ErrConsignmentNotFound = errors.New("no consignment for contract")
)

// Store persists accepted consignments in a local key-value database,
// keyed by contract id. Writes replace any previously stored consignment
// for the same contract; merging histories is the caller's concern, a
// consignment passed to Put is stored as given.
type Store struct {
	db kvdb.Backend
}

// NewStore creates a Store on top of the passed database backend, creating
// its bucket if needed.
func NewStore(db kvdb.Backend) (*Store, error) {
	err := kvdb.Update(db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(consignmentBucketName)
		return err
	}, func() {})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewBoltStore opens (creating if needed) a bolt-backed Store in the given
// directory.
func NewBoltStore(dir string) (*Store, error) {
	db, err := kvdb.Create(
		kvdb.BoltBackendName,
		filepath.Join(dir, DefaultStoreFilename),
		true, kvdb.DefaultDBTimeout,
	)
	if err != nil {
		return nil, err
	}

	return NewStore(db)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the consignment under its contract id, replacing any previous
// entry for the same contract.
func (s *Store) Put(c *Consignment) error {
	encoded, err := strict.Encode(c)
	if err != nil {
		return err
	}
	id := c.ContractID()

	log.Debugf("Storing consignment for contract %v (%d bytes)", id,
		len(encoded))

	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(consignmentBucketName)
		return bucket.Put(id[:], encoded)
	}, func() {})
}

// Fetch returns the stored consignment for the given contract, or
// ErrConsignmentNotFound.
func (s *Store) Fetch(id contract.ContractID) (*Consignment, error) {
	var encoded []byte
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(consignmentBucketName)
		encoded = bucket.Get(id[:])
		if encoded == nil {
			return fmt.Errorf("%w: %v", ErrConsignmentNotFound, id)
		}
		return nil
	}, func() {
		encoded = nil
	})
	if err != nil {
		return nil, err
	}

	var c Consignment
	if err := strict.Decode(encoded, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Remove deletes the stored consignment for the given contract. Removing a
// contract that is not stored is a no-op.
func (s *Store) Remove(id contract.ContractID) error {
	return kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(consignmentBucketName)
		return bucket.Delete(id[:])
	}, func() {})
}

// ForEach invokes the callback for every stored consignment. Returning an
// error from the callback aborts the iteration and surfaces the error.
func (s *Store) ForEach(f func(contract.ContractID,
	*Consignment) error) error {

	return kvdb.View(s.db, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(consignmentBucketName)
		return bucket.ForEach(func(k, v []byte) error {
			var id contract.ContractID
			copy(id[:], k)

			var c Consignment
			if err := strict.Decode(v, &c); err != nil {
				return err
			}

			return f(id, &c)
		})
	}, func() {})
}
