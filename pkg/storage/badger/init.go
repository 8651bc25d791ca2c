package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrUpdate       = errors.New("update error")
	ErrDelete       = errors.New("delete error")
)

type Database struct {
	db  *badger.DB
	enc cbor.EncMode
}

func NewDatabase(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		db.Close()

		return nil, err
	}

	return &Database{db: db, enc: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) marshal(v any) ([]byte, error) {
	data, err := d.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

func get(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return pkgerrors.ErrNotFound
	case err != nil:
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

func (d *Database) set(txn *badger.Txn, key []byte, v any) error {
	val, err := d.marshal(v)
	if err != nil {
		return err
	}
	if err := txn.Set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func del(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

// scan decodes every value stored under prefix, in key order.
func scan[T any](txn *badger.Txn, prefix []byte) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var items []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return unmarshal(val, &v)
		}); err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	return items, nil
}
