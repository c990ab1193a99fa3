package boltdb

import (
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/jirwin/quirc/pkg/data_store"
)

const pluginsBucket = "plugins"

type pluginStore struct {
	pluginID string
	db       *bolt.DB
}

func (s *pluginStore) bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	rootBkt := tx.Bucket([]byte(pluginsBucket))
	if rootBkt == nil {
		return nil, fmt.Errorf("%w: %s", data_store.ErrUnknownPlugin, s.pluginID)
	}

	pluginBkt := rootBkt.Bucket([]byte(s.pluginID))
	if pluginBkt == nil {
		return nil, fmt.Errorf("%w: %s", data_store.ErrUnknownPlugin, s.pluginID)
	}
	return pluginBkt, nil
}

// ForEach calls forEachFunc for every key of the plugin, in key order.
func (s *pluginStore) ForEach(forEachFunc func(key string, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		pluginBkt, err := s.bucket(tx)
		if err != nil {
			return err
		}

		return pluginBkt.ForEach(func(k []byte, v []byte) error {
			return forEachFunc(string(k), v)
		})
	})
}

// Update stores the value at the provided key
func (s *pluginStore) Update(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pluginBkt, err := s.bucket(tx)
		if err != nil {
			return err
		}

		return pluginBkt.Put([]byte(key), value)
	})
}

func (s *pluginStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pluginBkt, err := s.bucket(tx)
		if err != nil {
			return err
		}

		return pluginBkt.Delete([]byte(key))
	})
}

// GetAndUpdate retrieves a key from the database and passes its value to the provided updateFunc.
// This allows you to transform data atomically.
func (s *pluginStore) GetAndUpdate(key string, updateFunc func([]byte) ([]byte, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pluginBkt, err := s.bucket(tx)
		if err != nil {
			return err
		}

		bKey := []byte(key)
		updateVal, err := updateFunc(copyBytes(pluginBkt.Get(bKey)))
		if err != nil {
			return err
		}

		if updateVal != nil {
			return pluginBkt.Put(bKey, updateVal)
		}
		return nil
	})
}

// Get retrieves a key from the database and passes it to the provided getFunc
func (s *pluginStore) Get(key string, getFunc func([]byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		pluginBkt, err := s.bucket(tx)
		if err != nil {
			return err
		}

		return getFunc(copyBytes(pluginBkt.Get([]byte(key))))
	})
}

// copyBytes detaches a value from the transaction it was read in.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
