package boltdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/irc"
)

const (
	nicksBucket        = "nicks"
	channelsBucket     = "channels"
	pluginValuesBucket = "plugin_values"
)

type Config struct {
	DbPath      string
	CaseMapping irc.CaseMapping
}

func NewConfig(settings *config.Settings) (Config, error) {
	c := Config{
		CaseMapping: irc.RFC1459,
	}

	dbPath := settings.Core().DBFilename
	if dbPath == "" {
		return Config{}, fmt.Errorf("core.db_filename must be set")
	}
	c.DbPath = dbPath
	return c, nil
}

type BoltDbStore struct {
	c  Config
	l  *zap.Logger
	db *bolt.DB
}

func (b *BoltDbStore) InitPluginBucket(pluginID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		rootBkt, err := tx.CreateBucketIfNotExists([]byte(pluginsBucket))
		if err != nil {
			return err
		}

		_, err = rootBkt.CreateBucketIfNotExists([]byte(pluginID))
		return err
	})
	if err != nil {
		return err
	}

	return nil
}

func (b *BoltDbStore) GetStore(pluginID string) data_store.PluginStore {
	return &pluginStore{
		pluginID: pluginID,
		db:       b.db,
	}
}

func (b *BoltDbStore) setValue(root, owner, key string, value interface{}) error {
	raw, err := data_store.Encode(value)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		rootBkt, err := tx.CreateBucketIfNotExists([]byte(root))
		if err != nil {
			return err
		}
		ownerBkt, err := rootBkt.CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return err
		}
		return ownerBkt.Put([]byte(key), raw)
	})
}

func (b *BoltDbStore) getValue(root, owner, key string, value interface{}) (bool, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		rootBkt := tx.Bucket([]byte(root))
		if rootBkt == nil {
			return nil
		}
		ownerBkt := rootBkt.Bucket([]byte(owner))
		if ownerBkt == nil {
			return nil
		}
		raw = copyBytes(ownerBkt.Get([]byte(key)))
		return nil
	})
	if err != nil {
		return false, err
	}

	return data_store.Decode(raw, value)
}

func (b *BoltDbStore) deleteValue(root, owner, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		rootBkt := tx.Bucket([]byte(root))
		if rootBkt == nil {
			return nil
		}
		ownerBkt := rootBkt.Bucket([]byte(owner))
		if ownerBkt == nil {
			return nil
		}
		return ownerBkt.Delete([]byte(key))
	})
}

func (b *BoltDbStore) identifier(name string) string {
	return data_store.Identifier(b.c.CaseMapping, name)
}

func (b *BoltDbStore) SetNickValue(nick, key string, value interface{}) error {
	return b.setValue(nicksBucket, b.identifier(nick), key, value)
}

func (b *BoltDbStore) GetNickValue(nick, key string, value interface{}) (bool, error) {
	return b.getValue(nicksBucket, b.identifier(nick), key, value)
}

func (b *BoltDbStore) DeleteNickValue(nick, key string) error {
	return b.deleteValue(nicksBucket, b.identifier(nick), key)
}

func (b *BoltDbStore) SetChannelValue(channel, key string, value interface{}) error {
	return b.setValue(channelsBucket, b.identifier(channel), key, value)
}

func (b *BoltDbStore) GetChannelValue(channel, key string, value interface{}) (bool, error) {
	return b.getValue(channelsBucket, b.identifier(channel), key, value)
}

func (b *BoltDbStore) DeleteChannelValue(channel, key string) error {
	return b.deleteValue(channelsBucket, b.identifier(channel), key)
}

func (b *BoltDbStore) SetPluginValue(plugin, key string, value interface{}) error {
	return b.setValue(pluginValuesBucket, plugin, key, value)
}

func (b *BoltDbStore) GetPluginValue(plugin, key string, value interface{}) (bool, error) {
	return b.getValue(pluginValuesBucket, plugin, key, value)
}

func (b *BoltDbStore) DeletePluginValue(plugin, key string) error {
	return b.deleteValue(pluginValuesBucket, plugin, key)
}

func (b *BoltDbStore) Close() {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.l.Error("error closing database", zap.Error(err))
		}
		b.db = nil
	}
}

func New(c Config, l *zap.Logger) (*BoltDbStore, error) {
	b := &BoltDbStore{
		c: c,
		l: l.Named("boltdb-datastore"),
	}

	if err := os.MkdirAll(filepath.Dir(c.DbPath), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(c.DbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	b.db = db

	b.l.Info("opened database", zap.String("path", c.DbPath))
	return b, nil
}
