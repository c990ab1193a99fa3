package data_store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jirwin/quirc/pkg/irc"
)

var ErrUnknownPlugin = errors.New("plugin bucket is not initialized")

// PluginStore is the raw key/value storage of one plugin.
type PluginStore interface {
	Get(key string, getFunc func([]byte) error) error
	Update(key string, value []byte) error
	// GetAndUpdate passes the current value (nil when missing) to updateFunc and stores the
	// result atomically. A nil result leaves the value unchanged.
	GetAndUpdate(key string, updateFunc func([]byte) ([]byte, error)) error
	Delete(key string) error
	ForEach(forEachFunc func(key string, value []byte) error) error
}

// DataStore persists plugin storage and JSON values attached to nicks, channels and plugins.
type DataStore interface {
	InitPluginBucket(pluginID string) error
	GetStore(pluginID string) PluginStore

	SetNickValue(nick, key string, value interface{}) error
	GetNickValue(nick, key string, value interface{}) (bool, error)
	DeleteNickValue(nick, key string) error

	SetChannelValue(channel, key string, value interface{}) error
	GetChannelValue(channel, key string, value interface{}) (bool, error)
	DeleteChannelValue(channel, key string) error

	SetPluginValue(plugin, key string, value interface{}) error
	GetPluginValue(plugin, key string, value interface{}) (bool, error)
	DeletePluginValue(plugin, key string) error

	Close()
}

// Identifier lowers a nick or channel name to the key used by the stores.
func Identifier(cm irc.CaseMapping, name string) string {
	return cm.Lower(name)
}

// Encode serializes a value for storage.
func Encode(value interface{}) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("unable to encode value: %w", err)
	}
	return b, nil
}

// Decode reads a stored value into out. A nil raw value reports false.
func Decode(raw []byte, out interface{}) (bool, error) {
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unable to decode value: %w", err)
	}
	return true, nil
}
