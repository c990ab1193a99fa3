package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/irc"
)

const schema = `
CREATE TABLE IF NOT EXISTS plugins (
	plugin TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS kv (
	plugin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  BLOB,
	PRIMARY KEY (plugin, key)
);
CREATE TABLE IF NOT EXISTS nick_values (
	nick  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT,
	PRIMARY KEY (nick, key)
);
CREATE TABLE IF NOT EXISTS channel_values (
	channel TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT,
	PRIMARY KEY (channel, key)
);
CREATE TABLE IF NOT EXISTS plugin_values (
	plugin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT,
	PRIMARY KEY (plugin, key)
);
`

type Config struct {
	DbPath      string
	BusyTimeout time.Duration
	CaseMapping irc.CaseMapping
}

func NewConfig(settings *config.Settings) (Config, error) {
	dbPath := settings.Core().DBFilename
	if dbPath == "" {
		return Config{}, fmt.Errorf("core.db_filename must be set")
	}

	return Config{
		DbPath:      dbPath,
		BusyTimeout: 5 * time.Second,
		CaseMapping: irc.RFC1459,
	}, nil
}

type SQLiteStore struct {
	c  Config
	l  *zap.Logger
	db *sql.DB
}

func New(c Config, l *zap.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{
		c: c,
		l: l.Named("sqlite-datastore"),
	}

	if c.DbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.DbPath), 0700); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		c.DbPath, c.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	// A single connection serializes writers and keeps GetAndUpdate atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema failed: %w", err)
	}
	s.db = db

	s.l.Info("opened database", zap.String("path", c.DbPath))
	return s, nil
}

func (s *SQLiteStore) InitPluginBucket(pluginID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO plugins (plugin) VALUES (?)`, pluginID)
	return err
}

func (s *SQLiteStore) GetStore(pluginID string) data_store.PluginStore {
	return &pluginStore{
		pluginID: pluginID,
		db:       s.db,
	}
}

type valueTable struct {
	name  string
	owner string
}

var (
	nickTable    = valueTable{name: "nick_values", owner: "nick"}
	channelTable = valueTable{name: "channel_values", owner: "channel"}
	pluginTable  = valueTable{name: "plugin_values", owner: "plugin"}
)

func (s *SQLiteStore) setValue(t valueTable, owner, key string, value interface{}) error {
	raw, err := data_store.Encode(value)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s, key, value) VALUES (?, ?, ?)
		ON CONFLICT (%s, key) DO UPDATE SET value = excluded.value`, t.name, t.owner, t.owner)
	_, err = s.db.Exec(q, owner, key, string(raw))
	return err
}

func (s *SQLiteStore) getValue(t valueTable, owner, key string, value interface{}) (bool, error) {
	q := fmt.Sprintf(`SELECT value FROM %s WHERE %s = ? AND key = ?`, t.name, t.owner)

	var raw string
	err := s.db.QueryRow(q, owner, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return data_store.Decode([]byte(raw), value)
}

func (s *SQLiteStore) deleteValue(t valueTable, owner, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND key = ?`, t.name, t.owner)
	_, err := s.db.Exec(q, owner, key)
	return err
}

func (s *SQLiteStore) identifier(name string) string {
	return data_store.Identifier(s.c.CaseMapping, name)
}

func (s *SQLiteStore) SetNickValue(nick, key string, value interface{}) error {
	return s.setValue(nickTable, s.identifier(nick), key, value)
}

func (s *SQLiteStore) GetNickValue(nick, key string, value interface{}) (bool, error) {
	return s.getValue(nickTable, s.identifier(nick), key, value)
}

func (s *SQLiteStore) DeleteNickValue(nick, key string) error {
	return s.deleteValue(nickTable, s.identifier(nick), key)
}

func (s *SQLiteStore) SetChannelValue(channel, key string, value interface{}) error {
	return s.setValue(channelTable, s.identifier(channel), key, value)
}

func (s *SQLiteStore) GetChannelValue(channel, key string, value interface{}) (bool, error) {
	return s.getValue(channelTable, s.identifier(channel), key, value)
}

func (s *SQLiteStore) DeleteChannelValue(channel, key string) error {
	return s.deleteValue(channelTable, s.identifier(channel), key)
}

func (s *SQLiteStore) SetPluginValue(plugin, key string, value interface{}) error {
	return s.setValue(pluginTable, plugin, key, value)
}

func (s *SQLiteStore) GetPluginValue(plugin, key string, value interface{}) (bool, error) {
	return s.getValue(pluginTable, plugin, key, value)
}

func (s *SQLiteStore) DeletePluginValue(plugin, key string) error {
	return s.deleteValue(pluginTable, plugin, key)
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.l.Error("error closing database", zap.Error(err))
		}
		s.db = nil
	}
}

type pluginStore struct {
	pluginID string
	db       *sql.DB
}

func (p *pluginStore) Get(key string, getFunc func([]byte) error) error {
	var raw []byte
	err := p.db.QueryRow(`SELECT value FROM kv WHERE plugin = ? AND key = ?`, p.pluginID, key).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return getFunc(raw)
}

func (p *pluginStore) Update(key string, value []byte) error {
	_, err := p.db.Exec(`INSERT INTO kv (plugin, key, value) VALUES (?, ?, ?)
		ON CONFLICT (plugin, key) DO UPDATE SET value = excluded.value`, p.pluginID, key, value)
	return err
}

func (p *pluginStore) GetAndUpdate(key string, updateFunc func([]byte) ([]byte, error)) error {
	tx, err := p.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var raw []byte
	err = tx.QueryRow(`SELECT value FROM kv WHERE plugin = ? AND key = ?`, p.pluginID, key).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	updated, err := updateFunc(raw)
	if err != nil {
		return err
	}
	if updated != nil {
		_, err = tx.Exec(`INSERT INTO kv (plugin, key, value) VALUES (?, ?, ?)
			ON CONFLICT (plugin, key) DO UPDATE SET value = excluded.value`, p.pluginID, key, updated)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *pluginStore) Delete(key string) error {
	_, err := p.db.Exec(`DELETE FROM kv WHERE plugin = ? AND key = ?`, p.pluginID, key)
	return err
}

func (p *pluginStore) ForEach(forEachFunc func(key string, value []byte) error) error {
	rows, err := p.db.Query(`SELECT key, value FROM kv WHERE plugin = ? ORDER BY key`, p.pluginID)
	if err != nil {
		return err
	}

	type entry struct {
		key   string
		value []byte
	}
	entries := []entry{}
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, e)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// The rows are drained first so forEachFunc may use the store on the single connection.
	for _, e := range entries {
		if err := forEachFunc(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}
