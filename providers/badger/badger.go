// Package badgerstore keeps serialized graphs under keys of a BadgerDB
// database.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/hengadev/miscutils"
)

// Config selects where the database lives.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in memory; nothing survives Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's own log lines. Nil silences them.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the database cfg describes.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for a persistent database", miscutils.ErrInvalidConfiguration)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create database directory %s: %w", miscutils.ErrStorageUnavailable, cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database: %w", miscutils.ErrStorageUnavailable, err)
	}
	return db, nil
}

// Store is a miscutils.Store on one key. Several stores may share a DB.
type Store struct {
	db  *badger.DB
	key []byte
}

// New returns a store on key in db.
func New(db *badger.DB, key string) (*Store, error) {
	if db == nil {
		return nil, miscutils.ErrNilStore
	}
	if key == "" {
		return nil, fmt.Errorf("%w: key cannot be empty", miscutils.ErrInvalidConfiguration)
	}
	return &Store{db: db, key: []byte(key)}, nil
}

// Key returns the key the store uses.
func (s *Store) Key() string { return string(s.key) }

// ReadBytes returns the value under the key, or nil when the key is absent.
func (s *Store) ReadBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: badger get %q: %w", miscutils.ErrStorageUnavailable, s.key, err)
	}
	return data, nil
}

// WriteBytes replaces the value under the key in a single transaction.
func (s *Store) WriteBytes(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: badger set %q: %w", miscutils.ErrStorageUnavailable, s.key, err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key)
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete %q: %w", miscutils.ErrStorageUnavailable, s.key, err)
	}
	return nil
}
