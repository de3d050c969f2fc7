package syncer

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	BadgerType = "Badger"

	// MappingKey overrides the store key of a mapped element.
	MappingKey = "Key"
)

// BadgerConfig locates the store that persists Badger backed subsystems.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *zerolog.Logger
}

// InMemoryBadgerConfig is the configuration used by tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

// OpenBadger opens the persistence store. The caller owns Close.
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("syncer: badger path is required for a persistent store")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// BadgerBackend persists subsystem regions so values survive restarts.
// Keys are "<subsystem>/<Key mapping or element path>".
type BadgerBackend struct {
	db        *badger.DB
	subsystem string
}

// NewBadgerFactory returns a factory whose backends share db.
func NewBadgerFactory(db *badger.DB) Factory {
	return func(cfg PluginConfig) (Backend, error) {
		if db == nil {
			return nil, errors.New("syncer: badger backend without database")
		}
		return &BadgerBackend{db: db, subsystem: cfg.Subsystem}, nil
	}
}

func (b *BadgerBackend) Type() string {
	return BadgerType
}

func (b *BadgerBackend) DefaultSyncer(t Target) (Syncer, error) {
	return b.syncerFor(t.Path(), t), nil
}

func (b *BadgerBackend) MapElement(t Target) (Syncer, error) {
	raw, _ := t.Mapping()
	key, ok, err := MappingValue(raw, MappingKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path(), err)
	}
	if !ok {
		return nil, nil
	}
	if key == "" {
		key = t.Path()
	}
	return b.syncerFor(key, t), nil
}

func (b *BadgerBackend) syncerFor(key string, t Target) Syncer {
	return &regionSyncer{
		name:   b.subsystem + "/" + key,
		offset: t.Offset(),
		size:   t.Size(),
		push:   b.put,
		pull:   b.get,
	}
}

func (b *BadgerBackend) put(key string, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (b *BadgerBackend) get(key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Close leaves the shared database open; its opener closes it.
func (b *BadgerBackend) Close() error {
	return nil
}
