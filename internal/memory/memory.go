// Package memory gives skills a persistent key/value store backed by zero
// or more databases, with an in-process map as the fallback.
package memory

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/errors"
)

// Database is a pluggable memory backend. Implementations are connected by
// the supervisor during startup and disconnected on drain.
type Database interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Put(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, error)
	Delete(ctx context.Context, key string) error
}

// Memory is the facade skills read and write through. Gets consult the
// databases in order and the first hit wins; Puts write through to every
// database. Without databases an in-process map serves both.
type Memory struct {
	mu        sync.RWMutex
	local     map[string]any
	databases []Database
	logger    zerolog.Logger
}

// New creates a Memory over the given databases.
func New(logger zerolog.Logger, dbs ...Database) *Memory {
	return &Memory{
		local:     make(map[string]any),
		databases: dbs,
		logger:    logger.With().Str("component", "memory").Logger(),
	}
}

// Databases returns the configured backends.
func (m *Memory) Databases() []Database { return m.databases }

// SetDatabases replaces the backends. Only the supervisor calls this, and
// only while the bot is loading.
func (m *Memory) SetDatabases(dbs ...Database) {
	m.mu.Lock()
	m.databases = dbs
	m.mu.Unlock()
}

// Put stores value under key in every database, or locally when none are
// configured.
func (m *Memory) Put(ctx context.Context, key string, value any) error {
	if len(m.databases) == 0 {
		m.mu.Lock()
		m.local[key] = value
		m.mu.Unlock()
		return nil
	}
	for _, db := range m.databases {
		if err := db.Put(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value under key, consulting databases in order.
func (m *Memory) Get(ctx context.Context, key string) (any, error) {
	for _, db := range m.databases {
		val, err := db.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		if !errors.IsRetryable(err) && !stderrors.Is(err, errors.ErrNotFound) {
			m.logger.Warn().Err(err).Str("db", db.Name()).Str("key", key).Msg("memory get failed")
		}
	}
	m.mu.RLock()
	val, ok := m.local[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.ErrNotFound
	}
	return val, nil
}

// Delete removes key everywhere.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.local, key)
	m.mu.Unlock()
	for _, db := range m.databases {
		if err := db.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
