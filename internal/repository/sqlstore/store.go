package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"clanstore/internal/cache"
	"clanstore/internal/repository"
)

// Compile-time contract assertion
var _ repository.Store = (*Store)(nil)

// Options configures a Store
type Options struct {
	Driver string // DriverSQLite (default) or DriverPostgres
	Path   string // SQLite database file
	DSN    string // Postgres connection string

	// Opener replaces the driver-based opener, mainly for fault injection.
	Opener Opener

	Cache      cache.Capacities
	Retry      RetryPolicy
	Logger     *log.Logger
	Registerer prometheus.Registerer
}

// Store is the persistent entity store: repositories for clans, claims,
// members and perms over one database connection, fronted by bounded
// write-through caches, plus the chunk index queries.
type Store struct {
	dialect dialect
	conn    *Manager
	cache   *cache.Set
	metrics *Metrics
	logger  *log.Logger

	mu          sync.Mutex
	initialized bool
}

// New builds a store without connecting. Call Init before use.
func New(opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	open := opts.Opener
	if open == nil {
		open, err = defaultOpener(d, opts)
		if err != nil {
			return nil, err
		}
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	metrics := NewMetrics(opts.Registerer)
	caches, err := cache.NewSet(opts.Cache, metrics)
	if err != nil {
		return nil, err
	}

	return &Store{
		dialect: d,
		conn:    NewManager(open, d, retry, opts.Logger, metrics),
		cache:   caches,
		metrics: metrics,
		logger:  opts.Logger,
	}, nil
}

// Open builds a store and initializes it
func Open(ctx context.Context, opts Options) (*Store, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultOpener(d dialect, opts Options) (Opener, error) {
	switch d.name() {
	case DriverPostgres:
		dsn := strings.TrimSpace(opts.DSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		return func(context.Context) (*sql.DB, error) {
			return sql.Open("pgx", dsn)
		}, nil
	default:
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if path != ":memory:" {
			path = filepath.Clean(path)
		}
		return func(context.Context) (*sql.DB, error) {
			if path != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
					return nil, fmt.Errorf("create database dir: %w", err)
				}
			}
			return sql.Open("sqlite", path)
		}, nil
	}
}

// Init connects and creates the schema inside a single transaction. A second
// call on an initialized store is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := s.conn.Start(ctx); err != nil {
		return err
	}
	err := s.conn.Tx(ctx, "init schema", func(ctx context.Context, q session) error {
		return createSchema(ctx, q)
	})
	if err != nil {
		s.conn.Stop()
		return err
	}
	s.initialized = true
	s.logf("Store initialized (%s)", s.dialect.name())
	return nil
}

// Close kills the connection and empties the cache. Init re-establishes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.Stop()
	s.cache.Purge()
	s.initialized = false
	return nil
}

// Kill force-closes the connection without closing the store. The next call
// reconnects.
func (s *Store) Kill() {
	s.conn.Kill()
}

// Conn exposes the connection manager
func (s *Store) Conn() *Manager {
	return s.conn
}

// Metrics exposes the store's collectors
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// Purge drops and recreates every table and empties the cache. It destroys
// all data and exists for development resets only.
func (s *Store) Purge(ctx context.Context) error {
	err := s.conn.Tx(ctx, "purge", func(ctx context.Context, q session) error {
		for _, stmt := range dropStatements() {
			if _, err := q.exec(ctx, stmt); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
		if err := createSchema(ctx, q); err != nil {
			return err
		}
		q.onSuccess(s.cache.Purge)
		return nil
	})
	if err != nil {
		return err
	}
	s.logf("Store purged")
	return nil
}

func createSchema(ctx context.Context, q session) error {
	for _, stmt := range q.d.schema() {
		if _, err := q.exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
