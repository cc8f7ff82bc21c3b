package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Opener opens the database handle. The manager caps the handle at a single
// connection and pins it.
type Opener func(ctx context.Context) (*sql.DB, error)

// RetryPolicy controls how a lost connection is re-established
type RetryPolicy struct {
	// MaxAttempts is the number of connect attempts made before giving up.
	MaxAttempts int
	// Backoff is the wait before the second attempt, growing exponentially.
	// Zero retries immediately.
	Backoff time.Duration
}

// DefaultRetryPolicy makes exactly one reconnect attempt
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.MaxInterval = 32 * p.Backoff
	return b
}

// querier is satisfied by both *sql.Conn and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session runs statements on the held connection or transaction, rebinding
// placeholders for the active dialect
type session struct {
	q     querier
	d     dialect
	after *[]func()
}

// onSuccess queues fn to run once the whole call has succeeded, after commit
// and while the connection is still held. Cache writes go through here.
func (s session) onSuccess(fn func()) {
	*s.after = append(*s.after, fn)
}

func (s session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s session) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// Manager owns the single database connection shared by every repository
// call. A call holds the connection for its whole duration, so multi-statement
// sequences never interleave.
type Manager struct {
	open    Opener
	dialect dialect
	policy  RetryPolicy
	logger  *log.Logger
	metrics *Metrics

	mu        sync.Mutex
	started   bool
	connected bool // a connection has been made at least once since start
	db        *sql.DB
	conn      *sql.Conn
	tx        *sql.Tx
	dials     int
}

// NewManager creates a connection manager. Nothing is opened until Start.
func NewManager(open Opener, d dialect, policy RetryPolicy, logger *log.Logger, metrics *Metrics) *Manager {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		open:    open,
		dialect: d,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
	}
}

// Start opens the first connection. Calling Start on a started manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if _, err := m.reconnectLocked(ctx); err != nil {
		m.killLocked()
		return m.fatalLocked("connect", err)
	}
	m.started = true
	return nil
}

// Stop kills the connection and returns the manager to its unstarted state
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.killLocked()
	m.started = false
	m.connected = false
}

// Kill force-closes the connection. A pending transaction is committed first,
// ignoring errors. The next call reconnects.
func (m *Manager) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killLocked()
}

// Connected reports whether a connection is currently held
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Dials returns how many connections have been opened since creation
func (m *Manager) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// Do runs fn with exclusive use of a live connection. Any error from fn other
// than ErrInvalid kills the connection and comes back as a *FatalError.
func (m *Manager) Do(ctx context.Context, op string, fn func(ctx context.Context, s session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.metrics.observe(op, time.Now())

	conn, err := m.acquireLocked(ctx)
	if err != nil {
		return m.fatalLocked(op, err)
	}
	var after []func()
	if err := fn(ctx, session{q: conn, d: m.dialect, after: &after}); err != nil {
		if errors.Is(err, ErrInvalid) {
			return err
		}
		return m.fatalLocked(op, err)
	}
	for _, hook := range after {
		hook()
	}
	return nil
}

// Tx runs fn inside one transaction on the held connection. A failing fn rolls
// the transaction back; a fatal failure also kills the connection.
func (m *Manager) Tx(ctx context.Context, op string, fn func(ctx context.Context, s session) error) error {
	return m.Do(ctx, op, func(ctx context.Context, s session) error {
		tx, err := m.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		m.tx = tx

		if err := fn(ctx, session{q: tx, d: m.dialect, after: s.after}); err != nil {
			m.tx = nil
			_ = tx.Rollback()
			return err
		}

		m.tx = nil
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// acquireLocked returns the held connection if it still answers a ping,
// otherwise reconnects according to the retry policy
func (m *Manager) acquireLocked(ctx context.Context) (*sql.Conn, error) {
	if !m.started {
		return nil, errNotStarted
	}
	if m.conn != nil {
		err := m.conn.PingContext(ctx)
		if err == nil {
			return m.conn, nil
		}
		m.logf("Database connection lost: %v", err)
		m.killLocked()
	}
	return m.reconnectLocked(ctx)
}

func (m *Manager) reconnectLocked(ctx context.Context) (*sql.Conn, error) {
	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*sql.Conn, error) {
		attempt++
		return m.dialLocked(ctx)
	},
		backoff.WithBackOff(m.policy.backOff()),
		backoff.WithMaxTries(uint(m.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			m.logf("Database connect attempt %d failed, retrying in %s: %v", attempt, wait, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect after %d attempt(s): %w", attempt, err)
	}

	if m.connected {
		m.metrics.reconnects.Inc()
		m.logf("Database connection re-established")
	}
	m.connected = true
	return conn, nil
}

func (m *Manager) dialLocked(ctx context.Context) (*sql.Conn, error) {
	db, err := m.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := m.dialect.initConn(ctx, conn); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	m.db, m.conn = db, conn
	m.dials++
	return conn, nil
}

func (m *Manager) killLocked() {
	if m.tx != nil {
		_ = m.tx.Commit()
		m.tx = nil
	}
	if m.conn == nil && m.db == nil {
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	m.metrics.kills.Inc()
}

func (m *Manager) fatalLocked(op string, err error) error {
	m.killLocked()
	m.metrics.fatal.WithLabelValues(op).Inc()
	m.logf("Fatal database error during %s: %v", op, err)
	return &FatalError{Op: op, Cause: err}
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
