// Package database owns the bounded pool of store connections and the schema bootstrap.
//
// A Pool wraps a *sql.DB and gates it with a FIFO semaphore sized to the connection
// ceiling, so Acquire blocks once every connection is borrowed and Close can wake blocked
// callers with ErrPoolClosed. Callers should prefer WithConn, which releases the borrow on
// every exit path.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"product-service/internal/apperr"
	"product-service/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/semaphore"
)

const (
	// DriverPostgres is lib/pq.
	DriverPostgres = "postgres"
	// DriverPgx is the database/sql adapter of pgx.
	DriverPgx = "pgx"

	pingTimeout = 5 * time.Second
)

type Options struct {
	DriverName string
	DSN        string
	// MaxConns is the connection ceiling; values below 1 are treated as 1.
	MaxConns int
	// AcquireTimeout bounds the wait for a free connection. Zero waits for the caller's context.
	AcquireTimeout time.Duration
	// ConnectRetries is the number of extra startup pings after the first one fails.
	ConnectRetries int
	ConnectBackoff time.Duration
}

func (o Options) maxConns() int {
	if o.MaxConns < 1 {
		return 1
	}
	return o.MaxConns
}

type Stats struct {
	Max      int
	InUse    int64
	Acquired int64
	Released int64
}

type Pool struct {
	db   *sqlx.DB
	sem  *semaphore.Weighted
	opts Options

	closed      atomic.Bool
	closing     context.Context
	cancelClose context.CancelFunc
	closeOnce   sync.Once
	closeErr    error

	acquired atomic.Int64
	released atomic.Int64
}

// Open connects to the store and verifies it answers. The startup ping is retried
// ConnectRetries times; when the store stays unreachable the error wraps
// apperr.ErrBackendUnavailable and nothing is left open.
func Open(ctx context.Context, opts Options) (*Pool, error) {
	if opts.DSN == "" {
		return nil, errors.New("database: missing DATABASE_URL")
	}
	if opts.DriverName == "" {
		opts.DriverName = DriverPostgres
	}

	db, err := sql.Open(opts.DriverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.DriverName, err)
	}

	p := New(db, opts.DriverName, opts)
	if err := p.connect(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}

	logger.Info(ctx, "Connected to the product store",
		slog.String("driver", opts.DriverName),
		slog.Int("max_conns", p.opts.maxConns()),
	)
	return p, nil
}

// New wraps an already opened handle. The handle's own limits are aligned with the pool ceiling.
func New(db *sql.DB, driverName string, opts Options) *Pool {
	maxConns := opts.maxConns()
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	closing, cancel := context.WithCancel(context.Background())
	return &Pool{
		db:          sqlx.NewDb(db, driverName),
		sem:         semaphore.NewWeighted(int64(maxConns)),
		opts:        opts,
		closing:     closing,
		cancelClose: cancel,
	}
}

func (p *Pool) connect(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= p.opts.ConnectRetries; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "Product store not reachable, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.opts.ConnectBackoff):
			}
		}
		if err = p.Ping(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %w", apperr.ErrBackendUnavailable, err)
}

// Ping checks the store answers within a short deadline.
func (p *Pool) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.db.PingContext(pingCtx)
}

// Acquire borrows one connection, waiting while the pool is at its ceiling. The borrow is
// exclusive and must be handed back with Release.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	if p.closed.Load() {
		return nil, apperr.ErrPoolClosed
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.opts.AcquireTimeout > 0 {
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeout(waitCtx, p.opts.AcquireTimeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(p.closing, cancel)
	defer stop()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		switch {
		case p.closed.Load():
			return nil, apperr.ErrPoolClosed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: no connection within %s", apperr.ErrPoolExhausted, p.opts.AcquireTimeout)
		}
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, apperr.ErrPoolClosed
	}

	conn, err := p.db.Connx(ctx)
	if err != nil {
		p.sem.Release(1)
		if p.closed.Load() {
			return nil, apperr.ErrPoolClosed
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrBackendUnavailable, err)
	}

	p.acquired.Add(1)
	return conn, nil
}

// Release hands a borrowed connection back and wakes at most one waiter. Releasing nil is a
// no-op; releasing the same connection twice returns sql.ErrConnDone and frees nothing.
func (p *Pool) Release(conn *sqlx.Conn) error {
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if errors.Is(err, sql.ErrConnDone) {
		return err
	}
	p.released.Add(1)
	p.sem.Release(1)
	return err
}

// WithConn runs fn on a borrowed connection and releases it afterwards, whether fn returns
// an error, panics or outlives ctx.
func (p *Pool) WithConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Release(conn); err != nil {
			logger.Warn(ctx, "Release of a store connection failed", slog.String("error", err.Error()))
		}
	}()
	return fn(conn)
}

// Close stops handing out connections, fails blocked Acquire calls with ErrPoolClosed and
// closes the underlying handle. It is safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.cancelClose()
		p.closeErr = p.db.Close()
	})
	return p.closeErr
}

func (p *Pool) Stats() Stats {
	acquired, released := p.acquired.Load(), p.released.Load()
	return Stats{
		Max:      p.opts.maxConns(),
		InUse:    acquired - released,
		Acquired: acquired,
		Released: released,
	}
}
