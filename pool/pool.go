package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
)

// ErrClosed is returned when acquiring from a closed pool.
var ErrClosed = errors.New("tessera: pool is closed")

// DriverConn is the slice of a database connection the pool manages.
// *database/sql.Conn implements it.
type DriverConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Dialer produces new driver connections.
type Dialer interface {
	Dial(ctx context.Context) (DriverConn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (DriverConn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context) (DriverConn, error) { return f(ctx) }

// DBDialer checks dedicated connections out of a *sql.DB.
type DBDialer struct {
	DB *sql.DB
}

// Dial returns a dedicated connection.
func (d DBDialer) Dial(ctx context.Context) (DriverConn, error) {
	return d.DB.Conn(ctx)
}

// Pool is a bounded connection pool with FIFO waiters. The semaphore bounds
// checkouts; connections are only dialed while a permit is held, so the
// total never exceeds MaxConns.
type Pool struct {
	d      dialect.Dialect
	dialer Dialer
	cfg    Config
	sem    *semaphore.Weighted
	log    *slog.Logger

	mu     sync.Mutex
	idle   []*Conn
	active int
	closed bool

	done  chan struct{}
	stats counters
}

// New builds a pool over the given dialer. The reaper goroutine starts
// immediately and warms MinConns connections in the background.
func New(d dialect.Dialect, dialer Dialer, cfg Config) (*Pool, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	p := &Pool{
		d:      d,
		dialer: dialer,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConns)),
		log:    cfg.Logger,
		done:   make(chan struct{}),
	}
	go p.topUp()
	go p.reap()
	return p, nil
}

// Open connects to a database by DSN and wraps it in a pool. The matching
// driver must be registered: lib/pq for postgres, go-sql-driver for mysql,
// modernc.org/sqlite for sqlite.
func Open(dialectName, dsn string, cfg Config) (*Pool, error) {
	d, err := dialect.Get(dialectName)
	if err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName(dialectName), dsn)
	if err != nil {
		return nil, tessera.NewConnectionError("open", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	return New(d, DBDialer{DB: db}, cfg)
}

func driverName(dialectName string) string {
	// dialect names match the registered driver names.
	return dialectName
}

// Dialect returns the pool's dialect.
func (p *Pool) Dialect() dialect.Dialect { return p.d }

// Acquire returns a connection, waiting FIFO behind other callers when the
// pool is at its bound. It fails with a PoolExhaustedError when the acquire
// timeout elapses first, and with the context's error when the caller's
// context ends the wait.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	p.stats.waiting.Add(1)
	acquireCtx := ctx
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}
	err := p.sem.Acquire(acquireCtx, 1)
	p.stats.waiting.Add(-1)
	if err != nil {
		if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			p.stats.exhausted.Add(1)
			return nil, tessera.NewPoolExhaustedError(p.cfg.AcquireTimeout, int(p.stats.waiting.Load()))
		}
		return nil, err
	}
	if p.isClosed() {
		p.sem.Release(1)
		return nil, ErrClosed
	}

	now := time.Now()
	for {
		c := p.popIdle()
		if c == nil {
			break
		}
		if now.Sub(c.createdAt) > p.cfg.MaxLifetime {
			c.dc.Close()
			p.stats.reaped.Add(1)
			continue
		}
		// Ping stale connections before handing them out.
		if now.Sub(c.lastUsed) > p.cfg.HealthCheckInterval {
			if err := c.dc.PingContext(ctx); err != nil {
				c.dc.Close()
				p.stats.healthFailures.Add(1)
				continue
			}
		}
		c.released = false
		p.markActive()
		p.stats.hits.Add(1)
		return c, nil
	}

	c, err := p.dial(ctx)
	if err != nil {
		// One immediate retry covers transient dial failures.
		c, err = p.dial(ctx)
		if err != nil {
			p.sem.Release(1)
			return nil, tessera.NewConnectionError("dial", err)
		}
	}
	p.markActive()
	return c, nil
}

// CheckHealth acquires a connection, pings it and returns it.
func (p *Pool) CheckHealth(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	err = c.PingContext(ctx)
	if err != nil {
		c.Discard()
		return err
	}
	c.Release()
	return nil
}

// Status is a point-in-time view of the pool gauges.
type Status struct {
	Active  int // connections checked out
	Idle    int // connections parked in the pool
	Waiting int // callers blocked in Acquire
	Size    int // Active + Idle
}

// Status returns the current gauges.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Active:  p.active,
		Idle:    len(p.idle),
		Waiting: int(p.stats.waiting.Load()),
		Size:    p.active + len(p.idle),
	}
}

// Close shuts the pool. Idle connections close immediately; checked-out
// connections close when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	close(p.done)
	for _, c := range idle {
		c.dc.Close()
	}
	if p.log != nil {
		p.log.Debug("pool closed", "closed_idle", len(idle))
	}
	return nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) markActive() {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
}

func (p *Pool) popIdle() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	c := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return c
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	dc, err := p.dialer.Dial(ctx)
	if err != nil {
		p.stats.dialFailures.Add(1)
		return nil, err
	}
	p.stats.dials.Add(1)
	now := time.Now()
	return &Conn{pool: p, dc: dc, createdAt: now, lastUsed: now}, nil
}

// reap closes idle connections past their idle timeout or lifetime and
// keeps MinConns warm.
func (p *Pool) reap() {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.reapOnce(time.Now())
			p.topUp()
		}
	}
}

func (p *Pool) reapOnce(now time.Time) {
	p.mu.Lock()
	var keep, drop []*Conn
	total := p.active + len(p.idle)
	for _, c := range p.idle {
		expired := now.Sub(c.createdAt) > p.cfg.MaxLifetime
		idled := now.Sub(c.lastUsed) > p.cfg.IdleTimeout
		if expired || (idled && total > p.cfg.MinConns) {
			drop = append(drop, c)
			total--
			continue
		}
		keep = append(keep, c)
	}
	p.idle = keep
	p.mu.Unlock()
	for _, c := range drop {
		c.dc.Close()
		p.stats.reaped.Add(1)
	}
	if len(drop) > 0 && p.log != nil {
		p.log.Debug("reaped connections", "count", len(drop))
	}
}

// topUp dials until MinConns connections exist. Best effort: a dial
// failure ends the round and the next tick retries.
func (p *Pool) topUp() {
	for {
		p.mu.Lock()
		if p.closed || p.active+len(p.idle) >= p.cfg.MinConns {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		c, err := p.dial(ctx)
		cancel()
		if err != nil {
			if p.log != nil {
				p.log.Warn("pool warm-up dial failed", "error", err)
			}
			return
		}
		c.released = true
		p.mu.Lock()
		if p.closed || p.active+len(p.idle) >= p.cfg.MaxConns {
			p.mu.Unlock()
			c.dc.Close()
			return
		}
		p.idle = append(p.idle, c)
		p.mu.Unlock()
	}
}

// Conn is a checked-out connection. It is not safe for concurrent use and
// must be returned exactly once, with Release or Discard.
type Conn struct {
	pool      *Pool
	dc        DriverConn
	createdAt time.Time
	lastUsed  time.Time
	released  bool
}

// ExecContext executes a statement. Driver errors come back classified.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.lastUsed = time.Now()
	res, err := c.dc.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, c.pool.d.ClassifyError(err)
	}
	return res, nil
}

// QueryContext runs a query. Driver errors come back classified.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.lastUsed = time.Now()
	rows, err := c.dc.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.pool.d.ClassifyError(err)
	}
	return rows, nil
}

// QueryRowContext runs a single-row query.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.lastUsed = time.Now()
	return c.dc.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on this connection.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	c.lastUsed = time.Now()
	tx, err := c.dc.BeginTx(ctx, opts)
	if err != nil {
		return nil, c.pool.d.ClassifyError(err)
	}
	return tx, nil
}

// PingContext checks the connection.
func (c *Conn) PingContext(ctx context.Context) error {
	c.lastUsed = time.Now()
	if err := c.dc.PingContext(ctx); err != nil {
		return tessera.NewConnectionError("ping", err)
	}
	return nil
}

// Release returns a healthy connection to the pool.
func (c *Conn) Release() {
	if c.released {
		return
	}
	c.released = true
	c.lastUsed = time.Now()
	p := c.pool
	p.mu.Lock()
	p.active--
	if p.closed {
		p.mu.Unlock()
		c.dc.Close()
		p.sem.Release(1)
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Discard closes the connection instead of returning it. Use it after
// protocol-level failures or cancellations mid-query; constraint
// violations do not require it.
func (c *Conn) Discard() {
	if c.released {
		return
	}
	c.released = true
	p := c.pool
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	c.dc.Close()
	p.stats.discards.Add(1)
	p.sem.Release(1)
}

// Raw exposes the underlying driver connection.
func (c *Conn) Raw() DriverConn { return c.dc }

// String implements fmt.Stringer for log output.
func (c *Conn) String() string {
	return fmt.Sprintf("pool.Conn(age=%s)", time.Since(c.createdAt).Round(time.Millisecond))
}
