package pool_test

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/pool"
)

type fakeConn struct {
	id      int
	closed  atomic.Bool
	pingErr atomic.Value // error
}

func (f *fakeConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeConn) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (f *fakeConn) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	return nil, nil
}

func (f *fakeConn) PingContext(context.Context) error {
	if err, ok := f.pingErr.Load().(error); ok {
		return err
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeDialer struct {
	dials    atomic.Int64
	failures atomic.Int64 // fail the first N dials
	last     atomic.Value // *fakeConn
}

func (d *fakeDialer) Dial(context.Context) (pool.DriverConn, error) {
	n := d.dials.Add(1)
	if n <= d.failures.Load() {
		return nil, errors.New("dial refused")
	}
	c := &fakeConn{id: int(n)}
	d.last.Store(c)
	return c, nil
}

func newPool(t *testing.T, dialer pool.Dialer, cfg pool.Config) *pool.Pool {
	t.Helper()
	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	p, err := pool.New(d, dialer, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestConfigNormalize(t *testing.T) {
	cfg := pool.Config{}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, pool.DefaultMaxConns, cfg.MaxConns)
	assert.Equal(t, pool.DefaultAcquireTimeout, cfg.AcquireTimeout)

	bad := pool.Config{MinConns: 5, MaxConns: 2}
	assert.Error(t, bad.Normalize())
}

func TestAcquireBound(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 2, AcquireTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)

	// The third caller waits and times out at the bound.
	start := time.Now()
	_, err = p.Acquire(ctx)
	require.True(t, tessera.IsPoolExhausted(err), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, uint64(1), p.Stats().Exhausted)

	// A release unblocks the next acquire.
	c1.Release()
	c3, err := p.Acquire(ctx)
	require.NoError(t, err)

	st := p.Status()
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 0, st.Idle)

	c2.Release()
	c3.Release()
}

func TestReuseAfterRelease(t *testing.T) {
	dialer := &fakeDialer{}
	p := newPool(t, dialer, pool.Config{MaxConns: 2})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	raw := c1.Raw()
	c1.Release()

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, raw, c2.Raw())
	assert.Equal(t, int64(1), dialer.dials.Load())
	assert.Equal(t, uint64(1), p.Stats().Hits)
	c2.Release()
}

func TestDiscardDialsFresh(t *testing.T) {
	dialer := &fakeDialer{}
	p := newPool(t, dialer, pool.Config{MaxConns: 2})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	raw := c1.Raw().(*fakeConn)
	c1.Discard()
	assert.True(t, raw.closed.Load())

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, raw, c2.Raw())
	assert.Equal(t, int64(2), dialer.dials.Load())
	assert.Equal(t, uint64(1), p.Stats().Discards)
	c2.Release()
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 1})
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Release()
	c.Release()
	c.Discard()
	assert.Equal(t, 1, p.Status().Idle)
}

func TestCallerCancellation(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 1, AcquireTimeout: time.Minute})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer c.Release()

	cancelCtx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = p.Acquire(cancelCtx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, tessera.IsPoolExhausted(err))
}

func TestDialRetryAndFailure(t *testing.T) {
	t.Run("OneTransientFailure", func(t *testing.T) {
		dialer := &fakeDialer{}
		dialer.failures.Store(1)
		p := newPool(t, dialer, pool.Config{MaxConns: 1})
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.Stats().DialFailures)
		c.Release()
	})

	t.Run("PersistentFailure", func(t *testing.T) {
		dialer := &fakeDialer{}
		dialer.failures.Store(100)
		p := newPool(t, dialer, pool.Config{MaxConns: 1})
		_, err := p.Acquire(context.Background())
		require.True(t, tessera.IsConnectionError(err))

		// The permit was returned; a later acquire can still succeed.
		dialer.failures.Store(0)
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		c.Release()
	})
}

func TestMinConnsWarmUp(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MinConns: 2, MaxConns: 4})
	assert.Eventually(t, func() bool {
		return p.Status().Idle == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHealthCheckOnCheckout(t *testing.T) {
	dialer := &fakeDialer{}
	p := newPool(t, dialer, pool.Config{MaxConns: 2, HealthCheckInterval: time.Millisecond})
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	raw := c1.Raw().(*fakeConn)
	c1.Release()

	raw.pingErr.Store(errors.New("gone away"))
	time.Sleep(5 * time.Millisecond)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, raw, c2.Raw())
	assert.True(t, raw.closed.Load())
	assert.Equal(t, uint64(1), p.Stats().HealthFailures)
	c2.Release()
}

func TestClose(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 2})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	raw := c.Raw().(*fakeConn)

	require.NoError(t, p.Close())
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, pool.ErrClosed)

	// Releasing after close closes the connection instead of pooling it.
	c.Release()
	assert.True(t, raw.closed.Load())
	assert.Equal(t, 0, p.Status().Idle)
}

func TestCheckHealth(t *testing.T) {
	p := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 1})
	require.NoError(t, p.CheckHealth(context.Background()))
	assert.Equal(t, 1, p.Status().Idle)
}

func TestManager(t *testing.T) {
	m := pool.NewManager()

	primary := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 2})
	replica := newPool(t, &fakeDialer{}, pool.Config{MaxConns: 2})
	require.NoError(t, m.Add("primary", primary))
	require.NoError(t, m.Add("replica", replica))

	err := m.Add("primary", replica)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	got, ok := m.Get("replica")
	require.True(t, ok)
	assert.Same(t, replica, got)
	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"primary", "replica"}, m.Names())

	require.NoError(t, m.Close())
	assert.Empty(t, m.Names())
	_, err = primary.Acquire(context.Background())
	assert.ErrorIs(t, err, pool.ErrClosed)
}
