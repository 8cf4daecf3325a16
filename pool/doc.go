// Package pool implements the bounded connection pool.
//
// The pool hands out at most MaxConns connections at a time; callers past
// the bound wait in FIFO order and fail with a PoolExhaustedError once the
// acquire timeout elapses. Idle connections are health-checked on checkout
// and reaped in the background when they sit idle too long or outlive the
// configured maximum lifetime.
//
//	p, err := pool.Open(dialect.Postgres, dsn, pool.Config{MaxConns: 8})
//	conn, err := p.Acquire(ctx)
//	defer conn.Release()
//
// Release returns a healthy connection for reuse; Discard drops one whose
// protocol state is suspect, such as after a cancellation mid-query.
// Constraint violations do not poison a connection and should be followed
// by Release.
package pool
