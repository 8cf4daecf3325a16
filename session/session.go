package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/pool"
	"github.com/tessera-orm/tessera/schema"
	tsql "github.com/tessera-orm/tessera/sql"
)

// Session lifecycle errors.
var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("tessera: session is closed")
	// ErrTxStarted is returned when beginning a transaction inside an
	// open one; use BeginNested for savepoints.
	ErrTxStarted = errors.New("tessera: transaction already started")
	// ErrNoTransaction is returned when releasing or rolling back a
	// savepoint with none open.
	ErrNoTransaction = errors.New("tessera: no open savepoint")
)

// Option configures a session.
type Option func(*Session)

// WithLogger attaches a logger for flush diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is a unit of work. It tracks entities, keeps an identity map so
// one row never materializes twice, and writes all pending changes in a
// single transaction on Commit. A session is owned by one goroutine.
type Session struct {
	pool *pool.Pool
	d    dialect.Dialect
	log  *slog.Logger

	conn   *pool.Conn
	tx     *sql.Tx
	broken bool
	closed bool

	identity map[string]*Entity
	tracked  []*Entity

	spSeq int
	saves []savepoint

	beginState *sessionState
}

type savepoint struct {
	name  string
	state sessionState
}

// sessionState is a restorable copy of the session's in-memory tracking.
type sessionState struct {
	entities map[*Entity]entityState
	tracked  []*Entity
	identity map[string]*Entity
}

// New returns a session drawing connections from the pool.
func New(p *pool.Pool, opts ...Option) *Session {
	s := &Session{
		pool:     p,
		d:        p.Dialect(),
		identity: make(map[string]*Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a new entity for insertion on the next flush.
func (s *Session) Add(e *Entity) error {
	if s.closed {
		return ErrClosed
	}
	if e.persisted {
		return fmt.Errorf("tessera: entity of %s is already persisted", e.table.Name)
	}
	if e.hasKey() {
		k := identityKey(e.table.Name, e.Key())
		if _, ok := s.identity[k]; ok {
			return fmt.Errorf("tessera: entity %s%v is already tracked", e.table.Name, e.Key())
		}
		s.identity[k] = e
	}
	s.tracked = append(s.tracked, e)
	return nil
}

// Get loads an entity by primary key. A key already in the identity map
// returns the tracked pointer without touching the database; a key with no
// matching row returns (nil, nil).
func (s *Session) Get(ctx context.Context, t *schema.Table, key ...any) (*Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if len(key) != len(t.PrimaryKey) {
		return nil, tessera.NewSchemaError(t.Name, "", fmt.Sprintf(
			"primary key has %d columns, got %d values", len(t.PrimaryKey), len(key)))
	}
	k := identityKey(t.Name, key)
	if e, ok := s.identity[k]; ok {
		return e, nil
	}

	q := tsql.Select(t)
	for i, col := range t.PrimaryKey {
		q = q.Where(tsql.EQ(col, key[i]))
	}
	query, args, err := q.Build(s.d)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, s.fail(ctx, err)
		}
		return nil, nil
	}
	e := NewEntity(t)
	if err := scanInto(rows, e); err != nil {
		return nil, err
	}
	e.markClean()
	s.identity[k] = e
	s.tracked = append(s.tracked, e)
	return e, nil
}

// Query runs a select over whole rows and materializes each result as a
// tracked entity. Rows whose key is already in the identity map come back
// as the existing pointer, in-memory state winning over the database.
func (s *Session) Query(ctx context.Context, q tsql.SelectBuilder) ([]*Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	t := q.Table()
	if len(q.Columns()) != len(t.Columns) {
		return nil, tessera.NewSchemaError(t.Name, "", "entity queries must select every column")
	}
	query, args, err := q.Build(s.d)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e := NewEntity(t)
		if err := scanInto(rows, e); err != nil {
			return nil, err
		}
		e.markClean()
		k := identityKey(t.Name, e.Key())
		if existing, ok := s.identity[k]; ok {
			out = append(out, existing)
			continue
		}
		s.identity[k] = e
		s.tracked = append(s.tracked, e)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}
	return out, nil
}

// Delete marks an entity for deletion on the next flush. An entity that
// was never persisted is simply untracked.
func (s *Session) Delete(e *Entity) {
	if !e.persisted {
		s.untrack(e)
		return
	}
	e.deleted = true
}

// Begin opens an explicit transaction. Flushes inside it become visible to
// Get and Query on the same session but not to others until Commit.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		return ErrTxStarted
	}
	conn, err := s.ensureConn(ctx)
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(ctx, err)
	}
	s.tx = tx
	st := s.snapshotState()
	s.beginState = &st
	return nil
}

// Flush writes pending changes inside the open transaction without
// committing: inserts parents-first, then updates, then deletes
// children-first.
func (s *Session) Flush(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	return s.flush(ctx)
}

// Commit flushes all pending changes and commits. Without an explicit
// Begin it wraps the flush in its own transaction. On any failure the
// transaction rolls back and every pending change stays dirty, so the
// session can retry.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	oneShot := s.tx == nil
	if oneShot {
		if !s.hasPending() {
			return nil
		}
		if err := s.Begin(ctx); err != nil {
			return err
		}
	}
	// The database rolls back to the transaction start, so the in-memory
	// state must restore to the Begin-time snapshot, not to whatever later
	// flushes already marked clean.
	pre := s.snapshotState()
	if s.beginState != nil {
		pre = *s.beginState
	}
	if err := s.flush(ctx); err != nil {
		s.abort(pre)
		return err
	}
	if err := s.tx.Commit(); err != nil {
		s.abort(pre)
		return s.fail(ctx, s.d.ClassifyError(err))
	}
	s.tx = nil
	s.beginState = nil
	s.saves = nil
	s.dropDeleted()
	return nil
}

// Rollback abandons the open transaction, or, without one, discards all
// pending in-memory changes.
func (s *Session) Rollback() error {
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		err := s.tx.Rollback()
		s.tx = nil
		s.saves = nil
		if s.beginState != nil {
			s.restoreState(*s.beginState)
			s.beginState = nil
		}
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			return s.fail(context.Background(), s.d.ClassifyError(err))
		}
		return nil
	}
	for _, e := range append([]*Entity(nil), s.tracked...) {
		if !e.persisted {
			s.untrack(e)
			continue
		}
		e.revert()
	}
	return nil
}

// BeginNested flushes pending changes and opens a savepoint. Begin is
// implied when no transaction is open yet.
func (s *Session) BeginNested(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		if err := s.Begin(ctx); err != nil {
			return err
		}
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.spSeq++
	name := fmt.Sprintf("tessera_sp_%d", s.spSeq)
	if _, err := s.exec(ctx, s.d.SavepointSQL(name)); err != nil {
		return err
	}
	s.saves = append(s.saves, savepoint{name: name, state: s.snapshotState()})
	return nil
}

// ReleaseNested commits the innermost savepoint into its parent scope.
func (s *Session) ReleaseNested(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	sp, err := s.popSavepoint()
	if err != nil {
		return err
	}
	if stmt := s.d.ReleaseSavepointSQL(sp.name); stmt != "" {
		if _, err := s.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RollbackNested rolls back to the innermost savepoint, restoring both the
// database and the session's in-memory state to BeginNested.
func (s *Session) RollbackNested(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	sp, err := s.popSavepoint()
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, s.d.RollbackSavepointSQL(sp.name)); err != nil {
		return err
	}
	s.restoreState(sp.state)
	return nil
}

// RunNested runs fn inside a savepoint, releasing it on success and rolling
// back to it on error.
func (s *Session) RunNested(ctx context.Context, fn func(*Session) error) error {
	if err := s.BeginNested(ctx); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		if rerr := s.RollbackNested(ctx); rerr != nil {
			return fmt.Errorf("%w (savepoint rollback: %v)", err, rerr)
		}
		return err
	}
	return s.ReleaseNested(ctx)
}

// Close rolls back any open transaction and returns the connection to the
// pool. A connection that saw a connection-level failure is discarded.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	if s.conn != nil {
		if s.broken {
			s.conn.Discard()
		} else {
			s.conn.Release()
		}
		s.conn = nil
	}
	return nil
}

func (s *Session) popSavepoint() (savepoint, error) {
	if len(s.saves) == 0 {
		return savepoint{}, ErrNoTransaction
	}
	sp := s.saves[len(s.saves)-1]
	s.saves = s.saves[:len(s.saves)-1]
	return sp, nil
}

func (s *Session) untrack(e *Entity) {
	for i, t := range s.tracked {
		if t == e {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			break
		}
	}
	if e.hasKey() {
		k := identityKey(e.table.Name, e.Key())
		if s.identity[k] == e {
			delete(s.identity, k)
		}
	}
}

func (s *Session) dropDeleted() {
	for _, e := range append([]*Entity(nil), s.tracked...) {
		if e.deleted && e.persisted {
			e.persisted = false
			e.deleted = false
			s.untrack(e)
		}
	}
}

func (s *Session) hasPending() bool {
	for _, e := range s.tracked {
		switch {
		case !e.persisted && !e.deleted:
			return true
		case e.persisted && e.deleted:
			return true
		case e.persisted && e.Dirty():
			return true
		}
	}
	return false
}

// abort rolls back the current transaction and restores the pre-flush
// in-memory state, keeping everything dirty for a retry.
func (s *Session) abort(pre sessionState) {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	s.beginState = nil
	s.saves = nil
	s.restoreState(pre)
}

// flush writes all pending changes on the open transaction and marks the
// written entities clean. Callers own rollback and state restoration.
func (s *Session) flush(ctx context.Context) error {
	inserts := make(map[string][]*Entity)
	deletes := make(map[string][]*Entity)
	var insertTables, deleteTables []*schema.Table
	var updates []*Entity

	for _, e := range s.tracked {
		switch {
		case !e.persisted && !e.deleted:
			if _, ok := inserts[e.table.Name]; !ok {
				insertTables = append(insertTables, e.table)
			}
			inserts[e.table.Name] = append(inserts[e.table.Name], e)
		case e.persisted && e.deleted:
			if _, ok := deletes[e.table.Name]; !ok {
				deleteTables = append(deleteTables, e.table)
			}
			deletes[e.table.Name] = append(deletes[e.table.Name], e)
		case e.persisted && e.Dirty():
			updates = append(updates, e)
		}
	}

	for _, t := range sortByDependency(insertTables) {
		for _, e := range inserts[t.Name] {
			if err := s.insertOne(ctx, e); err != nil {
				return err
			}
		}
	}
	for _, e := range updates {
		if err := s.updateOne(ctx, e); err != nil {
			return err
		}
	}
	ordered := sortByDependency(deleteTables)
	for i := len(ordered) - 1; i >= 0; i-- {
		for _, e := range deletes[ordered[i].Name] {
			if err := s.deleteOne(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) insertOne(ctx context.Context, e *Entity) error {
	t := e.table
	ins := tsql.Insert(t)
	for _, i := range e.dirtyOrdinals() {
		ins = ins.Set(t.Columns[i].Name, e.values[i])
	}

	// Database-generated keys come back through RETURNING where the
	// dialect has it, and through LastInsertId elsewhere.
	genKey := -1
	if len(t.PrimaryKey) == 1 {
		if i, ok := t.ColumnIndex(t.PrimaryKey[0]); ok && t.Columns[i].Increment && e.values[i] == nil {
			genKey = i
		}
	}
	if genKey >= 0 && s.d.Supports(dialect.FeatureReturning) {
		query, args, err := ins.Returning(t.PrimaryKey[0]).Build(s.d)
		if err != nil {
			return err
		}
		var id int64
		if err := s.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return s.fail(ctx, s.d.ClassifyError(err))
		}
		e.values[genKey] = id
	} else {
		query, args, err := ins.Build(s.d)
		if err != nil {
			return err
		}
		res, err := s.exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if genKey >= 0 {
			if id, err := res.LastInsertId(); err == nil {
				e.values[genKey] = id
			} else if s.log != nil {
				s.log.Debug("generated key unavailable", "table", t.Name, "error", err)
			}
		}
	}
	e.markClean()
	if e.hasKey() {
		s.identity[identityKey(t.Name, e.Key())] = e
	}
	return nil
}

func (s *Session) updateOne(ctx context.Context, e *Entity) error {
	t := e.table
	upd := tsql.Update(t)
	for _, i := range e.dirtyOrdinals() {
		upd = upd.Set(t.Columns[i].Name, e.values[i])
	}
	for i, col := range t.PrimaryKey {
		upd = upd.Where(tsql.EQ(col, e.Key()[i]))
	}
	query, args, err := upd.Build(s.d)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, query, args...); err != nil {
		return err
	}
	e.markClean()
	return nil
}

func (s *Session) deleteOne(ctx context.Context, e *Entity) error {
	t := e.table
	del := tsql.Delete(t)
	for i, col := range t.PrimaryKey {
		del = del.Where(tsql.EQ(col, e.Key()[i]))
	}
	query, args, err := del.Build(s.d)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, query, args...); err != nil {
		return err
	}
	k := identityKey(t.Name, e.Key())
	if s.identity[k] == e {
		delete(s.identity, k)
	}
	return nil
}

// dirtyOrdinals returns the dirty column positions in table order.
func (e *Entity) dirtyOrdinals() []int {
	out := make([]int, 0, len(e.dirty))
	for i := range e.table.Columns {
		if _, ok := e.dirty[i]; ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *Session) ensureConn(ctx context.Context) (*pool.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

// exec routes through the open transaction when there is one.
func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		res, err := s.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, s.fail(ctx, s.d.ClassifyError(err))
		}
		return res, nil
	}
	conn, err := s.ensureConn(ctx)
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return res, nil
}

func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		rows, err := s.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, s.fail(ctx, s.d.ClassifyError(err))
		}
		return rows, nil
	}
	conn, err := s.ensureConn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return rows, nil
}

// fail flags the connection as suspect so that Close discards instead of
// pooling it. Connection-level errors qualify, and so does a statement cut
// short by context cancellation, since the connection's protocol state
// after an interrupted statement is not trusted.
func (s *Session) fail(ctx context.Context, err error) error {
	if tessera.IsConnectionError(err) || ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.broken = true
	}
	return err
}

func (s *Session) snapshotState() sessionState {
	st := sessionState{
		entities: make(map[*Entity]entityState, len(s.tracked)),
		tracked:  append([]*Entity(nil), s.tracked...),
		identity: make(map[string]*Entity, len(s.identity)),
	}
	for _, e := range s.tracked {
		st.entities[e] = e.snapshot()
	}
	for k, e := range s.identity {
		st.identity[k] = e
	}
	return st
}

func (s *Session) restoreState(st sessionState) {
	s.tracked = append([]*Entity(nil), st.tracked...)
	s.identity = make(map[string]*Entity, len(st.identity))
	for k, e := range st.identity {
		s.identity[k] = e
	}
	for e, es := range st.entities {
		e.restore(es)
	}
}

func scanInto(rows *sql.Rows, e *Entity) error {
	dest := make([]any, len(e.values))
	for i := range dest {
		dest[i] = &e.values[i]
	}
	return rows.Scan(dest...)
}
