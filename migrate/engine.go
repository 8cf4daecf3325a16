package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/pool"
	"github.com/tessera-orm/tessera/schema"
	tsql "github.com/tessera-orm/tessera/sql"
)

// Direction selects which side of a migration to render.
type Direction int

// Render directions.
const (
	Forward Direction = iota
	Reverse
)

// Status is one line of the migration ledger: a known migration and
// whether it has been applied.
type Status struct {
	ID          string
	Namespace   string
	Description string
	Applied     bool
	AppliedAt   time.Time
}

// Option configures an engine.
type Option func(*Engine)

// WithHistoryTable overrides the history table name.
func WithHistoryTable(name string) Option {
	return func(e *Engine) { e.hist = newHistory(name, e.d) }
}

// WithLogger attaches a logger for apply and rollback progress.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine applies and rolls back migrations against one database, tracking
// state in the history table. Concurrent engines coordinate through a
// lock row so two deployments cannot migrate the same database at once.
type Engine struct {
	pool *pool.Pool
	d    dialect.Dialect
	src  *Source
	hist *history
	log  *slog.Logger
}

// NewEngine returns an engine reading migrations from src and executing
// them on connections drawn from p.
func NewEngine(p *pool.Pool, src *Source, opts ...Option) *Engine {
	e := &Engine{
		pool: p,
		d:    p.Dialect(),
		src:  src,
		log:  slog.Default(),
	}
	e.hist = newHistory(DefaultHistoryTable, e.d)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan diffs the schema implied by the existing migration files against
// the target and wraps the result in a new migration. It returns nil when
// the schemas already match. The caller decides whether to Save it.
func (e *Engine) Plan(namespace, description string, target *schema.Snapshot) (*Migration, error) {
	current, err := e.FileSnapshot()
	if err != nil {
		return nil, err
	}
	ops := Diff(current, target)
	if len(ops) == 0 {
		return nil, nil
	}
	m := NewMigration(namespace, description, ops...)
	if migs, err := e.src.Load(); err == nil && len(migs) > 0 {
		m.Dependencies = []string{migs[len(migs)-1].ID}
	}
	return m, nil
}

// FileSnapshot replays every migration file into a schema snapshot.
func (e *Engine) FileSnapshot() (*schema.Snapshot, error) {
	migs, err := e.src.Load()
	if err != nil {
		return nil, err
	}
	return Replay(nil, migs...)
}

// Inspect reads the connected database's live schema, excluding the
// engine's history and lock tables, so it can be diffed against the file
// snapshot or a declared model.
func (e *Engine) Inspect(ctx context.Context) (*schema.Snapshot, error) {
	return Inspect(ctx, e.pool, e.hist.table.Name, e.hist.table.Name+"_lock")
}

// Status lists every known migration in apply order with its applied
// state. Rows in the history table with no matching file are reported
// too, so drift is visible.
func (e *Engine) Status(ctx context.Context) ([]Status, error) {
	migs, err := e.src.Load()
	if err != nil {
		return nil, err
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()
	if err := e.hist.ensure(ctx, conn); err != nil {
		return nil, err
	}
	applied, err := e.hist.load(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(migs))
	for _, m := range migs {
		st := Status{ID: m.ID, Namespace: m.Namespace, Description: m.Description}
		if rec, ok := applied[m.ID]; ok {
			st.Applied = true
			st.AppliedAt = rec.AppliedAt
			delete(applied, m.ID)
		}
		out = append(out, st)
	}
	for id, rec := range applied {
		out = append(out, Status{
			ID:          id,
			Namespace:   rec.Namespace,
			Description: "(no migration file)",
			Applied:     true,
			AppliedAt:   rec.AppliedAt,
		})
	}
	return out, nil
}

// RenderSQL renders one migration's statements for the engine's dialect
// without executing anything.
func (e *Engine) RenderSQL(id string, dir Direction) ([]string, error) {
	m, err := e.find(id)
	if err != nil {
		return nil, err
	}
	if dir == Reverse {
		if !m.Reversible() {
			for _, op := range m.Operations {
				if !op.Reversible() {
					return nil, tessera.NewIrreversibleMigrationError(m.ID, op.Describe())
				}
			}
		}
		var stmts []string
		for i := len(m.Operations) - 1; i >= 0; i-- {
			s, err := m.Operations[i].ReverseSQL(e.d)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		}
		return stmts, nil
	}
	var stmts []string
	for _, op := range m.Operations {
		s, err := op.ForwardSQL(e.d)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

func (e *Engine) find(id string) (*Migration, error) {
	migs, err := e.src.Load()
	if err != nil {
		return nil, err
	}
	for _, m := range migs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("tessera: unknown migration %s", id)
}

// Apply runs pending migrations in dependency order, each in its own
// transaction, stopping after target when it is non-empty. Checksums of
// already-applied migrations are verified before anything executes.
func (e *Engine) Apply(ctx context.Context, target string) (int, error) {
	migs, err := e.src.Load()
	if err != nil {
		return 0, err
	}
	if target != "" && !containsID(migs, target) {
		return 0, fmt.Errorf("tessera: unknown migration %s", target)
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()
	if err := e.hist.ensure(ctx, conn); err != nil {
		return 0, err
	}
	unlock, err := e.lock(ctx, conn)
	if err != nil {
		return 0, err
	}
	defer unlock()

	applied, err := e.hist.load(ctx, conn)
	if err != nil {
		return 0, err
	}
	if err := verifyChecksums(migs, applied); err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migs {
		if _, ok := applied[m.ID]; !ok {
			if err := e.applyOne(ctx, conn, m); err != nil {
				return count, err
			}
			count++
		}
		if m.ID == target {
			break
		}
	}
	return count, nil
}

func containsID(migs []*Migration, id string) bool {
	for _, m := range migs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) applyOne(ctx context.Context, conn *pool.Conn, m *Migration) error {
	checksum, err := m.Checksum()
	if err != nil {
		return err
	}
	start := time.Now()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, op := range m.Operations {
		stmts, err := op.ForwardSQL(e.d)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("tessera: applying %s (%s): %w", m.ID, op.Describe(), e.d.ClassifyError(err))
			}
		}
	}
	rec := Record{
		ID:          m.ID,
		Namespace:   m.Namespace,
		AppliedAt:   time.Now().UTC(),
		Checksum:    checksum,
		ExecutionMS: time.Since(start).Milliseconds(),
	}
	if err := e.hist.insert(ctx, tx, rec); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return e.d.ClassifyError(err)
	}
	e.log.Info("applied migration", "id", m.ID, "operations", len(m.Operations),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Rollback undoes the most recent applied migrations, steps at a time. A
// step containing an irreversible operation fails the whole call before
// any statement executes.
func (e *Engine) Rollback(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("tessera: rollback steps must be positive, got %d", steps)
	}
	migs, err := e.src.Load()
	if err != nil {
		return 0, err
	}
	byID := make(map[string]*Migration, len(migs))
	for _, m := range migs {
		byID[m.ID] = m
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()
	if err := e.hist.ensure(ctx, conn); err != nil {
		return 0, err
	}
	unlock, err := e.lock(ctx, conn)
	if err != nil {
		return 0, err
	}
	defer unlock()

	applied, err := e.hist.load(ctx, conn)
	if err != nil {
		return 0, err
	}

	// Applied IDs sort lexicographically, newest last.
	var order []string
	for _, m := range migs {
		if _, ok := applied[m.ID]; ok {
			order = append(order, m.ID)
		}
	}
	if len(order) < steps {
		steps = len(order)
	}
	selected := make([]*Migration, 0, steps)
	for i := 0; i < steps; i++ {
		id := order[len(order)-1-i]
		m, ok := byID[id]
		if !ok {
			return 0, fmt.Errorf("tessera: applied migration %s has no migration file", id)
		}
		selected = append(selected, m)
	}

	// Refuse the whole batch before touching the database.
	for _, m := range selected {
		for _, op := range m.Operations {
			if !op.Reversible() {
				return 0, tessera.NewIrreversibleMigrationError(m.ID, op.Describe())
			}
		}
	}

	count := 0
	for _, m := range selected {
		if err := e.rollbackOne(ctx, conn, m); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) rollbackOne(ctx context.Context, conn *pool.Conn, m *Migration) error {
	start := time.Now()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := len(m.Operations) - 1; i >= 0; i-- {
		op := m.Operations[i]
		stmts, err := op.ReverseSQL(e.d)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("tessera: rolling back %s (%s): %w", m.ID, op.Describe(), e.d.ClassifyError(err))
			}
		}
	}
	if err := e.hist.delete(ctx, tx, m.ID); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return e.d.ClassifyError(err)
	}
	e.log.Info("rolled back migration", "id", m.ID,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func verifyChecksums(migs []*Migration, applied map[string]Record) error {
	for _, m := range migs {
		rec, ok := applied[m.ID]
		if !ok {
			continue
		}
		computed, err := m.Checksum()
		if err != nil {
			return err
		}
		if computed != rec.Checksum {
			return tessera.NewChecksumMismatchError(m.ID, rec.Checksum, computed)
		}
	}
	return nil
}

// lockTable returns the advisory-lock table paired with the history table.
func (e *Engine) lockTable() *schema.Table {
	return schema.NewTable(e.hist.table.Name+"_lock").
		AddColumns(
			schema.Int64("id"),
			schema.String("token", 36),
			schema.Timestamp("acquired_at"),
		).
		SetPrimaryKey("id")
}

// lock inserts the single lock row; a unique violation means another
// engine is migrating. The returned func releases the lock.
func (e *Engine) lock(ctx context.Context, conn *pool.Conn) (func(), error) {
	lt := e.lockTable()
	probe, args, err := tsql.Select(lt, "id").Limit(1).Build(e.d)
	if err != nil {
		return nil, err
	}
	if rows, err := conn.QueryContext(ctx, probe, args...); err != nil {
		ddl, derr := e.d.CreateTableSQL(lt)
		if derr != nil {
			return nil, derr
		}
		if _, cerr := conn.ExecContext(ctx, ddl); cerr != nil {
			return nil, cerr
		}
	} else {
		rows.Close()
	}

	token := uuid.NewString()
	ins, args, err := tsql.Insert(lt).
		Set("id", int64(1)).
		Set("token", token).
		Set("acquired_at", time.Now().UTC()).
		Build(e.d)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, ins, args...); err != nil {
		if tessera.IsUniqueViolation(err) || tessera.IsConstraintError(err) {
			return nil, fmt.Errorf("tessera: migrations are locked by another process: %w", err)
		}
		return nil, err
	}

	release := func() {
		del, args, err := tsql.Delete(lt).
			Where(tsql.EQ("id", int64(1))).
			Where(tsql.EQ("token", token)).
			Build(e.d)
		if err != nil {
			return
		}
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), del, args...); err != nil {
			e.log.Warn("releasing migration lock", "error", err)
		}
	}
	return release, nil
}
