package migrate

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/pool"
	"github.com/tessera-orm/tessera/schema"
)

// Inspector reads the live schema of a connected database back into the
// portable model. The read is lossy where the dialect widened types on
// the way in: SQLite reports UUID and JSON columns as text, and every
// SQLite integer comes back as Int64.
type Inspector interface {
	// ListTables returns the user table names visible in the current
	// schema, sorted by name.
	ListTables(ctx context.Context, conn *pool.Conn) ([]string, error)

	// InspectTable reads one table's columns, primary key, indexes, and
	// constraints.
	InspectTable(ctx context.Context, conn *pool.Conn, name string) (*schema.Table, error)
}

// NewInspector returns the inspector for the given dialect. Postgres is
// read through information_schema and pg_catalog, SQLite through
// sqlite_master and the table pragmas. The remaining dialects do not
// support introspection.
func NewInspector(d dialect.Dialect) (Inspector, error) {
	switch d.Name() {
	case dialect.Postgres:
		return postgresInspector{d: d}, nil
	case dialect.SQLite:
		return sqliteInspector{d: d}, nil
	}
	return nil, tessera.NewUnsupportedFeatureError(d.Name(), "schema introspection")
}

// Inspect reads every table in the connected database except those named
// in skip, returning them as a snapshot that can be diffed against a
// declared model.
func Inspect(ctx context.Context, p *pool.Pool, skip ...string) (*schema.Snapshot, error) {
	insp, err := NewInspector(p.Dialect())
	if err != nil {
		return nil, err
	}
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	names, err := insp.ListTables(ctx, conn)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	var tables []*schema.Table
	for _, name := range names {
		if skipped[name] {
			continue
		}
		t, err := insp.InspectTable(ctx, conn, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return schema.NewSnapshot(tables...), nil
}

type sqliteInspector struct {
	d dialect.Dialect
}

func (si sqliteInspector) ListTables(ctx context.Context, conn *pool.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, si.d.ClassifyError(err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (si sqliteInspector) InspectTable(ctx context.Context, conn *pool.Conn, name string) (*schema.Table, error) {
	t := schema.NewTable(name)
	ddl, err := si.objectSQL(ctx, conn, "table", name)
	if err != nil {
		return nil, err
	}
	if err := si.readColumns(ctx, conn, t, ddl); err != nil {
		return nil, err
	}
	if err := si.readIndexes(ctx, conn, t); err != nil {
		return nil, err
	}
	if err := si.readForeignKeys(ctx, conn, t); err != nil {
		return nil, err
	}
	return t, nil
}

// objectSQL returns the stored CREATE statement of a table or index. It is
// the only place SQLite keeps the AUTOINCREMENT keyword and partial index
// predicates.
func (si sqliteInspector) objectSQL(ctx context.Context, conn *pool.Conn, kind, name string) (string, error) {
	var ddl sql.NullString
	err := conn.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", si.d.ClassifyError(err)
	}
	return ddl.String, nil
}

func (si sqliteInspector) readColumns(ctx context.Context, conn *pool.Conn, t *schema.Table, ddl string) error {
	rows, err := conn.QueryContext(ctx, "PRAGMA table_info("+quoteSQLite(t.Name)+")")
	if err != nil {
		return si.d.ClassifyError(err)
	}
	defer rows.Close()

	type pkCol struct {
		ord  int
		name string
	}
	var pk []pkCol
	for rows.Next() {
		var (
			cid, notNull, pkOrd int
			name, typ           string
			dflt                sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pkOrd); err != nil {
			return err
		}
		c := sqliteColumn(name, typ)
		if pkOrd > 0 {
			pk = append(pk, pkCol{ord: pkOrd, name: name})
		} else if notNull == 0 {
			c.Null()
		}
		if dflt.Valid {
			applyDefault(c, dflt.String)
		}
		t.AddColumns(c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sort.Slice(pk, func(i, j int) bool { return pk[i].ord < pk[j].ord })
	cols := make([]string, len(pk))
	for i, p := range pk {
		cols[i] = p.name
	}
	t.SetPrimaryKey(cols...)
	if len(pk) == 1 && strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT") {
		if c, ok := t.Column(pk[0].name); ok && c.Type == schema.TypeInt64 {
			c.AutoIncrement()
		}
	}
	return nil
}

func (si sqliteInspector) readIndexes(ctx context.Context, conn *pool.Conn, t *schema.Table) error {
	rows, err := conn.QueryContext(ctx, "PRAGMA index_list("+quoteSQLite(t.Name)+")")
	if err != nil {
		return si.d.ClassifyError(err)
	}
	type idxRow struct {
		name, origin string
		unique       bool
	}
	var list []idxRow
	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		if origin == "pk" {
			continue
		}
		list = append(list, idxRow{name: name, origin: origin, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	// A pooled connection handles one statement at a time, so the follow-up
	// pragmas must wait until this result set is closed.
	rows.Close()

	for _, ix := range list {
		cols, err := si.indexColumns(ctx, conn, ix.name)
		if err != nil {
			return err
		}
		if ix.origin != "c" {
			// Auto-created unique indexes back UNIQUE column or table
			// constraints; fold them back into the model as such.
			if len(cols) == 1 {
				if c, ok := t.Column(cols[0]); ok {
					c.SetUnique()
					continue
				}
			}
			t.AddConstraints(schema.Unique("", cols...))
			continue
		}
		idx := schema.NewIndex(ix.name, cols...)
		if ix.unique {
			idx.SetUnique()
		}
		ddl, err := si.objectSQL(ctx, conn, "index", ix.name)
		if err != nil {
			return err
		}
		if pred := indexPredicate(ddl); pred != "" {
			idx.Where(pred)
		}
		t.AddIndexes(idx)
	}
	return nil
}

func (si sqliteInspector) indexColumns(ctx context.Context, conn *pool.Conn, index string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA index_info("+quoteSQLite(index)+")")
	if err != nil {
		return nil, si.d.ClassifyError(err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func (si sqliteInspector) readForeignKeys(ctx context.Context, conn *pool.Conn, t *schema.Table) error {
	rows, err := conn.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteSQLite(t.Name)+")")
	if err != nil {
		return si.d.ClassifyError(err)
	}
	defer rows.Close()

	type fk struct {
		table              string
		columns, refCols   []string
		onUpdate, onDelete string
	}
	byID := make(map[int]*fk)
	var ids []int
	for rows.Next() {
		var (
			id, seq                                int
			table, from, onUpdate, onDelete, match string
			to                                     sql.NullString
		)
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		f, ok := byID[id]
		if !ok {
			f = &fk{table: table, onUpdate: onUpdate, onDelete: onDelete}
			byID[id] = f
			ids = append(ids, id)
		}
		f.columns = append(f.columns, from)
		if to.Valid {
			f.refCols = append(f.refCols, to.String)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// foreign_key_list reports keys in reverse declaration order.
	sort.Ints(ids)
	for _, id := range ids {
		f := byID[id]
		t.AddConstraints(schema.ForeignKey("", f.columns, &schema.Reference{
			Table:    f.table,
			Columns:  f.refCols,
			OnDelete: refAction(f.onDelete),
			OnUpdate: refAction(f.onUpdate),
		}))
	}
	return nil
}

// sqliteColumn reverses the SQLite type mapping. INTEGER always comes back
// as Int64 and TEXT as Text; the original declared width is gone.
func sqliteColumn(name, typ string) *schema.Column {
	upper := strings.ToUpper(strings.TrimSpace(typ))
	switch {
	case upper == "BOOLEAN":
		return schema.Bool(name)
	case upper == "INTEGER":
		return schema.Int64(name)
	case upper == "REAL":
		return schema.Float64(name)
	case strings.HasPrefix(upper, "NUMERIC"):
		p, s := parseTypeArgs(upper)
		return schema.Decimal(name, p, s)
	case strings.HasPrefix(upper, "VARCHAR"):
		n, _ := parseTypeArgs(upper)
		return schema.String(name, n)
	case upper == "BLOB":
		return schema.Bytes(name)
	case upper == "DATE":
		return schema.Date(name)
	case upper == "TIME":
		return schema.Time(name)
	case upper == "DATETIME":
		return schema.Timestamp(name)
	}
	return schema.Text(name)
}

type postgresInspector struct {
	d dialect.Dialect
}

const (
	pgTablesQuery = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`

	pgColumnsQuery = `SELECT column_name, data_type, udt_name, is_nullable, column_default, character_maximum_length, numeric_precision, numeric_scale, is_identity FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`

	pgConstraintsQuery = `SELECT tc.constraint_name, tc.constraint_type, array_agg(kcu.column_name ORDER BY kcu.ordinal_position) FILTER (WHERE kcu.column_name IS NOT NULL), cc.check_clause, ccu.table_name, array_agg(DISTINCT ccu.column_name) FILTER (WHERE ccu.column_name IS NOT NULL), rc.delete_rule, rc.update_rule FROM information_schema.table_constraints tc LEFT JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema LEFT JOIN information_schema.check_constraints cc ON cc.constraint_name = tc.constraint_name AND cc.constraint_schema = tc.table_schema LEFT JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.table_schema AND tc.constraint_type = 'FOREIGN KEY' LEFT JOIN information_schema.referential_constraints rc ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema WHERE tc.table_schema = current_schema() AND tc.table_name = $1 GROUP BY tc.constraint_name, tc.constraint_type, cc.check_clause, ccu.table_name, rc.delete_rule, rc.update_rule ORDER BY tc.constraint_name`

	pgIndexesQuery = `SELECT i.relname, ix.indisunique, pg_get_expr(ix.indpred, ix.indrelid), array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) FROM pg_index ix JOIN pg_class c ON c.oid = ix.indrelid JOIN pg_class i ON i.oid = ix.indexrelid JOIN pg_namespace n ON n.oid = c.relnamespace JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(ix.indkey) WHERE n.nspname = current_schema() AND c.relname = $1 AND NOT ix.indisprimary GROUP BY i.relname, ix.indisunique, ix.indpred, ix.indrelid ORDER BY i.relname`
)

func (pi postgresInspector) ListTables(ctx context.Context, conn *pool.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx, pgTablesQuery)
	if err != nil {
		return nil, pi.d.ClassifyError(err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (pi postgresInspector) InspectTable(ctx context.Context, conn *pool.Conn, name string) (*schema.Table, error) {
	t := schema.NewTable(name)
	if err := pi.readColumns(ctx, conn, t); err != nil {
		return nil, err
	}
	backed, err := pi.readConstraints(ctx, conn, t)
	if err != nil {
		return nil, err
	}
	if err := pi.readIndexes(ctx, conn, t, backed); err != nil {
		return nil, err
	}
	return t, nil
}

func (pi postgresInspector) readColumns(ctx context.Context, conn *pool.Conn, t *schema.Table) error {
	rows, err := conn.QueryContext(ctx, pgColumnsQuery, t.Name)
	if err != nil {
		return pi.d.ClassifyError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, dataType, udt      string
			nullable, identity       string
			dflt                     sql.NullString
			maxLen, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &udt, &nullable, &dflt, &maxLen, &precision, &scale, &identity); err != nil {
			return err
		}
		c := postgresColumn(name, dataType, udt, maxLen, precision, scale)
		if nullable == "YES" {
			c.Null()
		}
		switch {
		case identity == "YES" || (dflt.Valid && strings.Contains(dflt.String, "nextval(")):
			c.AutoIncrement()
		case dflt.Valid:
			applyDefault(c, dflt.String)
		}
		t.AddColumns(c)
	}
	return rows.Err()
}

// readConstraints loads primary key, unique, check, and foreign key
// constraints. It returns the names of constraints that Postgres backs
// with an index of the same name, so readIndexes can skip those.
func (pi postgresInspector) readConstraints(ctx context.Context, conn *pool.Conn, t *schema.Table) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, pgConstraintsQuery, t.Name)
	if err != nil {
		return nil, pi.d.ClassifyError(err)
	}
	defer rows.Close()

	backed := make(map[string]bool)
	for rows.Next() {
		var (
			name, kind       string
			cols, refCols    pq.StringArray
			check, refTable  sql.NullString
			delRule, updRule sql.NullString
		)
		if err := rows.Scan(&name, &kind, &cols, &check, &refTable, &refCols, &delRule, &updRule); err != nil {
			return nil, err
		}
		switch kind {
		case "PRIMARY KEY":
			t.SetPrimaryKey(cols...)
			backed[name] = true
		case "UNIQUE":
			backed[name] = true
			if len(cols) == 1 {
				if c, ok := t.Column(cols[0]); ok {
					c.SetUnique()
					continue
				}
			}
			t.AddConstraints(schema.Unique(name, cols...))
		case "CHECK":
			// NOT NULL shows up in information_schema as a generated
			// check constraint; the column already carries it.
			if check.Valid && !strings.HasSuffix(check.String, "IS NOT NULL") {
				t.AddConstraints(schema.Check(name, check.String))
			}
		case "FOREIGN KEY":
			t.AddConstraints(schema.ForeignKey(name, cols, &schema.Reference{
				Table:    refTable.String,
				Columns:  refCols,
				OnDelete: refAction(delRule.String),
				OnUpdate: refAction(updRule.String),
			}))
		}
	}
	return backed, rows.Err()
}

func (pi postgresInspector) readIndexes(ctx context.Context, conn *pool.Conn, t *schema.Table, backed map[string]bool) error {
	rows, err := conn.QueryContext(ctx, pgIndexesQuery, t.Name)
	if err != nil {
		return pi.d.ClassifyError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name   string
			unique bool
			pred   sql.NullString
			cols   pq.StringArray
		)
		if err := rows.Scan(&name, &unique, &pred, &cols); err != nil {
			return err
		}
		if backed[name] {
			continue
		}
		idx := schema.NewIndex(name, cols...)
		if unique {
			idx.SetUnique()
		}
		if pred.Valid && pred.String != "" {
			idx.Where(pred.String)
		}
		t.AddIndexes(idx)
	}
	return rows.Err()
}

// postgresColumn reverses the Postgres type mapping. Width and precision
// come from the information_schema columns when the type carries them.
func postgresColumn(name, dataType, udt string, maxLen, precision, scale sql.NullInt64) *schema.Column {
	switch dataType {
	case "smallint":
		return schema.Int16(name)
	case "integer":
		return schema.Int32(name)
	case "bigint":
		return schema.Int64(name)
	case "boolean":
		return schema.Bool(name)
	case "real", "double precision":
		return schema.Float64(name)
	case "numeric":
		return schema.Decimal(name, int(precision.Int64), int(scale.Int64))
	case "character varying", "character":
		return schema.String(name, int(maxLen.Int64))
	case "bytea":
		return schema.Bytes(name)
	case "date":
		return schema.Date(name)
	case "time without time zone", "time with time zone":
		return schema.Time(name)
	case "timestamp without time zone", "timestamp with time zone":
		return schema.Timestamp(name)
	case "uuid":
		return schema.UUID(name)
	case "json", "jsonb":
		return schema.JSON(name)
	case "ARRAY":
		return schema.Array(name, pgElemType(udt))
	}
	return schema.Text(name)
}

// pgElemType maps an array udt_name like _int4 to the element type.
func pgElemType(udt string) schema.Type {
	switch strings.TrimPrefix(udt, "_") {
	case "int2":
		return schema.TypeInt16
	case "int4":
		return schema.TypeInt32
	case "int8":
		return schema.TypeInt64
	case "float4", "float8":
		return schema.TypeFloat64
	case "bool":
		return schema.TypeBool
	case "uuid":
		return schema.TypeUUID
	case "varchar", "bpchar":
		return schema.TypeString
	}
	return schema.TypeText
}

// applyDefault turns a catalog default expression into either a literal
// value or a raw SQL default. Postgres suffixes literals with a cast, as
// in 'pending'::text; the quoted part is the value.
func applyDefault(c *schema.Column, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if strings.HasPrefix(raw, "'") {
		if end := strings.LastIndexByte(raw[1:], '\''); end >= 0 {
			c.DefaultValue(strings.ReplaceAll(raw[1:end+1], "''", "'"))
			return
		}
	}
	if strings.EqualFold(raw, "true") {
		c.DefaultValue(true)
		return
	}
	if strings.EqualFold(raw, "false") {
		c.DefaultValue(false)
		return
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		c.DefaultValue(n)
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		c.DefaultValue(f)
		return
	}
	c.DefaultSQL(raw)
}

// parseTypeArgs extracts the parenthesized arguments of a declared type,
// as in NUMERIC(10,2) or VARCHAR(255).
func parseTypeArgs(typ string) (int, int) {
	open := strings.IndexByte(typ, '(')
	end := strings.IndexByte(typ, ')')
	if open < 0 || end < open {
		return 0, 0
	}
	parts := strings.Split(typ[open+1:end], ",")
	p, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	s := 0
	if len(parts) > 1 {
		s, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return p, s
}

// indexPredicate extracts the partial index condition from a stored
// CREATE INDEX statement, or returns "".
func indexPredicate(ddl string) string {
	i := strings.Index(strings.ToUpper(ddl), " WHERE ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(ddl[i+len(" WHERE "):])
}

func refAction(rule string) schema.RefAction {
	switch strings.ToUpper(rule) {
	case "CASCADE":
		return schema.Cascade
	case "RESTRICT":
		return schema.Restrict
	case "SET NULL":
		return schema.SetNull
	}
	return ""
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
