package sql

// CompareOp is a binary comparison operator.
type CompareOp uint8

// Comparison operators.
const (
	OpEQ CompareOp = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
)

var opSymbols = [...]string{
	OpEQ:  "=",
	OpNEQ: "<>",
	OpGT:  ">",
	OpGTE: ">=",
	OpLT:  "<",
	OpLTE: "<=",
}

// Symbol returns the SQL symbol for the operator.
func (op CompareOp) Symbol() string { return opSymbols[op] }

// Predicate is a node in the boolean filter tree. Predicates are built with
// the package constructors and attached to builders with Where; they carry
// no dialect or schema knowledge of their own.
type Predicate interface {
	predicate()
}

// Comparison compares a column against a bound value.
type Comparison struct {
	Field string
	Op    CompareOp
	Value any
}

// ColumnComparison compares two columns, typically in a join condition.
type ColumnComparison struct {
	Left  string
	Op    CompareOp
	Right string
}

// AndPred is the conjunction of its children.
type AndPred struct {
	Preds []Predicate
}

// OrPred is the disjunction of its children.
type OrPred struct {
	Preds []Predicate
}

// NotPred negates its child.
type NotPred struct {
	Pred Predicate
}

// InPred tests membership in a bound value list.
type InPred struct {
	Field   string
	Values  []any
	Negated bool
}

// BetweenPred tests an inclusive range.
type BetweenPred struct {
	Field string
	Lo    any
	Hi    any
}

// LikePred matches a pattern. CaseInsensitive renders as ILIKE where the
// dialect has it and as LOWER() LIKE LOWER() everywhere else.
type LikePred struct {
	Field           string
	Pattern         string
	CaseInsensitive bool
}

// NullPred tests for NULL.
type NullPred struct {
	Field   string
	Negated bool
}

func (*Comparison) predicate()       {}
func (*ColumnComparison) predicate() {}
func (*AndPred) predicate()          {}
func (*OrPred) predicate()           {}
func (*NotPred) predicate()          {}
func (*InPred) predicate()           {}
func (*BetweenPred) predicate()      {}
func (*LikePred) predicate()         {}
func (*NullPred) predicate()         {}

// EQ returns field = value.
func EQ(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpEQ, Value: value}
}

// NEQ returns field <> value.
func NEQ(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpNEQ, Value: value}
}

// GT returns field > value.
func GT(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpGT, Value: value}
}

// GTE returns field >= value.
func GTE(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpGTE, Value: value}
}

// LT returns field < value.
func LT(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpLT, Value: value}
}

// LTE returns field <= value.
func LTE(field string, value any) Predicate {
	return &Comparison{Field: field, Op: OpLTE, Value: value}
}

// EQCol returns left = right over two columns. Qualify the fields with
// table names when both sides of a join carry the column.
func EQCol(left, right string) Predicate {
	return &ColumnComparison{Left: left, Op: OpEQ, Right: right}
}

// CompareCols returns left <op> right over two columns.
func CompareCols(left string, op CompareOp, right string) Predicate {
	return &ColumnComparison{Left: left, Op: op, Right: right}
}

// And returns the conjunction of the given predicates.
func And(preds ...Predicate) Predicate {
	return &AndPred{Preds: preds}
}

// Or returns the disjunction of the given predicates.
func Or(preds ...Predicate) Predicate {
	return &OrPred{Preds: preds}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return &NotPred{Pred: p}
}

// In returns field IN (values...). An empty list renders as a
// never-matching condition rather than invalid SQL.
func In(field string, values ...any) Predicate {
	return &InPred{Field: field, Values: values}
}

// NotIn returns field NOT IN (values...). An empty list renders as an
// always-matching condition.
func NotIn(field string, values ...any) Predicate {
	return &InPred{Field: field, Values: values, Negated: true}
}

// Between returns field BETWEEN lo AND hi, bounds inclusive.
func Between(field string, lo, hi any) Predicate {
	return &BetweenPred{Field: field, Lo: lo, Hi: hi}
}

// Like returns a case-sensitive pattern match.
func Like(field, pattern string) Predicate {
	return &LikePred{Field: field, Pattern: pattern}
}

// ILike returns a case-insensitive pattern match.
func ILike(field, pattern string) Predicate {
	return &LikePred{Field: field, Pattern: pattern, CaseInsensitive: true}
}

// IsNull returns field IS NULL.
func IsNull(field string) Predicate {
	return &NullPred{Field: field}
}

// NotNull returns field IS NOT NULL.
func NotNull(field string) Predicate {
	return &NullPred{Field: field, Negated: true}
}
