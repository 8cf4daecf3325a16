package sql

// AggFunc is a SQL aggregate function name.
type AggFunc string

// Aggregate functions.
const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Star selects all columns inside COUNT.
const Star = "*"

// Aggregate is one aggregated output term of a SELECT.
type Aggregate struct {
	Fn    AggFunc
	Field string
	Alias string
}

// As names the aggregate's output column.
func (a Aggregate) As(alias string) Aggregate {
	a.Alias = alias
	return a
}

// Count returns COUNT(field); pass Star for COUNT(*).
func Count(field string) Aggregate { return Aggregate{Fn: AggCount, Field: field} }

// Sum returns SUM(field).
func Sum(field string) Aggregate { return Aggregate{Fn: AggSum, Field: field} }

// Avg returns AVG(field).
func Avg(field string) Aggregate { return Aggregate{Fn: AggAvg, Field: field} }

// Min returns MIN(field).
func Min(field string) Aggregate { return Aggregate{Fn: AggMin, Field: field} }

// Max returns MAX(field).
func Max(field string) Aggregate { return Aggregate{Fn: AggMax, Field: field} }

// AggComparison compares an aggregate against a bound value, for HAVING.
type AggComparison struct {
	Agg   Aggregate
	Op    CompareOp
	Value any
}

func (*AggComparison) predicate() {}

// CompareAgg returns agg <op> value, e.g. HAVING COUNT(*) > 5.
func CompareAgg(a Aggregate, op CompareOp, value any) Predicate {
	return &AggComparison{Agg: a, Op: op, Value: value}
}
