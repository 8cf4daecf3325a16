package migrate

import (
	"sort"

	"github.com/tessera-orm/tessera/schema"
)

// Diff computes the ordered operation list turning old into new. Tables,
// columns, indexes, and constraints match by name; a definition change on
// a matching name becomes an alter (columns) or a drop-and-recreate
// (indexes, constraints).
//
// Renames are never guessed: a dropped name reappearing with an identical
// definition still diffs as drop plus add. RenameCandidates surfaces those
// pairs so an operator can rewrite them as explicit renames.
//
// Ordering: drops run first, constraints before indexes before columns
// before tables, with dependent tables dropped before the tables they
// reference. Creates follow in the opposite order, referenced tables
// first, constraints last so every column they mention already exists.
func Diff(old, new *schema.Snapshot) []Operation {
	if old == nil {
		old = schema.NewSnapshot()
	}
	if new == nil {
		new = schema.NewSnapshot()
	}

	var (
		dropConstraints []Operation
		dropIndexes     []Operation
		dropColumns     []Operation
		alterColumns    []Operation
		addColumns      []Operation
		createIndexes   []Operation
		addConstraints  []Operation
		droppedTables   []*schema.Table
		createdTables   []*schema.Table
	)

	for _, ot := range old.Tables {
		nt, ok := new.Table(ot.Name)
		if !ok {
			droppedTables = append(droppedTables, ot)
			continue
		}
		diffConstraints(ot, nt, &dropConstraints, &addConstraints)
		diffIndexes(ot, nt, &dropIndexes, &createIndexes)
		diffColumns(ot, nt, &dropColumns, &alterColumns, &addColumns)
	}
	for _, nt := range new.Tables {
		if _, ok := old.Table(nt.Name); !ok {
			createdTables = append(createdTables, nt)
		}
	}

	ops := dropConstraints
	ops = append(ops, dropIndexes...)
	ops = append(ops, dropColumns...)
	dropOrder := sortTablesByDeps(droppedTables)
	for i := len(dropOrder) - 1; i >= 0; i-- {
		ops = append(ops, &DropTable{Name: dropOrder[i].Name})
	}
	for _, t := range sortTablesByDeps(createdTables) {
		ops = append(ops, &CreateTable{Table: t.Clone()})
	}
	ops = append(ops, addColumns...)
	ops = append(ops, alterColumns...)
	ops = append(ops, createIndexes...)
	ops = append(ops, addConstraints...)
	return ops
}

func diffColumns(ot, nt *schema.Table, drops, alters, adds *[]Operation) {
	for _, oc := range ot.Columns {
		nc, ok := nt.Column(oc.Name)
		switch {
		case !ok:
			*drops = append(*drops, &DropColumn{Table: ot.Name, Column: oc.Name})
		case !oc.Equal(nc):
			*alters = append(*alters, &AlterColumn{Table: ot.Name, From: oc.Clone(), To: nc.Clone()})
		}
	}
	for _, nc := range nt.Columns {
		if !ot.HasColumn(nc.Name) {
			*adds = append(*adds, &AddColumn{Table: ot.Name, Column: nc.Clone()})
		}
	}
}

func diffIndexes(ot, nt *schema.Table, drops, creates *[]Operation) {
	for _, oi := range ot.Indexes {
		ni, ok := nt.Index(oi.Name)
		switch {
		case !ok:
			*drops = append(*drops, &DropIndex{Table: ot.Name, Index: oi.Clone()})
		case !indexEqual(oi, ni):
			*drops = append(*drops, &DropIndex{Table: ot.Name, Index: oi.Clone()})
			*creates = append(*creates, &CreateIndex{Table: ot.Name, Index: ni.Clone()})
		}
	}
	for _, ni := range nt.Indexes {
		if _, ok := ot.Index(ni.Name); !ok {
			*creates = append(*creates, &CreateIndex{Table: ot.Name, Index: ni.Clone()})
		}
	}
}

func diffConstraints(ot, nt *schema.Table, drops, adds *[]Operation) {
	for _, oc := range ot.Constraints {
		nc, ok := nt.Constraint(oc.Name)
		switch {
		case !ok:
			*drops = append(*drops, &DropConstraint{Table: ot.Name, Constraint: oc.Clone()})
		case !constraintEqual(oc, nc):
			*drops = append(*drops, &DropConstraint{Table: ot.Name, Constraint: oc.Clone()})
			*adds = append(*adds, &AddConstraint{Table: ot.Name, Constraint: nc.Clone()})
		}
	}
	for _, nc := range nt.Constraints {
		if _, ok := ot.Constraint(nc.Name); !ok {
			*adds = append(*adds, &AddConstraint{Table: ot.Name, Constraint: nc.Clone()})
		}
	}
}

func indexEqual(a, b *schema.Index) bool {
	return a.Name == b.Name &&
		a.Unique == b.Unique &&
		a.Predicate == b.Predicate &&
		stringsEqual(a.Columns, b.Columns)
}

func constraintEqual(a, b *schema.Constraint) bool {
	if a.Kind != b.Kind || a.Name != b.Name || a.Expr != b.Expr || !stringsEqual(a.Columns, b.Columns) {
		return false
	}
	switch {
	case a.Ref == nil && b.Ref == nil:
		return true
	case a.Ref == nil || b.Ref == nil:
		return false
	}
	return a.Ref.Table == b.Ref.Table &&
		a.Ref.OnDelete == b.Ref.OnDelete &&
		a.Ref.OnUpdate == b.Ref.OnUpdate &&
		stringsEqual(a.Ref.Columns, b.Ref.Columns)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortTablesByDeps orders tables so every foreign-key target within the
// set precedes its dependents. Ties and cycles fall back to name order.
func sortTablesByDeps(tables []*schema.Table) []*schema.Table {
	byName := make(map[string]*schema.Table, len(tables))
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
		names = append(names, t.Name)
	}
	sort.Strings(names)

	indegree := make(map[string]int, len(tables))
	dependents := make(map[string][]string, len(tables))
	for _, name := range names {
		indegree[name] += 0
		for _, fk := range byName[name].ForeignKeys() {
			if fk.Ref == nil || fk.Ref.Table == name {
				continue
			}
			if _, ok := byName[fk.Ref.Table]; !ok {
				continue
			}
			indegree[name]++
			dependents[fk.Ref.Table] = append(dependents[fk.Ref.Table], name)
		}
	}

	var queue []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	out := make([]*schema.Table, 0, len(tables))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, byName[name])
		delete(byName, name)
		next := dependents[name]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	// Cycles: emit the remainder in name order.
	for _, name := range names {
		if t, ok := byName[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// RenameCandidate is a drop/add pair whose definitions match, suggesting
// the operator may have meant a rename. Column candidates carry the table
// name; table candidates leave it empty.
type RenameCandidate struct {
	Table string
	From  string
	To    string
}

// RenameCandidates reports possible renames between two snapshots. The
// diff never acts on these; they exist so a front-end can ask the operator
// whether a drop/add pair should become an explicit rename operation.
func RenameCandidates(old, new *schema.Snapshot) []RenameCandidate {
	if old == nil || new == nil {
		return nil
	}
	var out []RenameCandidate
	for _, ot := range old.Tables {
		if _, ok := new.Table(ot.Name); ok {
			continue
		}
		for _, nt := range new.Tables {
			if _, ok := old.Table(nt.Name); !ok && tableShapeEqual(ot, nt) {
				out = append(out, RenameCandidate{From: ot.Name, To: nt.Name})
			}
		}
	}
	for _, ot := range old.Tables {
		nt, ok := new.Table(ot.Name)
		if !ok {
			continue
		}
		for _, oc := range ot.Columns {
			if nt.HasColumn(oc.Name) {
				continue
			}
			for _, nc := range nt.Columns {
				if !ot.HasColumn(nc.Name) && columnShapeEqual(oc, nc) {
					out = append(out, RenameCandidate{Table: ot.Name, From: oc.Name, To: nc.Name})
				}
			}
		}
	}
	return out
}

func tableShapeEqual(a, b *schema.Table) bool {
	if len(a.Columns) != len(b.Columns) || !stringsEqual(a.PrimaryKey, b.PrimaryKey) {
		return false
	}
	for i := range a.Columns {
		if !a.Columns[i].Equal(b.Columns[i]) {
			return false
		}
	}
	return true
}

func columnShapeEqual(a, b *schema.Column) bool {
	ac, bc := a.Clone(), b.Clone()
	ac.Name, bc.Name = "", ""
	return ac.Equal(bc)
}
