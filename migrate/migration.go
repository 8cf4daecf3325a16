package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/tessera-orm/tessera/schema"
)

// DefaultNamespace groups migrations that declare no namespace of their
// own.
const DefaultNamespace = "default"

const idTimeFormat = "20060102150405"

// Migration is one versioned schema change: an ordered operation list
// identified by a lexicographically sortable ID. Once written to a file it
// is immutable; the checksum recorded on apply detects later edits.
type Migration struct {
	ID           string
	Namespace    string
	Description  string
	Dependencies []string
	CreatedAt    time.Time
	Operations   []Operation
}

// NewMigration returns a migration stamped with the current UTC time and
// an ID derived from the description.
func NewMigration(namespace, description string, ops ...Operation) *Migration {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	now := time.Now().UTC().Truncate(time.Second)
	return &Migration{
		ID:          now.Format(idTimeFormat) + "_" + slug(description),
		Namespace:   namespace,
		Description: description,
		CreatedAt:   now,
		Operations:  ops,
	}
}

func slug(description string) string {
	s := inflect.Underscore(strings.Join(strings.Fields(description), "_"))
	if s == "" {
		s = "migration"
	}
	return s
}

// Reversible reports whether every operation has a reverse.
func (m *Migration) Reversible() bool {
	for _, op := range m.Operations {
		if !op.Reversible() {
			return false
		}
	}
	return true
}

// Checksum returns the hex SHA-256 of the canonical operation encoding.
func (m *Migration) Checksum() (string, error) {
	docs, err := encodeOps(m.Operations)
	if err != nil {
		return "", err
	}
	raw, err := yaml.Marshal(docs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// migrationDoc is the on-disk YAML shape.
type migrationDoc struct {
	ID           string    `yaml:"id"`
	Namespace    string    `yaml:"namespace,omitempty"`
	Description  string    `yaml:"description,omitempty"`
	CreatedAt    time.Time `yaml:"created_at"`
	Dependencies []string  `yaml:"dependencies,omitempty"`
	Operations   []opDoc   `yaml:"operations"`
}

// opDoc is the tagged union persisted per operation. Only the fields the
// tagged kind uses are set.
type opDoc struct {
	Op         string             `yaml:"op"`
	Table      *schema.Table      `yaml:"table,omitempty"`
	TableName  string             `yaml:"table_name,omitempty"`
	Name       string             `yaml:"name,omitempty"`
	From       string             `yaml:"from,omitempty"`
	To         string             `yaml:"to,omitempty"`
	Column     *schema.Column     `yaml:"column,omitempty"`
	FromColumn *schema.Column     `yaml:"from_column,omitempty"`
	ToColumn   *schema.Column     `yaml:"to_column,omitempty"`
	Index      *schema.Index      `yaml:"index,omitempty"`
	Constraint *schema.Constraint `yaml:"constraint,omitempty"`
	Forward    []string           `yaml:"forward,omitempty"`
	Reverse    []string           `yaml:"reverse,omitempty"`
	Reversible bool               `yaml:"reversible,omitempty"`
}

// Encode renders the migration as YAML.
func (m *Migration) Encode() ([]byte, error) {
	docs, err := encodeOps(m.Operations)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(migrationDoc{
		ID:           m.ID,
		Namespace:    m.Namespace,
		Description:  m.Description,
		CreatedAt:    m.CreatedAt,
		Dependencies: m.Dependencies,
		Operations:   docs,
	})
}

// DecodeMigration parses a YAML migration file.
func DecodeMigration(data []byte) (*Migration, error) {
	var doc migrationDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tessera: parsing migration: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("tessera: migration file has no id")
	}
	ops := make([]Operation, 0, len(doc.Operations))
	for i, od := range doc.Operations {
		op, err := decodeOp(od)
		if err != nil {
			return nil, fmt.Errorf("tessera: migration %s operation %d: %w", doc.ID, i, err)
		}
		ops = append(ops, op)
	}
	ns := doc.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return &Migration{
		ID:           doc.ID,
		Namespace:    ns,
		Description:  doc.Description,
		Dependencies: doc.Dependencies,
		CreatedAt:    doc.CreatedAt,
		Operations:   ops,
	}, nil
}

func encodeOps(ops []Operation) ([]opDoc, error) {
	docs := make([]opDoc, 0, len(ops))
	for _, op := range ops {
		doc, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func encodeOp(op Operation) (opDoc, error) {
	switch o := op.(type) {
	case *CreateTable:
		return opDoc{Op: "create_table", Table: o.Table}, nil
	case *DropTable:
		return opDoc{Op: "drop_table", Name: o.Name}, nil
	case *RenameTable:
		return opDoc{Op: "rename_table", From: o.From, To: o.To}, nil
	case *AddColumn:
		return opDoc{Op: "add_column", TableName: o.Table, Column: o.Column}, nil
	case *DropColumn:
		return opDoc{Op: "drop_column", TableName: o.Table, Name: o.Column}, nil
	case *AlterColumn:
		return opDoc{Op: "alter_column", TableName: o.Table, FromColumn: o.From, ToColumn: o.To}, nil
	case *RenameColumn:
		return opDoc{Op: "rename_column", TableName: o.Table, From: o.From, To: o.To}, nil
	case *CreateIndex:
		return opDoc{Op: "create_index", TableName: o.Table, Index: o.Index}, nil
	case *DropIndex:
		return opDoc{Op: "drop_index", TableName: o.Table, Index: o.Index}, nil
	case *RenameIndex:
		return opDoc{Op: "rename_index", TableName: o.Table, From: o.From, To: o.To}, nil
	case *AddConstraint:
		return opDoc{Op: "add_constraint", TableName: o.Table, Constraint: o.Constraint}, nil
	case *DropConstraint:
		return opDoc{Op: "drop_constraint", TableName: o.Table, Constraint: o.Constraint}, nil
	case *RunSQL:
		return opDoc{Op: "run_sql", Forward: o.Forward, Reverse: o.Reverse, Reversible: o.Reversible()}, nil
	}
	return opDoc{}, fmt.Errorf("unknown operation type %T", op)
}

func decodeOp(doc opDoc) (Operation, error) {
	switch doc.Op {
	case "create_table":
		if doc.Table == nil {
			return nil, fmt.Errorf("create_table requires a table")
		}
		return &CreateTable{Table: doc.Table}, nil
	case "drop_table":
		return &DropTable{Name: doc.Name}, nil
	case "rename_table":
		return &RenameTable{From: doc.From, To: doc.To}, nil
	case "add_column":
		if doc.Column == nil {
			return nil, fmt.Errorf("add_column requires a column")
		}
		return &AddColumn{Table: doc.TableName, Column: doc.Column}, nil
	case "drop_column":
		return &DropColumn{Table: doc.TableName, Column: doc.Name}, nil
	case "alter_column":
		if doc.FromColumn == nil || doc.ToColumn == nil {
			return nil, fmt.Errorf("alter_column requires from_column and to_column")
		}
		return &AlterColumn{Table: doc.TableName, From: doc.FromColumn, To: doc.ToColumn}, nil
	case "rename_column":
		return &RenameColumn{Table: doc.TableName, From: doc.From, To: doc.To}, nil
	case "create_index":
		if doc.Index == nil {
			return nil, fmt.Errorf("create_index requires an index")
		}
		return &CreateIndex{Table: doc.TableName, Index: doc.Index}, nil
	case "drop_index":
		if doc.Index == nil {
			return nil, fmt.Errorf("drop_index requires the index definition")
		}
		return &DropIndex{Table: doc.TableName, Index: doc.Index}, nil
	case "rename_index":
		return &RenameIndex{Table: doc.TableName, From: doc.From, To: doc.To}, nil
	case "add_constraint":
		if doc.Constraint == nil {
			return nil, fmt.Errorf("add_constraint requires a constraint")
		}
		return &AddConstraint{Table: doc.TableName, Constraint: doc.Constraint}, nil
	case "drop_constraint":
		if doc.Constraint == nil {
			return nil, fmt.Errorf("drop_constraint requires the constraint definition")
		}
		return &DropConstraint{Table: doc.TableName, Constraint: doc.Constraint}, nil
	case "run_sql":
		return &RunSQL{Forward: doc.Forward, Reverse: doc.Reverse}, nil
	}
	return nil, fmt.Errorf("unknown operation kind %q", doc.Op)
}
