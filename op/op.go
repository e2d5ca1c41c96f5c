// Package op implements the operation model: the tagged variant of user
// intents that make up a pipeline. Operations are pure value types,
// compared structurally and rendered to stable descriptions.
package op

import (
	"fmt"

	"github.com/dfrcore/dfr/dtype"
)

// Tag identifies which operation a value carries.
type Tag string

const (
	TagFilter        Tag = "filter"
	TagSort          Tag = "sort"
	TagDropColumn    Tag = "drop_column"
	TagRenameColumn  Tag = "rename_column"
	TagSelectColumns Tag = "select_columns"
	TagLimit         Tag = "limit"
	TagFillNull      Tag = "fill_null"
	TagCastColumn    Tag = "cast_column"
	TagParseDatetime Tag = "parse_datetime"
)

// Predicate enumerates Filter's comparison operators.
type Predicate string

const (
	PredEq        Predicate = "eq"
	PredNeq       Predicate = "neq"
	PredGt        Predicate = "gt"
	PredGte       Predicate = "gte"
	PredLt        Predicate = "lt"
	PredLte       Predicate = "lte"
	PredContains  Predicate = "contains"
	PredIsNull    Predicate = "is_null"
	PredIsNotNull Predicate = "is_not_null"
)

// takesValue reports whether the predicate requires a comparison value.
func (p Predicate) takesValue() bool {
	return p != PredIsNull && p != PredIsNotNull
}

// FillStrategy enumerates FillNull's null-replacement strategies.
type FillStrategy string

const (
	FillForward  FillStrategy = "forward"
	FillBackward FillStrategy = "backward"
	FillValue    FillStrategy = "with_value"
	FillMean     FillStrategy = "mean"
	FillMin      FillStrategy = "min"
	FillMax      FillStrategy = "max"
)

// Operation is the interface implemented by every operation tag. Concrete
// types are the exported structs below (Filter, Sort, DropColumn, ...);
// Parse builds them from facade input, and Validate checks them against a
// schema.
type Operation interface {
	// Tag identifies the operation's kind.
	Tag() Tag

	// Equal reports structural equality: same tag, equal parameters.
	Equal(other Operation) bool

	// Describe renders a stable, human-readable description derived from
	// the tag and parameters.
	Describe() string
}

// Filter keeps rows where predicate(column, value) holds.
type Filter struct {
	Column    string
	Predicate Predicate
	Value     string // ignored for is_null/is_not_null
}

func (f Filter) Tag() Tag { return TagFilter }

func (f Filter) Equal(other Operation) bool {
	o, ok := other.(Filter)
	return ok && f == o
}

func (f Filter) Describe() string {
	switch f.Predicate {
	case PredIsNull:
		return fmt.Sprintf("Filter: %s is null", f.Column)
	case PredIsNotNull:
		return fmt.Sprintf("Filter: %s is not null", f.Column)
	case PredContains:
		return fmt.Sprintf("Filter: %s contains %q", f.Column, f.Value)
	default:
		return fmt.Sprintf("Filter: %s %s %s", f.Column, symbolFor(f.Predicate), f.Value)
	}
}

func symbolFor(p Predicate) string {
	switch p {
	case PredEq:
		return "=="
	case PredNeq:
		return "!="
	case PredGt:
		return ">"
	case PredGte:
		return ">="
	case PredLt:
		return "<"
	case PredLte:
		return "<="
	default:
		return string(p)
	}
}

// Sort stably orders rows by column; nulls sort last regardless of direction.
type Sort struct {
	Column     string
	Descending bool
}

func (s Sort) Tag() Tag { return TagSort }

func (s Sort) Equal(other Operation) bool {
	o, ok := other.(Sort)
	return ok && s == o
}

func (s Sort) Describe() string {
	dir := "ascending"
	if s.Descending {
		dir = "descending"
	}
	return fmt.Sprintf("Sort: %s (%s)", s.Column, dir)
}

// DropColumn removes one column; fails if absent or would leave zero columns.
type DropColumn struct {
	Column string
}

func (d DropColumn) Tag() Tag { return TagDropColumn }

func (d DropColumn) Equal(other Operation) bool {
	o, ok := other.(DropColumn)
	return ok && d == o
}

func (d DropColumn) Describe() string {
	return fmt.Sprintf("Drop column: %s", d.Column)
}

// RenameColumn renames From to To, preserving column order.
type RenameColumn struct {
	From string
	To   string
}

func (r RenameColumn) Tag() Tag { return TagRenameColumn }

func (r RenameColumn) Equal(other Operation) bool {
	o, ok := other.(RenameColumn)
	return ok && r == o
}

func (r RenameColumn) Describe() string {
	return fmt.Sprintf("Rename column: %s -> %s", r.From, r.To)
}

// SelectColumns projects to the given columns, in the given order.
type SelectColumns struct {
	Columns []string
}

func (s SelectColumns) Tag() Tag { return TagSelectColumns }

func (s SelectColumns) Equal(other Operation) bool {
	o, ok := other.(SelectColumns)
	if !ok || len(s.Columns) != len(o.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}

func (s SelectColumns) Describe() string {
	return fmt.Sprintf("Select columns: %v", s.Columns)
}

// Limit takes the first N rows of the current order.
type Limit struct {
	N int64
}

func (l Limit) Tag() Tag { return TagLimit }

func (l Limit) Equal(other Operation) bool {
	o, ok := other.(Limit)
	return ok && l == o
}

func (l Limit) Describe() string {
	return fmt.Sprintf("Limit: %d rows", l.N)
}

// FillNull replaces nulls in column according to strategy.
type FillNull struct {
	Column   string
	Strategy FillStrategy
	Value    string // used only when Strategy == FillValue
}

func (f FillNull) Tag() Tag { return TagFillNull }

func (f FillNull) Equal(other Operation) bool {
	o, ok := other.(FillNull)
	return ok && f == o
}

func (f FillNull) Describe() string {
	switch f.Strategy {
	case FillValue:
		return fmt.Sprintf("Fill null: %s with %q", f.Column, f.Value)
	default:
		return fmt.Sprintf("Fill null: %s (%s)", f.Column, f.Strategy)
	}
}

// CastColumn parses/converts column to a target dtype; values that fail
// coercion become null and increment an error counter at execution time.
type CastColumn struct {
	Column string
	Target dtype.Dtype
}

func (c CastColumn) Tag() Tag { return TagCastColumn }

func (c CastColumn) Equal(other Operation) bool {
	o, ok := other.(CastColumn)
	return ok && c == o
}

func (c CastColumn) Describe() string {
	return fmt.Sprintf("Cast column: %s -> %s", c.Column, c.Target)
}

// ParseDatetime parses a String column into Datetime using a strftime-style
// format (e.g. "%Y-%m-%d"); values that fail to parse become null.
type ParseDatetime struct {
	Column string
	Format string
}

func (p ParseDatetime) Tag() Tag { return TagParseDatetime }

func (p ParseDatetime) Equal(other Operation) bool {
	o, ok := other.(ParseDatetime)
	return ok && p == o
}

func (p ParseDatetime) Describe() string {
	return fmt.Sprintf("Parse datetime: %s (format %q)", p.Column, p.Format)
}
