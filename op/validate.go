package op

import (
	"fmt"
	"strconv"

	"github.com/dfrcore/dfr/dtype"
)

// ValidationError is the error type Validate returns. IsTypeErr
// distinguishes a dtype-incompatibility failure (e.g. FillNull(mean) on a
// non-numeric column, which plan.Build surfaces as dfr.KindTypeError) from
// a general structural failure (missing column, name collision,
// out-of-range parameter), which plan.Build wraps as InvalidPlan(index,
// reason).
type ValidationError struct {
	Msg       string
	IsTypeErr bool
}

func (e *ValidationError) Error() string { return e.Msg }

func structErr(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func typeErr(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), IsTypeErr: true}
}

// Validate computes the schema that results from applying o to schema, or
// fails with a ValidationError. It never mutates schema.
func Validate(o Operation, schema dtype.Schema) (dtype.Schema, error) {
	switch v := o.(type) {
	case Filter:
		return validateFilter(v, schema)
	case Sort:
		if !schema.Has(v.Column) {
			return nil, structErr("column %q not found", v.Column)
		}
		return schema, nil
	case DropColumn:
		if !schema.Has(v.Column) {
			return nil, structErr("column %q not found", v.Column)
		}
		if len(schema) <= 1 {
			return nil, structErr("cannot drop %q: would leave zero columns", v.Column)
		}
		return schema.WithDropped(v.Column), nil
	case RenameColumn:
		if !schema.Has(v.From) {
			return nil, structErr("column %q not found", v.From)
		}
		if v.From != v.To && schema.Has(v.To) {
			return nil, structErr("column %q already exists", v.To)
		}
		return schema.WithRenamed(v.From, v.To), nil
	case SelectColumns:
		return validateSelectColumns(v, schema)
	case Limit:
		if v.N < 1 {
			return nil, structErr("limit must be >= 1, got %d", v.N)
		}
		return schema, nil
	case FillNull:
		return validateFillNull(v, schema)
	case CastColumn:
		if !schema.Has(v.Column) {
			return nil, structErr("column %q not found", v.Column)
		}
		if v.Target == dtype.Invalid {
			return nil, structErr("invalid target dtype for column %q", v.Column)
		}
		return schema.WithCast(v.Column, v.Target), nil
	case ParseDatetime:
		idx := schema.IndexOf(v.Column)
		if idx < 0 {
			return nil, structErr("column %q not found", v.Column)
		}
		if schema[idx].Type != dtype.String {
			return nil, structErr("column %q must be String to parse as datetime, got %s", v.Column, schema[idx].Type)
		}
		return schema.WithCast(v.Column, dtype.Datetime), nil
	default:
		return nil, structErr("unknown operation type %T", o)
	}
}

func validateFilter(v Filter, schema dtype.Schema) (dtype.Schema, error) {
	idx := schema.IndexOf(v.Column)
	if idx < 0 {
		return nil, structErr("column %q not found", v.Column)
	}
	col := schema[idx]

	switch v.Predicate {
	case PredEq, PredNeq, PredGt, PredGte, PredLt, PredLte:
		// comparisons coerce value to column dtype; a value that cannot
		// parse as a numeric or boolean column's dtype is rejected up
		// front, with the same parsing columnar applies at execution time.
		var perr error
		switch col.Type {
		case dtype.Int32, dtype.Int64:
			_, perr = strconv.ParseInt(v.Value, 10, 64)
		case dtype.Float32, dtype.Float64:
			_, perr = strconv.ParseFloat(v.Value, 64)
		case dtype.Boolean:
			_, perr = strconv.ParseBool(v.Value)
		}
		if perr != nil {
			return nil, typeErr("value %q is not a valid %s for column %q", v.Value, col.Type, v.Column)
		}
	case PredContains:
		if col.Type != dtype.String {
			return nil, typeErr("contains requires a string column, %q is %s", v.Column, col.Type)
		}
	case PredIsNull, PredIsNotNull:
		// no value needed
	default:
		return nil, structErr("unknown predicate %q", v.Predicate)
	}

	if v.Predicate.takesValue() && v.Value == "" && v.Predicate != PredEq && v.Predicate != PredNeq {
		// empty value is permitted for eq/neq (matches empty string); for
		// ordering comparisons an empty value almost certainly means the
		// caller forgot to supply one, but we can't distinguish that from
		// an intentional empty string, so apart from the numeric/boolean
		// parse check above we don't reject it here: the coercion failure
		// (if any) will surface at execution time.
	}

	return schema, nil
}

func validateSelectColumns(v SelectColumns, schema dtype.Schema) (dtype.Schema, error) {
	if len(v.Columns) == 0 {
		return nil, structErr("select_columns requires at least one column")
	}
	for _, c := range v.Columns {
		if !schema.Has(c) {
			return nil, structErr("column %q not found", c)
		}
	}
	return schema.Selected(v.Columns), nil
}

func validateFillNull(v FillNull, schema dtype.Schema) (dtype.Schema, error) {
	idx := schema.IndexOf(v.Column)
	if idx < 0 {
		return nil, structErr("column %q not found", v.Column)
	}
	col := schema[idx]

	switch v.Strategy {
	case FillMean, FillMin, FillMax:
		if !col.Type.IsNumeric() {
			return nil, typeErr("%s requires a numeric column, %q is %s", v.Strategy, v.Column, col.Type)
		}
	case FillValue:
		if v.Value == "" {
			return nil, structErr("with_value strategy requires a value")
		}
	case FillForward, FillBackward:
		// no extra requirement
	default:
		return nil, structErr("unknown fill strategy %q", v.Strategy)
	}
	return schema, nil
}
