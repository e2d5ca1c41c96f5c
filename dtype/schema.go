package dtype

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Field is one (name, dtype) pair within a Schema.
type Field struct {
	Name string
	Type Dtype
}

// Schema is an ordered sequence of fields. Names are unique within a schema;
// order is user-visible.
type Schema []Field

// IndexOf returns the position of name in the schema, or -1 if absent.
func (s Schema) IndexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether name is present in the schema.
func (s Schema) Has(name string) bool {
	return s.IndexOf(name) >= 0
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Clone returns an independent copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two schemas have the same fields in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// WithRenamed returns a copy of the schema with from renamed to to, in place.
func (s Schema) WithRenamed(from, to string) Schema {
	out := s.Clone()
	for i, f := range out {
		if f.Name == from {
			out[i].Name = to
		}
	}
	return out
}

// WithDropped returns a copy of the schema without the named column.
func (s Schema) WithDropped(name string) Schema {
	out := make(Schema, 0, len(s))
	for _, f := range s {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return out
}

// WithCast returns a copy of the schema with column's dtype set to target.
func (s Schema) WithCast(column string, target Dtype) Schema {
	out := s.Clone()
	for i, f := range out {
		if f.Name == column {
			out[i].Type = target
		}
	}
	return out
}

// Selected returns a copy of the schema projected and reordered to columns,
// which must all be present (callers validate this beforehand).
func (s Schema) Selected(columns []string) Schema {
	out := make(Schema, 0, len(columns))
	for _, name := range columns {
		idx := s.IndexOf(name)
		if idx >= 0 {
			out = append(out, s[idx])
		}
	}
	return out
}

// ArrowSchema renders the schema as an arrow.Schema, used when building
// RecordBuilders for columnar execution.
func (s Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, f := range s {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.Arrow(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// FromArrowSchema builds a Schema from an arrow.Schema, failing if any field
// has no mapping into the closed Dtype set.
func FromArrowSchema(as *arrow.Schema) (Schema, error) {
	out := make(Schema, as.NumFields())
	for i := 0; i < as.NumFields(); i++ {
		field := as.Field(i)
		dt, ok := FromArrow(field.Type)
		if !ok {
			return nil, fmt.Errorf("unsupported arrow type %s for column %q", field.Type, field.Name)
		}
		out[i] = Field{Name: field.Name, Type: dt}
	}
	return out, nil
}
