package op

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/dfrcore/dfr/dtype"
)

// Input is the recognized operation-input option set. Callers populate
// exactly the fields relevant to OpType; Parse ignores the rest.
type Input struct {
	OpType string `json:"op_type"`

	Column string `json:"column,omitempty"`

	FilterOp string `json:"filter_op,omitempty"`
	Value    string `json:"value,omitempty"`

	Descending bool `json:"descending,omitempty"`

	RenameFrom string `json:"rename_from,omitempty"`
	RenameTo   string `json:"rename_to,omitempty"`

	Columns []string `json:"columns,omitempty"`

	Limit int64 `json:"limit,omitempty"`

	FillStrategy string `json:"fill_strategy,omitempty"`
	FillValue    string `json:"fill_value,omitempty"`

	CastDtype string `json:"cast_dtype,omitempty"`

	// DatetimeFormat is a strftime-style spec (e.g. "%Y-%m-%d"), not a Go
	// reference-time layout.
	DatetimeFormat string `json:"datetime_format,omitempty"`
}

// ParseJSON decodes a JSON operation-input blob (as a GUI collaborator would
// send it) and parses it into an Operation.
func ParseJSON(data []byte) (Operation, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode operation input: %w", err)
	}
	return Parse(in)
}

// Parse converts an already-decoded Input into an Operation. It performs
// only structural/shape parsing (e.g. string -> Predicate, string ->
// Dtype); semantic validation against a schema happens in Validate.
func Parse(in Input) (Operation, error) {
	switch in.OpType {
	case "filter":
		return Filter{Column: in.Column, Predicate: Predicate(in.FilterOp), Value: in.Value}, nil
	case "sort":
		return Sort{Column: in.Column, Descending: in.Descending}, nil
	case "drop_column":
		return DropColumn{Column: in.Column}, nil
	case "rename_column":
		if in.RenameFrom == "" || in.RenameTo == "" {
			return nil, fmt.Errorf("rename_column requires rename_from and rename_to")
		}
		return RenameColumn{From: in.RenameFrom, To: in.RenameTo}, nil
	case "select_columns":
		if len(in.Columns) == 0 {
			return nil, fmt.Errorf("select_columns requires at least one column")
		}
		return SelectColumns{Columns: append([]string(nil), in.Columns...)}, nil
	case "limit":
		if in.Limit < 1 {
			return nil, fmt.Errorf("limit must be a positive integer")
		}
		return Limit{N: in.Limit}, nil
	case "fill_null":
		strategy := FillStrategy(in.FillStrategy)
		if strategy == FillValue && in.FillValue == "" {
			return nil, fmt.Errorf("fill_strategy=with_value requires fill_value")
		}
		return FillNull{Column: in.Column, Strategy: strategy, Value: in.FillValue}, nil
	case "cast_column":
		target, err := dtype.ParseDtype(in.CastDtype)
		if err != nil {
			return nil, fmt.Errorf("cast_dtype: %w", err)
		}
		return CastColumn{Column: in.Column, Target: target}, nil
	case "parse_datetime":
		if in.DatetimeFormat == "" {
			return nil, fmt.Errorf("parse_datetime requires datetime_format")
		}
		return ParseDatetime{Column: in.Column, Format: in.DatetimeFormat}, nil
	default:
		return nil, fmt.Errorf("unknown op_type %q", in.OpType)
	}
}
