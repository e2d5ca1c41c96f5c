package source

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// toInt64, toFloat64, toDate32, toTimestamp and toString coerce the driver
// values database/sql hands back (through the any-typed scan destinations
// duckdbAdapter.runQuery uses) into the Go types the matching Arrow builder
// expects. DuckDB's driver already returns Go-native types per column
// (int64, float64, bool, string, time.Time), so these are narrow type
// switches rather than general-purpose parsers.

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		return parseIntBytes(x)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	default:
		return 0
	}
}

func toDate32(v any) arrow.Date32 {
	t, ok := v.(time.Time)
	if !ok {
		return 0
	}
	return arrow.Date32FromTime(t)
}

func toTimestamp(v any) arrow.Timestamp {
	t, ok := v.(time.Time)
	if !ok {
		return 0
	}
	ts, _ := arrow.TimestampFromTime(t, arrow.Microsecond)
	return ts
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func parseIntBytes(b []byte) int64 {
	var n int64
	var neg bool
	for i, c := range b {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}
