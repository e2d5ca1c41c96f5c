// Package persist implements the session codec: a stable, tagged binary
// encoding of a dataset source and its operation pipeline, and the .dfr
// file envelope that wraps it (magic, version, CRC32, zstd compression).
// The same structural encoding (EncodeIdentity) underlies both the session
// file's payload and plan.Hash's fingerprint, so two sessions with
// identical (source, ops) always hash identically.
package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/source"
)

// tag bytes identify each operation kind in the structural encoding,
// independent of op.Tag's string form so the wire format doesn't change if
// the string constants are ever renamed.
const (
	tagFilter byte = iota + 1
	tagSort
	tagDropColumn
	tagRenameColumn
	tagSelectColumns
	tagLimit
	tagFillNull
	tagCastColumn
	tagParseDatetime
)

const (
	tagSourceCSV byte = iota + 1
	tagSourceTSV
	tagSourceNDJSON
	tagSourceSQL
	tagSourceParquet
	tagSourceIPC
	tagSourceXLSX
)

// EncodeIdentity renders (descriptor, ops) as a canonical byte sequence:
// deterministic, order-preserving, and sensitive to any field change. Used
// both as the session file's structural payload and as plan.Hash's input.
func EncodeIdentity(desc source.Descriptor, ops []op.Operation) ([]byte, error) {
	var buf []byte
	buf, err := appendDescriptor(buf, desc)
	if err != nil {
		return nil, err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ops)))
	buf = append(buf, lenBuf[:]...)

	for i, o := range ops {
		buf, err = appendOperation(buf, o)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return buf, nil
}

func appendDescriptor(buf []byte, d source.Descriptor) ([]byte, error) {
	tag, err := sourceTag(d.Format)
	if err != nil {
		return nil, err
	}
	buf = append(buf, tag)
	buf = appendString(buf, d.Path)
	buf = appendString(buf, d.Query)
	buf = appendString(buf, string(d.Delimiter))
	buf = appendBool(buf, d.HasHeader)
	buf = appendInt64(buf, int64(d.SampleSize))
	buf = appendString(buf, d.Sheet)
	return buf, nil
}

func sourceTag(f source.Format) (byte, error) {
	switch f {
	case source.FormatCSV:
		return tagSourceCSV, nil
	case source.FormatTSV:
		return tagSourceTSV, nil
	case source.FormatNDJSON:
		return tagSourceNDJSON, nil
	case source.FormatSQL:
		return tagSourceSQL, nil
	case source.FormatParquet:
		return tagSourceParquet, nil
	case source.FormatIPC:
		return tagSourceIPC, nil
	case source.FormatXLSX:
		return tagSourceXLSX, nil
	default:
		return 0, fmt.Errorf("unknown source format %q", f)
	}
}

func appendOperation(buf []byte, o op.Operation) ([]byte, error) {
	switch v := o.(type) {
	case op.Filter:
		buf = append(buf, tagFilter)
		buf = appendString(buf, v.Column)
		buf = appendString(buf, string(v.Predicate))
		buf = appendString(buf, v.Value)
	case op.Sort:
		buf = append(buf, tagSort)
		buf = appendString(buf, v.Column)
		buf = appendBool(buf, v.Descending)
	case op.DropColumn:
		buf = append(buf, tagDropColumn)
		buf = appendString(buf, v.Column)
	case op.RenameColumn:
		buf = append(buf, tagRenameColumn)
		buf = appendString(buf, v.From)
		buf = appendString(buf, v.To)
	case op.SelectColumns:
		buf = append(buf, tagSelectColumns)
		buf = appendInt64(buf, int64(len(v.Columns)))
		for _, c := range v.Columns {
			buf = appendString(buf, c)
		}
	case op.Limit:
		buf = append(buf, tagLimit)
		buf = appendInt64(buf, v.N)
	case op.FillNull:
		buf = append(buf, tagFillNull)
		buf = appendString(buf, v.Column)
		buf = appendString(buf, string(v.Strategy))
		buf = appendString(buf, v.Value)
	case op.CastColumn:
		buf = append(buf, tagCastColumn)
		buf = appendString(buf, v.Column)
		buf = appendString(buf, v.Target.String())
	case op.ParseDatetime:
		buf = append(buf, tagParseDatetime)
		buf = appendString(buf, v.Column)
		buf = appendString(buf, v.Format)
	default:
		return nil, fmt.Errorf("unknown operation type %T", o)
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendInt64(buf []byte, n int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return append(buf, b[:]...)
}
