package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/internal/msgpack"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/source"
)

// decodeStructural parses the structural payload EncodeIdentity plus
// Encode's ui_hints suffix produced, reconstructing a Session.
func decodeStructural(buf []byte) (Session, error) {
	dec := &cursor{buf: buf}

	desc, err := decodeDescriptor(dec)
	if err != nil {
		return Session{}, fmt.Errorf("decode descriptor: %w", err)
	}

	opCount, err := dec.readUint32()
	if err != nil {
		return Session{}, fmt.Errorf("read op count: %w", err)
	}

	ops := make([]op.Operation, 0, opCount)
	for i := uint32(0); i < opCount; i++ {
		o, err := decodeOperation(dec)
		if err != nil {
			return Session{}, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, o)
	}

	hintsBytes, err := dec.readBytes()
	if err != nil {
		return Session{}, fmt.Errorf("read ui_hints: %w", err)
	}
	var hints map[string]any
	if len(hintsBytes) > 0 {
		if err := msgpack.Decode(hintsBytes, &hints); err != nil {
			return Session{}, fmt.Errorf("decode ui_hints: %w", err)
		}
	}

	return Session{Source: desc, Ops: ops, UIHints: hints}, nil
}

// cursor is a minimal forward-only byte reader for the structural
// encoding's fixed-width and length-prefixed fields.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, fmt.Errorf("unexpected end of payload")
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readUint32() (uint32, error) {
	if c.pos+4 > len(c.buf) {
		return 0, fmt.Errorf("unexpected end of payload")
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) readInt64() (int64, error) {
	if c.pos+8 > len(c.buf) {
		return 0, fmt.Errorf("unexpected end of payload")
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return int64(v), nil
}

func (c *cursor) readBool() (bool, error) {
	b, err := c.readByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (c *cursor) readString() (string, error) {
	b, err := c.readBytes()
	return string(b), err
}

func (c *cursor) readBytes() ([]byte, error) {
	n, err := c.readUint32()
	if err != nil {
		return nil, err
	}
	if c.pos+int(n) > len(c.buf) {
		return nil, fmt.Errorf("unexpected end of payload")
	}
	out := c.buf[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return out, nil
}

func decodeDescriptor(c *cursor) (source.Descriptor, error) {
	tag, err := c.readByte()
	if err != nil {
		return source.Descriptor{}, err
	}
	format, err := formatFromTag(tag)
	if err != nil {
		return source.Descriptor{}, err
	}
	path, err := c.readString()
	if err != nil {
		return source.Descriptor{}, err
	}
	query, err := c.readString()
	if err != nil {
		return source.Descriptor{}, err
	}
	delimiter, err := c.readString()
	if err != nil {
		return source.Descriptor{}, err
	}
	hasHeader, err := c.readBool()
	if err != nil {
		return source.Descriptor{}, err
	}
	sampleSize, err := c.readInt64()
	if err != nil {
		return source.Descriptor{}, err
	}
	sheet, err := c.readString()
	if err != nil {
		return source.Descriptor{}, err
	}

	var delimRune rune
	if len(delimiter) > 0 {
		delimRune = []rune(delimiter)[0]
	}

	return source.Descriptor{
		Format:     format,
		Path:       path,
		Query:      query,
		Delimiter:  delimRune,
		HasHeader:  hasHeader,
		SampleSize: int(sampleSize),
		Sheet:      sheet,
	}, nil
}

func formatFromTag(tag byte) (source.Format, error) {
	switch tag {
	case tagSourceCSV:
		return source.FormatCSV, nil
	case tagSourceTSV:
		return source.FormatTSV, nil
	case tagSourceNDJSON:
		return source.FormatNDJSON, nil
	case tagSourceSQL:
		return source.FormatSQL, nil
	case tagSourceParquet:
		return source.FormatParquet, nil
	case tagSourceIPC:
		return source.FormatIPC, nil
	case tagSourceXLSX:
		return source.FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown source tag %d", tag)
	}
}

func decodeOperation(c *cursor) (op.Operation, error) {
	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagFilter:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		pred, err := c.readString()
		if err != nil {
			return nil, err
		}
		value, err := c.readString()
		if err != nil {
			return nil, err
		}
		return op.Filter{Column: column, Predicate: op.Predicate(pred), Value: value}, nil
	case tagSort:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		desc, err := c.readBool()
		if err != nil {
			return nil, err
		}
		return op.Sort{Column: column, Descending: desc}, nil
	case tagDropColumn:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		return op.DropColumn{Column: column}, nil
	case tagRenameColumn:
		from, err := c.readString()
		if err != nil {
			return nil, err
		}
		to, err := c.readString()
		if err != nil {
			return nil, err
		}
		return op.RenameColumn{From: from, To: to}, nil
	case tagSelectColumns:
		n, err := c.readInt64()
		if err != nil {
			return nil, err
		}
		columns := make([]string, n)
		for i := range columns {
			columns[i], err = c.readString()
			if err != nil {
				return nil, err
			}
		}
		return op.SelectColumns{Columns: columns}, nil
	case tagLimit:
		n, err := c.readInt64()
		if err != nil {
			return nil, err
		}
		return op.Limit{N: n}, nil
	case tagFillNull:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		strategy, err := c.readString()
		if err != nil {
			return nil, err
		}
		value, err := c.readString()
		if err != nil {
			return nil, err
		}
		return op.FillNull{Column: column, Strategy: op.FillStrategy(strategy), Value: value}, nil
	case tagCastColumn:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		targetName, err := c.readString()
		if err != nil {
			return nil, err
		}
		target, err := dtype.ParseDtype(targetName)
		if err != nil {
			return nil, err
		}
		return op.CastColumn{Column: column, Target: target}, nil
	case tagParseDatetime:
		column, err := c.readString()
		if err != nil {
			return nil, err
		}
		format, err := c.readString()
		if err != nil {
			return nil, err
		}
		return op.ParseDatetime{Column: column, Format: format}, nil
	default:
		return nil, fmt.Errorf("unknown operation tag %d", tag)
	}
}
