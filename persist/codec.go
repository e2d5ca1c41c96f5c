package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/dfrcore/dfr/internal/msgpack"
	"github.com/dfrcore/dfr/internal/serialize"
	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/source"
)

// magic identifies a .dfr session file. version is the only payload
// layout this codec currently understands; any other value is rejected
// with UnsupportedVersion by the caller.
const (
	magic   = "DFRSESS1"
	version = uint32(1)
)

// Session is the logical content of a .dfr file: the source it points
// at, its operation pipeline, and a free-form UI hints bag (panel
// layout, column widths — anything the collaborator wants to round-trip
// but the engine itself never interprets).
type Session struct {
	Source   source.Descriptor
	Ops      []op.Operation
	UIHints  map[string]any
}

// Encode renders s as a .dfr file: magic, BE u32 version, BE u64 payload
// length, the zstd-compressed structural payload, then a BE u32 CRC32 of
// the pre-compression bytes. The structural payload is EncodeIdentity's
// output for (Source, Ops) followed by a length-prefixed MessagePack blob
// for UIHints.
func Encode(s Session) ([]byte, error) {
	structural, err := EncodeIdentity(s.Source, s.Ops)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}

	hints, err := msgpack.Encode(s.UIHints)
	if err != nil {
		return nil, fmt.Errorf("encode ui_hints: %w", err)
	}
	structural = appendBytesWithLen(structural, hints)

	checksum := crc32.ChecksumIEEE(structural)

	compressor, err := serialize.NewCompressor()
	if err != nil {
		return nil, fmt.Errorf("new compressor: %w", err)
	}
	defer compressor.Close()

	compressed, err := compressor.Compress(structural)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(magic)
	writeUint32(&out, version)
	writeUint64(&out, uint64(len(compressed)))
	out.Write(compressed)
	writeUint32(&out, checksum)
	return out.Bytes(), nil
}

// Decode parses a .dfr file produced by Encode, verifying its magic,
// version, and checksum. Unknown versions fail distinctly so the caller
// can surface UnsupportedVersion rather than a generic decode failure.
func Decode(data []byte) (Session, error) {
	r := bytes.NewReader(data)

	magicBuf := make([]byte, len(magic))
	if _, err := r.Read(magicBuf); err != nil || string(magicBuf) != magic {
		return Session{}, fmt.Errorf("not a session file: bad magic")
	}

	gotVersion, err := readUint32(r)
	if err != nil {
		return Session{}, fmt.Errorf("read version: %w", err)
	}
	if gotVersion != version {
		return Session{}, &UnsupportedVersionError{Got: gotVersion, Want: version}
	}

	payloadLen, err := readUint64(r)
	if err != nil {
		return Session{}, fmt.Errorf("read payload length: %w", err)
	}
	compressed := make([]byte, payloadLen)
	if _, err := r.Read(compressed); err != nil {
		return Session{}, fmt.Errorf("read payload: %w", err)
	}

	wantChecksum, err := readUint32(r)
	if err != nil {
		return Session{}, fmt.Errorf("read checksum: %w", err)
	}

	decompressor, err := serialize.NewDecompressor()
	if err != nil {
		return Session{}, fmt.Errorf("new decompressor: %w", err)
	}
	defer decompressor.Close()

	structural, err := decompressor.Decompress(compressed)
	if err != nil {
		return Session{}, fmt.Errorf("decompress payload: %w", err)
	}

	if gotChecksum := crc32.ChecksumIEEE(structural); gotChecksum != wantChecksum {
		return Session{}, fmt.Errorf("checksum mismatch: got %08x want %08x", gotChecksum, wantChecksum)
	}

	return decodeStructural(structural)
}

// UnsupportedVersionError is returned when a session file's version does
// not match the version this codec implements.
type UnsupportedVersionError struct {
	Got, Want uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported session file version %d (want %d)", e.Got, e.Want)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func appendBytesWithLen(buf []byte, v []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, v...)
}
