package plan

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"

	"github.com/dfrcore/dfr/op"
	"github.com/dfrcore/dfr/persist"
	"github.com/dfrcore/dfr/source"
)

// Hash is the content-addressed identity of a (source, ops) pair, used as
// the preview cache key: two plans that hash equal always produce the same
// preview rows, regardless of how they were constructed.
type Hash [16]byte

// String renders h as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value, which Compute never
// produces but which callers may use as a "no plan yet" sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Compute derives a Hash from descriptor and ops via their canonical
// structural encoding, so identical pipelines always hash identically
// regardless of how the caller assembled them.
func Compute(descriptor source.Descriptor, ops []op.Operation) (Hash, error) {
	buf, err := persist.EncodeIdentity(descriptor, ops)
	if err != nil {
		return Hash{}, err
	}
	sum := xxh3.Hash128(buf)
	var h Hash
	b := sum.Bytes()
	copy(h[:], b[:])
	return h, nil
}
