// Package tuple implements the on-disk serialization of a stored tuple:
// comma-joined attribute values terminated by a single NUL byte.
package tuple

import (
	"bytes"
	"fmt"

	"github.com/rpcpool/relstore/internal/relerr"
)

// Tuple is an ordered sequence of exactly numAttrs opaque attribute values.
type Tuple [][]byte

// Validate checks that t has the given number of attributes and that no
// value contains a comma, a NUL byte, or is the literal wildcard "?".
func Validate(t Tuple, numAttrs int) error {
	if len(t) != numAttrs {
		return fmt.Errorf("%w: tuple has %d attributes, relation has %d", relerr.ErrInvalidInput, len(t), numAttrs)
	}
	for i, v := range t {
		if bytes.IndexByte(v, ',') >= 0 {
			return fmt.Errorf("%w: attribute %d contains a comma", relerr.ErrInvalidInput, i)
		}
		if bytes.IndexByte(v, 0) >= 0 {
			return fmt.Errorf("%w: attribute %d contains a NUL byte", relerr.ErrInvalidInput, i)
		}
		if string(v) == "?" {
			return fmt.Errorf("%w: attribute %d is the literal wildcard \"?\"", relerr.ErrInvalidInput, i)
		}
	}
	return nil
}

// Serialize renders t as "value_0,value_1,...,value_{n-1}\x00". Callers
// must have already validated t (Validate).
func Serialize(t Tuple) []byte {
	var buf bytes.Buffer
	for i, v := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(v)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

// Parse is the inverse of Serialize: it splits a NUL-terminated,
// comma-joined byte string back into its attribute values. The trailing
// NUL must not be included in b.
func Parse(b []byte) Tuple {
	parts := bytes.Split(b, []byte{','})
	t := make(Tuple, len(parts))
	copy(t, parts)
	return t
}
