// Package choicevec implements the ChoiceVector: the ordered mapping from
// each output hash bit to the (attribute, attribute-bit) pair it is drawn
// from. A relation's choice vector is fixed at creation time and stored
// verbatim in its .info file.
package choicevec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"

	"github.com/rpcpool/relstore/internal/bitutil"
	"github.com/rpcpool/relstore/internal/relerr"
)

// H is the number of entries in a choice vector: one per output hash bit.
const H = bitutil.HashBits

// Entry is a single (attribute, attribute-bit) pair: bit i of a tuple's
// multi-attribute hash is drawn from bit Bit of the hash of attribute Attr.
type Entry struct {
	Attr uint32
	Bit  uint8
}

// entryBytes is the on-disk size of one Entry: a uint32 attribute index
// followed by a uint8 bit index.
const entryBytes = 5

// Vector is an immutable, exactly-H-entry choice vector.
type Vector struct {
	Entries [H]Entry
}

// New builds a choice vector for a relation with numAttrs attributes.
// given is a caller-supplied prefix of entries, copied verbatim and not
// deduplicated (matching the source behavior of leaving prefix duplicates
// unchecked). The remaining H-len(given) entries are generated by
// rejection sampling: draw (attr, bit) uniformly until a pair unseen among
// already-assigned entries turns up.
func New(given []Entry, numAttrs uint32) (*Vector, error) {
	if numAttrs == 0 {
		return nil, relerr.ErrInvalidInput
	}
	if len(given) > H {
		return nil, &relerr.ParseError{Reason: relerr.ReasonTooManyEntries, Detail: fmt.Sprintf("%d > %d", len(given), H)}
	}
	v := new(Vector)
	seen := make(map[Entry]struct{}, H)
	for i, e := range given {
		if e.Attr >= numAttrs {
			return nil, &relerr.ParseError{Reason: relerr.ReasonAttributeOutOfRange, Detail: fmt.Sprintf("entry %d: attr %d >= %d", i, e.Attr, numAttrs)}
		}
		if uint(e.Bit) >= H {
			return nil, &relerr.ParseError{Reason: relerr.ReasonBitOutOfRange, Detail: fmt.Sprintf("entry %d: bit %d >= %d", i, e.Bit, H)}
		}
		v.Entries[i] = e
		// Only generated entries are deduplicated against; prefix entries
		// are accepted as-is, duplicates and all.
		seen[e] = struct{}{}
	}
	for i := len(given); i < H; i++ {
		for {
			e := Entry{
				Attr: uint32(rand.Intn(int(numAttrs))),
				Bit:  uint8(rand.Intn(int(H))),
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			v.Entries[i] = e
			break
		}
	}
	return v, nil
}

// ReadFrom loads a choice vector from its binary form: H entries of
// (attr uint32, bit uint8), big-endian, back to back.
func (v *Vector) ReadFrom(r io.Reader) error {
	buf := make([]byte, entryBytes)
	for i := 0; i < H; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("choicevec: read entry %d: %w", i, err)
		}
		v.Entries[i] = Entry{
			Attr: binary.BigEndian.Uint32(buf[0:4]),
			Bit:  buf[4],
		}
	}
	return nil
}

// WriteTo serializes the choice vector in the same layout ReadFrom expects.
func (v *Vector) WriteTo(w io.Writer) error {
	buf := make([]byte, entryBytes)
	for i := 0; i < H; i++ {
		e := v.Entries[i]
		binary.BigEndian.PutUint32(buf[0:4], e.Attr)
		buf[4] = e.Bit
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("choicevec: write entry %d: %w", i, err)
		}
	}
	return nil
}

// Bytes is the total on-disk size of a choice vector.
const Bytes = H * entryBytes

// Parse interprets a choice-vector prefix string of the form
// "attr,bit:attr,bit:...", e.g. "0,0:1,1:2,2", generating the remaining
// entries as New does. An empty string yields a fully-generated vector.
func Parse(s string, numAttrs uint32) (*Vector, error) {
	given, err := parsePrefix(s)
	if err != nil {
		return nil, err
	}
	return New(given, numAttrs)
}

func parsePrefix(s string) ([]Entry, error) {
	if s == "" {
		return nil, nil
	}
	parts := splitNonEmpty(s, ':')
	if len(parts) > H {
		return nil, &relerr.ParseError{Reason: relerr.ReasonTooManyEntries, Detail: fmt.Sprintf("%d > %d", len(parts), H)}
	}
	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		pair := splitNonEmpty(p, ',')
		if len(pair) != 2 {
			return nil, &relerr.ParseError{Reason: relerr.ReasonMalformedEntry, Detail: p}
		}
		attr, err := parseUint(pair[0])
		if err != nil {
			return nil, &relerr.ParseError{Reason: relerr.ReasonUnparsableNumber, Detail: pair[0]}
		}
		bit, err := parseUint(pair[1])
		if err != nil {
			return nil, &relerr.ParseError{Reason: relerr.ReasonUnparsableNumber, Detail: pair[1]}
		}
		if bit >= H {
			return nil, &relerr.ParseError{Reason: relerr.ReasonBitOutOfRange, Detail: fmt.Sprintf("%d >= %d", bit, H)}
		}
		entries = append(entries, Entry{Attr: uint32(attr), Bit: uint8(bit)})
	}
	return entries, nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func parseUint(s string) (uint, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	var v uint
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a digit: %q", s)
		}
		v = v*10 + uint(c-'0')
	}
	return v, nil
}
