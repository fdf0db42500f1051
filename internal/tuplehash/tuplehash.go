// Package tuplehash computes the multi-attribute, bit-interleaved hash of a
// stored tuple, and the partial (hash, mask) pair derived from a query with
// some attributes unknown.
package tuplehash

import (
	"github.com/rpcpool/relstore/internal/bitutil"
	"github.com/rpcpool/relstore/internal/choicevec"
)

// Hash computes the full 32-bit multi-attribute hash of tuple under cv.
// For each output bit i, bit cv.Entries[i].Bit of the hash of
// tuple[cv.Entries[i].Attr] is shifted into position i.
func Hash(cv *choicevec.Vector, tuple [][]byte) uint32 {
	var h uint32
	for i, e := range cv.Entries {
		attrHash := bitutil.Hash(tuple[e.Attr])
		h |= bitutil.Bit(uint(e.Bit), attrHash) << uint(i)
	}
	return h
}

// Partial is a (hash, mask) pair: mask bit i is 1 iff the query attribute
// feeding output bit i is known, and hash bit i is 0 wherever mask bit i is
// 0. Invariant: hash & mask == hash.
type Partial struct {
	Hash uint32
	Mask uint32
}

// Full reports whether every bit of the partial hash is known.
func (p Partial) Full() bool {
	return p.Mask == 0xFFFFFFFF
}

// Query is a per-attribute known-value/wildcard query. A nil entry at
// index a marks attribute a as unknown ("?").
type Query [][]byte

// FromQuery computes the partial hash for q under cv. Attributes not
// present in q (q[a] == nil) contribute unknown bits; all others
// contribute known bits computed exactly as Hash does per-attribute.
func FromQuery(cv *choicevec.Vector, q Query) Partial {
	var p Partial
	for i, e := range cv.Entries {
		val := q[e.Attr]
		if val == nil {
			continue // bit i of mask stays 0, bit i of hash stays 0
		}
		attrHash := bitutil.Hash(val)
		p.Hash |= bitutil.Bit(uint(e.Bit), attrHash) << uint(i)
		p.Mask |= 1 << uint(i)
	}
	return p
}

// Matches reports whether a stored tuple's full hash h is consistent with
// partial hash p. This is necessary but not sufficient: callers must still
// verify the tuple's actual attribute values, since hashes can collide.
func (p Partial) Matches(h uint32) bool {
	return h&p.Mask == p.Hash
}
