// Package bitutil provides the low-level bit operations and the string
// hash that the choice-vector and tuple-hashing layers build on top of.
package bitutil

import "github.com/cespare/xxhash/v2"

// HashBits is the width, in bits, of the hash domain used throughout the
// relation store: choice-vector entries, tuple hashes, and partial hashes
// are all HashBits wide.
const HashBits = 32

// Bit returns bit i of v, as 0 or 1.
func Bit(i uint, v uint32) uint32 {
	return (v >> i) & 1
}

// LowerBits returns the low n bits of v. n == 0 yields 0; n >= 32 yields v.
func LowerBits(n uint, v uint32) uint32 {
	if n == 0 {
		return 0
	}
	if n >= HashBits {
		return v
	}
	return v & ((uint32(1) << n) - 1)
}

// HighestSetBit returns the position of the highest set bit in v, plus one.
// HighestSetBit(0) == 0, HighestSetBit(1) == 1, HighestSetBit(4) == 3.
func HighestSetBit(v uint32) uint {
	n := uint(0)
	for v != 0 {
		v >>= 1
		n++
	}
	return n
}

// Hash returns the low 32 bits of a stable, deterministic 64-bit hash of s.
//
// The function is xxHash64 (github.com/cespare/xxhash/v2), truncated to its
// low 32 bits. This choice is part of the on-disk contract of a relation:
// data inserted under one build is only retrievable if every subsequent
// open of the same data file computes identical hashes, so this function
// must never change for a given binary's data format version.
func Hash(s []byte) uint32 {
	return uint32(xxhash.Sum64(s))
}

// HashString is Hash for a string value, avoiding an extra allocation.
func HashString(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}
