package relation

// Partial-match page-id enumeration.
//
// Given a partial hash (h, m) and the relation's linear-hash state
// (depth, split_pointer, num_pages), the enumerator yields exactly the set
// of bucket ids that could hold a tuple matching (h, m).
//
// The bucket id space splits cleanly at split_pointer:
//
//   - ids in [split_pointer, 2^depth) have not split this round; they are
//     addressed directly with the low `depth` bits of a hash (section A).
//   - every other id in [0, num_pages) -- the ids < split_pointer (low
//     siblings of an already-split bucket) and the ids >= 2^depth (their
//     high siblings) -- requires the extra `depth`-th bit to disambiguate
//     low from high (section B).
//
// A query's knowledge of hash bit `depth` only constrains section B's
// extra bit: known, it is fixed to the query's value; unknown, both 0 and
// 1 must be tried, since either could be the real tuple's split side.
// Section A never inspects bit `depth` at all, since unsplit buckets have
// no sibling to disambiguate. This two-section split, run unconditionally
// together and filtered by disjoint id ranges, is what keeps the two
// enumerations from yielding duplicates: section A never crosses into
// split_pointer's already-split territory, and section B never strays
// into the other direction.
import (
	"io"

	"github.com/rpcpool/relstore/internal/bitutil"
	"github.com/rpcpool/relstore/internal/page"
	"github.com/rpcpool/relstore/internal/tuplehash"
)

// idGenerator lazily produces every id obtainable by scattering a binary
// counter across a fixed set of free bit positions on top of a base value.
type idGenerator struct {
	free    []uint
	base    uint32
	total   uint64
	counter uint64
}

func newIDGenerator(free []uint, base uint32) *idGenerator {
	return &idGenerator{free: free, base: base, total: uint64(1) << uint(len(free))}
}

func (g *idGenerator) next() (uint32, bool) {
	if g.counter >= g.total {
		return 0, false
	}
	id := g.base
	c := g.counter
	for i, pos := range g.free {
		id |= uint32((c>>uint(i))&1) << pos
	}
	g.counter++
	return id, true
}

// Enumerator is the lazy, single-pass, finite bucket-id sequence driven by
// a partial hash and a snapshot of the relation's linear-hash state.
type Enumerator struct {
	a, b         *idGenerator
	phase        int // 0: draining a, 1: draining b, 2: exhausted
	splitPointer uint32
	depthBit     uint64
	numPages     uint64
}

// NewEnumerator builds the enumerator for partial hash p against a
// relation whose addressing state is (depth, splitPointer, numPages).
func NewEnumerator(p tuplehash.Partial, depth uint, splitPointer uint32, numPages uint64) *Enumerator {
	var free []uint
	for i := uint(0); i < depth; i++ {
		if bitutil.Bit(i, p.Mask) == 0 {
			free = append(free, i)
		}
	}
	baseA := bitutil.LowerBits(depth, p.Hash)

	var freeB []uint
	baseB := baseA
	// depth == bitutil.HashBits exhausts the 32-bit hash domain: there is
	// no bit beyond it to disambiguate low/high siblings, so section B
	// contributes nothing (this only matters in the practically
	// unreachable case of a relation that has split every bucket it can).
	if depth < bitutil.HashBits {
		if bitutil.Bit(depth, p.Mask) == 1 {
			baseB = baseA | (bitutil.Bit(depth, p.Hash) << depth)
			freeB = free
		} else {
			freeB = make([]uint, len(free)+1)
			copy(freeB, free)
			freeB[len(free)] = depth
		}
	}

	bGen := newIDGenerator(freeB, baseB)
	if depth >= bitutil.HashBits {
		bGen.total = 0
	}

	return &Enumerator{
		a:            newIDGenerator(free, baseA),
		b:            bGen,
		splitPointer: splitPointer,
		depthBit:     uint64(1) << depth,
		numPages:     numPages,
	}
}

// Next returns the next candidate bucket id, or io.EOF once every id
// consistent with the partial hash has been produced exactly once.
func (e *Enumerator) Next() (page.ID, error) {
	for e.phase == 0 {
		id, ok := e.a.next()
		if !ok {
			e.phase = 1
			break
		}
		if id >= e.splitPointer {
			return page.ID(id), nil
		}
	}
	for e.phase == 1 {
		id, ok := e.b.next()
		if !ok {
			e.phase = 2
			break
		}
		idw := uint64(id)
		if idw < uint64(e.splitPointer) || (idw >= e.depthBit && idw < e.numPages) {
			return page.ID(id), nil
		}
	}
	return 0, io.EOF
}
