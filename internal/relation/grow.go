package relation

import (
	"os"

	"github.com/rpcpool/relstore/internal/bitutil"
	"github.com/rpcpool/relstore/internal/page"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/rpcpool/relstore/internal/tuplehash"
)

// pageRef tracks the page currently being filled for one side (low or
// high) of a split, and which file it lives in: the main page starts
// bound to the data file, but once it fills and links to an overflow page,
// every page after that lives in the overflow file.
type pageRef struct {
	p    *page.Page
	file *os.File
}

// splitState is the working state threaded through one call to grow: the
// backlog of not-yet-rehomed tuples (the cache), the next source overflow
// page still to be drained, and the FIFO of freed overflow page ids
// available for reuse before a new page is appended.
type splitState struct {
	cache      []tuple.Tuple
	nextSource uint32
	spares     []page.ID
}

// nextOverflowID supplies an id for a page that is about to be linked as
// an overflow page: a spare if one is available, otherwise the next
// source page in the old bucket's chain (whose tuples join the cache and
// whose id becomes a spare), otherwise a fresh page at the tail of the
// overflow file.
func (s *splitState) nextOverflowID(ovflow *os.File) (page.ID, error) {
	if len(s.spares) > 0 {
		id := s.spares[0]
		s.spares = s.spares[1:]
		return id, nil
	}
	if s.nextSource != page.NoOverflow {
		loaded, err := page.Read(ovflow, page.ID(s.nextSource))
		if err != nil {
			return 0, err
		}
		s.cache = append(s.cache, loaded.GetTupleList()...)
		id := page.ID(s.nextSource)
		s.nextSource = loaded.OverflowID()
		return id, nil
	}
	np, err := page.New(ovflow)
	if err != nil {
		return 0, err
	}
	return np.ID(), nil
}

// insertSplit appends serialized into cur, relocating cur to a fresh overflow
// page (always in the overflow file from that point on) if it doesn't fit.
func (r *Relation) insertSplit(s *splitState, cur *pageRef, serialized []byte) error {
	if cur.p.AddTuple(serialized) {
		return nil
	}
	id, err := s.nextOverflowID(r.ovflow)
	if err != nil {
		return err
	}
	cur.p.SetOverflowID(uint32(id))
	if err := cur.p.Write(cur.file); err != nil {
		return err
	}
	cur.p = page.Empty(id)
	cur.file = r.ovflow
	if !cur.p.AddTuple(serialized) {
		return &invariantOversizeDuringSplit{}
	}
	return nil
}

type invariantOversizeDuringSplit struct{}

func (e *invariantOversizeDuringSplit) Error() string {
	return "relation: a tuple already accepted by Insert no longer fits an empty page during split"
}

// grow performs one incremental split: bucket split_pointer is rebuilt as
// the "low" page at the same id, and a new "high" page is appended at the
// tail of the data file, with every tuple from the old bucket's chain
// rehomed to whichever side its (depth+1)-bit hash now selects.
func (r *Relation) grow() error {
	sp := r.info.splitPointer
	depth := uint(r.info.depth)
	cv := r.info.choiceVec

	oldLow, err := page.Read(r.data, page.ID(sp))
	if err != nil {
		return err
	}
	highPage, err := page.New(r.data)
	if err != nil {
		return err
	}

	state := &splitState{
		cache:      oldLow.GetTupleList(),
		nextSource: oldLow.OverflowID(),
	}

	low := &pageRef{p: page.Empty(page.ID(sp)), file: r.data}
	high := &pageRef{p: highPage, file: r.data}

	for {
		if len(state.cache) == 0 {
			if state.nextSource == page.NoOverflow {
				break
			}
			loaded, err := page.Read(r.ovflow, page.ID(state.nextSource))
			if err != nil {
				return err
			}
			state.cache = append(state.cache, loaded.GetTupleList()...)
			state.spares = append(state.spares, page.ID(state.nextSource))
			state.nextSource = loaded.OverflowID()
			continue
		}
		t := state.cache[0]
		state.cache = state.cache[1:]

		h := tuplehash.Hash(cv, t)
		serialized := tuple.Serialize(t)
		target := low
		if bitutil.LowerBits(depth+1, h) != sp {
			target = high
		}
		if err := r.insertSplit(state, target, serialized); err != nil {
			return err
		}
	}

	if err := low.p.Write(low.file); err != nil {
		return err
	}
	if err := high.p.Write(high.file); err != nil {
		return err
	}

	// Any spare overflow pages never reused during this split are zeroed
	// out so a stale header can't be mistaken for live data; their slots
	// remain permanently allocated in the overflow file (fragmentation is
	// accepted, never reclaimed).
	for _, id := range state.spares {
		if err := page.Empty(id).Write(r.ovflow); err != nil {
			return err
		}
	}

	r.info.numPages++
	if uint64(sp) == (uint64(1)<<depth)-1 {
		r.info.splitPointer = 0
		r.info.depth++
	} else {
		r.info.splitPointer++
	}
	return nil
}
