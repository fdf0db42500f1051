package page

import (
	"bytes"
	"io"
	"os"

	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/rpcpool/relstore/internal/tuplehash"
)

// SelectIter scans a main page and its overflow chain for tuples matching
// a partial hash and query, one tuple at a time. It follows the same
// Next()-returns-io.EOF shape as the rest of the store's iterators, so a
// bad page mid-chain surfaces as an error value from Next rather than
// aborting the whole scan.
type SelectIter struct {
	ovflow  *os.File
	cv      *choicevec.Vector
	partial tuplehash.Partial
	query   tuple.Tuple

	pending []tuple.Tuple
	idx     int

	nextOverflow uint32
	finished     bool
}

// Select begins a scan of p and its overflow chain in ovflow, yielding
// tuples whose multi-attribute hash is consistent with partial and whose
// known attributes equal the corresponding values in query.
func (p *Page) Select(ovflow *os.File, cv *choicevec.Vector, partial tuplehash.Partial, query tuple.Tuple) *SelectIter {
	return &SelectIter{
		ovflow:       ovflow,
		cv:           cv,
		partial:      partial,
		query:        query,
		pending:      p.GetTupleList(),
		nextOverflow: p.overflowID,
	}
}

// Next returns the next matching tuple, or io.EOF once the page and its
// entire overflow chain have been exhausted. A non-EOF error indicates a
// failed overflow page read; the iterator is considered finished
// afterwards.
func (it *SelectIter) Next() (tuple.Tuple, error) {
	for {
		for it.idx < len(it.pending) {
			t := it.pending[it.idx]
			it.idx++
			h := tuplehash.Hash(it.cv, t)
			if !it.partial.Matches(h) {
				continue
			}
			if !matchesQuery(it.query, t) {
				continue
			}
			return t, nil
		}
		if it.finished {
			return nil, io.EOF
		}
		if it.nextOverflow == NoOverflow {
			it.finished = true
			continue
		}
		next, err := Read(it.ovflow, ID(it.nextOverflow))
		if err != nil {
			it.finished = true
			return nil, err
		}
		it.pending = next.GetTupleList()
		it.idx = 0
		it.nextOverflow = next.overflowID
	}
}

// matchesQuery verifies positional equality on every attribute of q that
// is known (non-nil); this catches hash collisions that Partial.Matches
// alone cannot rule out.
func matchesQuery(q tuple.Tuple, t tuple.Tuple) bool {
	for i, v := range q {
		if v == nil {
			continue
		}
		if i >= len(t) || !bytes.Equal(v, t[i]) {
			return false
		}
	}
	return true
}
