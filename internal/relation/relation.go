// Package relation implements a disk-backed multi-attribute relation: a
// set of fixed-width tuples addressed by a linear-hash bucket scheme that
// grows incrementally, one bucket split at a time, as tuples accumulate.
package relation

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rpcpool/relstore/internal/bitutil"
	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/page"
	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/rpcpool/relstore/internal/tuplehash"
	"golang.org/x/sys/unix"
)

// Relation is an open handle to a relation's three files: the metadata
// (.info), the main bucket pages (.data), and the overflow chain (.ovflow).
type Relation struct {
	name string

	infoPath string
	data     *os.File
	ovflow   *os.File

	info     info
	writable bool
	closed   bool

	liveIters int32
}

func paths(dir, name string) (infoPath, dataPath, ovflowPath string) {
	base := filepath.Join(dir, name)
	return base + ".info", base + ".data", base + ".ovflow"
}

// depthForEstimate returns the smallest depth whose 2^depth bucket count
// can hold estNumPages buckets without any split.
func depthForEstimate(est uint64) uint8 {
	d := uint8(0)
	for (uint64(1) << d) < est {
		d++
	}
	return d
}

// Create initializes a brand-new relation on disk: numAttrs attributes,
// hashed with cv, pre-sized to roughly estNumPages buckets (rounded up to
// a power of two). It returns the relation already open for writing.
func Create(dir, name string, numAttrs uint32, estNumPages uint64, cv *choicevec.Vector) (*Relation, error) {
	infoPath, dataPath, ovflowPath := paths(dir, name)
	if _, err := os.Stat(infoPath); err == nil {
		return nil, fmt.Errorf("%w: relation %q already exists", relerr.ErrAlreadyExists, name)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	depth := depthForEstimate(estNumPages)
	numPages := uint64(1) << depth

	data, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("relation: create data file: %w", err)
	}
	ovflow, err := os.OpenFile(ovflowPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("relation: create overflow file: %w", err)
	}

	for i := uint64(0); i < numPages; i++ {
		if _, err := page.New(data); err != nil {
			data.Close()
			ovflow.Close()
			return nil, err
		}
	}

	r := &Relation{
		name:     name,
		infoPath: infoPath,
		data:     data,
		ovflow:   ovflow,
		writable: true,
		info: info{
			numAttrs:     numAttrs,
			depth:        depth,
			splitPointer: 0,
			numPages:     numPages,
			numTuples:    0,
			choiceVec:    cv,
		},
	}
	if err := r.flushInfo(); err != nil {
		data.Close()
		ovflow.Close()
		return nil, err
	}
	return r, nil
}

// Open reopens an existing relation. write controls whether Close flushes
// the in-memory metadata back to the .info file.
func Open(dir, name string, write bool) (*Relation, error) {
	infoPath, dataPath, ovflowPath := paths(dir, name)
	infoFile, err := os.Open(infoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: relation %q", relerr.ErrNotFound, name)
		}
		return nil, err
	}
	in, err := readInfo(infoFile)
	infoFile.Close()
	if err != nil {
		return nil, err
	}

	flags := os.O_RDONLY
	if write {
		flags = os.O_RDWR
	}
	data, err := os.OpenFile(dataPath, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("relation: open data file: %w", err)
	}
	ovflow, err := os.OpenFile(ovflowPath, flags, 0)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("relation: open overflow file: %w", err)
	}

	// Bucket lookups hop around the data and overflow files essentially
	// at random (linear-hash addressing, then overflow chains); advise
	// the kernel accordingly rather than let readahead waste I/O on
	// pages that won't be read sequentially.
	if err := unix.Fadvise(int(data.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		slog.Warn("fadvise(RANDOM) failed on data file", "error", err)
	}
	if err := unix.Fadvise(int(ovflow.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		slog.Warn("fadvise(RANDOM) failed on overflow file", "error", err)
	}

	return &Relation{
		name:     name,
		infoPath: infoPath,
		data:     data,
		ovflow:   ovflow,
		info:     *in,
		writable: write,
	}, nil
}

func (r *Relation) flushInfo() error {
	f, err := os.OpenFile(r.infoPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("relation: open info file: %w", err)
	}
	defer f.Close()
	if err := r.info.writeTo(f); err != nil {
		return err
	}
	return f.Sync()
}

// Close flushes metadata (if opened for writing) and releases the
// relation's file handles. It refuses to close while a Select iterator is
// still live, since the iterator holds page references into these files.
func (r *Relation) Close() error {
	if r.closed {
		return nil
	}
	if atomic.LoadInt32(&r.liveIters) > 0 {
		return &relerr.InvariantViolation{Msg: "relation closed with a live select iterator"}
	}
	var err error
	if r.writable {
		err = r.flushInfo()
	}
	if cerr := r.data.Close(); err == nil {
		err = cerr
	}
	if cerr := r.ovflow.Close(); err == nil {
		err = cerr
	}
	r.closed = true
	return err
}

// NumAttrs returns the relation's fixed attribute count.
func (r *Relation) NumAttrs() uint32 { return r.info.numAttrs }

// resizeThreshold is the tuple count at which the next Insert triggers a
// bucket split, keeping average bucket occupancy near 10%.
func (r *Relation) resizeThreshold() uint64 {
	return (uint64(page.Size) / (10 * uint64(r.info.numAttrs))) * r.info.numPages
}

// bucketID computes the current main-page id for a full hash h under the
// relation's linear-hash addressing state.
func (r *Relation) bucketID(h uint32) page.ID {
	depth := uint(r.info.depth)
	id := bitutil.LowerBits(depth, h)
	if id < r.info.splitPointer {
		id = bitutil.LowerBits(depth+1, h)
	}
	return page.ID(id)
}

// Insert adds t to the relation, growing the bucket table first if
// num_tuples has already reached the resize threshold.
func (r *Relation) Insert(t tuple.Tuple) error {
	if !r.writable {
		return &relerr.InvariantViolation{Msg: "relation not opened for writing"}
	}
	if err := tuple.Validate(t, int(r.info.numAttrs)); err != nil {
		return err
	}

	if r.info.depth < bitutil.HashBits && r.info.numTuples == r.resizeThreshold() {
		if err := r.grow(); err != nil {
			return err
		}
	}

	h := tuplehash.Hash(r.info.choiceVec, t)
	id := r.bucketID(h)
	main, err := page.Read(r.data, id)
	if err != nil {
		return err
	}
	serialized := tuple.Serialize(t)
	if main.AddTuple(serialized) {
		if err := main.Write(r.data); err != nil {
			return err
		}
	} else if err := main.AddToOverflow(r.data, r.ovflow, serialized); err != nil {
		return err
	}
	r.info.numTuples++
	return nil
}

// Select returns a lazy iterator over every tuple matching query (nil
// entries are wildcards), driven by the partial-hash bucket enumerator.
func (r *Relation) Select(query tuple.Tuple) (*SelectIter, error) {
	if err := validateQuery(query, r.info.numAttrs); err != nil {
		return nil, err
	}
	partial := tuplehash.FromQuery(r.info.choiceVec, tuplehash.Query(query))
	enum := NewEnumerator(partial, uint(r.info.depth), r.info.splitPointer, r.info.numPages)
	atomic.AddInt32(&r.liveIters, 1)
	return &SelectIter{r: r, enum: enum, partial: partial, query: query}, nil
}

func validateQuery(q tuple.Tuple, numAttrs uint32) error {
	if len(q) != int(numAttrs) {
		return fmt.Errorf("%w: query has %d attributes, relation has %d", relerr.ErrInvalidInput, len(q), numAttrs)
	}
	for _, v := range q {
		if v == nil {
			continue
		}
		for _, c := range v {
			if c == ',' || c == 0 {
				return fmt.Errorf("%w: query value contains a reserved byte", relerr.ErrInvalidInput)
			}
		}
	}
	return nil
}

// SelectIter walks the buckets produced by a partial-hash enumerator,
// yielding matching tuples one at a time from each bucket's own
// page.SelectIter in turn.
type SelectIter struct {
	r       *Relation
	enum    *Enumerator
	partial tuplehash.Partial
	query   tuple.Tuple

	cur      *page.SelectIter
	finished bool
}

// Next returns the next matching tuple, or io.EOF once every candidate
// bucket has been exhausted. A failed page read is returned as an error
// for that bucket; the following call moves on to the next bucket.
func (it *SelectIter) Next() (tuple.Tuple, error) {
	if it.finished {
		return nil, io.EOF
	}
	for {
		if it.cur != nil {
			t, err := it.cur.Next()
			if err == io.EOF {
				it.cur = nil
				continue
			}
			if err != nil {
				it.cur = nil
				return nil, err
			}
			return t, nil
		}
		id, err := it.enum.Next()
		if err == io.EOF {
			it.release()
			return nil, io.EOF
		}
		pg, err := page.Read(it.r.data, id)
		if err != nil {
			return nil, err
		}
		it.cur = pg.Select(it.r.ovflow, it.r.info.choiceVec, it.partial, it.query)
	}
}

// Close ends the scan early, releasing the relation's hold count. It is a
// no-op if the iterator already ran to io.EOF.
func (it *SelectIter) Close() {
	it.release()
}

func (it *SelectIter) release() {
	if it.finished {
		return
	}
	it.finished = true
	atomic.AddInt32(&it.r.liveIters, -1)
}

// Stats summarizes a relation's current size, for reporting and sanity
// checks.
type Stats struct {
	NumAttrs      uint32
	Depth         uint8
	SplitPointer  uint32
	NumPages      uint64
	NumTuples     uint64
	DataBytes     int64
	OverflowBytes int64
}

// Stats reports the relation's current linear-hash state and file sizes.
func (r *Relation) Stats() (Stats, error) {
	dfi, err := r.data.Stat()
	if err != nil {
		return Stats{}, err
	}
	ofi, err := r.ovflow.Stat()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		NumAttrs:      r.info.numAttrs,
		Depth:         r.info.depth,
		SplitPointer:  r.info.splitPointer,
		NumPages:      r.info.numPages,
		NumTuples:     r.info.numTuples,
		DataBytes:     dfi.Size(),
		OverflowBytes: ofi.Size(),
	}, nil
}

// IsSane checks the relation's core addressing invariants, for use by
// tests and the CLI's diagnostic command. It never mutates the relation.
func (r *Relation) IsSane() error {
	in := r.info
	if in.numAttrs == 0 {
		return &relerr.InvariantViolation{Msg: "num_attrs is zero"}
	}
	if in.depth < bitutil.HashBits && uint64(in.splitPointer) >= uint64(1)<<in.depth {
		return &relerr.InvariantViolation{Msg: "split_pointer >= 2^depth"}
	}
	expected := (uint64(1) << in.depth) + uint64(in.splitPointer)
	if in.numPages != expected {
		return &relerr.InvariantViolation{Msg: fmt.Sprintf("num_pages %d, expected 2^depth+split_pointer %d", in.numPages, expected)}
	}
	dfi, err := r.data.Stat()
	if err != nil {
		return err
	}
	if uint64(dfi.Size()) != in.numPages*page.Size {
		return &relerr.InvariantViolation{Msg: "data file size does not match num_pages"}
	}
	return nil
}
