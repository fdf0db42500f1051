// Package page implements the fixed-size page format that backs a
// relation's buckets: a 12-byte header followed by a 1012-byte data region
// packed with NUL-terminated serialized tuples, plus the singly-linked
// overflow chain that lets a bucket outgrow a single page.
package page

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/valyala/bytebufferpool"
)

const (
	// Size is the fixed on-disk size of every page, main or overflow.
	Size = 1024
	// headerSize is the size of the (free_offset, overflow_id, num_tuples) header.
	headerSize = 12
	// DataSize is the usable payload area of a page.
	DataSize = Size - headerSize

	// NoOverflow is the sentinel overflow id meaning "no overflow page".
	NoOverflow uint32 = 0xFFFFFFFF
)

// ID identifies a page by its offset / Size within whichever file it lives in.
type ID uint32

// Page is an in-memory, mutable view of one 1024-byte page.
type Page struct {
	id         ID
	freeOffset uint32
	overflowID uint32
	numTuples  uint32
	data       [DataSize]byte
	dirty      bool
}

// Empty returns a fresh in-memory page bound to id, with no overflow and
// marked dirty (the caller is expected to Write it before relying on its
// presence on disk).
func Empty(id ID) *Page {
	return &Page{id: id, overflowID: NoOverflow, dirty: true}
}

// New allocates a new page at the tail of file: its id is the file's
// current length divided by Size. The empty page is immediately written
// so that file length stays a multiple of Size.
func New(file *os.File) (*Page, error) {
	fi, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("page: stat: %w", err)
	}
	if fi.Size()%Size != 0 {
		return nil, &relerr.InvariantViolation{Msg: fmt.Sprintf("file %s length %d is not a multiple of page size %d", file.Name(), fi.Size(), Size)}
	}
	p := Empty(ID(fi.Size() / Size))
	if err := p.Write(file); err != nil {
		return nil, err
	}
	return p, nil
}

// Read loads the page at id from file.
func Read(file *os.File, id ID) (*Page, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()
	buf.B = buf.B[:0]
	buf.B = append(buf.B, make([]byte, Size)...)

	if _, err := file.ReadAt(buf.B, int64(id)*Size); err != nil {
		return nil, fmt.Errorf("page: read %d: %w", id, err)
	}
	p := &Page{id: id}
	p.freeOffset = binary.BigEndian.Uint32(buf.B[0:4])
	p.overflowID = binary.BigEndian.Uint32(buf.B[4:8])
	p.numTuples = binary.BigEndian.Uint32(buf.B[8:12])
	copy(p.data[:], buf.B[headerSize:])
	return p, nil
}

// Write serializes the page's header and data back to its id's offset in
// file and clears the dirty flag. Unlike a relation's metadata file, pages
// are not fsync'd on every write; only best-effort flush on close is
// guaranteed (see the concurrency/resource model).
func (p *Page) Write(file *os.File) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()
	buf.B = append(buf.B, make([]byte, Size)...)

	binary.BigEndian.PutUint32(buf.B[0:4], p.freeOffset)
	binary.BigEndian.PutUint32(buf.B[4:8], p.overflowID)
	binary.BigEndian.PutUint32(buf.B[8:12], p.numTuples)
	copy(buf.B[headerSize:], p.data[:])
	if _, err := file.WriteAt(buf.B, int64(p.id)*Size); err != nil {
		return fmt.Errorf("page: write %d: %w", p.id, err)
	}
	p.dirty = false
	return nil
}

// ID returns the page's own id.
func (p *Page) ID() ID { return p.id }

// OverflowID returns the id of this page's overflow page, or NoOverflow.
func (p *Page) OverflowID() uint32 { return p.overflowID }

// SetOverflowID links this page to an overflow page.
func (p *Page) SetOverflowID(id uint32) {
	p.overflowID = id
	p.dirty = true
}

// NumTuples returns the number of tuples packed into this page alone (not
// counting its overflow chain).
func (p *Page) NumTuples() int { return int(p.numTuples) }

// Dirty reports whether the page has unwritten in-memory changes.
func (p *Page) Dirty() bool { return p.dirty }

// FreeSpace is the number of bytes still available in the data region.
func (p *Page) FreeSpace() int { return DataSize - int(p.freeOffset) }

// AddTuple appends a pre-serialized, NUL-terminated tuple to the page if it
// fits, updating free_offset, num_tuples, and the dirty flag. Returns false
// without mutating the page if there isn't enough free space.
func (p *Page) AddTuple(serialized []byte) bool {
	if len(serialized) > p.FreeSpace() {
		return false
	}
	copy(p.data[p.freeOffset:], serialized)
	p.freeOffset += uint32(len(serialized))
	p.numTuples++
	p.dirty = true
	return true
}

// AddToOverflow appends serialized to this page if it fits; otherwise it
// walks (or extends) the overflow chain in ovflowFile until it finds room,
// allocating a new overflow page if the chain runs out. file is the file p
// itself lives in (the data file for a main page, ovflowFile for a page
// already in the overflow chain) and is where p's own header gets rewritten
// if its overflow link changes.
func (p *Page) AddToOverflow(file, ovflowFile *os.File, serialized []byte) error {
	if len(serialized) > DataSize {
		return fmt.Errorf("%w: tuple is %d bytes, page data region is %d bytes", relerr.ErrInvalidInput, len(serialized), DataSize)
	}
	if p.AddTuple(serialized) {
		return p.Write(file)
	}
	if p.overflowID == NoOverflow {
		next, err := New(ovflowFile)
		if err != nil {
			return err
		}
		p.SetOverflowID(uint32(next.id))
		if err := p.Write(file); err != nil {
			return err
		}
		return next.AddToOverflow(ovflowFile, ovflowFile, serialized)
	}
	next, err := Read(ovflowFile, ID(p.overflowID))
	if err != nil {
		return err
	}
	return next.AddToOverflow(ovflowFile, ovflowFile, serialized)
}

// GetTupleList parses every tuple packed into this page's data region
// alone (not its overflow chain), in storage order. Rather than naively
// splitting on NUL and discarding empty segments -- which would silently
// drop a one-attribute tuple whose sole value is the empty string -- it
// walks exactly NumTuples records using the page's own tuple count.
func (p *Page) GetTupleList() []tuple.Tuple {
	raw := p.data[:p.freeOffset]
	out := make([]tuple.Tuple, 0, p.numTuples)
	start := 0
	for i := 0; i < int(p.numTuples); i++ {
		idx := bytes.IndexByte(raw[start:], 0)
		if idx < 0 {
			break
		}
		out = append(out, tuple.Parse(raw[start:start+idx]))
		start += idx + 1
	}
	return out
}
