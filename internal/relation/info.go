package relation

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rpcpool/relstore/internal/choicevec"
)

// info is the relation's persistent metadata: everything needed to resume
// linear-hash addressing and validation after a restart. It is read from
// the .info file by Open and written back by Create and by Close of a
// relation opened for writing.
type info struct {
	numAttrs     uint32
	depth        uint8
	splitPointer uint32
	numPages     uint64
	numTuples    uint64
	choiceVec    *choicevec.Vector
}

// infoFixedSize is the size of every info field except the choice vector,
// which is always choicevec.Bytes long regardless of num_attrs.
const infoFixedSize = 4 + 1 + 4 + 8 + 8

func readInfo(r io.Reader) (*info, error) {
	var fixed [infoFixedSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("relation: read info header: %w", err)
	}
	in := &info{
		numAttrs:     binary.BigEndian.Uint32(fixed[0:4]),
		depth:        fixed[4],
		splitPointer: binary.BigEndian.Uint32(fixed[5:9]),
		numPages:     binary.BigEndian.Uint64(fixed[9:17]),
		numTuples:    binary.BigEndian.Uint64(fixed[17:25]),
	}
	cv := &choicevec.Vector{}
	if err := cv.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("relation: read choice vector: %w", err)
	}
	in.choiceVec = cv
	return in, nil
}

func (in *info) writeTo(w io.Writer) error {
	var fixed [infoFixedSize]byte
	binary.BigEndian.PutUint32(fixed[0:4], in.numAttrs)
	fixed[4] = in.depth
	binary.BigEndian.PutUint32(fixed[5:9], in.splitPointer)
	binary.BigEndian.PutUint64(fixed[9:17], in.numPages)
	binary.BigEndian.PutUint64(fixed[17:25], in.numTuples)
	if _, err := w.Write(fixed[:]); err != nil {
		return fmt.Errorf("relation: write info header: %w", err)
	}
	if err := in.choiceVec.WriteTo(w); err != nil {
		return fmt.Errorf("relation: write choice vector: %w", err)
	}
	return nil
}
