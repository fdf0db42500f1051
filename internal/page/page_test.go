package page_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/page"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/rpcpool/relstore/internal/tuplehash"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), name), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestEmptyAndWriteReadRoundtrip(t *testing.T) {
	data := tempFile(t, "data")

	p, err := page.New(data)
	require.NoError(t, err)
	require.EqualValues(t, 0, p.ID())

	tp := tuple.Tuple{[]byte("a"), []byte("b")}
	require.NoError(t, tuple.Validate(tp, 2))
	ok := p.AddTuple(tuple.Serialize(tp))
	require.True(t, ok)
	require.NoError(t, p.Write(data))

	reread, err := page.Read(data, p.ID())
	require.NoError(t, err)
	require.Equal(t, 1, reread.NumTuples())
	require.Equal(t, []tuple.Tuple{tp}, reread.GetTupleList())
}

func TestAddTupleRejectsWhenFull(t *testing.T) {
	p := page.Empty(0)
	big := make([]byte, page.DataSize)
	require.True(t, p.AddTuple(big))
	require.False(t, p.AddTuple([]byte{1}))
}

func TestAddTupleBoundarySizes(t *testing.T) {
	// Exactly DataSize - 1 fits.
	p := page.Empty(0)
	require.True(t, p.AddTuple(make([]byte, page.DataSize-1)))

	// DataSize+1 never fits, even in an empty page.
	p2 := page.Empty(0)
	require.False(t, p2.AddTuple(make([]byte, page.DataSize+1)))
}

func TestAddToOverflowRejectsOversizeTuple(t *testing.T) {
	data := tempFile(t, "data")
	ovflow := tempFile(t, "ovflow")
	p, err := page.New(data)
	require.NoError(t, err)

	err = p.AddToOverflow(data, ovflow, make([]byte, page.DataSize+1))
	require.Error(t, err)
}

func TestAddToOverflowChains(t *testing.T) {
	data := tempFile(t, "data")
	ovflow := tempFile(t, "ovflow")
	p, err := page.New(data)
	require.NoError(t, err)

	// Fill the main page, then force several overflow allocations.
	const blobSize = 200
	total := 0
	inserted := 0
	for total+blobSize <= page.DataSize {
		require.NoError(t, p.AddToOverflow(data, ovflow, make([]byte, blobSize)))
		total += blobSize
		inserted++
	}
	// Insert more to force at least one overflow page.
	for i := 0; i < 10; i++ {
		require.NoError(t, p.AddToOverflow(data, ovflow, make([]byte, blobSize)))
		inserted++
	}

	reread, err := page.Read(data, p.ID())
	require.NoError(t, err)
	require.NotEqual(t, page.NoOverflow, reread.OverflowID())

	count := reread.NumTuples()
	nextID := reread.OverflowID()
	for nextID != page.NoOverflow {
		op, err := page.Read(ovflow, page.ID(nextID))
		require.NoError(t, err)
		count += op.NumTuples()
		nextID = op.OverflowID()
	}
	require.Equal(t, inserted, count)
}

func TestSelectAcrossOverflowChain(t *testing.T) {
	data := tempFile(t, "data")
	ovflow := tempFile(t, "ovflow")
	p, err := page.New(data)
	require.NoError(t, err)

	cv, err := choicevec.New(nil, 2)
	require.NoError(t, err)

	want := tuple.Tuple{[]byte("needle"), []byte("x")}
	require.NoError(t, p.AddToOverflow(data, ovflow, tuple.Serialize(want)))

	// Pad with 48-byte filler tuples to force an overflow page, so the
	// target isn't trivially the only entry in the chain.
	for i := 0; i < 50; i++ {
		filler := tuple.Tuple{[]byte("filler"), []byte(fmt.Sprintf("%040d", i))}
		require.NoError(t, p.AddToOverflow(data, ovflow, tuple.Serialize(filler)))
	}

	reread, err := page.Read(data, p.ID())
	require.NoError(t, err)
	require.NotEqual(t, page.NoOverflow, reread.OverflowID())

	partial := tuplehash.FromQuery(cv, tuplehash.Query{[]byte("needle"), nil})
	it := reread.Select(ovflow, cv, partial, tuple.Tuple{[]byte("needle"), nil})

	var found []tuple.Tuple
	for {
		tp, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		found = append(found, tp)
	}
	require.Len(t, found, 1)
	require.Equal(t, want, found[0])
}

func TestGetTupleListPreservesEmptyValueTuple(t *testing.T) {
	p := page.Empty(0)
	empty := tuple.Tuple{[]byte("")}
	require.NoError(t, tuple.Validate(empty, 1))
	require.True(t, p.AddTuple(tuple.Serialize(empty)))

	got := p.GetTupleList()
	require.Equal(t, []tuple.Tuple{empty}, got)
}
