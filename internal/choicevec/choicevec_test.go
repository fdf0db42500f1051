package choicevec_test

import (
	"bytes"
	"testing"

	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/stretchr/testify/require"
)

func TestNewFillsAllEntries(t *testing.T) {
	v, err := choicevec.New(nil, 3)
	require.NoError(t, err)
	for _, e := range v.Entries {
		require.Less(t, e.Attr, uint32(3))
		require.Less(t, uint(e.Bit), uint(choicevec.H))
	}
}

func TestNewPrefixPreserved(t *testing.T) {
	prefix := []choicevec.Entry{{Attr: 0, Bit: 0}, {Attr: 1, Bit: 1}, {Attr: 2, Bit: 2}}
	v, err := choicevec.New(prefix, 3)
	require.NoError(t, err)
	require.Equal(t, prefix[0], v.Entries[0])
	require.Equal(t, prefix[1], v.Entries[1])
	require.Equal(t, prefix[2], v.Entries[2])
}

func TestNewGeneratedEntriesUnique(t *testing.T) {
	v, err := choicevec.New(nil, 5)
	require.NoError(t, err)
	seen := make(map[choicevec.Entry]bool)
	for _, e := range v.Entries {
		require.False(t, seen[e], "duplicate generated entry %+v", e)
		seen[e] = true
	}
}

func TestNewZeroAttrsRejected(t *testing.T) {
	_, err := choicevec.New(nil, 0)
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestNewDuplicatePrefixAccepted(t *testing.T) {
	prefix := []choicevec.Entry{{Attr: 0, Bit: 0}, {Attr: 0, Bit: 0}}
	v, err := choicevec.New(prefix, 2)
	require.NoError(t, err)
	require.Equal(t, prefix[0], v.Entries[0])
	require.Equal(t, prefix[1], v.Entries[1])
}

func TestParse(t *testing.T) {
	v, err := choicevec.Parse("0,0:1,1:2,2", 3)
	require.NoError(t, err)
	require.Equal(t, choicevec.Entry{Attr: 0, Bit: 0}, v.Entries[0])
	require.Equal(t, choicevec.Entry{Attr: 1, Bit: 1}, v.Entries[1])
	require.Equal(t, choicevec.Entry{Attr: 2, Bit: 2}, v.Entries[2])
}

func TestParseAttributeOutOfRange(t *testing.T) {
	_, err := choicevec.Parse("5,0", 3)
	var perr *relerr.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, relerr.ReasonAttributeOutOfRange, perr.Reason)
}

func TestParseBitOutOfRange(t *testing.T) {
	_, err := choicevec.Parse("0,99", 3)
	var perr *relerr.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, relerr.ReasonBitOutOfRange, perr.Reason)
}

func TestParseMalformedEntry(t *testing.T) {
	_, err := choicevec.Parse("0:1,1", 3)
	var perr *relerr.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, relerr.ReasonMalformedEntry, perr.Reason)
}

func TestParseUnparsableNumber(t *testing.T) {
	_, err := choicevec.Parse("x,0", 3)
	var perr *relerr.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, relerr.ReasonUnparsableNumber, perr.Reason)
}

func TestReadWriteRoundtrip(t *testing.T) {
	v, err := choicevec.New(nil, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, v.WriteTo(&buf))
	require.Equal(t, choicevec.Bytes, buf.Len())

	var v2 choicevec.Vector
	require.NoError(t, v2.ReadFrom(&buf))
	require.Equal(t, v.Entries, v2.Entries)
}
