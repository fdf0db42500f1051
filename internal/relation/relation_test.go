package relation_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/rpcpool/relstore/internal/choicevec"
	"github.com/rpcpool/relstore/internal/relation"
	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/stretchr/testify/require"
)

func newChoiceVec(t *testing.T, numAttrs uint32) *choicevec.Vector {
	t.Helper()
	cv, err := choicevec.New(nil, numAttrs)
	require.NoError(t, err)
	return cv
}

func collectAll(t *testing.T, it *relation.SelectIter) []tuple.Tuple {
	t.Helper()
	var out []tuple.Tuple
	for {
		tp, err := it.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, tp)
	}
}

func containsTuple(list []tuple.Tuple, want tuple.Tuple) bool {
	for _, t := range list {
		if len(t) != len(want) {
			continue
		}
		ok := true
		for i := range t {
			if !bytes.Equal(t[i], want[i]) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestCreateRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 2)
	r, err := relation.Create(dir, "people", 2, 1, cv)
	require.NoError(t, err)
	defer r.Close()

	_, err = relation.Create(dir, "people", 2, 1, cv)
	require.ErrorIs(t, err, relerr.ErrAlreadyExists)
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	_, err := relation.Open(t.TempDir(), "ghost", false)
	require.ErrorIs(t, err, relerr.ErrNotFound)
}

func TestInsertAndSelectExactMatch(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 2)
	r, err := relation.Create(dir, "people", 2, 1, cv)
	require.NoError(t, err)
	defer r.Close()

	want := tuple.Tuple{[]byte("alice"), []byte("30")}
	require.NoError(t, r.Insert(want))
	require.NoError(t, r.Insert(tuple.Tuple{[]byte("bob"), []byte("40")}))

	it, err := r.Select(tuple.Tuple{[]byte("alice"), nil})
	require.NoError(t, err)
	got := collectAll(t, it)
	require.Len(t, got, 1)
	require.True(t, containsTuple(got, want))
}

func TestInsertTriggersGrowAndPreservesAllTuples(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 2)
	r, err := relation.Create(dir, "wide", 2, 1, cv)
	require.NoError(t, err)
	defer r.Close()

	const n = 400
	inserted := make([]tuple.Tuple, 0, n)
	for i := 0; i < n; i++ {
		tp := tuple.Tuple{[]byte(fmt.Sprintf("key-%04d", i)), []byte("v")}
		require.NoError(t, r.Insert(tp))
		inserted = append(inserted, tp)
	}

	require.NoError(t, r.IsSane())

	it, err := r.Select(tuple.Tuple{nil, nil})
	require.NoError(t, err)
	got := collectAll(t, it)
	require.Len(t, got, n)
	for _, want := range inserted {
		require.True(t, containsTuple(got, want), "missing %v", want)
	}

	stats, err := r.Stats()
	require.NoError(t, err)
	require.EqualValues(t, n, stats.NumTuples)
	require.Greater(t, stats.Depth, uint8(0))
}

func TestReopenPersistsState(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 1)
	r, err := relation.Create(dir, "solo", 1, 1, cv)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, r.Insert(tuple.Tuple{[]byte(fmt.Sprintf("v%d", i))}))
	}
	require.NoError(t, r.Close())

	r2, err := relation.Open(dir, "solo", true)
	require.NoError(t, err)
	defer r2.Close()

	stats, err := r2.Stats()
	require.NoError(t, err)
	require.EqualValues(t, 50, stats.NumTuples)

	it, err := r2.Select(tuple.Tuple{nil})
	require.NoError(t, err)
	got := collectAll(t, it)
	require.Len(t, got, 50)
}

func TestInsertRejectsWrongArity(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 2)
	r, err := relation.Create(dir, "people", 2, 1, cv)
	require.NoError(t, err)
	defer r.Close()

	err = r.Insert(tuple.Tuple{[]byte("only-one")})
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestCloseRefusesWithLiveIterator(t *testing.T) {
	dir := t.TempDir()
	cv := newChoiceVec(t, 1)
	r, err := relation.Create(dir, "solo", 1, 1, cv)
	require.NoError(t, err)
	require.NoError(t, r.Insert(tuple.Tuple{[]byte("x")}))

	it, err := r.Select(tuple.Tuple{nil})
	require.NoError(t, err)

	err = r.Close()
	require.Error(t, err)

	it.Close()
	require.NoError(t, r.Close())
}
