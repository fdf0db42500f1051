package tuple_test

import (
	"testing"

	"github.com/rpcpool/relstore/internal/relerr"
	"github.com/rpcpool/relstore/internal/tuple"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundtrip(t *testing.T) {
	tp := tuple.Tuple{[]byte("a"), []byte("b"), []byte("c")}
	ser := tuple.Serialize(tp)
	require.Equal(t, byte(0), ser[len(ser)-1])

	parsed := tuple.Parse(ser[:len(ser)-1])
	require.Equal(t, tp, parsed)
}

func TestSerializeParseRoundtripEmptyValues(t *testing.T) {
	tp := tuple.Tuple{[]byte(""), []byte("x"), []byte("")}
	ser := tuple.Serialize(tp)
	parsed := tuple.Parse(ser[:len(ser)-1])
	require.Equal(t, tp, parsed)
}

func TestValidateWrongAttrCount(t *testing.T) {
	err := tuple.Validate(tuple.Tuple{[]byte("a")}, 3)
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestValidateRejectsComma(t *testing.T) {
	err := tuple.Validate(tuple.Tuple{[]byte("a,b")}, 1)
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestValidateRejectsNUL(t *testing.T) {
	err := tuple.Validate(tuple.Tuple{[]byte("a\x00b")}, 1)
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestValidateRejectsWildcard(t *testing.T) {
	err := tuple.Validate(tuple.Tuple{[]byte("?")}, 1)
	require.ErrorIs(t, err, relerr.ErrInvalidInput)
}

func TestValidateAllowsEmptyValue(t *testing.T) {
	err := tuple.Validate(tuple.Tuple{[]byte("")}, 1)
	require.NoError(t, err)
}
