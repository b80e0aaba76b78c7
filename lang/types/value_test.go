package types_test

import (
	"testing"

	"github.com/mna/calx/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    types.Value
		want bool
	}{
		{types.Nil, false},
		{types.Bool(true), true},
		{types.Bool(false), false},
		{types.I64(0), false},
		{types.I64(1), true},
		{types.I64(-1), true},
		{types.F64(0), false},
		{types.F64(0.5), true},
		{types.Str(""), false},
		{types.Str("x"), false},
		{types.NewList(nil), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.v.Truthy(), "%v (%s)", c.v, c.v.Type())
	}
}

func TestParseRoundTrip(t *testing.T) {
	cases := []types.Value{
		types.Nil,
		types.Bool(true),
		types.Bool(false),
		types.I64(42),
		types.I64(-7),
		types.F64(1.5),
	}
	for _, v := range cases {
		s := types.Display(v)
		got, err := types.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, v, got, "round-trip of %s", s)
	}
}

func TestParseStrings(t *testing.T) {
	v, err := types.Parse("|hello")
	require.NoError(t, err)
	assert.Equal(t, types.Str("hello"), v)

	v, err = types.Parse(":world")
	require.NoError(t, err)
	assert.Equal(t, types.Str("world"), v)
}

func TestParseUnknown(t *testing.T) {
	_, err := types.Parse("not-a-value")
	require.Error(t, err)
}

func TestListDisplay(t *testing.T) {
	l := types.NewList([]types.Value{types.I64(1), types.I64(2), types.Str("x")})
	assert.Equal(t, "(1 2 x)", l.String())
}

func TestParseTypeNames(t *testing.T) {
	for _, name := range []string{"nil", "bool", "i64", "f64", "str", "list", "link"} {
		_, ok := types.ParseType(name)
		assert.True(t, ok, name)
	}
	_, ok := types.ParseType("bogus")
	assert.False(t, ok)
}
