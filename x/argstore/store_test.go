package argstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit/protoargs/x/args"
)

func TestStorePreservesEmissionOrder(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddInteger(args.Key{FlatKey: "x", Key: "x"}, 5)
	s.AddString(args.Key{FlatKey: "y", Key: "y[0]"}, "p")
	s.AddBoolean(args.Key{FlatKey: "child.flag", Key: "child.flag"}, true)
	s.AddDouble(args.Key{FlatKey: "d", Key: "d"}, 1.5)
	s.AddUnsignedInteger(args.Key{FlatKey: "u", Key: "u"}, 9)

	rows := s.Rows()
	require.Len(t, rows, 5)
	assert.Equal(t, Row{Key: "x", FlatKey: "x", Kind: KindInt, Int: 5}, rows[0])
	assert.Equal(t, Row{Key: "y[0]", FlatKey: "y", Kind: KindString, Str: "p"}, rows[1])
	assert.Equal(t, Row{Key: "child.flag", FlatKey: "child.flag", Kind: KindBool, Bool: true}, rows[2])
	assert.Equal(t, Row{Key: "d", FlatKey: "d", Kind: KindFloat, Float: 1.5}, rows[3])
	assert.Equal(t, Row{Key: "u", FlatKey: "u", Kind: KindUint, Uint: 9}, rows[4])
}

func TestStoreByFlatKey(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddBoolean(args.Key{FlatKey: "child.flag", Key: "child.flag"}, true)
	s.AddInteger(args.Key{FlatKey: "child.tid", Key: "child.tid"}, 42)
	s.AddInteger(args.Key{FlatKey: "children", Key: "children"}, 1)
	s.AddInteger(args.Key{FlatKey: "other", Key: "other"}, 2)

	got := s.ByFlatKey("child")
	require.Len(t, got, 2)
	assert.Equal(t, "child.flag", got[0].FlatKey)
	assert.Equal(t, "child.tid", got[1].FlatKey)

	// A dot boundary is required: "children" does not match "child".
	assert.Len(t, s.ByFlatKey("children"), 1)
	assert.Empty(t, s.ByFlatKey("missing"))
}

func TestStoreResetAndLen(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddInteger(args.Key{FlatKey: "x", Key: "x"}, 1)
	require.Equal(t, 1, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Rows())
}

func TestStoreRowsReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddInteger(args.Key{FlatKey: "x", Key: "x"}, 1)

	rows := s.Rows()
	rows[0].Int = 99

	assert.Equal(t, int64(1), s.Rows()[0].Int)
}
