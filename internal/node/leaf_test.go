package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/page"
)

func testLayout() Layout {
	return Layout{KeySize: 4, DataSize: 4, LeafNodeSize: 6, InternalNodeSize: 6}
}

func newTestLeaf(t *testing.T, l Layout) *Leaf {
	t.Helper()
	pg := page.New(page.ID(0).Tagged(), l.LeafPageSize())
	lf := NewLeaf(pg, l)
	lf.SetSize(0)
	lf.SetNext(page.NullPage)
	lf.SetPrev(page.NullPage)
	return lf
}

func key4(n uint32) []byte { return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)} }

func TestLeafHeaderRoundTrip(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)

	lf.SetSize(3)
	require.Equal(t, uint32(3), lf.Size())

	lf.SetNext(page.ID(7))
	require.Equal(t, page.ID(7), lf.Next())

	lf.SetPrev(page.ID(9))
	require.Equal(t, page.ID(9), lf.Prev())
}

func TestLeafKeyValueRoundTrip(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)
	lf.SetSize(2)

	lf.SetKey(0, key4(10))
	lf.SetValue(0, []byte{0xAA, 0xBB, 0xCC, 0xDD})
	lf.SetKey(1, key4(20))
	lf.SetValue(1, []byte{1, 2, 3, 4})

	require.Equal(t, key4(10), lf.Key(0))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, lf.Value(0))
	require.Equal(t, key4(20), lf.Key(1))
}

func TestLeafHiddenBit(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)
	lf.SetSize(3)

	require.False(t, lf.Hidden(0))
	require.False(t, lf.Hidden(1))
	require.False(t, lf.Hidden(2))

	lf.SetHidden(1, true)
	require.False(t, lf.Hidden(0))
	require.True(t, lf.Hidden(1))
	require.False(t, lf.Hidden(2))

	lf.SetHidden(1, false)
	require.False(t, lf.Hidden(1))
}

func TestLeafTombstonesBulk(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)
	lf.SetSize(6)

	lf.SetHidden(0, true)
	lf.SetHidden(3, true)
	lf.SetHidden(5, true)

	bs := lf.Tombstones()
	require.True(t, bs.Test(0))
	require.False(t, bs.Test(1))
	require.True(t, bs.Test(3))
	require.True(t, bs.Test(5))
	require.EqualValues(t, 3, bs.Count())

	require.Equal(t, uint32(3), lf.LiveCount())

	bs.Clear(0)
	lf.SetTombstones(bs)
	require.False(t, lf.Hidden(0))
	require.True(t, lf.Hidden(3))
}

func TestLeafFindBinarySearch(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)
	lf.SetSize(4)
	for i := uint32(0); i < 4; i++ {
		lf.SetKey(i, key4((i+1)*10))
	}

	slot, found := lf.Find(key4(20), cmp.Bytes)
	require.True(t, found)
	require.Equal(t, uint32(1), slot)

	slot, found = lf.Find(key4(25), cmp.Bytes)
	require.False(t, found)
	require.Equal(t, uint32(2), slot)

	slot, found = lf.Find(key4(5), cmp.Bytes)
	require.False(t, found)
	require.Equal(t, uint32(0), slot)

	slot, found = lf.Find(key4(100), cmp.Bytes)
	require.False(t, found)
	require.Equal(t, uint32(4), slot)
}

func TestLeafInsertAtShiftsAndPreservesTombstones(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)
	lf.SetSize(3)
	lf.SetKey(0, key4(10))
	lf.SetKey(1, key4(20))
	lf.SetKey(2, key4(30))
	lf.SetValue(0, []byte{0, 0, 0, 1})
	lf.SetValue(1, []byte{0, 0, 0, 2})
	lf.SetValue(2, []byte{0, 0, 0, 3})
	lf.SetHidden(2, true)

	lf.InsertAt(1, key4(15))
	require.Equal(t, uint32(4), lf.Size())
	require.Equal(t, key4(10), lf.Key(0))
	require.Equal(t, key4(15), lf.Key(1))
	require.Equal(t, key4(20), lf.Key(2))
	require.Equal(t, key4(30), lf.Key(3))

	require.False(t, lf.Hidden(1))
	require.False(t, lf.Hidden(2))
	require.True(t, lf.Hidden(3))
}

func TestLeafFullAndSafe(t *testing.T) {
	l := testLayout()
	lf := newTestLeaf(t, l)

	lf.SetSize(l.LeafNodeSize - 1)
	require.False(t, lf.Full())
	require.False(t, lf.Safe())

	lf.SetSize(l.LeafNodeSize - 2)
	require.True(t, lf.Safe())

	lf.SetSize(l.LeafNodeSize)
	require.True(t, lf.Full())
	require.Equal(t, l.LeafNodeSize, lf.Capacity())
}
