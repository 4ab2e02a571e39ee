package iter

import (
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/btree"
	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/page"
	"github.com/beetdb/beet/internal/pager"
)

func u32key(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func u32val(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func newPlainTree(t *testing.T, leafSize, intSize uint32) *btree.Tree {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := node.Layout{KeySize: 4, DataSize: 4, LeafNodeSize: leafSize, InternalNodeSize: intSize}
	leafPgr, err := pager.Open(fs, "leaf", layout.LeafPageSize(), 0, true, nil)
	require.Nil(t, err)
	intPgr, err := pager.Open(fs, "nonleaf", layout.InternalPageSize(), 0, false, nil)
	require.Nil(t, err)
	roof, ferr := fs.Create("roof")
	require.NoError(t, ferr)
	tr, terr := btree.New(leafPgr, intPgr, cmp.Bytes, layout, btree.PlainStrategy{}, roof)
	require.Nil(t, terr)
	require.Nil(t, tr.Bootstrap())
	return tr
}

func collect(t *testing.T, it *Iterator) []Pair {
	t.Helper()
	var out []Pair
	for {
		p, err := it.Move()
		if err != nil {
			require.True(t, berrors.Is(err, berrors.EOF), "unexpected error: %v", err)
			return out
		}
		out = append(out, p)
	}
}

func TestIteratorAscendingFullScan(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 30; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i*2)))
	}

	it := New(tr, tr.Root(), Options{Dir: Asc})
	pairs := collect(t, it)
	require.Len(t, pairs, 30)
	for i, p := range pairs {
		require.Equal(t, u32key(uint32(i)), p.Key)
		require.Equal(t, u32val(uint32(i)*2), p.Value)
	}
}

func TestIteratorDescendingFullScan(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 30; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}

	it := New(tr, tr.Root(), Options{Dir: Desc})
	pairs := collect(t, it)
	require.Len(t, pairs, 30)
	for i, p := range pairs {
		want := uint32(29 - i)
		require.Equal(t, u32key(want), p.Key)
	}
}

func TestIteratorBoundedRange(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 30; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}

	it := New(tr, tr.Root(), Options{From: u32key(10), To: u32key(15), Dir: Asc})
	pairs := collect(t, it)
	require.Len(t, pairs, 6)
	require.Equal(t, u32key(10), pairs[0].Key)
	require.Equal(t, u32key(15), pairs[len(pairs)-1].Key)
}

func TestIteratorBoundedRangeDescending(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 30; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}

	// Start point (20) does not exist as a key boundary issue: use an
	// existing key as `from` and scan down to `to`.
	it := New(tr, tr.Root(), Options{From: u32key(20), To: u32key(17), Dir: Desc})
	pairs := collect(t, it)
	require.Len(t, pairs, 4)
	require.Equal(t, u32key(20), pairs[0].Key)
	require.Equal(t, u32key(17), pairs[len(pairs)-1].Key)
}

func TestIteratorSkipsHiddenKeys(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 10; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}
	require.Nil(t, tr.Hide(u32key(3)))
	require.Nil(t, tr.Hide(u32key(7)))

	it := New(tr, tr.Root(), Options{Dir: Asc})
	pairs := collect(t, it)
	require.Len(t, pairs, 8)
	for _, p := range pairs {
		require.NotEqual(t, u32key(3), p.Key)
		require.NotEqual(t, u32key(7), p.Key)
	}
}

func TestIteratorResetRewinds(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	for i := uint32(0); i < 5; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}

	it := New(tr, tr.Root(), Options{Dir: Asc})
	first := collect(t, it)
	require.Len(t, first, 5)

	it.Reset()
	second := collect(t, it)
	require.Equal(t, first, second)
}

func TestIteratorEmptyTreeIsImmediateEOF(t *testing.T) {
	tr := newPlainTree(t, 4, 4)
	it := New(tr, tr.Root(), Options{Dir: Asc})
	_, err := it.Move()
	require.NotNil(t, err)
	require.True(t, berrors.Is(err, berrors.EOF))
}

func newEmbeddedOuterTree(t *testing.T, outerLeaf, outerInt uint32) (*btree.Tree, *btree.Tree) {
	t.Helper()
	inner := newPlainTreeNoRoof(t, 4, 4)
	strategy := &btree.EmbeddedStrategy{Inner: inner, InnerKeySize: 4}

	fs := afero.NewMemMapFs()
	layout := node.Layout{KeySize: 4, DataSize: 4, LeafNodeSize: outerLeaf, InternalNodeSize: outerInt}
	leafPgr, err := pager.Open(fs, "outer-leaf", layout.LeafPageSize(), 0, true, nil)
	require.Nil(t, err)
	intPgr, err := pager.Open(fs, "outer-nonleaf", layout.InternalPageSize(), 0, false, nil)
	require.Nil(t, err)
	roof, ferr := fs.Create("outer-roof")
	require.NoError(t, ferr)
	outer, terr := btree.New(leafPgr, intPgr, cmp.Bytes, layout, strategy, roof)
	require.Nil(t, terr)
	require.Nil(t, outer.Bootstrap())
	return outer, inner
}

func newPlainTreeNoRoof(t *testing.T, leafSize, intSize uint32) *btree.Tree {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := node.Layout{KeySize: 4, DataSize: 4, LeafNodeSize: leafSize, InternalNodeSize: intSize}
	leafPgr, err := pager.Open(fs, "inner-leaf", layout.LeafPageSize(), 0, true, nil)
	require.Nil(t, err)
	intPgr, err := pager.Open(fs, "inner-nonleaf", layout.InternalPageSize(), 0, false, nil)
	require.Nil(t, err)
	tr, terr := btree.New(leafPgr, intPgr, cmp.Bytes, layout, btree.PlainStrategy{}, nil)
	require.Nil(t, terr)
	return tr
}

// TestIteratorHostEnterLeave exercises spec §8 scenario 3's nested HOST
// cursor: each outer key owns an independent inner subtree (via
// btree.EmbeddedStrategy), Enter descends into it, and Leave returns
// control to the outer cursor so the scan can continue. A small outer
// fanout forces an outer leaf split across the handful of outer keys
// used here, exercising the fix noted in DESIGN.md for Enter reading the
// wrong root after advance() crosses a leaf boundary.
func TestIteratorHostEnterLeave(t *testing.T) {
	outer, inner := newEmbeddedOuterTree(t, 2, 2)

	payload := func(ik, iv uint32) []byte {
		return append(append([]byte(nil), u32key(ik)...), u32val(iv)...)
	}
	require.Nil(t, outer.Insert(u32key(1), payload(100, 1)))
	require.Nil(t, outer.Upsert(u32key(1), payload(101, 2)))
	require.Nil(t, outer.Insert(u32key(2), payload(200, 3)))
	require.Nil(t, outer.Insert(u32key(3), payload(300, 4))) // forces an outer leaf split with fanout 2

	it := newHostIterator(outer, inner)

	seen := map[uint32][]uint32{} // outer key -> inner keys visited
	for {
		p, err := it.Move()
		if err != nil {
			require.True(t, berrors.Is(err, berrors.EOF))
			break
		}
		outerKey := binary.BigEndian.Uint32(p.Key)
		require.Nil(t, it.Enter())

		var innerKeys []uint32
		for {
			ip, ierr := it.Move()
			if ierr != nil {
				require.True(t, berrors.Is(ierr, berrors.EOF))
				break
			}
			innerKeys = append(innerKeys, binary.BigEndian.Uint32(ip.Key))
		}
		require.Nil(t, it.Leave())
		seen[outerKey] = innerKeys
	}

	require.ElementsMatch(t, []uint32{100, 101}, seen[1])
	require.ElementsMatch(t, []uint32{200}, seen[2])
	require.ElementsMatch(t, []uint32{300}, seen[3])
}

// newHostIterator builds the outer cursor wired with a Host factory that
// opens a fresh inner Iterator rooted at whatever page id the outer slot
// currently holds.
func newHostIterator(outer, inner *btree.Tree) *Iterator {
	return New(outer, outer.Root(), Options{
		Dir: Asc,
		Host: func(root page.ID) *Iterator {
			return New(inner, root, Options{Dir: Asc})
		},
	})
}
