package btree

import (
	"math/rand"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/pager"
)

// newConcurrentTree is like newStandaloneTree but lets the caller bound the
// pager cache sizes, for spec §8 scenario 6's pressure test.
func newConcurrentTree(t *testing.T, leafSize, intSize uint32, leafCache, intCache int) *Tree {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := node.Layout{KeySize: 4, DataSize: 4, LeafNodeSize: leafSize, InternalNodeSize: intSize}

	leafPgr, err := pager.Open(fs, "leaf", layout.LeafPageSize(), leafCache, true, nil)
	require.Nil(t, err)
	intPgr, err := pager.Open(fs, "nonleaf", layout.InternalPageSize(), intCache, false, nil)
	require.Nil(t, err)

	roof, ferr := fs.OpenFile("roof", os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, ferr)

	tr, terr := New(leafPgr, intPgr, cmp.Bytes, layout, PlainStrategy{}, roof)
	require.Nil(t, terr)
	require.Nil(t, tr.Bootstrap())
	return tr
}

// scanAll walks the tree leftmost-to-rightmost via the linked-leaf chain
// and returns every live (non-hidden) key in ascending order, independent
// of the iter package (which this package cannot import without a cycle).
func scanAll(t *testing.T, tr *Tree) [][]byte {
	t.Helper()
	pg, err := tr.LeftmostLeaf(tr.Root())
	require.Nil(t, err)

	var out [][]byte
	for {
		lf := node.NewLeaf(pg, tr.Layout())
		n := lf.Size()
		for i := uint32(0); i < n; i++ {
			if lf.Hidden(i) {
				continue
			}
			out = append(out, append([]byte(nil), lf.Key(i)...))
		}
		next, nerr := tr.NextLeaf(pg)
		if nerr != nil {
			break
		}
		pg = next
	}
	return out
}

// TestConcurrentDisjointRangeInserts exercises spec §8 scenario 5: ten
// goroutines each insert a disjoint 100-key range into the same tree
// concurrently; after they all join, the tree contains exactly the union
// of those ranges, height is consistent, and a full forward scan returns
// them in ascending order.
func TestConcurrentDisjointRangeInserts(t *testing.T) {
	tr := newStandaloneTree(t, 8, 8, PlainStrategy{})

	const workers = 10
	const perWorker = 100

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			base := uint32(w * perWorker)
			for i := uint32(0); i < perWorker; i++ {
				k := base + i
				if err := tr.Insert(u32key(k), u32val(k)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for k := uint32(0); k < workers*perWorker; k++ {
		got, err := tr.Get(u32key(k))
		require.Nil(t, err, "key %d", k)
		require.Equal(t, u32val(k), got)
	}

	keys := scanAll(t, tr)
	require.Len(t, keys, workers*perWorker)
	for i, k := range keys {
		require.Equal(t, u32key(uint32(i)), k)
	}

	h, herr := tr.Height()
	require.Nil(t, herr)
	require.GreaterOrEqual(t, h, 1)
}

// TestConcurrentReadsUnderBoundedCache exercises spec §8 scenario 6: a
// tiny pager cache forces frequent NO_RESOURCE contention among concurrent
// readers, which Tree.Get must retry internally (spec §7) rather than
// surface to the caller — every read must still succeed.
func TestConcurrentReadsUnderBoundedCache(t *testing.T) {
	tr := newConcurrentTree(t, 8, 8, 4, 4)

	const n = 500
	for i := uint32(0); i < n; i++ {
		require.Nil(t, tr.Insert(u32key(i), u32val(i)))
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < 500; i++ {
				k := uint32(rng.Intn(n))
				got, err := tr.Get(u32key(k))
				if err != nil {
					return err
				}
				if string(got) != string(u32val(k)) {
					t.Errorf("key %d: got %x want %x", k, got, u32val(k))
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
