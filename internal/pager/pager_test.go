package pager

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/beetdb/beet/berrors"
)

const testPageSize = 32

func TestAllocateAndReadBack(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err)
	defer p.Close()

	pg, aerr := p.Allocate()
	require.Nil(t, aerr)
	require.True(t, pg.ID.IsLeaf())
	copy(pg.Bytes(), []byte("first page payload"))
	p.ReleaseWrite(pg)

	got, gerr := p.GetRead(pg.ID)
	require.Nil(t, gerr)
	require.Equal(t, pg.Bytes(), got.Bytes())
	p.ReleaseRead(got)

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.Allocation)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "nonleaf", testPageSize, 0, false, nil)
	require.Nil(t, err)
	defer p.Close()

	pg, aerr := p.Allocate()
	require.Nil(t, aerr)
	require.False(t, pg.ID.IsLeaf())
	id := pg.ID
	p.ReleaseWrite(pg)

	wpg, werr := p.GetWrite(id)
	require.Nil(t, werr)
	copy(wpg.Bytes(), []byte("updated contents"))
	p.ReleaseWrite(wpg)

	rpg, rerr := p.GetRead(id)
	require.Nil(t, rerr)
	require.Equal(t, []byte("updated contents"), rpg.Bytes()[:len("updated contents")])
	p.ReleaseRead(rpg)
}

func TestBoundedCacheEvictsUnpinned(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 2, true, nil)
	require.Nil(t, err)
	defer p.Close()

	pg1, _ := p.Allocate()
	id1 := pg1.ID
	p.ReleaseWrite(pg1)
	pg2, _ := p.Allocate()
	id2 := pg2.ID
	p.ReleaseWrite(pg2)

	// Cache now holds 2 entries (maxPages). Allocating a third must evict
	// one of the unpinned entries rather than failing.
	pg3, aerr := p.Allocate()
	require.Nil(t, aerr)
	p.ReleaseWrite(pg3)

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.Evictions)

	// Both prior ids must still be readable from disk after eviction.
	r1, e1 := p.GetRead(id1)
	require.Nil(t, e1)
	p.ReleaseRead(r1)
	r2, e2 := p.GetRead(id2)
	require.Nil(t, e2)
	p.ReleaseRead(r2)
}

func TestCacheFullAllPinnedReturnsNoResource(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 1, true, nil)
	require.Nil(t, err)
	defer p.Close()

	pg, aerr := p.Allocate() // stays pinned: not released
	require.Nil(t, aerr)
	defer p.ReleaseWrite(pg)

	_, err2 := p.Allocate()
	require.NotNil(t, err2)
	require.True(t, berrors.Is(err2, berrors.NoResource))
}

func TestStoreFlushesImmediately(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err)

	pg, aerr := p.Allocate()
	require.Nil(t, aerr)
	copy(pg.Bytes(), []byte("flush me"))
	require.Nil(t, p.Store(pg))
	p.ReleaseWrite(pg)
	require.Nil(t, p.Close())

	// Reopen and confirm the bytes are on disk even without Close having
	// had to flush anything dirty for this page.
	p2, err2 := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err2)
	defer p2.Close()
	got, gerr := p2.GetRead(pg.ID)
	require.Nil(t, gerr)
	require.Equal(t, []byte("flush me"), got.Bytes()[:len("flush me")])
	p2.ReleaseRead(got)
}

func TestCloseFlushesDirtyPages(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err)

	pg, aerr := p.Allocate()
	require.Nil(t, aerr)
	copy(pg.Bytes(), []byte("dirty at close"))
	p.ReleaseWrite(pg) // marks dirty, not yet flushed
	require.Nil(t, p.Close())

	p2, err2 := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err2)
	defer p2.Close()
	got, gerr := p2.GetRead(pg.ID)
	require.Nil(t, gerr)
	require.Equal(t, []byte("dirty at close"), got.Bytes()[:len("dirty at close")])
	p2.ReleaseRead(got)
}

func TestReopenContinuesAllocatingAfterExistingPages(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err)
	pg1, _ := p.Allocate()
	p.ReleaseWrite(pg1)
	require.Nil(t, p.Close())

	p2, err2 := Open(fs, "leaf", testPageSize, 0, true, nil)
	require.Nil(t, err2)
	defer p2.Close()
	pg2, aerr := p2.Allocate()
	require.Nil(t, aerr)
	p2.ReleaseWrite(pg2)
	require.NotEqual(t, pg1.ID, pg2.ID)
	require.Equal(t, pg1.ID.Slot()+1, pg2.ID.Slot())
}
