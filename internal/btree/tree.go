// Package btree implements the B+tree operations of spec §4.3 on top of
// two pagers (one for leaves, one for internal nodes), a root-pointer
// file, a comparator, and a pluggable value-insertion strategy. Descent
// uses lock-coupling ("crabbing"): a writer keeps the full ancestor chain
// latched until it reaches a safe barrier, a reader releases the parent
// as soon as the child is latched (spec §5).
package btree

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/spf13/afero"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/pager"
	"github.com/beetdb/beet/internal/page"
)

// Tree is a B+tree over a shared leaf/internal page space. A standalone
// tree persists its current root id to roofFile; an embedded tree (the
// inner side of a HOST index) has no roofFile — every root it operates on
// is supplied by the caller per call, since each outer key owns its own
// independent inner root (spec §4.3, §4.4, §9).
type Tree struct {
	leafPager *pager.Pager
	intPager  *pager.Pager
	cmpFn     cmp.Func
	layout    node.Layout
	strategy  Strategy

	roofMu   sync.RWMutex // the root-pointer lock (spec §5)
	roofFile afero.File   // nil for an embedded tree
	root     page.ID
}

// New constructs a tree over the given pagers, layout, comparator and
// strategy. roofFile may be nil for an embedded tree; its root is then
// managed entirely by the caller via InsertRoot/GetRoot/etc.
func New(leafPager, intPager *pager.Pager, cmpFn cmp.Func, layout node.Layout, strategy Strategy, roofFile afero.File) (*Tree, *berrors.BeetError) {
	t := &Tree{
		leafPager: leafPager,
		intPager:  intPager,
		cmpFn:     cmpFn,
		layout:    layout,
		strategy:  strategy,
		roofFile:  roofFile,
		root:      page.NullPage,
	}
	if roofFile != nil {
		if err := t.loadRoot(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Root returns the tree's current persisted root id (standalone trees
// only).
func (t *Tree) Root() page.ID {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.root
}

// Bootstrapped reports whether the tree already has a root.
func (t *Tree) Bootstrapped() bool {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return !t.root.IsNull()
}

// Bootstrap allocates the tree's first (empty) leaf and records it as the
// root, persisting it to roofFile. Called by Index.Open when the roof file
// does not yet hold a root id (spec §4.4).
func (t *Tree) Bootstrap() *berrors.BeetError {
	t.roofMu.Lock()
	defer t.roofMu.Unlock()
	pg, _, err := t.allocateLeaf()
	if err != nil {
		return err
	}
	id := pg.ID
	t.releaseWrite(pg)
	return t.storeRoot(id)
}

func (t *Tree) loadRoot() *berrors.BeetError {
	buf := make([]byte, 4)
	n, err := t.roofFile.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return berrors.Wrap(err, "read roof")
	}
	if n == 4 {
		t.root = page.ID(binary.LittleEndian.Uint32(buf))
	} else {
		t.root = page.NullPage
	}
	return nil
}

func (t *Tree) storeRoot(id page.ID) *berrors.BeetError {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	if _, err := t.roofFile.WriteAt(buf, 0); err != nil {
		return berrors.Wrap(err, "write roof")
	}
	t.root = id
	return nil
}

// pagerFor picks the leaf or internal pager an id belongs to.
func (t *Tree) pagerFor(id page.ID) *pager.Pager {
	if id.IsLeaf() {
		return t.leafPager
	}
	return t.intPager
}

// getRead/getWrite retry NO_RESOURCE internally (spec §7): the pager
// reports a full, nothing-evictable cache as retryable, and the tree is
// the layer responsible for retrying until another thread frees a slot.
func (t *Tree) getRead(id page.ID) (*page.Page, *berrors.BeetError) {
	for {
		pg, err := t.pagerFor(id).GetRead(id)
		if err == nil {
			return pg, nil
		}
		if err.Kind != berrors.NoResource {
			return nil, err
		}
	}
}

func (t *Tree) getWrite(id page.ID) (*page.Page, *berrors.BeetError) {
	for {
		pg, err := t.pagerFor(id).GetWrite(id)
		if err == nil {
			return pg, nil
		}
		if err.Kind != berrors.NoResource {
			return nil, err
		}
	}
}

func (t *Tree) releaseRead(pg *page.Page)  { t.pagerFor(pg.ID).ReleaseRead(pg) }
func (t *Tree) releaseWrite(pg *page.Page) { t.pagerFor(pg.ID).ReleaseWrite(pg) }

func (t *Tree) allocateLeaf() (*page.Page, *node.Leaf, *berrors.BeetError) {
	pg, err := t.leafPager.Allocate()
	if err != nil {
		return nil, nil, err
	}
	lf := node.NewLeaf(pg, t.layout)
	lf.SetSize(0)
	lf.SetNext(page.NullPage)
	lf.SetPrev(page.NullPage)
	t.strategy.InitChildren(lf)
	return pg, lf, nil
}

func (t *Tree) allocateInternal() (*page.Page, *node.Internal, *berrors.BeetError) {
	pg, err := t.intPager.Allocate()
	if err != nil {
		return nil, nil, err
	}
	in := node.NewInternal(pg, t.layout)
	in.SetSize(0)
	return pg, in, nil
}

// Insert adds (key, value); a pre-existing key is a no-op (spec §4.3 step
// 5 leaves plain insert-on-duplicate unspecified between KEY_EXISTS and
// no-op — the error-kind list in §7 has no KEY_EXISTS, so this
// implementation takes the no-op reading).
func (t *Tree) Insert(key, value []byte) *berrors.BeetError { return t.put(key, value, false) }

// Upsert adds (key, value), overwriting any existing value for key.
func (t *Tree) Upsert(key, value []byte) *berrors.BeetError { return t.put(key, value, true) }

func (t *Tree) put(key, value []byte, update bool) *berrors.BeetError {
	if uint32(len(key)) != t.layout.KeySize {
		return berrors.Newf(berrors.BadSize, "key is %d bytes, want %d", len(key), t.layout.KeySize)
	}
	t.roofMu.Lock()
	var once sync.Once
	releaseRoot := func() { once.Do(t.roofMu.Unlock) }
	defer releaseRoot()

	root := t.root
	newRoot, err := t.insertRoot(root, key, value, update, releaseRoot)
	if err != nil {
		return err
	}
	if newRoot != root {
		return t.storeRoot(newRoot)
	}
	return nil
}

// Hide soft-deletes key: the slot stays on disk but is invisible to
// lookups and scans. Hiding an already-hidden key fails with
// KEY_NOT_FOUND (spec §4.3).
func (t *Tree) Hide(key []byte) *berrors.BeetError {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.hideRoot(t.root, key, true)
}

// Unhide reverses Hide. Unhiding a non-hidden key fails with
// KEY_NOT_HIDDEN.
func (t *Tree) Unhide(key []byte) *berrors.BeetError {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.hideRoot(t.root, key, false)
}

// Get returns a copy of the value stored under key, or KEY_NOT_FOUND if
// key is absent or hidden.
func (t *Tree) Get(key []byte) ([]byte, *berrors.BeetError) {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.getRoot(t.root, key)
}

// DoesExist reports OK/KEY_NOT_FOUND, discarding the value Get copies.
func (t *Tree) DoesExist(key []byte) *berrors.BeetError {
	_, err := t.Get(key)
	return err
}

// Height returns the number of levels from root to leaf, inclusive (1 for
// a tree whose root is a leaf).
func (t *Tree) Height() (int, *berrors.BeetError) {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.heightRoot(t.root)
}

// Layout exposes the tree's fixed-size configuration, used by the
// iterator and by the CLI's count command.
func (t *Tree) Layout() node.Layout { return t.layout }

// Comparator exposes the tree's key ordering function.
func (t *Tree) Comparator() cmp.Func { return t.cmpFn }

// LeftmostLeaf/RightmostLeaf/NextLeaf/PrevLeaf/FindLeaf/GetRoot/InsertRoot
// below are exported for the iterator and the EMBEDDED strategy, both of
// which need to operate on a caller-supplied root rather than the tree's
// own persisted one.

func (t *Tree) LeftmostLeaf(root page.ID) (*page.Page, *berrors.BeetError) {
	return t.leftmostLeaf(root)
}

func (t *Tree) RightmostLeaf(root page.ID) (*page.Page, *berrors.BeetError) {
	return t.rightmostLeaf(root)
}

func (t *Tree) NextLeaf(pg *page.Page) (*page.Page, *berrors.BeetError) { return t.nextLeaf(pg) }

func (t *Tree) PrevLeaf(pg *page.Page) (*page.Page, *berrors.BeetError) { return t.prevLeaf(pg) }

func (t *Tree) FindLeaf(root page.ID, key []byte) (*page.Page, *berrors.BeetError) {
	return t.findLeaf(root, key)
}

// GetRoot looks up key under an explicitly supplied root, used by the
// index layer's State.Get for SUBTREE lookups (spec §4.5).
func (t *Tree) GetRoot(root page.ID, key []byte) ([]byte, *berrors.BeetError) {
	return t.getRoot(root, key)
}

func (t *Tree) ReleaseLeaf(pg *page.Page) { t.releaseRead(pg) }

// HideRoot hides (hide=true) or unhides (hide=false) key under an explicitly
// supplied root, the root-parametrized counterpart of GetRoot/InsertRoot
// used by State.Hide2/Unhide2 (spec §4.5, grounded on the original's
// beet_index_hide2).
func (t *Tree) HideRoot(root page.ID, key []byte, hide bool) *berrors.BeetError {
	return t.hideRoot(root, key, hide)
}

// Purge compacts away every hidden (tombstoned) slot in the tree, reclaiming
// the space hide left behind without any on-disk layout change (spec §4.3,
// grounded on the original's beet_index_purge). It returns the number of
// slots dropped.
func (t *Tree) Purge() (int, *berrors.BeetError) {
	t.roofMu.RLock()
	defer t.roofMu.RUnlock()
	return t.purgeRoot(t.root)
}

// PurgeRoot is Purge for an explicitly supplied root, for compacting an
// embedded subtree. Index.Purge does not call it; it purges only the
// top-level tree.
func (t *Tree) PurgeRoot(root page.ID) (int, *berrors.BeetError) {
	return t.purgeRoot(root)
}

// InsertRoot exposes the root-parametrized insert used internally by put
// and by EmbeddedStrategy, for tests and for any caller managing roots
// outside the standard roofFile path.
func (t *Tree) InsertRoot(root page.ID, key, value []byte, update bool) (page.ID, *berrors.BeetError) {
	return t.insertRoot(root, key, value, update, func() {})
}
