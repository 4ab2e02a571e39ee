package btree

import (
	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/page"
)

type ancestor struct {
	pg       *page.Page
	internal *node.Internal
}

func (t *Tree) childSafe(id page.ID, pg *page.Page) bool {
	if id.IsLeaf() {
		return node.NewLeaf(pg, t.layout).Safe()
	}
	return node.NewInternal(pg, t.layout).Safe()
}

// insertRoot performs the write-mode crabbing descent of spec §4.3 steps
// 1-7 starting at root, then the leaf-level write/split, propagating any
// split up the retained ancestor path. releaseRoot is first invoked at
// the moment this call determines the root-pointer lock can be dropped
// (as soon as the path reaches a safe barrier, or once the operation ends
// without a root change) and may be invoked again afterwards, so it must
// be idempotent. When the split propagates all the way to a new root,
// releaseRoot is not invoked on the success path: the caller releases the
// lock after recording the returned root.
func (t *Tree) insertRoot(root page.ID, key, value []byte, update bool, releaseRoot func()) (page.ID, *berrors.BeetError) {
	var path []ancestor

	releasePath := func() {
		for _, a := range path {
			t.releaseWrite(a.pg)
		}
		path = path[:0]
		releaseRoot()
	}

	curID := root
	pg, err := t.getWrite(curID)
	if err != nil {
		releaseRoot()
		return root, err
	}

	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		idx := in.Locate(key, t.cmpFn)
		childID := in.Child(idx)

		childPg, cerr := t.getWrite(childID)
		if cerr != nil {
			path = append(path, ancestor{pg: pg, internal: in})
			releasePath()
			return root, cerr
		}

		path = append(path, ancestor{pg: pg, internal: in})
		if t.childSafe(childID, childPg) {
			releasePath()
		}

		pg = childPg
		curID = childID
	}

	lf := node.NewLeaf(pg, t.layout)
	slot, found := lf.Find(key, t.cmpFn)

	switch {
	case found && !lf.Hidden(slot):
		if !update {
			t.releaseWrite(pg)
			releasePath()
			return root, nil
		}
		_, werr := t.strategy.WriteValue(lf, slot, value, true)
		t.releaseWrite(pg)
		releasePath()
		return root, werr

	case found && lf.Hidden(slot):
		lf.SetHidden(slot, false)
		_, werr := t.strategy.WriteValue(lf, slot, value, true)
		t.releaseWrite(pg)
		releasePath()
		return root, werr
	}

	lf.InsertAt(slot, key)
	_, werr := t.strategy.WriteValue(lf, slot, value, false)
	if werr != nil {
		t.releaseWrite(pg)
		releasePath()
		return root, werr
	}

	if lf.Size() < lf.Capacity() {
		t.releaseWrite(pg)
		releasePath()
		return root, nil
	}

	return t.splitLeaf(root, path, pg, lf, releaseRoot)
}

// splitLeaf handles the overflow case of spec §4.3 step 6: move the upper
// half of a full leaf into a newly allocated sibling, relink next/prev,
// and propagate the new sibling's first key up the retained ancestor
// path.
func (t *Tree) splitLeaf(root page.ID, path []ancestor, leafPg *page.Page, lf *node.Leaf, releaseRoot func()) (page.ID, *berrors.BeetError) {
	capacity := lf.Capacity()
	keep := capacity / 2
	moveCount := capacity - keep

	newPg, newLf, err := t.allocateLeaf()
	if err != nil {
		t.releaseWrite(leafPg)
		for _, a := range path {
			t.releaseWrite(a.pg)
		}
		releaseRoot()
		return root, err
	}

	oldBS := lf.Tombstones()
	for i := uint32(0); i < moveCount; i++ {
		src := keep + i
		newLf.SetKey(i, lf.Key(src))
		copy(newLf.Value(i), lf.Value(src))
		if oldBS.Test(uint(src)) {
			bs := newLf.Tombstones()
			bs.Set(uint(i))
			newLf.SetTombstones(bs)
		}
	}
	newLf.SetSize(moveCount)
	lf.SetSize(keep)

	newLf.SetNext(lf.Next())
	newLf.SetPrev(leafPg.ID)
	if succID := lf.Next(); !succID.IsNull() {
		succPg, serr := t.getWrite(succID)
		if serr == nil {
			node.NewLeaf(succPg, t.layout).SetPrev(newPg.ID)
			t.releaseWrite(succPg)
		}
	}
	lf.SetNext(newPg.ID)

	splitterKey := append([]byte(nil), newLf.Key(0)...)
	rightChild := newPg.ID

	t.releaseWrite(leafPg)
	t.releaseWrite(newPg)

	return t.propagateSplit(root, path, splitterKey, rightChild, releaseRoot)
}

// propagateSplit inserts (splitterKey, rightChild) into the last retained
// ancestor, cascading further internal splits upward as needed, allocating
// a brand-new root if the path is exhausted (spec §4.3 steps 6-7).
func (t *Tree) propagateSplit(root page.ID, path []ancestor, key []byte, rightChild page.ID, releaseRoot func()) (page.ID, *berrors.BeetError) {
	for i := len(path) - 1; i >= 0; i-- {
		a := path[i]
		idx := a.internal.Locate(key, t.cmpFn)

		if a.internal.Size() < t.layout.InternalNodeSize {
			a.internal.InsertAt(idx, key, rightChild)
			for j := i; j >= 0; j-- {
				t.releaseWrite(path[j].pg)
			}
			releaseRoot()
			return root, nil
		}

		newRightID, promoted, err := t.splitInternal(a.internal, idx, key, rightChild)
		if err != nil {
			for j := i; j >= 0; j-- {
				t.releaseWrite(path[j].pg)
			}
			releaseRoot()
			return root, err
		}
		t.releaseWrite(a.pg)
		key = promoted
		rightChild = newRightID
	}

	newRootPg, newRootIn, err := t.allocateInternal()
	if err != nil {
		releaseRoot()
		return root, err
	}
	newRootIn.InitRoot(key, root, rightChild)
	newRoot := newRootPg.ID
	t.releaseWrite(newRootPg)
	return newRoot, nil
}

// splitInternal inserts (key, rightChild) at position idx into an already
// full internal node, then redistributes: the left sibling keeps the
// lower half, the right (new) sibling gets the upper half, and the middle
// key is omitted from both and returned as the promoted splitter (spec
// §4.3 step 7).
func (t *Tree) splitInternal(in *node.Internal, idx uint32, key []byte, rightChild page.ID) (page.ID, []byte, *berrors.BeetError) {
	n := in.Size()
	keys := make([][]byte, 0, n+1)
	children := make([]page.ID, 0, n+2)

	children = append(children, in.Child(0))
	for i := uint32(0); i < n; i++ {
		if i == idx {
			keys = append(keys, append([]byte(nil), key...))
			children = append(children, rightChild)
		}
		keys = append(keys, append([]byte(nil), in.Key(i)...))
		children = append(children, in.Child(i+1))
	}
	if idx == n {
		keys = append(keys, append([]byte(nil), key...))
		children = append(children, rightChild)
	}

	mid := uint32(len(keys)) / 2
	promoted := keys[mid]

	newPg, newIn, err := t.allocateInternal()
	if err != nil {
		return page.NullPage, nil, err
	}

	in.SetSize(mid)
	for i := uint32(0); i < mid; i++ {
		in.SetKey(i, keys[i])
	}
	for i := uint32(0); i <= mid; i++ {
		in.SetChild(i, children[i])
	}

	rightN := uint32(len(keys)) - mid - 1
	newIn.SetSize(rightN)
	for i := uint32(0); i < rightN; i++ {
		newIn.SetKey(i, keys[mid+1+i])
	}
	for i := uint32(0); i <= rightN; i++ {
		newIn.SetChild(i, children[mid+1+i])
	}

	t.releaseWrite(newPg)
	return newPg.ID, promoted, nil
}

// hideRoot descends in write mode but, unlike insertRoot, always releases
// ancestors immediately since hide/unhide can never split a node (spec
// §4.3).
func (t *Tree) hideRoot(root page.ID, key []byte, hide bool) *berrors.BeetError {
	curID := root
	pg, err := t.getWrite(curID)
	if err != nil {
		return err
	}
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		idx := in.Locate(key, t.cmpFn)
		childID := in.Child(idx)

		childPg, cerr := t.getWrite(childID)
		if cerr != nil {
			t.releaseWrite(pg)
			return cerr
		}
		t.releaseWrite(pg)
		pg = childPg
		curID = childID
	}

	lf := node.NewLeaf(pg, t.layout)
	slot, found := lf.Find(key, t.cmpFn)
	if !found {
		t.releaseWrite(pg)
		return berrors.New(berrors.KeyNotFound, "key not found")
	}

	if hide {
		if lf.Hidden(slot) {
			t.releaseWrite(pg)
			return berrors.New(berrors.KeyNotFound, "key already hidden")
		}
		lf.SetHidden(slot, true)
	} else {
		if !lf.Hidden(slot) {
			t.releaseWrite(pg)
			return berrors.New(berrors.KeyNotHidden, "key is not hidden")
		}
		lf.SetHidden(slot, false)
	}
	t.releaseWrite(pg)
	return nil
}

// purgeLeaf compacts lf in place, dropping every hidden slot and shifting
// the survivors down to keep [0, Size) dense, then reports how many slots
// were dropped (spec §4.3, grounded on the original's beet_index_purge).
func (t *Tree) purgeLeaf(pg *page.Page) int {
	lf := node.NewLeaf(pg, t.layout)
	n := lf.Size()
	write := uint32(0)
	for read := uint32(0); read < n; read++ {
		if lf.Hidden(read) {
			continue
		}
		if read != write {
			lf.SetKey(write, lf.Key(read))
			lf.SetValue(write, lf.Value(read))
		}
		write++
	}
	if write == n {
		return 0
	}
	for i := uint32(0); i < write; i++ {
		lf.SetHidden(i, false)
	}
	lf.SetSize(write)
	return int(n - write)
}

// purgeRoot walks every leaf reachable from root left to right, purging
// each in turn, and returns the total number of slots dropped. Internal
// separator keys are left untouched: a separator that happens to match a
// purged key still routes correctly, since the key it once pointed at no
// longer exists in the leaf it routes to.
func (t *Tree) purgeRoot(root page.ID) (int, *berrors.BeetError) {
	pg, err := t.leftmostLeaf(root)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		curID := pg.ID
		t.releaseRead(pg)

		wpg, werr := t.getWrite(curID)
		if werr != nil {
			return total, werr
		}
		total += t.purgeLeaf(wpg)
		nextID := node.NewLeaf(wpg, t.layout).Next()
		t.releaseWrite(wpg)

		if nextID.IsNull() {
			return total, nil
		}
		pg, err = t.getRead(nextID)
		if err != nil {
			return total, err
		}
	}
}

// getRoot descends in read mode, releasing each ancestor as soon as its
// child is latched (spec §4.3, §5).
func (t *Tree) getRoot(root page.ID, key []byte) ([]byte, *berrors.BeetError) {
	curID := root
	pg, err := t.getRead(curID)
	if err != nil {
		return nil, err
	}
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		idx := in.Locate(key, t.cmpFn)
		childID := in.Child(idx)

		childPg, cerr := t.getRead(childID)
		if cerr != nil {
			t.releaseRead(pg)
			return nil, cerr
		}
		t.releaseRead(pg)
		pg = childPg
		curID = childID
	}

	lf := node.NewLeaf(pg, t.layout)
	slot, found := lf.Find(key, t.cmpFn)
	if !found || lf.Hidden(slot) {
		t.releaseRead(pg)
		return nil, berrors.New(berrors.KeyNotFound, "key not found")
	}
	out := append([]byte(nil), lf.Value(slot)...)
	t.releaseRead(pg)
	return out, nil
}

func (t *Tree) heightRoot(root page.ID) (int, *berrors.BeetError) {
	curID := root
	pg, err := t.getRead(curID)
	if err != nil {
		return 0, err
	}
	h := 1
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		childID := in.Child(0)
		childPg, cerr := t.getRead(childID)
		if cerr != nil {
			t.releaseRead(pg)
			return 0, cerr
		}
		t.releaseRead(pg)
		pg = childPg
		curID = childID
		h++
	}
	t.releaseRead(pg)
	return h, nil
}

func (t *Tree) leftmostLeaf(root page.ID) (*page.Page, *berrors.BeetError) {
	curID := root
	pg, err := t.getRead(curID)
	if err != nil {
		return nil, err
	}
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		childID := in.Child(0)
		childPg, cerr := t.getRead(childID)
		if cerr != nil {
			t.releaseRead(pg)
			return nil, cerr
		}
		t.releaseRead(pg)
		pg = childPg
		curID = childID
	}
	return pg, nil
}

func (t *Tree) rightmostLeaf(root page.ID) (*page.Page, *berrors.BeetError) {
	curID := root
	pg, err := t.getRead(curID)
	if err != nil {
		return nil, err
	}
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		childID := in.Child(in.Size())
		childPg, cerr := t.getRead(childID)
		if cerr != nil {
			t.releaseRead(pg)
			return nil, cerr
		}
		t.releaseRead(pg)
		pg = childPg
		curID = childID
	}
	return pg, nil
}

func (t *Tree) nextLeaf(pg *page.Page) (*page.Page, *berrors.BeetError) {
	lf := node.NewLeaf(pg, t.layout)
	nextID := lf.Next()
	t.releaseRead(pg)
	if nextID.IsNull() {
		return nil, berrors.New(berrors.EOF, "no next leaf")
	}
	return t.getRead(nextID)
}

func (t *Tree) prevLeaf(pg *page.Page) (*page.Page, *berrors.BeetError) {
	lf := node.NewLeaf(pg, t.layout)
	prevID := lf.Prev()
	t.releaseRead(pg)
	if prevID.IsNull() {
		return nil, berrors.New(berrors.EOF, "no prev leaf")
	}
	return t.getRead(prevID)
}

func (t *Tree) findLeaf(root page.ID, key []byte) (*page.Page, *berrors.BeetError) {
	curID := root
	pg, err := t.getRead(curID)
	if err != nil {
		return nil, err
	}
	for !curID.IsLeaf() {
		in := node.NewInternal(pg, t.layout)
		idx := in.Locate(key, t.cmpFn)
		childID := in.Child(idx)
		childPg, cerr := t.getRead(childID)
		if cerr != nil {
			t.releaseRead(pg)
			return nil, cerr
		}
		t.releaseRead(pg)
		pg = childPg
		curID = childID
	}
	return pg, nil
}
