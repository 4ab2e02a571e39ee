// Package iter implements the bounded range cursor of spec §4.6: a
// restartable cursor (never a generator/coroutine, per spec §9) over a
// tree, with an optional nested sub-cursor descending into an inner tree
// referenced from the current outer slot.
package iter

import (
	"encoding/binary"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/btree"
	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/page"
)

// Direction controls scan order.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Level distinguishes the outer cursor from a HOST iterator's nested
// inner cursor.
type Level int

const (
	Outer Level = iota
	Inner
)

// Pair is a (key, value) result from Move, valid only until the next
// Move/Reset/Enter/Leave call — both slices are private copies, so
// callers may in fact retain them past that point, but no guarantee is
// made about seeing later tree mutations.
type Pair struct {
	Key   []byte
	Value []byte
}

// Iterator is a bounded, optionally-nested range cursor over a btree.Tree
// (spec §4.6).
type Iterator struct {
	tree  *btree.Tree
	root  page.ID
	cmpFn cmp.Func

	from, to []byte
	dir      Direction
	oneWay   bool // created in a mode where Enter is never valid

	started bool
	pg      *page.Page // currently pinned leaf, nil once exhausted
	slot    uint32

	host     bool
	level    Level
	innerOf  func(root page.ID) *Iterator
	inner    *Iterator
	lastRoot page.ID // root id carried by the pair most recently returned by Move, host iterators only
	haveLast bool
}

// Options configures a new Iterator.
type Options struct {
	From, To []byte
	Dir      Direction
	OneWay   bool
	// Host, when non-nil, marks this iterator as the outer level of a
	// HOST index and supplies the factory Enter uses to build the nested
	// inner cursor rooted at the current slot's page id.
	Host func(root page.ID) *Iterator
}

// New creates an iterator over tree rooted at root.
func New(tree *btree.Tree, root page.ID, opts Options) *Iterator {
	return &Iterator{
		tree:    tree,
		root:    root,
		cmpFn:   tree.Comparator(),
		from:    opts.From,
		to:      opts.To,
		dir:     opts.Dir,
		oneWay:  opts.OneWay,
		host:    opts.Host != nil,
		innerOf: opts.Host,
	}
}

func (it *Iterator) releaseCurrent() {
	if it.pg != nil {
		it.tree.ReleaseLeaf(it.pg)
		it.pg = nil
	}
}

// Reset drops any pinned leaf and rewinds to the pre-first-Move state
// (spec §4.6).
func (it *Iterator) Reset() {
	if it.inner != nil {
		it.inner.Reset()
		it.inner = nil
	}
	it.level = Outer
	it.releaseCurrent()
	it.started = false
	it.slot = 0
	it.haveLast = false
}

func (it *Iterator) pastTo(key []byte) bool {
	if it.to == nil {
		return false
	}
	c := it.cmpFn(key, it.to)
	if it.dir == Asc {
		return c > 0
	}
	return c < 0
}

// position locates the first leaf/slot to visit, honoring `from` if set
// (spec §4.6 "First move").
func (it *Iterator) position() *berrors.BeetError {
	if it.from == nil {
		var pg *page.Page
		var err *berrors.BeetError
		if it.dir == Asc {
			pg, err = it.tree.LeftmostLeaf(it.root)
		} else {
			pg, err = it.tree.RightmostLeaf(it.root)
		}
		if err != nil {
			return err
		}
		it.pg = pg
		lf := node.NewLeaf(pg, it.tree.Layout())
		if it.dir == Asc || lf.Size() == 0 {
			it.slot = 0
		} else {
			it.slot = lf.Size() - 1
		}
		return nil
	}

	pg, err := it.tree.FindLeaf(it.root, it.from)
	if err != nil {
		return err
	}
	it.pg = pg
	lf := node.NewLeaf(pg, it.tree.Layout())
	slot, found := lf.Find(it.from, it.cmpFn)

	if it.dir == Asc {
		it.slot = slot
		if slot < lf.Size() {
			return nil
		}
		// Every key in this leaf is < from; fall through to the next
		// leaf (spec §9 open question resolution).
		next, nerr := it.tree.NextLeaf(pg)
		it.pg = nil
		if nerr != nil {
			return nil // treat as exhausted, first Move reports EOF
		}
		it.pg = next
		it.slot = 0
		return nil
	}

	// DESC: want the greatest slot whose key is <= from.
	if found {
		it.slot = slot
		return nil
	}
	if slot == 0 {
		// Nothing in this leaf compares <= from; fall through to the
		// previous leaf (spec §9 open question resolution).
		prev, perr := it.tree.PrevLeaf(pg)
		it.pg = nil
		if perr != nil {
			it.pg = nil
			return nil // treat as exhausted, first Move reports EOF
		}
		it.pg = prev
		plf := node.NewLeaf(prev, it.tree.Layout())
		if plf.Size() == 0 {
			it.slot = 0
		} else {
			it.slot = plf.Size() - 1
		}
		return nil
	}
	it.slot = slot - 1
	return nil
}

// advance moves the slot cursor in-direction within the current leaf,
// crossing to the neighbor leaf (releasing the old one) when it runs off
// either end. Sets it.pg to nil on exhaustion rather than erroring, since
// the caller has already captured the pair being returned this call.
func (it *Iterator) advance(lf *node.Leaf) {
	if it.dir == Asc {
		it.slot++
		if it.slot < lf.Size() {
			return
		}
	} else {
		if it.slot > 0 {
			it.slot--
			return
		}
	}

	var next *page.Page
	var err *berrors.BeetError
	if it.dir == Asc {
		next, err = it.tree.NextLeaf(it.pg)
	} else {
		next, err = it.tree.PrevLeaf(it.pg)
	}
	it.pg = nil
	if err != nil {
		return
	}
	it.pg = next
	nlf := node.NewLeaf(next, it.tree.Layout())
	if it.dir == Asc {
		it.slot = 0
	} else if nlf.Size() > 0 {
		it.slot = nlf.Size() - 1
	} else {
		it.slot = 0
	}
}

// Move advances the cursor and returns the current pair. On a HOST
// iterator at Inner level, Move delegates to the nested cursor.
func (it *Iterator) Move() (Pair, *berrors.BeetError) {
	if it.level == Inner {
		return it.inner.Move()
	}

	if !it.started {
		it.started = true
		if err := it.position(); err != nil {
			return Pair{}, err
		}
	}

	it.haveLast = false
	for {
		if it.pg == nil {
			return Pair{}, berrors.New(berrors.EOF, "iterator exhausted")
		}
		lf := node.NewLeaf(it.pg, it.tree.Layout())

		if lf.Size() == 0 {
			it.releaseCurrent()
			return Pair{}, berrors.New(berrors.EOF, "iterator exhausted")
		}

		if lf.Hidden(it.slot) {
			it.advance(lf)
			continue
		}

		key := append([]byte(nil), lf.Key(it.slot)...)
		if it.pastTo(key) {
			it.releaseCurrent()
			return Pair{}, berrors.New(berrors.EOF, "iterator reached bound")
		}
		value := append([]byte(nil), lf.Value(it.slot)...)
		if it.host {
			it.lastRoot = page.ID(binary.LittleEndian.Uint32(value))
			it.haveLast = true
		}
		it.advance(lf)
		return Pair{Key: key, Value: value}, nil
	}
}

// Enter descends into the inner subtree referenced by the current outer
// slot's value (a 4-byte root page id). Only valid on the outer level of
// a HOST iterator, after at least one Move (spec §4.6).
func (it *Iterator) Enter() *berrors.BeetError {
	if !it.host {
		return berrors.New(berrors.NoSub, "iterator is not over a host index")
	}
	if it.oneWay {
		return berrors.New(berrors.NotSupported, "iterator created one-way")
	}
	if !it.started || !it.haveLast {
		return berrors.New(berrors.BadState, "enter called before first move or after EOF")
	}
	if it.level == Inner {
		return berrors.New(berrors.BadState, "already at inner level")
	}

	// it.pg/it.slot may already have moved past the leaf that held the
	// pair Move last returned (advance() releases the old leaf as soon
	// as it steps off its end), so the root to descend into is the one
	// Move stashed at return time rather than anything re-derived from
	// the cursor's current position.
	it.inner = it.innerOf(it.lastRoot)
	it.level = Inner
	return nil
}

// Leave resets the inner cursor and returns the outer cursor to control.
func (it *Iterator) Leave() *berrors.BeetError {
	if it.level != Inner {
		return berrors.New(berrors.BadState, "not at inner level")
	}
	it.inner.Reset()
	it.inner = nil
	it.level = Outer
	return nil
}
