// Package node implements the on-page layout of leaf and internal nodes
// (spec §3): fixed header, a per-slot tombstone bitmap on leaves, and
// fixed-width key/value slot arrays, addressed directly inside a
// page.Page's backing buffer rather than through an intermediate copy —
// matching the teacher's slotBytes-style direct-offset accessors
// (hmarui66-blink-tree-go, page.go) adapted from variable-length slots to
// fixed-width arrays.
package node

import "github.com/beetdb/beet/internal/cmp"

// Layout describes the fixed sizes a tree was created with. Every leaf and
// internal node of a given tree shares one Layout (spec §6 config record).
type Layout struct {
	KeySize          uint32
	DataSize         uint32
	LeafNodeSize     uint32 // max live slots in a leaf
	InternalNodeSize uint32 // max keys in an internal node (children = this + 1)
}

// tombstoneBytes is the size in bytes of a leaf's tombstone bitmap: one bit
// per possible slot, rounded up, plus one spare byte (spec §3).
func (l Layout) tombstoneBytes() uint32 {
	return (l.LeafNodeSize+7)/8 + 1
}

const (
	leafHeaderSize     = 12 // size(4) + next(4) + prev(4)
	internalHeaderSize = 4  // size(4)
	idSize             = 4
)

func (l Layout) leafBitmapOffset() uint32 { return leafHeaderSize }
func (l Layout) leafKeysOffset() uint32   { return l.leafBitmapOffset() + l.tombstoneBytes() }
func (l Layout) leafValuesOffset() uint32 {
	return l.leafKeysOffset() + l.LeafNodeSize*l.KeySize
}

// LeafPageSize is the total byte size a page.Page must have to back a leaf
// node under this layout.
func (l Layout) LeafPageSize() uint32 {
	return l.leafValuesOffset() + l.LeafNodeSize*l.DataSize
}

func (l Layout) internalKeysOffset() uint32 { return internalHeaderSize }
func (l Layout) internalChildrenOffset() uint32 {
	return l.internalKeysOffset() + l.InternalNodeSize*l.KeySize
}

// InternalPageSize is the total byte size a page.Page must have to back an
// internal node under this layout.
func (l Layout) InternalPageSize() uint32 {
	return l.internalChildrenOffset() + (l.InternalNodeSize+1)*idSize
}

// search performs the ordered binary search shared by leaf and internal
// nodes: the index of key within [0, n), or the insertion point (as
// ^index, following sort.Search's convention inverted to distinguish
// "found" from "not found") is not used here — callers get back (slot,
// found) directly, mirroring the teacher's FindSlot but generalized to an
// injected comparator (spec §4.3, §9).
func search(n uint32, key []byte, at func(i uint32) []byte, fn cmp.Func) (slot uint32, found bool) {
	lo, hi := uint32(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		c := fn(at(mid), key)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}
