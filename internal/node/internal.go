package node

import (
	"encoding/binary"

	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/page"
)

// Internal is a view over a page.Page's buffer interpreted as an internal
// node: a size header, a dense array of Size separator keys, and a dense
// array of Size+1 child page ids — child[i] holds keys < key[i], child[n]
// holds keys >= key[n-1] (spec §3).
type Internal struct {
	pg *page.Page
	l  Layout
}

// NewInternal wraps pg as an internal node under layout l. pg's buffer
// must be at least l.InternalPageSize() bytes.
func NewInternal(pg *page.Page, l Layout) *Internal { return &Internal{pg: pg, l: l} }

func (in *Internal) buf() []byte { return in.pg.Bytes() }

// Size is the number of separator keys currently in use (0..InternalNodeSize).
func (in *Internal) Size() uint32 { return binary.LittleEndian.Uint32(in.buf()[0:4]) }

func (in *Internal) SetSize(n uint32) { binary.LittleEndian.PutUint32(in.buf()[0:4], n) }

func (in *Internal) keyOffset(i uint32) uint32 {
	return in.l.internalKeysOffset() + i*in.l.KeySize
}

func (in *Internal) childOffset(i uint32) uint32 {
	return in.l.internalChildrenOffset() + i*idSize
}

// Key returns the separator key at index i (0..Size-1).
func (in *Internal) Key(i uint32) []byte {
	off := in.keyOffset(i)
	return in.buf()[off : off+in.l.KeySize]
}

func (in *Internal) SetKey(i uint32, k []byte) { copy(in.Key(i), k) }

// Child returns the child page id at index i (0..Size).
func (in *Internal) Child(i uint32) page.ID {
	off := in.childOffset(i)
	return page.ID(binary.LittleEndian.Uint32(in.buf()[off : off+idSize]))
}

func (in *Internal) SetChild(i uint32, id page.ID) {
	off := in.childOffset(i)
	binary.LittleEndian.PutUint32(in.buf()[off:off+idSize], uint32(id))
}

// Locate returns the index of the child to descend into for key: the
// first index i such that key < Key(i), or Size if key is >= every
// separator (spec §4.3 descent).
func (in *Internal) Locate(key []byte, fn cmp.Func) uint32 {
	n := in.Size()
	lo, hi := uint32(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if fn(key, in.Key(mid)) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Full reports whether the internal node has no room for another
// separator key / child pair.
func (in *Internal) Full() bool { return in.Size() >= in.l.InternalNodeSize }

// Safe reports whether the internal node can still absorb one more insert
// without splitting (spec §4.3, §5 safe-barrier crabbing).
func (in *Internal) Safe() bool { return in.Size()+1 < in.l.InternalNodeSize }

// InsertAt shifts separator keys [slot, Size) and children [slot+1, Size+1)
// one place to the right, placing a new separator key at slot and a new
// right-child pointer at slot+1. Caller must have already verified
// Size() < InternalNodeSize.
func (in *Internal) InsertAt(slot uint32, key []byte, rightChild page.ID) {
	n := in.Size()
	for i := n; i > slot; i-- {
		copy(in.Key(i), in.Key(i-1))
	}
	for i := n + 1; i > slot+1; i-- {
		in.SetChild(i, in.Child(i-1))
	}
	in.SetKey(slot, key)
	in.SetChild(slot+1, rightChild)
	in.SetSize(n + 1)
}

// InitRoot sets up a fresh internal node with a single separator key and
// two children — the shape produced the first time a leaf split promotes
// a key to a brand-new root (spec §4.3 split).
func (in *Internal) InitRoot(key []byte, left, right page.ID) {
	in.SetSize(1)
	in.SetKey(0, key)
	in.SetChild(0, left)
	in.SetChild(1, right)
}
