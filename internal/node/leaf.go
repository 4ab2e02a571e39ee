package node

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/beetdb/beet/internal/cmp"
	"github.com/beetdb/beet/internal/page"
)

// Leaf is a view over a page.Page's buffer interpreted as a leaf node:
// header (size, next, prev sibling), a tombstone bitmap, then a dense
// array of keySize keys followed by a dense array of dataSize values
// (spec §3).
type Leaf struct {
	pg *page.Page
	l  Layout
}

// NewLeaf wraps pg as a leaf node under layout l. pg's buffer must be at
// least l.LeafPageSize() bytes.
func NewLeaf(pg *page.Page, l Layout) *Leaf { return &Leaf{pg: pg, l: l} }

func (lf *Leaf) buf() []byte { return lf.pg.Bytes() }

// Size is the number of occupied slots, including hidden (tombstoned) ones.
// Slots are always packed [0, Size) — hiding a key sets its tombstone bit
// but does not remove its slot (spec §5 soft delete).
func (lf *Leaf) Size() uint32 { return binary.LittleEndian.Uint32(lf.buf()[0:4]) }

func (lf *Leaf) SetSize(n uint32) { binary.LittleEndian.PutUint32(lf.buf()[0:4], n) }

// Next is the page id of the next leaf in key order, or page.NullPage at
// the rightmost leaf.
func (lf *Leaf) Next() page.ID { return page.ID(binary.LittleEndian.Uint32(lf.buf()[4:8])) }

func (lf *Leaf) SetNext(id page.ID) { binary.LittleEndian.PutUint32(lf.buf()[4:8], uint32(id)) }

// Prev is the page id of the previous leaf in key order, or page.NullPage
// at the leftmost leaf.
func (lf *Leaf) Prev() page.ID { return page.ID(binary.LittleEndian.Uint32(lf.buf()[8:12])) }

func (lf *Leaf) SetPrev(id page.ID) { binary.LittleEndian.PutUint32(lf.buf()[8:12], uint32(id)) }

func (lf *Leaf) tombstoneRaw() []byte {
	off := lf.l.leafBitmapOffset()
	return lf.buf()[off : off+lf.l.tombstoneBytes()]
}

// Hidden reports whether the key/value at slot has been soft-deleted.
func (lf *Leaf) Hidden(slot uint32) bool {
	raw := lf.tombstoneRaw()
	return raw[slot/8]&(1<<(slot%8)) != 0
}

// SetHidden sets or clears a slot's tombstone bit directly; used on the
// single-slot hot path (hide/unhide of one key).
func (lf *Leaf) SetHidden(slot uint32, hidden bool) {
	raw := lf.tombstoneRaw()
	if hidden {
		raw[slot/8] |= 1 << (slot % 8)
	} else {
		raw[slot/8] &^= 1 << (slot % 8)
	}
}

// Tombstones decodes the raw bitmap into a bitset.BitSet for bulk
// operations (counting live slots, shifting tombstone bits across a split)
// that read more naturally against a real bit-vector type than against
// raw byte-and-shift arithmetic.
func (lf *Leaf) Tombstones() *bitset.BitSet {
	raw := lf.tombstoneRaw()
	bs := bitset.New(uint(lf.l.LeafNodeSize))
	for i := uint(0); i < uint(lf.l.LeafNodeSize); i++ {
		if raw[i/8]&(1<<(i%8)) != 0 {
			bs.Set(i)
		}
	}
	return bs
}

// SetTombstones re-encodes bs back into the page's raw bitmap bytes.
func (lf *Leaf) SetTombstones(bs *bitset.BitSet) {
	raw := lf.tombstoneRaw()
	for i := range raw {
		raw[i] = 0
	}
	for i := uint(0); i < uint(lf.l.LeafNodeSize); i++ {
		if bs.Test(i) {
			raw[i/8] |= 1 << (i % 8)
		}
	}
}

// LiveCount returns the number of non-hidden slots among [0, Size).
func (lf *Leaf) LiveCount() uint32 {
	n := lf.Size()
	bs := lf.Tombstones()
	return n - uint32(bs.Count())
}

func (lf *Leaf) keyOffset(slot uint32) uint32 {
	return lf.l.leafKeysOffset() + slot*lf.l.KeySize
}

func (lf *Leaf) valueOffset(slot uint32) uint32 {
	return lf.l.leafValuesOffset() + slot*lf.l.DataSize
}

// Key returns the fixed-width key bytes at slot.
func (lf *Leaf) Key(slot uint32) []byte {
	off := lf.keyOffset(slot)
	return lf.buf()[off : off+lf.l.KeySize]
}

// SetKey copies k (which must be exactly KeySize bytes) into slot.
func (lf *Leaf) SetKey(slot uint32, k []byte) { copy(lf.Key(slot), k) }

// Value returns the fixed-width value bytes at slot.
func (lf *Leaf) Value(slot uint32) []byte {
	off := lf.valueOffset(slot)
	return lf.buf()[off : off+lf.l.DataSize]
}

// SetValue copies v (which must be exactly DataSize bytes) into slot.
func (lf *Leaf) SetValue(slot uint32, v []byte) { copy(lf.Value(slot), v) }

// Find performs a binary search for key among the leaf's occupied slots
// (live or hidden) and reports whether it was found (spec §4.3, §9:
// duplicate-insert and hide/unhide both require exact-match lookup first).
func (lf *Leaf) Find(key []byte, fn cmp.Func) (slot uint32, found bool) {
	return search(lf.Size(), key, lf.Key, fn)
}

// InsertAt shifts slots [slot, Size) one place to the right, making room
// for a new key at slot, and increments Size. The vacated slot's value
// bytes are not reset: when slot < Size they still hold the value that was
// shifted to slot+1, and when slot == Size they hold whatever was last
// written there (an InitChildren seed, or a stale value left by a split
// or purge). The caller's strategy writes the real value (spec §4.3, §9).
// Caller must have already verified Size() < LeafNodeSize.
func (lf *Leaf) InsertAt(slot uint32, key []byte) {
	n := lf.Size()
	bs := lf.Tombstones()
	for i := n; i > slot; i-- {
		copy(lf.Key(i), lf.Key(i-1))
		copy(lf.Value(i), lf.Value(i-1))
		if bs.Test(uint(i - 1)) {
			bs.Set(uint(i))
		} else {
			bs.Clear(uint(i))
		}
	}
	bs.Clear(uint(slot))
	lf.SetTombstones(bs)
	lf.SetKey(slot, key)
	lf.SetSize(n + 1)
}

// Full reports whether the leaf has no room for another slot.
func (lf *Leaf) Full() bool { return lf.Size() >= lf.l.LeafNodeSize }

// Capacity is the maximum number of slots this leaf can ever hold.
func (lf *Leaf) Capacity() uint32 { return lf.l.LeafNodeSize }

// Safe reports whether the leaf can still absorb one more insert without
// splitting — the "safe barrier" a crabbing descent tests against a
// child before releasing its parent's lock (spec §4.3, §5).
func (lf *Leaf) Safe() bool { return lf.Size()+1 < lf.l.LeafNodeSize }
