package btree

import (
	"encoding/binary"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/node"
	"github.com/beetdb/beet/internal/page"
)

// Strategy decouples "what does writing a value into a leaf slot mean"
// from the tree's descent/split machinery (spec §4.3, §9 "pointer-to-tree
// inside a tree"). PLAIN and NULL carry no state; EMBEDDED borrows the
// inner tree a HOST index wires into the outer tree's leaves.
type Strategy interface {
	// WriteValue places value into the leaf at slot. update distinguishes
	// upsert-over-existing from first insert. It reports whether the
	// slot's own bytes were the thing that changed (true for PLAIN, false
	// for NULL and EMBEDDED — an EMBEDDED write may still rewrite the
	// slot's root-id bytes itself, but that is not what the return value
	// means; it exists purely to mirror the source strategy's own
	// "wrote" signal, spec §4.3).
	WriteValue(lf *node.Leaf, slot uint32, value []byte, update bool) (wrote bool, err *berrors.BeetError)

	// InitChildren initializes the value region of a freshly allocated,
	// still-empty leaf so that unused slots can later be told apart from
	// slots that carry a real value (spec §4.3, §9).
	InitChildren(lf *node.Leaf)
}

// PlainStrategy copies the caller's fixed-width bytes directly into the
// leaf's value slot — used by a PLAIN index, the common "primary data"
// case.
type PlainStrategy struct{}

func (PlainStrategy) WriteValue(lf *node.Leaf, slot uint32, value []byte, _ bool) (bool, *berrors.BeetError) {
	lf.SetValue(slot, value)
	return true, nil
}

func (PlainStrategy) InitChildren(*node.Leaf) {}

// NullStrategy stores nothing — used by a NULL index (a keyset: presence
// of the key is the only information).
type NullStrategy struct{}

func (NullStrategy) WriteValue(*node.Leaf, uint32, []byte, bool) (bool, *berrors.BeetError) {
	return false, nil
}

func (NullStrategy) InitChildren(*node.Leaf) {}

// EmbeddedStrategy treats an outer leaf slot as a 4-byte root page id into
// a shared inner tree, creating that inner tree's root lazily on first
// write and delegating the actual (innerKey, innerValue) insert to it
// (spec §4.3, §9). One EmbeddedStrategy, and the inner tree it wraps, is
// shared by every outer key in a HOST index — each outer slot holds its
// own independent root id into the same pair of backing files, so the
// inner tree is really a forest addressed by root id, not one fixed tree.
type EmbeddedStrategy struct {
	Inner        *Tree
	InnerKeySize uint32
}

func (s *EmbeddedStrategy) WriteValue(lf *node.Leaf, slot uint32, value []byte, update bool) (bool, *berrors.BeetError) {
	valBuf := lf.Value(slot)
	orig := page.ID(binary.LittleEndian.Uint32(valBuf))
	if !update {
		// A first insert into a freshly shifted-in slot: its bytes still
		// hold a neighbour's root id (see node.Leaf.InsertAt), not ours.
		orig = page.NullPage
	}
	rootID := orig

	if rootID.IsNull() {
		newRootPg, newLf, err := s.Inner.allocateLeaf()
		if err != nil {
			return false, err
		}
		rootID = newRootPg.ID
		s.Inner.releaseWrite(newRootPg)
		_ = newLf
	}

	innerKey := value[:s.InnerKeySize]
	innerValue := value[s.InnerKeySize:]

	newRoot, err := s.Inner.insertRoot(rootID, innerKey, innerValue, update, func() {})
	if err != nil {
		return false, err
	}
	// A brand-new outer slot's root must be written back even when the
	// inner insert itself didn't split (newRoot == rootID): orig was
	// NULL_PAGE, so the freshly allocated root still needs recording.
	if newRoot != orig {
		binary.LittleEndian.PutUint32(valBuf, uint32(newRoot))
	}
	return false, nil
}

func (EmbeddedStrategy) InitChildren(lf *node.Leaf) {
	null := make([]byte, 4)
	binary.LittleEndian.PutUint32(null, uint32(page.NullPage))
	for i := uint32(0); i < lf.Capacity(); i++ {
		lf.SetValue(i, null)
	}
}
