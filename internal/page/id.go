// Package page implements the fixed-size buffer tied to a slot in a backing
// file (spec §4.1), and the page id encoding used throughout the pager,
// node, and tree layers (spec §3).
package page

// ID is a page identifier: an unsigned 32-bit slot index into a backing
// file, optionally tagged with LeafTag to mark "lives in the leaf file"
// when a single id space spans both a leaf and an internal file (e.g. an
// internal node's child pointer, spec §3 Node / Internal node header).
type ID uint32

const (
	// NullPage is the sentinel meaning "no page".
	NullPage ID = 0xFFFFFFFF
	// LeafTag, set on the high bit, marks an id as referring to a slot in
	// the leaf file rather than the internal file.
	LeafTag ID = 0x80000000
	// tagMask isolates the untagged slot index.
	tagMask ID = 0x7FFFFFFF
)

// IsLeaf reports whether id carries the leaf tag.
func (id ID) IsLeaf() bool { return id&LeafTag != 0 }

// IsNull reports whether id is the null sentinel.
func (id ID) IsNull() bool { return id == NullPage }

// Slot returns the untagged slot index, i.e. the id's position in whichever
// file it belongs to.
func (id ID) Slot() ID { return id & tagMask }

// Tagged returns id with the leaf tag set.
func (id ID) Tagged() ID { return id.Slot() | LeafTag }

// Untagged returns id with the leaf tag cleared.
func (id ID) Untagged() ID { return id.Slot() }
