package index

import (
	"encoding/binary"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/page"
)

// StateFlag controls State.Get's behavior (spec §4.5).
type StateFlag int

const (
	// Release releases any pins held by the state before Get returns
	// (the simplified copy-on-read model here has nothing to actually
	// pin, but Release still clears the stashed root — see State doc).
	Release StateFlag = 1 << iota
	// Root stashes the looked-up value as a root page id for a
	// subsequent Subtree lookup.
	Root
	// Subtree looks up in the index's embedded subtree, rooted at the
	// id most recently stashed by a Root call.
	Subtree
)

// State is a reusable token so callers of get/get2/doesExist[2] do not
// need to thread pins manually (spec §4.5). The reference implementation
// holds raw leaf pins; this one holds only the stashed root id, because
// Tree.Get already copies the looked-up bytes and releases its leaf pin
// before returning — there is no borrowed pointer left to hold onto. The
// tradeoff is documented in DESIGN.md.
type State struct {
	idx       *Index
	rootStash page.ID
}

// NewState creates a state token bound to idx.
func (idx *Index) NewState() *State {
	return &State{idx: idx, rootStash: page.NullPage}
}

// Get locates key (in the outer tree, or — with Subtree — in the
// embedded subtree rooted at the state's stashed root) and returns its
// value.
func (s *State) Get(flags StateFlag, key []byte) ([]byte, *berrors.BeetError) {
	var value []byte
	var err *berrors.BeetError

	if flags&Subtree != 0 {
		if s.idx.embedded == nil {
			return nil, berrors.New(berrors.NoSub, "index has no embedded subtree")
		}
		if s.rootStash.IsNull() {
			return nil, berrors.New(berrors.BadState, "no stashed root; call Get with Root first")
		}
		value, err = s.idx.embedded.tree.GetRoot(s.rootStash, key)
	} else {
		value, err = s.idx.tree.Get(key)
	}
	if err != nil {
		return nil, err
	}

	if flags&Root != 0 {
		if len(value) < 4 {
			return nil, berrors.New(berrors.BadState, "value too short to be a root pointer")
		}
		s.rootStash = page.ID(binary.LittleEndian.Uint32(value))
	}
	if flags&Release != 0 {
		s.Reinit()
	}
	return value, nil
}

// Get2 is get(Root, key1) followed by get(Subtree|flags, key2) (spec
// §4.5).
func (s *State) Get2(key1, key2 []byte, flags StateFlag) ([]byte, *berrors.BeetError) {
	if _, err := s.Get(Root, key1); err != nil {
		return nil, err
	}
	return s.Get(Subtree|flags, key2)
}

// DoesExist reports OK/KEY_NOT_FOUND for key in the outer tree.
func (s *State) DoesExist(key []byte) *berrors.BeetError {
	_, err := s.Get(0, key)
	return err
}

// DoesExist2 reports OK/KEY_NOT_FOUND for key2 within the subtree rooted
// at key1's outer value.
func (s *State) DoesExist2(key1, key2 []byte) *berrors.BeetError {
	_, err := s.Get2(key1, key2, 0)
	return err
}

// Reinit clears the state's stashed root without releasing anything
// (spec §4.5 — used after a Release call).
func (s *State) Reinit() { s.rootStash = page.NullPage }

// Hide2 hides key2 within the embedded subtree rooted at key1's outer
// value, the HOST-aware counterpart of Tree.Hide (spec §4.5, grounded on
// the original's beet_index_hide2).
func (s *State) Hide2(key1, key2 []byte) *berrors.BeetError {
	return s.hideSubtree(key1, key2, true)
}

// Unhide2 reverses Hide2.
func (s *State) Unhide2(key1, key2 []byte) *berrors.BeetError {
	return s.hideSubtree(key1, key2, false)
}

func (s *State) hideSubtree(key1, key2 []byte, hide bool) *berrors.BeetError {
	if s.idx.embedded == nil {
		return berrors.New(berrors.NoSub, "index has no embedded subtree")
	}
	if _, err := s.Get(Root, key1); err != nil {
		return err
	}
	root := s.rootStash
	s.Reinit()
	return s.idx.embedded.tree.HideRoot(root, key2, hide)
}
