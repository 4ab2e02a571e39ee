// Package cmp provides the pluggable key ordering used throughout the
// btree and node layers, plus the process-wide name registry that replaces
// the original implementation's dynamic-symbol (dlsym) comparator
// resolution with a Go-idiomatic lookup table (SPEC_FULL.md §6, Open
// Question 2).
package cmp

import (
	"bytes"
	"sort"
	"sync"

	"github.com/beetdb/beet/berrors"
)

// Func orders two fixed-width keys the same way bytes.Compare orders byte
// slices: negative if a < b, zero if equal, positive if a > b.
type Func func(a, b []byte) int

// Bytes is the default comparator: plain lexicographic byte order, the
// only ordering most configurations ever need.
func Bytes(a, b []byte) int { return bytes.Compare(a, b) }

var (
	mu       sync.RWMutex
	registry = map[string]Func{
		"bytes": Bytes,
	}
)

// Register adds a named comparator to the process-wide registry so it can
// be referenced by name from a persisted config record (spec §6) without
// the config format itself needing to carry executable code. Registering
// under a name already in use replaces it.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup resolves a comparator previously registered under name.
func Lookup(name string) (Func, *berrors.BeetError) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, berrors.Newf(berrors.NoSymbol, "no comparator registered under name %q", name)
	}
	return fn, nil
}

// Names returns the currently registered comparator names, sorted, mainly
// for the CLI's config command and diagnostics.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
