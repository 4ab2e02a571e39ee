package page

import "sync"

// RWLock is the per-page shared-exclusive lock described in spec §4.1 and
// §5: multiple readers or one writer, no upgrade. The teacher
// (hmarui66-blink-tree-go, latchmgr.go) hand-rolls a phase-fair ticketed
// spinlock here because the C original avoided blocking syscalls inside a
// mmap'd region; beet has no such constraint (pages are plain heap buffers)
// so a stdlib sync.RWMutex gives the same semantics without the busy-wait.
type RWLock struct {
	mu sync.RWMutex
}

func (l *RWLock) LockRead()    { l.mu.RLock() }
func (l *RWLock) UnlockRead()  { l.mu.RUnlock() }
func (l *RWLock) LockWrite()   { l.mu.Lock() }
func (l *RWLock) UnlockWrite() { l.mu.Unlock() }
