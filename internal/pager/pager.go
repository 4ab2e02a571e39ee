// Package pager implements the bounded, latched, pin-aware page cache
// described in spec §4.2 — "rider" in the spec's own vocabulary. One Pager
// owns one backing file.
package pager

import (
	"container/list"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/beetdb/beet/berrors"
	"github.com/beetdb/beet/internal/page"
)

// osCreateFlags opens the backing file for position-addressed read/write,
// creating it if absent (spec §4.1, §4.4 index create).
const osCreateFlags = os.O_RDWR | os.O_CREATE

// Stats are running counters for a pager's lifetime, read through
// Pager.Stats — grounded on the teacher's tree.reads/tree.writes counters
// (hmarui66-blink-tree-go, bltree.go) generalized into the pager itself.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Evictions  uint64
	Allocation uint64
}

type entry struct {
	page  *page.Page
	pins  int32
	dirty bool
	elem  *list.Element // node in lru, value is the page id
}

// Pager is a bounded cache of pages backed by one file, keyed by page id,
// ordered MRU-to-LRU by an intrusive list (spec §4.2).
type Pager struct {
	mu sync.Mutex // the pager's internal latch; never held while waiting on a page lock (spec §4.2, §5). It is held during disk I/O: loading a missed page, flushing a dirty page on eviction, Allocate's zero-fill write, and Store.

	fs       afero.Fs
	file     afero.File
	path     string
	pageSize uint32
	maxPages int // 0 means unlimited

	entries map[page.ID]*entry
	lru     *list.List // Front = MRU, Back = LRU

	nextID page.ID // next page id to hand out on Allocate
	leaf   bool    // whether ids handed out by this pager are leaf-tagged

	stats Stats
	log   *zap.Logger
}

// Open opens (creating if necessary) the file at path on fs as the backing
// store for a bounded page cache of at most maxPages entries (0 =
// unlimited). leafTagged controls whether ids minted by Allocate carry
// page.LeafTag, matching which file (leaf vs internal) this pager serves.
func Open(fs afero.Fs, path string, pageSize uint32, maxPages int, leafTagged bool, log *zap.Logger) (*Pager, *berrors.BeetError) {
	f, err := fs.OpenFile(path, osCreateFlags, 0o644)
	if err != nil {
		return nil, berrors.Wrap(err, "open pager file "+path)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, berrors.Wrap(err, "stat pager file "+path)
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pager{
		fs:       fs,
		file:     f,
		path:     path,
		pageSize: pageSize,
		maxPages: maxPages,
		entries:  make(map[page.ID]*entry),
		lru:      list.New(),
		nextID:   page.ID(info.Size() / int64(pageSize)),
		leaf:     leafTagged,
		log:      log,
	}
	return p, nil
}

// Close flushes every dirty cached page and closes the backing file.
func (p *Pager) Close() *berrors.BeetError {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.entries {
		if e.dirty {
			if berr := e.page.Store(p.file); berr != nil {
				return berr
			}
			p.stats.Writes++
			e.dirty = false
		}
		_ = id
	}
	if err := p.file.Close(); err != nil {
		return berrors.Wrap(err, "close pager file "+p.path)
	}
	p.log.Debug("pager closed", zap.String("path", p.path), zap.Uint64("writes", p.stats.Writes))
	return nil
}

// Stats returns a snapshot of the pager's running counters.
func (p *Pager) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pager) tag(slot page.ID) page.ID {
	if p.leaf {
		return slot.Tagged()
	}
	return slot.Untagged()
}

// GetRead returns a read-pinned, read-locked handle on the page with the
// given id (spec §4.2).
func (p *Pager) GetRead(id page.ID) (*page.Page, *berrors.BeetError) {
	e, berr := p.pin(id)
	if berr != nil {
		return nil, berr
	}
	e.page.Lock.LockRead()
	return e.page, nil
}

// GetWrite returns a write-pinned, write-locked handle on the page with the
// given id (spec §4.2). Any write through the returned page must be
// followed by ReleaseWrite to clear the pin and mark the entry dirty.
func (p *Pager) GetWrite(id page.ID) (*page.Page, *berrors.BeetError) {
	e, berr := p.pin(id)
	if berr != nil {
		return nil, berr
	}
	e.page.Lock.LockWrite()
	return e.page, nil
}

// pin implements the shared lookup/load/evict protocol behind GetRead and
// GetWrite, up to but not including the page lock acquisition — the pager
// latch (p.mu) must never be held while blocking on a page lock (spec §4.2,
// §5).
func (p *Pager) pin(id page.ID) (*entry, *berrors.BeetError) {
	p.mu.Lock()

	if e, ok := p.entries[id]; ok {
		p.lru.MoveToFront(e.elem)
		e.pins++
		p.stats.Hits++
		p.mu.Unlock()
		return e, nil
	}

	if p.maxPages > 0 && len(p.entries) >= p.maxPages {
		if ok := p.evictLocked(); !ok {
			p.mu.Unlock()
			return nil, berrors.New(berrors.NoResource, "page cache full, no evictable entry")
		}
	}

	pg := page.New(id, p.pageSize)
	if berr := pg.Load(p.file); berr != nil {
		p.mu.Unlock()
		return nil, berr
	}
	p.stats.Reads++

	e := &entry{page: pg, pins: 1}
	e.elem = p.lru.PushFront(id)
	p.entries[id] = e
	p.mu.Unlock()
	return e, nil
}

// evictLocked walks the LRU list from the tail (least-recently-used end)
// and evicts the first entry whose pin count is 0, flushing it if dirty.
// Must be called with p.mu held. Returns false if nothing is evictable
// (spec §4.2, §9 cache eviction under pinning).
func (p *Pager) evictLocked() bool {
	for elem := p.lru.Back(); elem != nil; elem = elem.Prev() {
		id := elem.Value.(page.ID)
		e := p.entries[id]
		if e.pins != 0 {
			continue
		}
		if e.dirty {
			if berr := e.page.Store(p.file); berr != nil {
				p.log.Error("evict flush failed", zap.Error(berr))
				return false
			}
			p.stats.Writes++
		}
		p.lru.Remove(elem)
		delete(p.entries, id)
		p.stats.Evictions++
		return true
	}
	return false
}

// ReleaseRead unpins a page previously obtained via GetRead.
func (p *Pager) ReleaseRead(pg *page.Page) {
	pg.Lock.UnlockRead()
	p.unpin(pg.ID)
}

// ReleaseWrite unpins a page previously obtained via GetWrite. The page is
// marked dirty so the pager flushes it on eviction or Close, matching the
// teacher's latch.dirty convention (hmarui66-blink-tree-go, bufmgr.go).
func (p *Pager) ReleaseWrite(pg *page.Page) {
	p.mu.Lock()
	if e, ok := p.entries[pg.ID]; ok {
		e.dirty = true
	}
	p.mu.Unlock()
	pg.Lock.UnlockWrite()
	p.unpin(pg.ID)
}

func (p *Pager) unpin(id page.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		e.pins--
	}
}

// Store immediately flushes the page's current bytes to its file slot,
// matching spec §4.2's explicit store(handle) operation. The caller must
// hold the page's write lock.
func (p *Pager) Store(pg *page.Page) *berrors.BeetError {
	p.mu.Lock()
	defer p.mu.Unlock()
	if berr := pg.Store(p.file); berr != nil {
		return berr
	}
	p.stats.Writes++
	if e, ok := p.entries[pg.ID]; ok {
		e.dirty = false
	}
	return nil
}

// Allocate extends the backing file by one page, assigns it the next id,
// and returns it write-pinned (spec §4.2).
func (p *Pager) Allocate() (*page.Page, *berrors.BeetError) {
	p.mu.Lock()
	slot := p.nextID
	p.nextID++
	id := p.tag(slot)

	if p.maxPages > 0 && len(p.entries) >= p.maxPages {
		if ok := p.evictLocked(); !ok {
			p.mu.Unlock()
			return nil, berrors.New(berrors.NoResource, "page cache full, cannot allocate")
		}
	}

	pg := page.New(id, p.pageSize)
	if berr := pg.Store(p.file); berr != nil {
		p.mu.Unlock()
		return nil, berr
	}
	p.stats.Writes++
	p.stats.Allocation++

	e := &entry{page: pg, pins: 1, dirty: true}
	e.elem = p.lru.PushFront(id)
	p.entries[id] = e
	p.mu.Unlock()

	pg.Lock.LockWrite()
	return pg, nil
}
