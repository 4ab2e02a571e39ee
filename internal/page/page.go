package page

import (
	"github.com/spf13/afero"

	"github.com/beetdb/beet/berrors"
)

// Page is a fixed-size owned byte buffer tied to a slot in a backing file,
// plus the per-page read/write lock (spec §4.1). Offset on disk is always
// id.Slot() * len(buf) — position-addressed, never stream-positioned, so
// concurrent reads and writes on different pages of the same file never
// interfere (spec §4.1).
type Page struct {
	ID   ID
	Lock RWLock

	buf []byte
}

// New allocates a zero-filled page of the given size for the given id.
func New(id ID, size uint32) *Page {
	return &Page{ID: id, buf: make([]byte, size)}
}

// Bytes returns the page's backing buffer. Callers must hold the
// appropriate page lock before reading or writing through it.
func (p *Page) Bytes() []byte { return p.buf }

// Reset zero-fills the buffer in place, keeping the same id and size.
func (p *Page) Reset() {
	for i := range p.buf {
		p.buf[i] = 0
	}
}

// Load reads len(p.buf) bytes from f at offset id.Slot()*len(p.buf) into
// the page's buffer.
func (p *Page) Load(f afero.File) *berrors.BeetError {
	off := int64(p.ID.Slot()) * int64(len(p.buf))
	n, err := f.ReadAt(p.buf, off)
	if err != nil {
		return berrors.Wrap(err, "page read")
	}
	if n != len(p.buf) {
		return berrors.Newf(berrors.BadPage, "short read: got %d want %d bytes", n, len(p.buf))
	}
	return nil
}

// Store writes the page's buffer to f at offset id.Slot()*len(p.buf).
func (p *Page) Store(f afero.File) *berrors.BeetError {
	off := int64(p.ID.Slot()) * int64(len(p.buf))
	n, err := f.WriteAt(p.buf, off)
	if err != nil {
		return berrors.Wrap(err, "page write")
	}
	if n != len(p.buf) {
		return berrors.Newf(berrors.BadPage, "short write: wrote %d want %d bytes", n, len(p.buf))
	}
	return nil
}
