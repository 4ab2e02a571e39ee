package page

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/beetdb/beet/berrors"
)

const testOpenFlags = os.O_RDWR | os.O_CREATE

func TestIDTagging(t *testing.T) {
	tests := []struct {
		name string
		id   ID
	}{
		{"zero", ID(0)},
		{"small", ID(42)},
		{"max slot", tagMask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagged := tt.id.Tagged()
			require.True(t, tagged.IsLeaf())
			require.Equal(t, tt.id, tagged.Slot())
			untagged := tagged.Untagged()
			require.False(t, untagged.IsLeaf())
			require.Equal(t, tt.id, untagged.Slot())
		})
	}
}

func TestIDIsNull(t *testing.T) {
	require.True(t, NullPage.IsNull())
	require.False(t, ID(0).IsNull())
}

func TestRWLockSharedExclusive(t *testing.T) {
	var l RWLock
	l.LockRead()
	l.LockRead()
	l.UnlockRead()
	l.UnlockRead()

	l.LockWrite()
	l.UnlockWrite()
}

func TestPageLoadStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := fs.OpenFile("pages", testOpenFlags, 0o644)
	require.NoError(t, err)
	defer f.Close()

	const pageSize = 64
	p0 := New(ID(0), pageSize)
	copy(p0.Bytes(), []byte("hello from page zero"))
	require.Nil(t, p0.Store(f))

	p1 := New(ID(1), pageSize)
	copy(p1.Bytes(), []byte("hello from page one"))
	require.Nil(t, p1.Store(f))

	loaded0 := New(ID(0), pageSize)
	require.Nil(t, loaded0.Load(f))
	require.Equal(t, p0.Bytes(), loaded0.Bytes())

	loaded1 := New(ID(1), pageSize)
	require.Nil(t, loaded1.Load(f))
	require.Equal(t, p1.Bytes(), loaded1.Bytes())
}

func TestPageReset(t *testing.T) {
	p := New(ID(0), 8)
	copy(p.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	p.Reset()
	for _, b := range p.Bytes() {
		require.Equal(t, byte(0), b)
	}
}

func TestPageLoadShortFileIsBadPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := fs.OpenFile("short", testOpenFlags, 0o644)
	require.NoError(t, err)
	defer f.Close()

	// File has no content at all: reading page 0 of size 16 must fail.
	p := New(ID(0), 16)
	berr := p.Load(f)
	require.NotNil(t, berr)
	require.True(t, berrors.Is(berr, berrors.BadPage) || berrors.Is(berr, berrors.OSError))
}
