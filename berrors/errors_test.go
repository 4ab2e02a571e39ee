package berrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(KeyNotFound, "missing key")
	require.Equal(t, "beet: KEY_NOT_FOUND: missing key", err.Error())
	require.Nil(t, err.Unwrap())
}

func TestNewfFormats(t *testing.T) {
	err := Newf(BadSize, "key is %d bytes, want %d", 3, 8)
	require.Equal(t, "beet: BAD_SIZE: key is 3 bytes, want 8", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "write page")
	require.Equal(t, OSError, err.Kind)
	require.ErrorIs(t, err, cause)
}

func TestWrapNilIsNil(t *testing.T) {
	require.Nil(t, Wrap(nil, "anything"))
}

func TestIs(t *testing.T) {
	var err error = New(NoResource, "cache full")
	require.True(t, Is(err, NoResource))
	require.False(t, Is(err, EOF))
	require.False(t, Is(errors.New("plain error"), NoResource))
}

func TestKindStringUnknown(t *testing.T) {
	require.Equal(t, "Kind(999)", Kind(999).String())
	require.Equal(t, "KEY_NOT_HIDDEN", KeyNotHidden.String())
}
