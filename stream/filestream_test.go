package stream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStreamWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")

	w, err := Open(path, false, true)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	r, err := Open(path, true, false)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 7)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
}

func TestFileStreamReadOnlyRejectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")

	w, err := Open(path, false, true)
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, w.Close())

	r, err := Open(path, true, false)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Write([]byte("y"))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestFileStreamReadPastEndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")

	w, err := Open(path, false, true)
	require.NoError(t, err)
	_, _ = w.Write([]byte("ab"))
	require.NoError(t, w.Close())

	r, err := Open(path, true, false)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 3)
	_, err = r.Read(buf)
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestFileStreamRefreshObservesExternalWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")

	w, err := Open(path, false, true)
	require.NoError(t, err)
	_, _ = w.Write([]byte("aaaa"))
	require.NoError(t, w.Flush())

	r, err := Open(path, true, false)
	require.NoError(t, err)
	defer r.Close()
	require.True(t, r.EOF())

	_, _ = w.Write([]byte("bbbb"))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	require.NoError(t, r.Refresh())
	require.False(t, r.EOF())

	buf := make([]byte, 4)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "bbbb", string(buf))
}

func TestFileStreamEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")

	w, err := Open(path, false, true)
	require.NoError(t, err)
	require.True(t, w.Empty())
	_, _ = w.Write([]byte("z"))
	require.False(t, w.Empty())
	require.NoError(t, w.Close())
}

func TestAccessible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg.dat")
	require.False(t, Accessible(path))

	w, err := Open(path, false, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.True(t, Accessible(path))
}
