package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStreamWriteReadRoundTrip(t *testing.T) {
	m := NewMemStream()
	n, err := m.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.EqualValues(t, 5, m.Tell())

	_, err = m.Seek(0, SeekSet)
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = m.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	require.True(t, m.EOF())
}

func TestMemStreamReadPastEndErrors(t *testing.T) {
	m := NewMemStream()
	_, _ = m.Write([]byte("ab"))
	_, _ = m.Seek(0, SeekSet)

	buf := make([]byte, 3)
	_, err := m.Read(buf)
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestMemStreamEmpty(t *testing.T) {
	m := NewMemStream()
	require.True(t, m.Empty())
	_, _ = m.Write([]byte("x"))
	require.False(t, m.Empty())
}

func TestMemStreamSeekClampsToBounds(t *testing.T) {
	m := NewMemStream()
	_, _ = m.Write([]byte("abcd"))

	pos, err := m.Seek(100, SeekSet)
	require.NoError(t, err)
	require.EqualValues(t, 4, pos)

	pos, err = m.Seek(-100, SeekCur)
	require.NoError(t, err)
	require.EqualValues(t, 0, pos)
}

func TestMemStreamClear(t *testing.T) {
	m := NewMemStream()
	_, _ = m.Write([]byte("abcd"))
	m.Clear()
	require.True(t, m.Empty())
	require.Equal(t, "", m.String())
}

func TestMemStreamStringHex(t *testing.T) {
	m := NewMemStream()
	_, _ = m.Write([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, "deadbeef", m.String())
}

func TestMemStreamOverwriteInPlace(t *testing.T) {
	m := NewMemStream()
	_, _ = m.Write([]byte("aaaa"))
	_, _ = m.Seek(1, SeekSet)
	_, _ = m.Write([]byte("bb"))
	require.Equal(t, "abba", string(m.Bytes()))
}
