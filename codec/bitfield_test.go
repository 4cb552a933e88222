package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitfieldSetGetRoundTrip(t *testing.T) {
	bf := NewBitfield(13)
	for _, i := range []int{0, 3, 7, 8, 12} {
		bf.Set(i)
	}
	for i := 0; i < 13; i++ {
		want := i == 0 || i == 3 || i == 7 || i == 8 || i == 12
		require.Equal(t, want, bf.Get(i), "bit %d", i)
	}

	var buf bytes.Buffer
	require.NoError(t, bf.Encode(&buf))
	require.Equal(t, 2, buf.Len()) // ceil(13/8) = 2

	got, err := DecodeBitfield(&buf, 13)
	require.NoError(t, err)
	for i := 0; i < 13; i++ {
		require.Equal(t, bf.Get(i), got.Get(i))
	}
}

func TestBitfieldUnset(t *testing.T) {
	bf := NewBitfield(8)
	bf.Set(2)
	bf.Unset(2)
	require.False(t, bf.Get(2))
}
