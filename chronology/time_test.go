package chronology

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTimeSmallDelta(t *testing.T) {
	for delta := uint64(0); delta < 3; delta++ {
		code, d, err := EncodeTimeCode(1000, 1000+delta)
		require.NoError(t, err)
		require.Equal(t, uint8(delta), code)

		var buf bytes.Buffer
		require.NoError(t, WriteTimeExtra(&buf, code, d))
		require.Equal(t, 0, buf.Len())

		ts, err := DecodeTime(&buf, 1000, code)
		require.NoError(t, err)
		require.EqualValues(t, 1000+delta, ts)
	}
}

func TestEncodeDecodeTimeOverflow(t *testing.T) {
	code, d, err := EncodeTimeCode(1000, 1050)
	require.NoError(t, err)
	require.Equal(t, uint8(3), code)

	var buf bytes.Buffer
	require.NoError(t, WriteTimeExtra(&buf, code, d))
	require.Greater(t, buf.Len(), 0)

	ts, err := DecodeTime(&buf, 1000, code)
	require.NoError(t, err)
	require.EqualValues(t, 1050, ts)
}

func TestEncodeTimeRejectsRegression(t *testing.T) {
	_, _, err := EncodeTimeCode(1000, 999)
	require.ErrorIs(t, err, ErrTimeOrder)
}
