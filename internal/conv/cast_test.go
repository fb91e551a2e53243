//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("valid max uint32", func(t *testing.T) {
		got, err := IntToUint32(math.MaxUint32)
		require.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := IntToUint32(math.MaxUint32 + 1)
		assert.ErrorIs(t, err, ErrOverflow)
	})
}

func TestIntToInt64(t *testing.T) {
	got, err := IntToInt64(42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = IntToInt64(-42)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulInt(t *testing.T) {
	got, err := MulInt(1024, 64)
	require.NoError(t, err)
	assert.Equal(t, 65536, got)

	got, err = MulInt(0, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = MulInt(math.MaxInt, 2)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = MulInt(-1, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 0, CeilDiv(0, 8))
	assert.Equal(t, 0, CeilDiv(-3, 8))
	assert.Equal(t, 1, CeilDiv(1, 8))
	assert.Equal(t, 1, CeilDiv(8, 8))
	assert.Equal(t, 2, CeilDiv(9, 8))
	assert.Equal(t, math.MaxInt/8+1, CeilDiv(math.MaxInt, 8))
	assert.Equal(t, 1, CeilDiv(math.MaxInt, math.MaxInt))
}
