package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)

	first := rng.Perm(16)
	rng.Reset()

	assert.Equal(t, first, rng.Perm(16))
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestRNG_SplitIsDeterministic(t *testing.T) {
	a := NewRNG(7).Split()
	b := NewRNG(7).Split()

	assert.Equal(t, a.Uint64(), b.Uint64())
}

func TestLedger_CreateDestroy(t *testing.T) {
	l := NewLedger()

	a := l.Create()
	b := l.Create()
	assert.NotEqual(t, a, b)
	assert.Equal(t, uint64(2), l.Live())

	require.NoError(t, l.Destroy(a))
	assert.False(t, l.IsLive(a))
	assert.True(t, l.IsLive(b))
	assert.Equal(t, []uint32{b}, l.LiveIDs())

	assert.ErrorIs(t, l.Destroy(a), ErrDoubleDestroy)
	assert.ErrorIs(t, l.Destroy(99), ErrUnknownObject)
	assert.Equal(t, uint64(1), l.Destroyed())
	assert.Equal(t, uint64(2), l.Created())
}

func TestLedger_Concurrent(t *testing.T) {
	l := NewLedger()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, l.Destroy(l.Create()))
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, l.Live())
	assert.Equal(t, uint64(800), l.Destroyed())
}
