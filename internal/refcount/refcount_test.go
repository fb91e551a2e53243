package refcount

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_ZeroValueIsFree(t *testing.T) {
	var r Record

	assert.True(t, r.Free())
	c, ver := r.Strong.Load()
	assert.Equal(t, Dead, c)
	assert.Equal(t, uint32(0), ver)
}

func TestTagged_Lifecycle(t *testing.T) {
	var s Tagged

	ver := s.Publish()
	assert.Equal(t, uint32(1), ver)
	assert.Equal(t, int32(1), s.Count())

	assert.Equal(t, int32(2), s.Increment())

	c, ver := s.Decrement()
	assert.Equal(t, int32(1), c)
	assert.Equal(t, uint32(3), ver)

	c, ver = s.Decrement()
	require.Equal(t, int32(0), c)

	assert.False(t, s.Kill(ver-1), "stale version must not win")
	assert.True(t, s.Kill(ver))
	assert.False(t, s.Kill(ver), "second kill must lose")
	assert.Equal(t, Dead, s.Count())
}

func TestTagged_TryIncrement(t *testing.T) {
	var s Tagged

	assert.False(t, s.TryIncrement(), "dead counter")

	s.Publish()
	assert.True(t, s.TryIncrement())
	assert.Equal(t, int32(2), s.Count())

	s.Decrement()
	_, ver := s.Decrement()
	assert.False(t, s.TryIncrement(), "counter at zero")
	assert.True(t, s.Kill(ver))
	assert.False(t, s.TryIncrement())
}

func TestTagged_KillAfterConcurrentTouch(t *testing.T) {
	var s Tagged
	s.Publish()
	_, ver := s.Decrement()

	// Any mutation between observation and kill moves the version.
	s.Reset()
	assert.False(t, s.Kill(ver))
	assert.Equal(t, Dead, s.Count())
}

func TestTagged_PanicsOnMisuse(t *testing.T) {
	var s Tagged

	assert.Panics(t, func() { s.Increment() })
	assert.Panics(t, func() { s.Decrement() })

	s.Publish()
	assert.Panics(t, func() { s.Publish() })
}

func TestTagged_ConcurrentIncrementDecrement(t *testing.T) {
	var s Tagged
	s.Publish()

	const workers = 8
	const iterations = 10000

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				s.Increment()
				s.Decrement()
			}
		}()
	}
	wg.Wait()

	c, ver := s.Load()
	assert.Equal(t, int32(1), c)
	assert.Equal(t, uint32(1+2*workers*iterations), ver)
}

func TestTagged_SingleKillWinner(t *testing.T) {
	for range 100 {
		var s Tagged
		s.Publish()
		_, ver := s.Decrement()

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Kill(ver) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	}
}

func TestWeak_Counter(t *testing.T) {
	var w Weak

	w.Store(1)
	assert.Equal(t, int32(2), w.Increment())
	assert.False(t, w.Decrement())
	assert.True(t, w.Decrement())
	assert.Panics(t, func() { w.Decrement() })
}
