package benchmark_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockpool"
	"github.com/hupe1980/blockpool/testutil"
)

type ledgered struct {
	id     uint32
	ledger *testutil.Ledger
}

func (o *ledgered) Destroy() error {
	return o.ledger.Destroy(o.id)
}

// TestStress_MixedWorkload mixes emplace, clone, drop, weak upgrades and full
// iterations from many goroutines and checks destruction accounting at the
// end.
func TestStress_MixedWorkload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	const (
		numWorkers = 8
		maxHeld    = 512
	)

	ledger := testutil.NewLedger()
	p := blockpool.New[ledgered](blockpool.WithBlockSize(256))

	var deferredErrs atomic.Int64
	p.SetDestructionErrorCallback(func(error) { deferredErrs.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seed := testutil.NewRNG(4711)
	var (
		ops        atomic.Int64
		iterations atomic.Int64
		wg         sync.WaitGroup
	)

	for range numWorkers {
		rng := seed.Split()
		wg.Add(1)
		go func() {
			defer wg.Done()

			var (
				held []blockpool.Ref[ledgered]
				weak []blockpool.WeakRef[ledgered]
			)
			defer func() {
				for i := range held {
					assert.NoError(t, held[i].Release())
				}
				for i := range weak {
					weak[i].Release()
				}
			}()

			for ctx.Err() == nil {
				ops.Add(1)
				switch op := rng.Intn(10); {
				case op < 4 && len(held) < maxHeld:
					r, err := p.Emplace(func(o *ledgered) error {
						o.id = ledger.Create()
						o.ledger = ledger
						return nil
					})
					if !assert.NoError(t, err) {
						return
					}
					held = append(held, r)
				case op < 6 && len(held) > 0:
					i := rng.Intn(len(held))
					held[i], held[len(held)-1] = held[len(held)-1], held[i]
					assert.NoError(t, held[len(held)-1].Release())
					held = held[:len(held)-1]
				case op < 7 && len(held) > 0:
					weak = append(weak, held[rng.Intn(len(held))].Weak())
				case op < 8 && len(weak) > 0:
					i := rng.Intn(len(weak))
					if r, ok := weak[i].Lock(); ok {
						assert.True(t, ledger.IsLive(r.Get().id))
						assert.NoError(t, r.Release())
					} else {
						weak[i].Release()
						weak[i] = weak[len(weak)-1]
						weak = weak[:len(weak)-1]
					}
				case op < 9 && len(held) > 0:
					c := held[rng.Intn(len(held))].Clone()
					assert.NoError(t, c.Release())
				default:
					for o := range p.All() {
						assert.True(t, ledger.IsLive(o.id))
					}
					iterations.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	t.Logf("ops=%d iterations=%d created=%d", ops.Load(), iterations.Load(), ledger.Created())

	assert.Zero(t, deferredErrs.Load())
	assert.Zero(t, ledger.Live())
	assert.True(t, p.Empty())
	require.NoError(t, p.Close())
}
