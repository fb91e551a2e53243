package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/blockpool"
	"github.com/hupe1980/blockpool/testutil"
)

// object is the pooled payload. Destroy checks it against the ledger, so a
// double or missed destruction fails the run.
type object struct {
	id      uint32
	ledger  *testutil.Ledger
	payload [8]uint64
}

func (o *object) Destroy() error {
	return o.ledger.Destroy(o.id)
}

// Report summarizes a stress run.
type Report struct {
	Scenario       string        `yaml:"scenario"`
	Rounds         int64         `yaml:"rounds"`
	Emplaced       uint64        `yaml:"emplaced"`
	Destroyed      uint64        `yaml:"destroyed"`
	Visited        int64         `yaml:"visited,omitempty"`
	Upgrades       int64         `yaml:"upgrades,omitempty"`
	Expired        int64         `yaml:"expired,omitempty"`
	Grows          int64         `yaml:"grows"`
	Capacity       int           `yaml:"capacity"`
	MemoryReserved int64         `yaml:"memory_reserved"`
	Elapsed        time.Duration `yaml:"elapsed"`
}

// ErrLeak is returned when objects survive a run.
var ErrLeak = errors.New("objects survived the run")

type stress struct {
	cfg     Config
	pool    *blockpool.Pool[object]
	ledger  *testutil.Ledger
	rng     *testutil.RNG
	deferrs atomic.Int64

	rounds   atomic.Int64
	visited  atomic.Int64
	upgrades atomic.Int64
	expired  atomic.Int64
}

func newStress(cfg Config, opts ...blockpool.Option) *stress {
	s := &stress{
		cfg:    cfg,
		ledger: testutil.NewLedger(),
		rng:    testutil.NewRNG(cfg.Seed),
	}
	s.pool = blockpool.New[object](append(cfg.poolOptions(), opts...)...)
	s.pool.SetDestructionErrorCallback(func(err error) {
		s.deferrs.Add(1)
	})
	return s
}

// run executes rounds of the configured scenario until the duration elapses
// or ctx is done, then checks that every object was destroyed exactly once.
func (s *stress) run(ctx context.Context) (Report, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	round := s.round
	switch s.cfg.Scenario {
	case "iterate":
		round = s.iterateRound
	case "weak":
		round = s.weakRound
	case "reserve":
		if err := s.pool.Reserve(s.cfg.Workers * s.cfg.Objects); err != nil {
			return Report{}, err
		}
		grows := s.pool.Stats().Grows
		round = func(ctx context.Context) error {
			if err := s.round(ctx); err != nil {
				return err
			}
			if g := s.pool.Stats().Grows; g != grows {
				return fmt.Errorf("pool grew from %d to %d blocks after reserve", grows, g)
			}
			return nil
		}
	}

	var runErr error
	for ctx.Err() == nil {
		if err := round(ctx); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break
		}
		s.rounds.Add(1)
	}

	stats := s.pool.Stats()
	report := Report{
		Scenario:       s.cfg.Scenario,
		Rounds:         s.rounds.Load(),
		Emplaced:       s.ledger.Created(),
		Destroyed:      s.ledger.Destroyed(),
		Visited:        s.visited.Load(),
		Upgrades:       s.upgrades.Load(),
		Expired:        s.expired.Load(),
		Grows:          stats.Grows,
		Capacity:       stats.Capacity,
		MemoryReserved: stats.MemoryReserved,
		Elapsed:        time.Since(start),
	}

	if runErr != nil {
		return report, runErr
	}
	if n := s.deferrs.Load(); n > 0 {
		return report, fmt.Errorf("%d deferred destructions failed", n)
	}
	if live := s.ledger.Live(); live != 0 || stats.Size != 0 {
		return report, fmt.Errorf("%w: %d in ledger, %d in pool", ErrLeak, live, stats.Size)
	}
	return report, s.pool.Close()
}

func (s *stress) limiter() *rate.Limiter {
	if s.cfg.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(s.cfg.Rate), max(1, int(s.cfg.Rate/10)))
}

func (s *stress) emplace(ctx context.Context, lim *rate.Limiter) (blockpool.Ref[object], error) {
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return blockpool.Ref[object]{}, ctx.Err()
		}
		// Wait refuses early when the next token lies past the deadline.
		return blockpool.Ref[object]{}, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return s.pool.Emplace(func(o *object) error {
		o.id = s.ledger.Create()
		o.ledger = s.ledger
		o.payload[0] = uint64(o.id)
		return nil
	})
}

// produce has every worker emplace its share, then hands the references out
// in shuffled order so most are dropped by a different worker.
func (s *stress) produce(ctx context.Context) ([]blockpool.Ref[object], error) {
	refs := make([]blockpool.Ref[object], s.cfg.Workers*s.cfg.Objects)

	g, gctx := errgroup.WithContext(ctx)
	for w := range s.cfg.Workers {
		g.Go(func() error {
			lim := s.limiter()
			for i := range s.cfg.Objects {
				r, err := s.emplace(gctx, lim)
				if err != nil {
					return err
				}
				refs[w*s.cfg.Objects+i] = r
			}
			return nil
		})
	}
	err := g.Wait()

	s.rng.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
	return refs, err
}

// consume releases refs from all workers.
func (s *stress) consume(refs []blockpool.Ref[object], each func(*blockpool.Ref[object]) error) error {
	var g errgroup.Group
	per := (len(refs) + s.cfg.Workers - 1) / s.cfg.Workers
	for start := 0; start < len(refs); start += per {
		part := refs[start:min(start+per, len(refs))]
		g.Go(func() error {
			var errs []error
			for i := range part {
				if each != nil {
					errs = append(errs, each(&part[i]))
				}
				errs = append(errs, part[i].Release())
			}
			return errors.Join(errs...)
		})
	}
	return g.Wait()
}

func (s *stress) round(ctx context.Context) error {
	refs, err := s.produce(ctx)
	return errors.Join(err, s.consume(refs, nil))
}

// iterateRound drops objects while a parallel walk is running and checks
// that the walk only sees objects the ledger still considers live.
func (s *stress) iterateRound(ctx context.Context) error {
	refs, err := s.produce(ctx)
	if err != nil {
		return errors.Join(err, s.consume(refs, nil))
	}

	var (
		wg      sync.WaitGroup
		walkErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		walkErr = s.pool.ForEachParallel(ctx, s.cfg.Workers, func(_ context.Context, o *object) error {
			s.visited.Add(1)
			if uint64(o.id) != o.payload[0] || !s.ledger.IsLive(o.id) {
				return fmt.Errorf("walk reached destroyed object %d", o.id)
			}
			return nil
		})
	}()

	err = s.consume(refs, nil)
	wg.Wait()
	return errors.Join(err, walkErr)
}

// weakRound races upgrades of weak references against the final release.
func (s *stress) weakRound(ctx context.Context) error {
	refs, err := s.produce(ctx)
	weak := make([]blockpool.WeakRef[object], len(refs))
	for i := range refs {
		weak[i] = refs[i].Weak()
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.consume(refs, nil)
	})
	g.Go(func() error {
		for i := range weak {
			r, ok := weak[i].Lock()
			if !ok {
				s.expired.Add(1)
				continue
			}
			s.upgrades.Add(1)
			if !s.ledger.IsLive(r.Get().id) {
				return fmt.Errorf("upgrade produced destroyed object %d", r.Get().id)
			}
			if err := r.Release(); err != nil {
				return err
			}
		}
		return nil
	})
	err = errors.Join(err, g.Wait())

	for i := range weak {
		weak[i].Release()
	}
	return err
}
