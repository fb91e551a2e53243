package blockpool

import (
	"time"

	"github.com/eapache/queue"
)

// acquireIterator registers an open iterator. Leaving zero starts a new epoch,
// so destructions postponed from now on can be told apart from those queued
// for iterators that have all closed.
func (p *pool[T, M, PM]) acquireIterator() {
	for {
		old := p.iterators.Load()
		count, epoch := uint32(old), uint32(old>>32) //nolint:gosec // packed halves
		if count == 0 {
			epoch++
		}
		if p.iterators.CompareAndSwap(old, uint64(epoch)<<32|uint64(count+1)) {
			return
		}
	}
}

// releaseIterator unregisters an iterator. The last one out drains.
func (p *pool[T, M, PM]) releaseIterator() {
	state := p.iterators.Add(^uint64(0))
	if uint32(state) == 0 { //nolint:gosec // low word
		p.drain(uint32(state >> 32)) //nolint:gosec // high word
	}
}

// Drain runs destructions that were deferred by iterators that have since
// closed. It returns the number of objects destroyed. While iterators are
// open it does nothing.
//
// Drain never needs to be called explicitly: closing the last iterator drains.
// It is useful after a deferred destruction error was handled by a callback
// that panicked and left entries queued.
func (p *pool[T, M, PM]) Drain() int {
	open, epoch := p.iterating()
	if open {
		return 0
	}
	return p.drain(epoch)
}

// drain processes queued destructions postponed during epoch or earlier.
// The queue is swapped out under the lock and walked without it, so
// destructors and error callbacks may re-enter the pool.
func (p *pool[T, M, PM]) drain(epoch uint32) int {
	PM(&p.pendingMu).Lock()
	q := p.pending
	if q.Length() == 0 {
		PM(&p.pendingMu).Unlock()
		return 0
	}
	p.pending = p.spare
	if p.pending == nil {
		p.pending = queue.New()
	}
	p.spare = nil
	PM(&p.pendingMu).Unlock()

	var (
		start                = time.Now()
		keep                 []pendingDestruction[T]
		processed            int
		destroyed, reclaimed int
	)

	// Runs on panic too: an error callback may panic, and the entries it
	// did not reach must stay queued.
	defer func() {
		for q.Length() > 0 {
			keep = append(keep, q.Remove().(pendingDestruction[T]))
		}
		PM(&p.pendingMu).Lock()
		for _, e := range keep {
			p.pending.Add(e)
		}
		if p.spare == nil {
			p.spare = q
		}
		PM(&p.pendingMu).Unlock()

		p.pendingLen.Add(-int64(processed))
		p.logger.LogDrain(destroyed, reclaimed)
		p.collector.RecordDrain(processed, time.Since(start))
	}()

	for q.Length() > 0 {
		e := q.Remove().(pendingDestruction[T])
		if int32(e.epoch-epoch) > 0 { //nolint:gosec // wrapping epoch distance
			keep = append(keep, e)
			continue
		}
		processed++

		ok, err := e.block.destroy(e.slot, e.version, true)
		if ok {
			destroyed++
			if e.block.decrementWeak(e.slot) {
				reclaimed++
			}
		}
		if err != nil {
			p.reportDestroyError(err)
		}
	}
	return destroyed
}
