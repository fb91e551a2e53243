package blockpool

import (
	"sync/atomic"

	"github.com/hupe1980/blockpool/internal/refcount"
)

// Destroyer is implemented by objects that need cleanup when their last strong
// reference is dropped. The pool calls Destroy on *T exactly once per object.
//
// Destroy may run on any goroutine that drops a reference or closes an iterator.
// Errors and panics are reported as *DestructionError.
type Destroyer interface {
	Destroy() error
}

// controller is the type-erased view of a block that references and iterators
// use to drive reference counts. It keeps Ref[T] independent of block layout
// and lets aliased references point into a differently typed object.
type controller interface {
	strongCount(slot uint32) int32
	incrementStrong(slot uint32)
	incrementWeak(slot uint32)
	decrementStrong(slot uint32) error
	decrementWeak(slot uint32) bool
	upgrade(slot uint32) bool
}

// owner is the pool side of a block: lifecycle counters, deferred destruction
// and the free list.
type owner[T any] interface {
	// iterating reports whether any iterator is open, together with the
	// current iteration epoch.
	iterating() (bool, uint32)
	objectCreated()
	objectDestroyed()
	reclaim(block, slot uint32)
	postpone(p pendingDestruction[T])
	metrics() MetricsCollector
}

// pendingDestruction is a strong count that reached zero while iterators were
// open. version is the tag written by that decrement.
type pendingDestruction[T any] struct {
	block   *block[T]
	slot    uint32
	version uint32
	epoch   uint32
}

type slot[T any] struct {
	value T
	next  uint64 // free-list link, guarded by the pool's free-list lock
}

// block is a fixed run of slots with a parallel array of reference counts.
// Blocks are never moved or freed while their pool is open, so &slots[i].value
// is stable for the lifetime of the pool.
type block[T any] struct {
	owner   owner[T]
	index   uint32
	slots   []slot[T]
	records []refcount.Record

	active    atomic.Int64 // live objects
	allocated atomic.Int64 // live objects plus slots held by weak references
}

func newBlock[T any](o owner[T], index uint32, size int) *block[T] {
	return &block[T]{
		owner:   o,
		index:   index,
		slots:   make([]slot[T], size),
		records: make([]refcount.Record, size),
	}
}

func (b *block[T]) pointer(s uint32) *T {
	return &b.slots[s].value
}

// publish makes a constructed object visible. The weak count starts at one:
// the object's own reference, released when it is destroyed.
func (b *block[T]) publish(s uint32) {
	rec := &b.records[s]
	rec.Weak.Store(1)
	rec.Strong.Publish()
	b.active.Add(1)
	b.owner.objectCreated()
}

// claim asserts that a slot popped from the free list is really free.
func (b *block[T]) claim(s uint32) {
	if !b.records[s].Free() {
		panic("blockpool: free list returned an occupied slot")
	}
	b.allocated.Add(1)
}

// discard undoes claim after a failed construction.
func (b *block[T]) discard(s uint32) {
	var zero T
	b.slots[s].value = zero
	b.allocated.Add(-1)
}

func (b *block[T]) strongCount(s uint32) int32 {
	return b.records[s].Strong.Count()
}

func (b *block[T]) incrementStrong(s uint32) {
	b.records[s].Strong.Increment()
}

func (b *block[T]) incrementWeak(s uint32) {
	b.records[s].Weak.Increment()
}

func (b *block[T]) upgrade(s uint32) bool {
	ok := b.records[s].Strong.TryIncrement()
	b.owner.metrics().RecordUpgrade(ok)
	return ok
}

func (b *block[T]) decrementStrong(s uint32) error {
	count, version := b.records[s].Strong.Decrement()
	if count != 0 {
		return nil
	}

	if open, epoch := b.owner.iterating(); open {
		b.owner.postpone(pendingDestruction[T]{
			block:   b,
			slot:    s,
			version: version,
			epoch:   epoch,
		})
		return nil
	}

	destroyed, err := b.destroy(s, version, false)
	if destroyed {
		b.decrementWeak(s)
	}
	return err
}

// decrementWeak reports whether the slot went back to the free list.
func (b *block[T]) decrementWeak(s uint32) bool {
	if !b.records[s].Weak.Decrement() {
		return false
	}
	b.release(s)
	return true
}

// release hands a slot whose weak count reached zero back to the pool.
func (b *block[T]) release(s uint32) {
	b.allocated.Add(-1)
	b.owner.reclaim(b.index, s)
}

// destroy kills the object observed at count zero with the given version.
// It reports false if another goroutine already won the transition.
func (b *block[T]) destroy(s, version uint32, deferred bool) (bool, error) {
	if !b.records[s].Strong.Kill(version) {
		return false, nil
	}
	b.active.Add(-1)
	b.owner.objectDestroyed()

	err := b.runDestroy(s)
	if err != nil {
		err = &DestructionError{Block: b.index, Slot: s, Deferred: deferred, cause: err}
	}
	b.owner.metrics().RecordDestroy(deferred, err)
	return true, err
}

func (b *block[T]) runDestroy(s uint32) (err error) {
	p := &b.slots[s].value
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
		var zero T
		*p = zero
	}()

	if d, ok := any(p).(Destroyer); ok {
		return d.Destroy()
	}
	return nil
}
