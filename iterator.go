package blockpool

import (
	"iter"
	"math"

	"github.com/hupe1980/blockpool/internal/conv"
)

// endBlock marks the past-end position.
const endBlock = math.MaxUint32

// cursorSource is the part of a pool that iterators need.
type cursorSource[T any] interface {
	table() []*block[T]
	acquireIterator()
	releaseIterator()
}

// Iterator walks the live objects of a pool in slot order.
//
// While any iterator is open, objects whose last strong reference is dropped
// are not destroyed: the object under an iterator stays valid until the
// iterator moves on and every iterator open at the time of the drop has been
// closed. Iterators must be closed.
//
// A limiter is a boundary marker produced by Split or Limiter. It cannot be
// dereferenced or advanced, and it compares equal to any ordinary iterator
// positioned at or after it.
//
// An Iterator is not safe for concurrent use; open one per goroutine.
type Iterator[T any] struct {
	src     cursorSource[T]
	block   uint32
	slot    uint32
	limiter bool
	closed  bool
}

func newIterator[T any](src cursorSource[T], block, slot uint32, limiter bool) *Iterator[T] {
	src.acquireIterator()
	return &Iterator[T]{src: src, block: block, slot: slot, limiter: limiter}
}

// Begin returns an iterator at the first live object.
func (p *pool[T, M, PM]) Begin() *Iterator[T] {
	it := newIterator[T](p, 0, 0, false)
	it.seek(0, 0)
	return it
}

// End returns a past-end iterator.
func (p *pool[T, M, PM]) End() *Iterator[T] {
	return newIterator[T](p, endBlock, 0, false)
}

// Limiter returns a limiter at the start of the given block.
func (p *pool[T, M, PM]) Limiter(block int) *Iterator[T] {
	b := uint32(endBlock)
	if block >= 0 && int64(block) < endBlock {
		b = uint32(block)
	}
	return newIterator[T](p, b, 0, true)
}

// All returns a sequence over the live objects. The underlying iterator is
// closed when the loop ends.
func (p *pool[T, M, PM]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		it := p.Begin()
		defer it.Close()
		for ; it.Valid(); it.Advance() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// seek moves to the first live slot at or after (block, slot).
func (it *Iterator[T]) seek(bi, si uint32) {
	blocks := it.src.table()
	for ; int(bi) < len(blocks); bi, si = bi+1, 0 {
		b := blocks[bi]
		if b.active.Load() == 0 {
			continue
		}
		for ; int(si) < len(b.records); si++ {
			if b.records[si].Strong.Count() > 0 {
				it.block, it.slot = bi, si
				return
			}
		}
	}
	it.block, it.slot = endBlock, 0
}

// Valid reports whether the iterator references an object.
func (it *Iterator[T]) Valid() bool {
	return !it.closed && !it.limiter && it.block != endBlock
}

// Limiter reports whether the iterator is a range boundary.
func (it *Iterator[T]) Limiter() bool {
	return it.limiter
}

// Value returns the current object. It panics unless Valid.
func (it *Iterator[T]) Value() *T {
	if !it.Valid() {
		panic("blockpool: dereference of an invalid iterator")
	}
	return it.src.table()[it.block].pointer(it.slot)
}

// Advance moves to the next live object and reports whether there is one.
// It panics on a limiter.
func (it *Iterator[T]) Advance() bool {
	if it.limiter {
		panic("blockpool: advance of a limiter iterator")
	}
	if it.closed || it.block == endBlock {
		return false
	}
	it.seek(it.block, it.slot+1)
	return it.Valid()
}

func (it *Iterator[T]) position() uint64 {
	return slotRef(it.block, it.slot)
}

// Equal reports whether it and o denote the same position. A limiter equals
// any ordinary iterator at or past its position.
func (it *Iterator[T]) Equal(o *Iterator[T]) bool {
	switch {
	case it.limiter == o.limiter:
		return it.position() == o.position()
	case it.limiter:
		return o.position() >= it.position()
	default:
		return it.position() >= o.position()
	}
}

// Clone returns an independent iterator at the same position.
func (it *Iterator[T]) Clone() *Iterator[T] {
	return newIterator(it.src, it.block, it.slot, it.limiter)
}

// Weak returns a weak reference to the current object. It panics unless Valid.
func (it *Iterator[T]) Weak() WeakRef[T] {
	if !it.Valid() {
		panic("blockpool: weak reference from an invalid iterator")
	}
	b := it.src.table()[it.block]
	b.incrementWeak(it.slot)
	return WeakRef[T]{ptr: b.pointer(it.slot), ctl: b, slot: it.slot}
}

// Ref returns a strong reference to the current object. It fails if the
// object's last strong reference was dropped after the iterator reached it.
func (it *Iterator[T]) Ref() (Ref[T], bool) {
	if !it.Valid() {
		return Ref[T]{}, false
	}
	b := it.src.table()[it.block]
	if !b.upgrade(it.slot) {
		return Ref[T]{}, false
	}
	return Ref[T]{ptr: b.pointer(it.slot), ctl: b, slot: it.slot}, true
}

// Close releases the iterator. Closing the last open iterator runs the
// destructions it deferred. Close is idempotent.
func (it *Iterator[T]) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.src.releaseIterator()
}

// Range is a half-open run of a pool delimited by two iterators.
type Range[T any] struct {
	Begin *Iterator[T]
	End   *Iterator[T]
}

// All returns a sequence over the live objects in the range.
func (r Range[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for it := r.Begin; it.Valid() && !it.Equal(r.End); it.Advance() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Close closes both ends.
func (r Range[T]) Close() {
	r.Begin.Close()
	r.End.Close()
}

// Split cuts the pool into at most parts ranges along block boundaries.
// Interior boundaries are limiters, so no live-object scan is needed to place
// them. Every range must be closed.
func (p *pool[T, M, PM]) Split(parts int) []Range[T] {
	blocks := len(p.table())
	parts = min(max(parts, 1), max(blocks, 1))
	per := max(1, conv.CeilDiv(blocks, parts))

	ranges := make([]Range[T], 0, parts)
	for start := 0; start < blocks; start += per {
		begin := newIterator[T](p, 0, 0, false)
		begin.seek(uint32(start), 0) //nolint:gosec // start < blocks
		var end *Iterator[T]
		if start+per < blocks {
			end = p.Limiter(start + per)
		} else {
			end = p.End()
		}
		ranges = append(ranges, Range[T]{Begin: begin, End: end})
	}
	if len(ranges) == 0 {
		ranges = append(ranges, Range[T]{Begin: p.Begin(), End: p.End()})
	}
	return ranges
}
