// Package blockpool provides a concurrent block-allocated object pool with
// reference-counted handles and stable object addresses.
//
// Objects are stored in fixed-size blocks that are only ever appended, so a
// pointer obtained from a reference never moves. Each slot carries a strong
// count, versioned against ABA races, and a weak count. Dropping the last
// strong reference destroys the object; dropping the last weak reference
// returns the slot to the free list.
//
// # Quick Start
//
//	p := blockpool.New[Particle]()
//	defer p.Close()
//
//	ref, _ := p.EmplaceValue(Particle{Mass: 1})
//	ref.Get().Mass *= 2
//
//	other := ref.Clone()   // second strong reference
//	w := ref.Weak()        // observes without keeping alive
//	_ = ref.Release()
//	_ = other.Release()    // destroys the particle
//
//	if _, ok := w.Lock(); !ok {
//	    // expired
//	}
//	w.Release()            // slot is free again
//
// # Iteration
//
// Iterators visit live objects in slot order. While any iterator is open,
// destruction of dropped objects is deferred, so an iterator never observes a
// destroyed object. The last iterator to close runs the deferred
// destructions:
//
//	for pt := range p.All() {
//	    pt.Step()
//	}
//
// For parallel work, Split cuts the pool into ranges along block boundaries
// using limiter iterators, and ForEachParallel drives them with an errgroup:
//
//	err := p.ForEachParallel(ctx, 8, func(ctx context.Context, pt *Particle) error {
//	    pt.Step()
//	    return nil
//	})
//
// # Destruction
//
// Objects whose pointer type implements Destroyer are destroyed by calling
// Destroy exactly once. Errors and panics from an immediate destruction are
// returned by Ref.Release as *DestructionError. Deferred destructions run
// where no caller can receive an error, so they go to the callback installed
// with SetDestructionErrorCallback. The default callback panics.
//
// # Lock Policy
//
// Pool synchronizes with sync.Mutex. LocalPool has the same API and
// semantics with no-op locks, for data confined to one goroutine.
//
// # Closing
//
// Close must only be called once every reference is released. Closing a pool
// with allocated objects would leave dangling pointers, so it logs the leak
// and terminates the process.
package blockpool
