// Package refcount provides the per-slot reference count record used by the pool.
//
// A Record pairs a versioned strong counter with a plain weak counter:
//
//	strong: (count int32, version uint32) packed into one atomic.Uint64
//	weak:   int32
//
// A strong count of Dead (-1) means the slot holds no object. Every mutation of
// the strong counter bumps its version, so a compare-and-swap against a
// (count, version) pair observed earlier succeeds only if nothing touched the
// counter in between. The pool relies on this to run each destructor exactly once.
package refcount
