package refcount

import (
	"fmt"
	"sync/atomic"
)

// Dead is the strong count of a slot without a live object.
const Dead int32 = -1

// The low word stores count+1 so that the zero value of Tagged reads as Dead.
func pack(count int32, version uint32) uint64 {
	return uint64(version)<<32 | uint64(uint32(count+1)) //nolint:gosec // count >= Dead
}

func unpack(v uint64) (int32, uint32) {
	return int32(uint32(v)) - 1, uint32(v >> 32) //nolint:gosec // lossless by construction
}

// Tagged is a strong counter carrying an ABA version tag.
type Tagged struct {
	v atomic.Uint64
}

// Load returns the current count and version.
func (t *Tagged) Load() (count int32, version uint32) {
	return unpack(t.v.Load())
}

// Count returns the current count.
func (t *Tagged) Count() int32 {
	c, _ := t.Load()
	return c
}

// Publish moves a dead counter to count 1, making the object visible.
// It panics if the counter was not dead.
func (t *Tagged) Publish() uint32 {
	for {
		old := t.v.Load()
		c, ver := unpack(old)
		if c != Dead {
			panic(fmt.Sprintf("refcount: publish on live counter (count=%d)", c))
		}
		if t.v.CompareAndSwap(old, pack(1, ver+1)) {
			return ver + 1
		}
	}
}

// Increment adds one owner. The caller must already hold a strong reference.
func (t *Tagged) Increment() int32 {
	for {
		old := t.v.Load()
		c, ver := unpack(old)
		if c <= 0 {
			panic(fmt.Sprintf("refcount: increment without owner (count=%d)", c))
		}
		if t.v.CompareAndSwap(old, pack(c+1, ver+1)) {
			return c + 1
		}
	}
}

// Decrement drops one owner and returns the resulting count together with the
// version written by this decrement.
func (t *Tagged) Decrement() (count int32, version uint32) {
	for {
		old := t.v.Load()
		c, ver := unpack(old)
		if c <= 0 {
			panic(fmt.Sprintf("refcount: decrement below zero (count=%d)", c))
		}
		if t.v.CompareAndSwap(old, pack(c-1, ver+1)) {
			return c - 1, ver + 1
		}
	}
}

// TryIncrement adds one owner only while at least one owner remains.
// A counter that reached zero never becomes live again through this path.
func (t *Tagged) TryIncrement() bool {
	for {
		old := t.v.Load()
		c, ver := unpack(old)
		if c <= 0 {
			return false
		}
		if t.v.CompareAndSwap(old, pack(c+1, ver+1)) {
			return true
		}
	}
}

// Kill moves the counter from (0, version) to (Dead, version+1).
// It reports whether this call won the transition. The version keeps a
// stale queued destruction from killing an object that was revived since.
func (t *Tagged) Kill(version uint32) bool {
	return t.v.CompareAndSwap(pack(0, version), pack(Dead, version+1))
}

// Reset forces the counter back to Dead, keeping the version moving.
// Only valid while the slot is exclusively owned (construction rollback).
func (t *Tagged) Reset() {
	for {
		old := t.v.Load()
		_, ver := unpack(old)
		if t.v.CompareAndSwap(old, pack(Dead, ver+1)) {
			return
		}
	}
}

// Weak is the weak reference counter of a slot.
type Weak struct {
	v atomic.Int32
}

// Load returns the current weak count.
func (w *Weak) Load() int32 { return w.v.Load() }

// Store sets the weak count. Only valid while the slot is exclusively owned.
func (w *Weak) Store(n int32) { w.v.Store(n) }

// Increment adds one weak reference.
func (w *Weak) Increment() int32 { return w.v.Add(1) }

// Decrement drops one weak reference and reports whether it was the last one.
func (w *Weak) Decrement() bool {
	n := w.v.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("refcount: weak count below zero (%d)", n))
	}
	return n == 0
}

// Record is the full reference count state of one slot.
// The zero value is a free slot.
type Record struct {
	Strong Tagged
	Weak   Weak
}

// Free reports whether the slot holds no object and no weak observers.
func (r *Record) Free() bool {
	return r.Strong.Count() == Dead && r.Weak.Load() == 0
}
