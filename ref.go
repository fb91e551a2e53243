package blockpool

// Ref is a strong reference to a pooled object.
//
// A Ref is a value, but it owns one strong count: copy it with Clone, hand it
// over with Move and end it with Release. Copying the struct directly aliases
// the same count and must not be released twice.
//
// The zero Ref is null.
type Ref[T any] struct {
	ptr  *T
	ctl  controller
	slot uint32
}

// Get returns the referenced object, or nil for a null Ref.
// The pointer stays valid while this Ref is held.
func (r Ref[T]) Get() *T {
	return r.ptr
}

// Valid reports whether r holds a reference.
func (r Ref[T]) Valid() bool {
	return r.ctl != nil
}

// UseCount returns the number of strong references to the managed object.
// Concurrent drops by other owners may change it at any time.
func (r Ref[T]) UseCount() int {
	if r.ctl == nil {
		return 0
	}
	return int(r.ctl.strongCount(r.slot))
}

// Unique reports whether r is the only strong reference.
func (r Ref[T]) Unique() bool {
	return r.UseCount() == 1
}

// Clone returns a new strong reference to the same object.
func (r Ref[T]) Clone() Ref[T] {
	if r.ctl == nil {
		return Ref[T]{}
	}
	r.ctl.incrementStrong(r.slot)
	return r
}

// Move transfers the reference out of r and leaves r null.
func (r *Ref[T]) Move() Ref[T] {
	out := *r
	*r = Ref[T]{}
	return out
}

// Release drops the reference and leaves r null. Releasing a null Ref is a
// no-op.
//
// Dropping the last strong reference destroys the object unless an iterator is
// open, in which case destruction waits for the iterators to close. A failed
// immediate destruction is returned as *DestructionError.
func (r *Ref[T]) Release() error {
	ctl, slot := r.ctl, r.slot
	if ctl == nil {
		return nil
	}
	*r = Ref[T]{}
	return ctl.decrementStrong(slot)
}

// Weak returns a weak reference to the managed object.
func (r Ref[T]) Weak() WeakRef[T] {
	if r.ctl == nil {
		return WeakRef[T]{}
	}
	r.ctl.incrementWeak(r.slot)
	return WeakRef[T](r)
}

// Alias returns a strong reference that points to p while keeping r's managed
// object alive. p is typically a field of *r.Get().
//
// Aliasing a null Ref returns a null Ref. A nil p with a live r yields a Ref
// that is Valid and shares ownership but whose Get returns nil.
func Alias[U, T any](r Ref[T], p *U) Ref[U] {
	if r.ctl == nil {
		return Ref[U]{}
	}
	r.ctl.incrementStrong(r.slot)
	return Ref[U]{ptr: p, ctl: r.ctl, slot: r.slot}
}

// FromWeak upgrades w to a strong reference. It fails with ErrExpired when the
// object has already been destroyed or is being destroyed.
func FromWeak[T any](w WeakRef[T]) (Ref[T], error) {
	if r, ok := w.Lock(); ok {
		return r, nil
	}
	return Ref[T]{}, ErrExpired
}

// WeakRef observes a pooled object without keeping it alive. It keeps the slot
// from being reused, so Lock can tell a dead object from a new one.
//
// The zero WeakRef is null and always expired.
type WeakRef[T any] struct {
	ptr  *T
	ctl  controller
	slot uint32
}

// Lock attempts to obtain a strong reference.
func (w WeakRef[T]) Lock() (Ref[T], bool) {
	if w.ctl == nil || !w.ctl.upgrade(w.slot) {
		return Ref[T]{}, false
	}
	return Ref[T](w), true
}

// Expired reports whether the object has no strong references left.
func (w WeakRef[T]) Expired() bool {
	return w.UseCount() == 0
}

// UseCount returns the number of strong references to the object.
func (w WeakRef[T]) UseCount() int {
	if w.ctl == nil {
		return 0
	}
	return max(0, int(w.ctl.strongCount(w.slot)))
}

// Valid reports whether w holds a weak reference, live or expired.
func (w WeakRef[T]) Valid() bool {
	return w.ctl != nil
}

// Clone returns another weak reference to the same slot.
func (w WeakRef[T]) Clone() WeakRef[T] {
	if w.ctl == nil {
		return WeakRef[T]{}
	}
	w.ctl.incrementWeak(w.slot)
	return w
}

// Move transfers the reference out of w and leaves w null.
func (w *WeakRef[T]) Move() WeakRef[T] {
	out := *w
	*w = WeakRef[T]{}
	return out
}

// Release drops the weak reference and leaves w null. The last reference to a
// destroyed object returns its slot to the pool.
func (w *WeakRef[T]) Release() {
	ctl, slot := w.ctl, w.slot
	if ctl == nil {
		return
	}
	*w = WeakRef[T]{}
	ctl.decrementWeak(slot)
}
