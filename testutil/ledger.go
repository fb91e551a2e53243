package testutil

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrDoubleDestroy is returned when an id is destroyed a second time.
	ErrDoubleDestroy = errors.New("testutil: object destroyed twice")

	// ErrUnknownObject is returned when an id was never created.
	ErrUnknownObject = errors.New("testutil: unknown object")
)

// Ledger records object creation and destruction by id.
// It is thread-safe.
type Ledger struct {
	next atomic.Uint32

	mu        sync.Mutex
	live      *roaring.Bitmap
	destroyed *roaring.Bitmap
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		live:      roaring.New(),
		destroyed: roaring.New(),
	}
}

// Create allocates a fresh id and marks it live.
func (l *Ledger) Create() uint32 {
	id := l.next.Add(1) - 1

	l.mu.Lock()
	l.live.Add(id)
	l.mu.Unlock()
	return id
}

// Destroy marks id destroyed.
func (l *Ledger) Destroy(id uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.destroyed.Contains(id) {
		return fmt.Errorf("%w: id %d", ErrDoubleDestroy, id)
	}
	if !l.live.CheckedRemove(id) {
		return fmt.Errorf("%w: id %d", ErrUnknownObject, id)
	}
	l.destroyed.Add(id)
	return nil
}

// IsLive reports whether id was created and not yet destroyed.
func (l *Ledger) IsLive(id uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live.Contains(id)
}

// Created returns the number of ids handed out.
func (l *Ledger) Created() uint64 {
	return uint64(l.next.Load())
}

// Live returns the number of objects not yet destroyed.
func (l *Ledger) Live() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live.GetCardinality()
}

// Destroyed returns the number of destroyed objects.
func (l *Ledger) Destroyed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed.GetCardinality()
}

// LiveIDs returns the ids that are still live, in ascending order.
func (l *Ledger) LiveIDs() []uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live.ToArray()
}
