package blockpool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/blockpool/internal/resource"
)

var (
	// ErrPoolClosed is returned by operations on a closed pool.
	ErrPoolClosed = errors.New("blockpool: pool is closed")

	// ErrPoolExhausted is returned when growth would exceed the maximum number of blocks.
	ErrPoolExhausted = errors.New("blockpool: max blocks exceeded")

	// ErrMemoryLimitExceeded is returned when growth would exceed the memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrExpired is returned when a weak reference is upgraded after its object died.
	ErrExpired = errors.New("blockpool: weak reference expired")

	// ErrInvalidBlockSize is returned for a block size that cannot be indexed.
	ErrInvalidBlockSize = errors.New("blockpool: invalid block size")
)

// DestructionError reports a failure raised by an object's Destroy method.
//
// The object's slot is considered dead regardless; its contents are unspecified.
// The original error (or recovered panic) can be accessed via errors.Unwrap.
type DestructionError struct {
	Block    uint32
	Slot     uint32
	Deferred bool
	cause    error
}

func (e *DestructionError) Error() string {
	mode := "immediate"
	if e.Deferred {
		mode = "deferred"
	}
	return fmt.Sprintf("blockpool: %s destruction of block %d slot %d failed: %v", mode, e.Block, e.Slot, e.cause)
}

func (e *DestructionError) Unwrap() error { return e.cause }

// PanicError wraps a value recovered from a panicking Destroy method.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
