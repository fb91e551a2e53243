package blockpool

import (
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/cpu"

	"github.com/hupe1980/blockpool/internal/conv"
	"github.com/hupe1980/blockpool/internal/refcount"
	"github.com/hupe1980/blockpool/internal/resource"
)

// noSlot terminates the free list.
const noSlot = math.MaxUint64

func slotRef(block, slot uint32) uint64 {
	return uint64(block)<<32 | uint64(slot)
}

func splitRef(ref uint64) (block, slot uint32) {
	return uint32(ref >> 32), uint32(ref) //nolint:gosec // halves of a packed ref
}

// mutex is the lock policy of a pool, selected at compile time.
type mutex[M any] interface {
	*M
	sync.Locker
}

// nopMutex is the lock policy of LocalPool.
type nopMutex struct{}

func (*nopMutex) Lock()   {}
func (*nopMutex) Unlock() {}

// abort terminates the process on an unrecoverable invariant violation.
// Tests replace it.
var abort = func(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

// Pool is a concurrent block-allocated object pool.
//
// Objects live in fixed slots inside blocks that are never moved or freed while
// the pool is open, so a *T obtained from a reference stays valid while that
// reference (or an iterator open when the last reference was dropped) exists.
//
// All methods are safe for concurrent use.
type Pool[T any] struct {
	pool[T, sync.Mutex, *sync.Mutex]
}

// LocalPool has the same contract as Pool without internal locking.
// It must only be used from one goroutine at a time.
type LocalPool[T any] struct {
	pool[T, nopMutex, *nopMutex]
}

// New creates a concurrent pool.
//
// Example:
//
//	p := blockpool.New[Particle](blockpool.WithBlockSize(4096))
//	defer p.Close()
//
//	ref, err := p.Emplace(func(pt *Particle) error {
//	    pt.Mass = 1
//	    return nil
//	})
func New[T any](opts ...Option) *Pool[T] {
	p := &Pool[T]{}
	p.init(opts)
	return p
}

// NewLocal creates a single-goroutine pool.
func NewLocal[T any](opts ...Option) *LocalPool[T] {
	p := &LocalPool[T]{}
	p.init(opts)
	return p
}

type pool[T any, M any, PM mutex[M]] struct {
	// iterators packs the open iterator count (low word) with an epoch
	// (high word) that advances whenever the count leaves zero.
	iterators atomic.Uint64
	_         cpu.CacheLinePad
	active    atomic.Int64
	allocated atomic.Int64
	_         cpu.CacheLinePad

	freeMu   M
	freeHead uint64
	blocks   atomic.Pointer[[]*block[T]]
	grows    atomic.Int64

	pendingMu  M
	pending    *queue.Queue
	spare      *queue.Queue
	pendingLen atomic.Int64

	callbackMu     M
	onDestroyError func(error)

	blockSize  int
	maxBlocks  int
	blockBytes int64
	budget     *resource.Budget
	logger     *Logger
	collector  MetricsCollector
	closed     atomic.Bool
}

func (p *pool[T, M, PM]) init(opts []Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := conv.IntToUint32(o.blockSize); err != nil {
		panic(fmt.Errorf("%w: %w", ErrInvalidBlockSize, err))
	}
	p.blockSize = o.blockSize
	p.maxBlocks = o.maxBlocks
	if limit := uint64(endBlock - 1); uint64(p.maxBlocks) > limit {
		p.maxBlocks = int(limit)
	}
	bytes, err := blockFootprint[T](o.blockSize)
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrInvalidBlockSize, err))
	}
	p.blockBytes = bytes
	p.logger = o.logger
	p.collector = o.metricsCollector
	p.onDestroyError = o.onDestroyError
	if o.memoryLimit > 0 {
		p.budget = resource.NewBudget(o.memoryLimit)
	}

	p.freeHead = noSlot
	empty := make([]*block[T], 0, 8)
	p.blocks.Store(&empty)
	p.pending = queue.New()
	p.spare = queue.New()

	if o.initialCapacity > 0 {
		if err := p.Reserve(o.initialCapacity); err != nil {
			p.logger.Warn("initial reservation failed", "capacity", o.initialCapacity, "error", err)
		}
	}
}

// blockFootprint estimates the bytes one block of the given size occupies.
func blockFootprint[T any](size int) (int64, error) {
	per := int(unsafe.Sizeof(slot[T]{}) + unsafe.Sizeof(refcount.Record{}))
	n, err := conv.MulInt(size, per)
	if err != nil {
		return 0, err
	}
	total, err := conv.IntToInt64(n)
	if err != nil {
		return 0, err
	}
	return total + int64(unsafe.Sizeof(block[T]{})), nil
}

func (p *pool[T, M, PM]) table() []*block[T] {
	return *p.blocks.Load()
}

// Emplace constructs a new object in a free slot and returns its first strong
// reference.
//
// init runs on the zeroed slot before the object becomes visible to iterators;
// it may be nil. If init fails or panics, the slot is returned to the free
// list and the error (or panic) reaches the caller.
func (p *pool[T, M, PM]) Emplace(init func(*T) error) (ref Ref[T], err error) {
	start := time.Now()
	defer func() {
		p.collector.RecordEmplace(time.Since(start), err)
	}()

	if p.closed.Load() {
		return Ref[T]{}, ErrPoolClosed
	}

	b, s, err := p.acquire()
	if err != nil {
		return Ref[T]{}, err
	}

	committed := false
	defer func() {
		if !committed {
			b.discard(s)
			p.reclaim(b.index, s)
		}
	}()

	if init != nil {
		if err := init(b.pointer(s)); err != nil {
			return Ref[T]{}, err
		}
	}

	b.publish(s)
	committed = true
	return Ref[T]{ptr: b.pointer(s), ctl: b, slot: s}, nil
}

// EmplaceValue stores a copy of v in a free slot.
func (p *pool[T, M, PM]) EmplaceValue(v T) (Ref[T], error) {
	return p.Emplace(func(dst *T) error {
		*dst = v
		return nil
	})
}

// acquire pops the free list, growing the pool when it is empty.
func (p *pool[T, M, PM]) acquire() (*block[T], uint32, error) {
	PM(&p.freeMu).Lock()
	defer PM(&p.freeMu).Unlock()

	if p.freeHead == noSlot {
		if err := p.growLocked(); err != nil {
			return nil, 0, err
		}
	}

	bi, s := splitRef(p.freeHead)
	b := p.table()[bi]
	p.freeHead = b.slots[s].next
	b.claim(s)
	p.allocated.Add(1)
	return b, s, nil
}

// growLocked appends one block and pushes its slots onto the free list so
// that slot 0 is handed out first. Callers hold the free-list lock.
func (p *pool[T, M, PM]) growLocked() error {
	blocks := p.table()
	n := len(blocks)
	if n >= p.maxBlocks {
		err := fmt.Errorf("%w: %d blocks", ErrPoolExhausted, n)
		p.logger.LogGrow(n, n*p.blockSize, err)
		return err
	}
	if err := p.budget.TryReserve(p.blockBytes); err != nil {
		p.logger.LogGrow(n, n*p.blockSize, err)
		return err
	}

	b := newBlock[T](p, uint32(n), p.blockSize) //nolint:gosec // n < maxBlocks < MaxUint32
	for s := p.blockSize - 1; s >= 0; s-- {
		b.slots[s].next = p.freeHead
		p.freeHead = slotRef(b.index, uint32(s)) //nolint:gosec // s < blockSize, checked in init
	}

	// Readers hold a shorter slice header and never see the appended element.
	next := append(blocks, b)
	p.blocks.Store(&next)
	p.grows.Add(1)

	capacity := len(next) * p.blockSize
	p.logger.LogGrow(len(next), capacity, nil)
	p.collector.RecordGrow(len(next), capacity)
	return nil
}

// Reserve grows the pool until it has room for at least n objects.
// Blocks are only ever added.
func (p *pool[T, M, PM]) Reserve(n int) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	need := conv.CeilDiv(n, p.blockSize)
	if need > p.maxBlocks {
		return fmt.Errorf("%w: %d objects need %d blocks, limit is %d", ErrPoolExhausted, n, need, p.maxBlocks)
	}

	PM(&p.freeMu).Lock()
	defer PM(&p.freeMu).Unlock()

	for len(p.table()) < need {
		if err := p.growLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Capacity returns the number of slots in all blocks.
func (p *pool[T, M, PM]) Capacity() int {
	return len(p.table()) * p.blockSize
}

// Size returns the number of live objects. Objects whose destruction is
// deferred by open iterators still count.
func (p *pool[T, M, PM]) Size() int {
	return int(p.active.Load())
}

// Empty reports whether the pool holds no live objects.
func (p *pool[T, M, PM]) Empty() bool {
	return p.Size() == 0
}

// BlockSize returns the number of slots per block.
func (p *pool[T, M, PM]) BlockSize() int {
	return p.blockSize
}

// SetDestructionErrorCallback installs the handler for destruction failures
// that cannot be returned to a caller: destructions deferred by open iterators
// and run later from Iterator.Close, Drain or Close.
//
// The default handler panics with the error. Handlers that return normally must
// accept that the failed object's slot contents are unspecified.
func (p *pool[T, M, PM]) SetDestructionErrorCallback(f func(error)) {
	if f == nil {
		f = RethrowDestructionError
	}
	PM(&p.callbackMu).Lock()
	p.onDestroyError = f
	PM(&p.callbackMu).Unlock()
}

func (p *pool[T, M, PM]) reportDestroyError(err error) {
	p.logger.LogDestroyError(err)

	PM(&p.callbackMu).Lock()
	defer PM(&p.callbackMu).Unlock()
	p.onDestroyError(err)
}

// Stats is a snapshot of pool state.
type Stats struct {
	BlockSize      int
	Blocks         int
	Grows          int64
	Capacity       int
	Size           int64 // live objects
	Allocated      int64 // live objects plus slots held by weak references
	Pending        int64 // destructions waiting for iterators to close
	Iterators      int
	MemoryReserved int64
}

// Stats returns the current pool statistics.
func (p *pool[T, M, PM]) Stats() Stats {
	blocks := len(p.table())
	return Stats{
		BlockSize:      p.blockSize,
		Blocks:         blocks,
		Grows:          p.grows.Load(),
		Capacity:       blocks * p.blockSize,
		Size:           p.active.Load(),
		Allocated:      p.allocated.Load(),
		Pending:        p.pendingLen.Load(),
		Iterators:      int(uint32(p.iterators.Load())), //nolint:gosec // low word
		MemoryReserved: int64(blocks) * p.blockBytes,
	}
}

// Close releases the pool.
//
// Deferred destructions are drained first. If objects are still allocated
// afterwards, outstanding references would dangle: the leak is logged and the
// process is aborted. This is not a recoverable error.
//
// Close is idempotent.
func (p *pool[T, M, PM]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.Drain()

	if allocated := p.allocated.Load(); allocated != 0 {
		active := p.active.Load()
		p.logger.LogLeak(allocated, active)
		abort(fmt.Sprintf("blockpool: pool closed with %d allocated objects (%d live)", allocated, active))
		return nil
	}

	p.budget.Return(int64(len(p.table())) * p.blockBytes)
	return nil
}

// owner implementation

func (p *pool[T, M, PM]) iterating() (bool, uint32) {
	state := p.iterators.Load()
	return uint32(state) != 0, uint32(state >> 32) //nolint:gosec // packed halves
}

func (p *pool[T, M, PM]) objectCreated() {
	p.active.Add(1)
}

func (p *pool[T, M, PM]) objectDestroyed() {
	p.active.Add(-1)
}

func (p *pool[T, M, PM]) metrics() MetricsCollector {
	return p.collector
}

func (p *pool[T, M, PM]) reclaim(block, slot uint32) {
	PM(&p.freeMu).Lock()
	p.pushFreeLocked(block, slot)
	PM(&p.freeMu).Unlock()
	p.allocated.Add(-1)
}

func (p *pool[T, M, PM]) pushFreeLocked(block, slot uint32) {
	p.table()[block].slots[slot].next = p.freeHead
	p.freeHead = slotRef(block, slot)
}

func (p *pool[T, M, PM]) postpone(e pendingDestruction[T]) {
	PM(&p.pendingMu).Lock()
	p.pending.Add(e)
	PM(&p.pendingMu).Unlock()
	p.pendingLen.Add(1)

	// The iterators seen by the caller may have closed and drained before the
	// entry landed. Whoever observes zero afterwards drains it.
	if open, epoch := p.iterating(); !open {
		p.drain(epoch)
	}
}
