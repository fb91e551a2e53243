// Package resource implements the memory budget that bounds pool growth.
//
// Pools grow one block at a time and never shrink, so every block is a
// permanent reservation. A Budget tracks those reservations against an optional
// hard limit:
//
//	b := resource.NewBudget(64 << 20) // 64 MiB
//
//	if err := b.TryReserve(blockBytes); err != nil {
//	    // ErrMemoryLimitExceeded - growth fails, nothing was reserved
//	}
//	defer b.Return(blockBytes)
//
// Reservation is fail-fast: growth runs under the pool's free-list lock and
// must never wait for memory to be returned.
//
// # Nil Safety
//
// All methods handle a nil Budget gracefully. A nil Budget is unlimited and
// does not track usage, so pools without a limit skip the bookkeeping.
package resource
