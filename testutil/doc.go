// Package testutil provides testing utilities for blockpool.
//
// This package is intended for use in tests, benchmarks and the poolstress
// tool. It provides a seeded thread-safe RNG and a Ledger that checks every
// pooled object is destroyed exactly once.
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	rng.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
//
// # Destruction Accounting
//
//	ledger := testutil.NewLedger()
//	id := ledger.Create()
//	...
//	if err := ledger.Destroy(id); err != nil {
//	    t.Fatal(err) // destroyed twice
//	}
//	assert.Zero(t, ledger.Live())
package testutil
