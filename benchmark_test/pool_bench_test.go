package benchmark_test

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/blockpool"
)

type payload struct {
	data [8]uint64
}

func BenchmarkEmplaceRelease(b *testing.B) {
	b.Run("Pool", func(b *testing.B) {
		p := blockpool.New[payload]()
		defer p.Close()

		b.ReportAllocs()
		for b.Loop() {
			r, _ := p.EmplaceValue(payload{})
			_ = r.Release()
		}
	})

	b.Run("LocalPool", func(b *testing.B) {
		p := blockpool.NewLocal[payload]()
		defer p.Close()

		b.ReportAllocs()
		for b.Loop() {
			r, _ := p.EmplaceValue(payload{})
			_ = r.Release()
		}
	})

	b.Run("Parallel", func(b *testing.B) {
		p := blockpool.New[payload]()
		defer p.Close()

		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				r, _ := p.EmplaceValue(payload{})
				_ = r.Release()
			}
		})
	})
}

func BenchmarkClone(b *testing.B) {
	p := blockpool.New[payload]()
	defer p.Close()

	r, _ := p.EmplaceValue(payload{})
	defer r.Release()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c := r.Clone()
			_ = c.Release()
		}
	})
}

func BenchmarkWeakUpgrade(b *testing.B) {
	p := blockpool.New[payload]()
	defer p.Close()

	r, _ := p.EmplaceValue(payload{})
	defer r.Release()
	w := r.Weak()
	defer w.Release()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			up, ok := w.Lock()
			if ok {
				_ = up.Release()
			}
		}
	})
}

func populate(b *testing.B, p *blockpool.Pool[payload], n int) []blockpool.Ref[payload] {
	b.Helper()
	refs := make([]blockpool.Ref[payload], n)
	for i := range refs {
		r, err := p.EmplaceValue(payload{})
		if err != nil {
			b.Fatal(err)
		}
		refs[i] = r
	}
	return refs
}

func release(refs []blockpool.Ref[payload]) {
	for i := range refs {
		_ = refs[i].Release()
	}
}

func BenchmarkIterate(b *testing.B) {
	cases := []struct {
		name  string
		every int // keep every n-th object
	}{
		{"Full", 1},
		{"Half", 2},
		{"Sparse", 10},
	}

	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			p := blockpool.New[payload]()
			defer p.Close()

			refs := populate(b, p, 100_000)
			for i := range refs {
				if i%tc.every != 0 {
					_ = refs[i].Release()
				}
			}

			b.ResetTimer()
			for b.Loop() {
				var sum uint64
				for v := range p.All() {
					sum += v.data[0]
				}
				_ = sum
			}
			b.StopTimer()

			release(refs)
		})
	}
}

func BenchmarkForEachParallel(b *testing.B) {
	p := blockpool.New[payload]()
	defer p.Close()

	refs := populate(b, p, 100_000)
	defer release(refs)

	ctx := context.Background()
	b.ResetTimer()
	for b.Loop() {
		_ = p.ForEachParallel(ctx, 0, func(_ context.Context, v *payload) error {
			v.data[0]++
			return nil
		})
	}
}

// BenchmarkDropWhileIterating measures the deferred destruction path.
func BenchmarkDropWhileIterating(b *testing.B) {
	p := blockpool.New[payload]()
	defer p.Close()

	b.ReportAllocs()
	for b.Loop() {
		refs := populate(b, p, 1024)
		it := p.Begin()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			release(refs)
		}()
		for it.Valid() {
			it.Advance()
		}
		wg.Wait()
		it.Close()
	}
}
