package blockpool_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/blockpool"
)

type Particle struct {
	Mass float64
}

type Conn struct {
	name string
}

func (c *Conn) Destroy() error {
	fmt.Println("closing", c.name)
	return nil
}

func Example() {
	p := blockpool.New[Particle](blockpool.WithBlockSize(64))
	defer p.Close()

	ref, err := p.EmplaceValue(Particle{Mass: 1})
	if err != nil {
		panic(err)
	}
	ref.Get().Mass *= 2

	w := ref.Weak()
	fmt.Println(ref.Get().Mass, ref.UseCount(), p.Size())

	_ = ref.Release()
	_, ok := w.Lock()
	fmt.Println("upgrade after release:", ok)
	w.Release()

	// Output:
	// 2 1 1
	// upgrade after release: false
}

// Example_deferredDestruction shows that an open iterator postpones
// destruction of objects dropped while it is open.
func Example_deferredDestruction() {
	p := blockpool.New[Conn]()
	defer p.Close()

	ref, _ := p.EmplaceValue(Conn{name: "a"})

	it := p.Begin()
	_ = ref.Release()
	fmt.Println("released, still visible:", it.Value().name)
	it.Close()

	// Output:
	// released, still visible: a
	// closing a
}

func Example_forEachParallel() {
	p := blockpool.New[Particle](blockpool.WithBlockSize(16))
	defer p.Close()

	refs := make([]blockpool.Ref[Particle], 100)
	for i := range refs {
		refs[i], _ = p.EmplaceValue(Particle{Mass: 1})
	}

	err := p.ForEachParallel(context.Background(), 4, func(_ context.Context, pt *Particle) error {
		pt.Mass = 3
		return nil
	})
	fmt.Println(err)

	total := 0.0
	for pt := range p.All() {
		total += pt.Mass
	}
	fmt.Println(total)

	for i := range refs {
		_ = refs[i].Release()
	}

	// Output:
	// <nil>
	// 300
}

func ExampleFromWeak() {
	p := blockpool.NewLocal[Particle]()
	defer p.Close()

	ref, _ := p.EmplaceValue(Particle{Mass: 5})
	w := ref.Weak()
	defer w.Release()

	if up, err := blockpool.FromWeak(w); err == nil {
		fmt.Println(up.Get().Mass)
		_ = up.Release()
	}

	_ = ref.Release()
	_, err := blockpool.FromWeak(w)
	fmt.Println(errors.Is(err, blockpool.ErrExpired))

	// Output:
	// 5
	// true
}
