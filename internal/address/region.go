package address

import (
	"fmt"
)

// Region is an owned block of memory with a stable base address. The bytes
// are never moved by the Go runtime, so the base may be handed to native code.
type Region struct {
	mem     []byte
	release func([]byte) error
}

// NewRegion wraps mem. release, if non-nil, is called once by Release.
// mem must not live on a goroutine stack: use mapped memory, or Go heap
// memory that is kept reachable for the life of the region.
func NewRegion(mem []byte, release func([]byte) error) *Region {
	return &Region{mem: mem, release: release}
}

// Base returns the address of the first byte of the region.
func (r *Region) Base() Address {
	if r == nil {
		return 0
	}
	return Of(r.mem)
}

// Len returns the size of the region in bytes.
func (r *Region) Len() int {
	if r == nil {
		return 0
	}
	return len(r.mem)
}

// Bytes exposes the backing memory.
func (r *Region) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.mem
}

// Fill sets every byte of the region to b.
func (r *Region) Fill(b byte) {
	if r == nil {
		return
	}
	if b == 0 {
		clear(r.mem)
		return
	}
	for i := range r.mem {
		r.mem[i] = b
	}
}

// Contains reports whether a lies inside the region.
func (r *Region) Contains(a Address) bool {
	base := r.Base()
	return r.Len() > 0 && a >= base && a < base.Add(uint64(r.Len()))
}

// Window returns n bytes of the region starting at a, which must lie inside
// the region together with the whole window.
func (r *Region) Window(a Address, n uint64) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("address: window on nil region")
	}
	start := a.Offset(r.Base())
	if start < 0 || uint64(start)+n > uint64(len(r.mem)) {
		return nil, fmt.Errorf("address: window [%s, +%d) outside region [%s, +%d)", a, n, r.Base(), len(r.mem))
	}
	return r.mem[start : uint64(start)+n : uint64(start)+n], nil
}

// Release returns the memory to its allocator. It is safe to call more than
// once.
func (r *Region) Release() error {
	if r == nil || r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	if r.release == nil {
		return nil
	}
	return r.release(mem)
}

// Allocator hands out owned regions.
type Allocator interface {
	Allocate(size int) (*Region, error)
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(size int) (*Region, error)

func (f AllocatorFunc) Allocate(size int) (*Region, error) { return f(size) }
