// Package primordial builds the memory the managed runtime starts in: the
// thread locals of the one thread that exists before the runtime has its own
// threading, and the auxiliary space.
package primordial

import (
	"fmt"
	"math"

	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/image"
)

// Poison fills the auxiliary space so that reads of memory the runtime never
// wrote are recognizable.
const Poison byte = 0x01

// AllocationError reports a region that could not be allocated.
type AllocationError struct {
	What string
	Size uint64
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate %d bytes of %s: %v", e.Size, e.What, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Options control Build.
type Options struct {
	// Allocator defaults to anonymous mappings.
	Allocator address.Allocator
	// ReferenceBufferSize is added to the auxiliary space. Launchers pass
	// DefaultReferenceBufferSize.
	ReferenceBufferSize uint64
}

func (o Options) allocator() address.Allocator {
	if o.Allocator == nil {
		return address.MapAllocator{}
	}
	return o.Allocator
}

// Context is the primordial thread locals block: word aligned, zero filled,
// VMThreadLocalsSize rounded up to whole words.
type Context struct {
	region *address.Region
	base   address.Address
	mem    []byte
}

func (c *Context) Base() address.Address { return c.base }
func (c *Context) Size() uint64          { return uint64(len(c.mem)) }
func (c *Context) Bytes() []byte         { return c.mem }

// Release frees the context. It must not be called while the runtime can
// still reach it.
func (c *Context) Release() error {
	c.mem = nil
	c.base = 0
	return c.region.Release()
}

// AuxiliarySpace is poisoned scratch memory owned by the runtime after entry.
// A zero sized space has a zero base and no backing memory.
type AuxiliarySpace struct {
	region *address.Region
	mem    []byte
}

func (a *AuxiliarySpace) Base() address.Address { return address.Of(a.mem) }
func (a *AuxiliarySpace) Size() uint64          { return uint64(len(a.mem)) }
func (a *AuxiliarySpace) Bytes() []byte         { return a.mem }

// Build allocates the primordial context and the auxiliary space described by
// h.
func Build(h image.Header, opts Options) (*Context, *AuxiliarySpace, error) {
	ctx, err := NewContext(h.VMThreadLocalsSize, opts.allocator())
	if err != nil {
		return nil, nil, err
	}
	aux, err := NewAuxiliarySpace(h.AuxiliarySize(opts.ReferenceBufferSize), opts.allocator())
	if err != nil {
		_ = ctx.Release()
		return nil, nil, err
	}
	return ctx, aux, nil
}

// NewContext allocates size bytes plus a word of slack, aligns the base up to
// a word boundary and zero fills the rounded up size.
func NewContext(size uint64, alloc address.Allocator) (*Context, error) {
	rounded := address.RoundUpToWord(size)
	total := rounded + address.WordSize
	if total > math.MaxInt || rounded < size {
		return nil, &AllocationError{What: "primordial context", Size: size, Err: fmt.Errorf("size overflows")}
	}
	region, err := alloc.Allocate(int(total))
	if err != nil {
		return nil, &AllocationError{What: "primordial context", Size: total, Err: err}
	}
	base := region.Base().WordAligned()
	mem, err := region.Window(base, rounded)
	if err != nil {
		_ = region.Release()
		return nil, &AllocationError{What: "primordial context", Size: total, Err: err}
	}
	clear(mem)
	return &Context{region: region, base: base, mem: mem}, nil
}

// NewAuxiliarySpace allocates and poisons size bytes. Size zero is valid and
// allocates nothing.
func NewAuxiliarySpace(size uint64, alloc address.Allocator) (*AuxiliarySpace, error) {
	if size == 0 {
		return &AuxiliarySpace{}, nil
	}
	if size > math.MaxInt {
		return nil, &AllocationError{What: "auxiliary space", Size: size, Err: fmt.Errorf("size overflows")}
	}
	region, err := alloc.Allocate(int(size))
	if err != nil {
		return nil, &AllocationError{What: "auxiliary space", Size: size, Err: err}
	}
	if region.Len() < int(size) || region.Base().IsZero() {
		_ = region.Release()
		return nil, &AllocationError{What: "auxiliary space", Size: size, Err: fmt.Errorf("allocator returned %d bytes at %s", region.Len(), region.Base())}
	}
	region.Fill(Poison)
	return &AuxiliarySpace{region: region, mem: region.Bytes()[:size]}, nil
}
