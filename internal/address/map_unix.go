//go:build unix

package address

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map returns an anonymous private mapping of at least size bytes with the
// given protection. The mapping is page aligned and zero filled.
func Map(size int, prot int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("address: map size %d", size)
	}
	pageSize := unix.Getpagesize()
	allocSize := int(AlignUp(uint64(size), uint64(pageSize)))

	mem, err := unix.Mmap(-1, 0, allocSize, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", allocSize, err)
	}
	return NewRegion(mem[:size:size], func([]byte) error {
		return unix.Munmap(mem)
	}), nil
}

// Protect changes the protection of the pages backing the region.
func (r *Region) Protect(prot int) error {
	if r.Len() == 0 {
		return nil
	}
	pageSize := uint64(unix.Getpagesize())
	start := uint64(r.Base()) &^ (pageSize - 1)
	end := AlignUp(uint64(r.Base())+uint64(r.Len()), pageSize)
	if err := unix.Mprotect(unsafeBytes(Address(start), int(end-start)), prot); err != nil {
		return fmt.Errorf("mprotect %s: %w", Address(start), err)
	}
	return nil
}

// MapAllocator allocates anonymous read/write mappings.
type MapAllocator struct{}

func (MapAllocator) Allocate(size int) (*Region, error) {
	return Map(size, unix.PROT_READ|unix.PROT_WRITE)
}
