// Package address centralizes raw address arithmetic and the owned memory
// regions that are handed across the native boundary.
package address

import (
	"fmt"
	"unsafe"
)

// WordSize is the size in bytes of a machine word on the host.
const WordSize = uint64(unsafe.Sizeof(uintptr(0)))

// Address is a raw machine address. Zero is the null address.
type Address uintptr

// Of returns the address of the first byte of b, or zero if b is empty.
func Of(b []byte) Address {
	if len(b) == 0 {
		return 0
	}
	return Address(uintptr(unsafe.Pointer(&b[0])))
}

func (a Address) IsZero() bool { return a == 0 }

// Add returns a displaced by off bytes.
func (a Address) Add(off uint64) Address {
	return a + Address(off)
}

// Offset returns the signed distance in bytes from base to a.
func (a Address) Offset(base Address) int64 {
	return int64(uintptr(a) - uintptr(base))
}

// AlignUp rounds a up to the next multiple of align, which must be a power
// of two.
func (a Address) AlignUp(align uint64) Address {
	return Address(AlignUp(uint64(a), align))
}

// WordAligned rounds a up to the next word boundary.
func (a Address) WordAligned() Address {
	return a.AlignUp(WordSize)
}

func (a Address) Uintptr() uintptr { return uintptr(a) }

func (a Address) String() string {
	return fmt.Sprintf("%#x", uintptr(a))
}

// AlignUp rounds n up to the next multiple of align (a power of two).
func AlignUp(n, align uint64) uint64 {
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("address: alignment %d is not a power of two", align))
	}
	return (n + align - 1) &^ (align - 1)
}

// RoundUpToWord rounds n up to a whole number of words.
func RoundUpToWord(n uint64) uint64 {
	return AlignUp(n, WordSize)
}
