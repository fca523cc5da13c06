package address

import "unsafe"

// unsafeBytes views n bytes of memory starting at a. The caller guarantees
// that the memory is mapped.
func unsafeBytes(a Address, n int) []byte {
	if a == 0 || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(a))), n)
}

// CString reads a NUL-terminated string at a. Zero yields "".
func CString(a Address) string {
	if a == 0 {
		return ""
	}
	p := unsafe.Pointer(uintptr(a))
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
