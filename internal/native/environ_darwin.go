//go:build darwin

package native

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/tinyrange/maxboot/internal/address"
)

// environ follows _NSGetEnviron, since environ is not visible to dylibs.
func environ() address.Address {
	fn, err := purego.Dlsym(purego.RTLD_DEFAULT, "_NSGetEnviron")
	if err != nil {
		return 0
	}
	p, _, _ := purego.SyscallN(fn)
	if p == 0 {
		return 0
	}
	return address.Address(*(*uintptr)(unsafe.Pointer(p)))
}
