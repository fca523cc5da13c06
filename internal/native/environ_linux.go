//go:build linux || freebsd || netbsd

package native

import (
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/tinyrange/maxboot/internal/address"
)

// environ reads libc's environ variable.
func environ() address.Address {
	p, err := purego.Dlsym(purego.RTLD_DEFAULT, "environ")
	if err != nil || p == 0 {
		return 0
	}
	return address.Address(*(*uintptr)(unsafe.Pointer(p)))
}
