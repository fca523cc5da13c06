//go:build darwin || freebsd || linux || netbsd

package entry

import (
	"github.com/ebitengine/purego"
	"github.com/tinyrange/maxboot/internal/address"
)

// NativeCall calls fn with the C calling convention of the host.
func NativeCall(fn address.Address, args [ArgCount]uintptr) int32 {
	r1, _, _ := purego.SyscallN(fn.Uintptr(), args[:]...)
	return int32(r1)
}
