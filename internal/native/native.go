// Package native holds the services the managed runtime calls back into after
// it has taken over: executable path, environment block, exit and trap exit.
package native

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/diag"
	"github.com/tinyrange/maxboot/internal/dynlink"
	"github.com/tinyrange/maxboot/internal/pathres"
)

// Symbol names the runtime resolves in the global namespace.
const (
	SymbolExecutablePath = "native_executablePath"
	SymbolEnvironment    = "native_environment"
	SymbolExit           = "native_exit"
	SymbolTrapExit       = "native_trap_exit"
)

// ExecutableDirectory returns the directory of the executable. The first
// result is cached for the life of the process.
func ExecutableDirectory() (string, error) {
	return pathres.CachedExecutableDirectory()
}

var executableDirectoryC = sync.OnceValue(func() address.Address {
	dir, err := ExecutableDirectory()
	if err != nil {
		slog.Warn("executable directory unavailable", "error", err)
	}
	buf := append([]byte(dir), 0)
	region, err := address.MapAllocator{}.Allocate(len(buf))
	if err != nil {
		slog.Error("allocate executable directory", "error", err)
		return 0
	}
	copy(region.Bytes(), buf)
	return region.Base()
})

// ExecutablePathC returns the executable directory as a NUL-terminated string
// in memory that stays valid until exit.
func ExecutablePathC() address.Address {
	return executableDirectoryC()
}

// Environment returns the address of the process's environ block.
func Environment() address.Address {
	return environ()
}

var exitFunc atomic.Pointer[func(int)]

// Exit terminates the process with code. It does not return.
func Exit(code int) {
	if f := exitFunc.Load(); f != nil {
		(*f)(code)
		return
	}
	os.Exit(code)
}

var reporter atomic.Pointer[diag.Reporter]

// SetReporter replaces the reporter used by TrapExit.
func SetReporter(r diag.Reporter) {
	reporter.Store(&r)
}

// TrapExit reports a trap at addr and terminates with code.
func TrapExit(code int, addr address.Address) {
	r := reporter.Load()
	if r == nil {
		r = &diag.Reporter{Resolver: diag.DefaultResolver()}
	}
	rep := *r
	if rep.Exit == nil {
		rep.Exit = Exit
	}
	rep.TrapExit(code, addr)
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register publishes the callbacks as built-in symbols of the global
// namespace. It must run before dynlink.Freeze.
func Register() error {
	registerOnce.Do(func() {
		for _, cb := range []struct {
			name string
			fn   any
		}{
			{SymbolExecutablePath, func() uintptr { return ExecutablePathC().Uintptr() }},
			{SymbolEnvironment, func() uintptr { return Environment().Uintptr() }},
			{SymbolExit, func(code uintptr) uintptr {
				Exit(int(int32(code)))
				return 0
			}},
			{SymbolTrapExit, func(code, addr uintptr) uintptr {
				TrapExit(int(int32(code)), address.Address(addr))
				return 0
			}},
		} {
			addr, err := dynlink.Callback(cb.fn)
			if err != nil {
				registerErr = fmt.Errorf("%s: %w", cb.name, err)
				return
			}
			if err := dynlink.Register(cb.name, addr); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}
