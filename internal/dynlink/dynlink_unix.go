//go:build darwin || freebsd || linux || netbsd

package dynlink

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/tinyrange/maxboot/internal/address"
	"golang.org/x/sys/unix"
)

type libcAPI struct {
	dlopen uintptr
	dlsym  uintptr
	dladdr uintptr

	// global is the handle dlopen returns for the main program.
	global uintptr
}

var (
	apiOnce sync.Once
	libc    libcAPI
	apiErr  error
)

func loadAPI() (*libcAPI, error) {
	apiOnce.Do(func() {
		for _, fn := range []struct {
			name string
			dst  *uintptr
		}{
			{"dlopen", &libc.dlopen},
			{"dlsym", &libc.dlsym},
			{"dladdr", &libc.dladdr},
		} {
			addr, err := purego.Dlsym(purego.RTLD_DEFAULT, fn.name)
			if err != nil {
				apiErr = fmt.Errorf("resolve %s: %w", fn.name, err)
				return
			}
			*fn.dst = addr
		}
		libc.global, _, _ = purego.SyscallN(libc.dlopen, 0, purego.RTLD_LAZY)
	})
	return &libc, apiErr
}

// Init resolves the libc entry points. Calling it before handing the bridge
// over turns a missing dynamic linker into an error instead of null results.
func Init() error {
	_, err := loadAPI()
	return err
}

func isGlobal(api *libcAPI, handle uintptr) bool {
	return handle == 0 || handle == api.global || handle == uintptr(purego.RTLD_DEFAULT)
}

// OpenLibrary is dlopen(path, RTLD_LAZY) on a C string. A zero path opens the
// global namespace. Failure yields zero.
func OpenLibrary(path uintptr) uintptr {
	api, err := loadAPI()
	if err != nil {
		return 0
	}
	handle, _, _ := purego.SyscallN(api.dlopen, path, purego.RTLD_LAZY)
	if logger := tracer.Load(); logger != nil {
		name := "null"
		if path != 0 {
			name = address.CString(address.Address(path))
		}
		logger.Debug("openDynamicLibrary", "path", name, "handle", address.Address(handle))
	}
	return handle
}

// ResolveSymbol is dlsym(handle, name) on a C string. In the global
// namespace, launcher built-ins shadow the dynamic linker. An unresolved
// symbol yields zero.
func ResolveSymbol(handle, name uintptr) uintptr {
	if name == 0 {
		return 0
	}
	api, err := loadAPI()
	if err != nil {
		return 0
	}
	sym := address.CString(address.Address(name))

	var addr uintptr
	if isGlobal(api, handle) {
		if b, ok := builtin(sym); ok {
			addr = b
		}
	}
	if addr == 0 {
		lookup := handle
		if lookup == 0 {
			lookup = uintptr(purego.RTLD_DEFAULT)
		}
		addr, _, _ = purego.SyscallN(api.dlsym, lookup, name)
	}

	if logger := tracer.Load(); logger != nil {
		attrs := []any{"handle", address.Address(handle), "symbol", sym, "address", address.Address(addr)}
		if info, ok := Dladdr(addr); ok {
			attrs = append(attrs, "from", info.File)
		}
		logger.Debug("loadSymbol", attrs...)
	}
	return addr
}

// Open opens the named library. Use OpenGlobal for the global namespace.
func Open(path string) uintptr {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return 0
	}
	handle := OpenLibrary(uintptr(unsafe.Pointer(p)))
	runtime.KeepAlive(p)
	return handle
}

// OpenGlobal returns a handle for the process's global symbol namespace.
func OpenGlobal() uintptr {
	return OpenLibrary(0)
}

// Lookup resolves name in handle's namespace.
func Lookup(handle uintptr, name string) uintptr {
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return 0
	}
	addr := ResolveSymbol(handle, uintptr(unsafe.Pointer(p)))
	runtime.KeepAlive(p)
	return addr
}

type dlInfo struct {
	fname uintptr
	fbase uintptr
	sname uintptr
	saddr uintptr
}

// Dladdr asks the dynamic linker which object, and which exported symbol,
// contain addr.
func Dladdr(addr uintptr) (Info, bool) {
	if addr == 0 {
		return Info{}, false
	}
	api, err := loadAPI()
	if err != nil {
		return Info{}, false
	}
	info := new(dlInfo)
	ret, _, _ := purego.SyscallN(api.dladdr, addr, uintptr(unsafe.Pointer(info)))
	runtime.KeepAlive(info)
	if ret == 0 {
		return Info{}, false
	}
	out := Info{
		File:     address.CString(address.Address(info.fname)),
		FileBase: info.fbase,
	}
	if info.sname != 0 {
		out.Symbol = address.CString(address.Address(info.sname))
		out.SymbolBase = info.saddr
	}
	return out, true
}

var (
	bridgeOnce sync.Once
	bridge     Bridge
	bridgeErr  error
)

// NewBridge returns the C function pointers for OpenLibrary and ResolveSymbol.
// The callbacks are created once and live for the rest of the process.
func NewBridge() (Bridge, error) {
	bridgeOnce.Do(func() {
		if err := Init(); err != nil {
			bridgeErr = err
			return
		}
		defer func() {
			if r := recover(); r != nil {
				bridgeErr = fmt.Errorf("create linker callbacks: %v", r)
			}
		}()
		bridge = Bridge{
			OpenLibrary:   purego.NewCallback(OpenLibrary),
			ResolveSymbol: purego.NewCallback(ResolveSymbol),
		}
	})
	return bridge, bridgeErr
}

// Callback wraps fn as a C function pointer. fn must only take and return
// integer or pointer sized values.
func Callback(fn any) (addr uintptr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create callback: %v", r)
		}
	}()
	return purego.NewCallback(fn), nil
}
