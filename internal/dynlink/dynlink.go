// Package dynlink exposes the host's dynamic linker to the managed runtime.
//
// The runtime cannot call dlopen and dlsym itself, so it receives the
// addresses of OpenLibrary and ResolveSymbol as C function pointers at entry
// and keeps using them after the boot code is gone. Both functions only
// forward to libc and read the frozen built-in symbol registry, so they may be
// called from any thread.
package dynlink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrFrozen    = errors.New("dynlink: registry frozen")
	ErrDuplicate = errors.New("dynlink: symbol already registered")
)

// registry holds symbols the launcher provides itself. They are visible only
// through the global namespace, like symbols exported by the executable.
type registry struct {
	mu     sync.Mutex
	syms   map[string]uintptr
	frozen atomic.Bool
}

var builtins = &registry{syms: make(map[string]uintptr)}

// Register adds a built-in symbol. Registration closes when Freeze is called.
func Register(name string, addr uintptr) error {
	builtins.mu.Lock()
	defer builtins.mu.Unlock()
	if builtins.frozen.Load() {
		return fmt.Errorf("%w: %s", ErrFrozen, name)
	}
	if _, ok := builtins.syms[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	builtins.syms[name] = addr
	return nil
}

// Freeze makes the registry read-only. Lookups after Freeze take no locks.
func Freeze() {
	builtins.mu.Lock()
	builtins.frozen.Store(true)
	builtins.mu.Unlock()
}

func builtin(name string) (uintptr, bool) {
	if !builtins.frozen.Load() {
		builtins.mu.Lock()
		defer builtins.mu.Unlock()
	}
	addr, ok := builtins.syms[name]
	return addr, ok
}

var tracer atomic.Pointer[slog.Logger]

// SetTrace logs every open and lookup made through the bridge to logger. A
// nil logger turns tracing off.
func SetTrace(logger *slog.Logger) {
	tracer.Store(logger)
}

// Bridge carries the C-callable addresses handed to the managed runtime.
type Bridge struct {
	OpenLibrary   uintptr
	ResolveSymbol uintptr
}

// Info is what the dynamic linker knows about an address.
type Info struct {
	File       string
	FileBase   uintptr
	Symbol     string
	SymbolBase uintptr
}
