// Package diag explains native faults inside the managed runtime's compiled
// code before the process is terminated.
package diag

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/tinyrange/maxboot/internal/address"
)

// Location is the provenance of a code address.
type Location struct {
	Library     string
	LibraryBase address.Address
	Symbol      string
	SymbolBase  address.Address
	// Offset is the signed distance from SymbolBase to the address.
	Offset int64
}

func (l Location) HasSymbol() bool { return l.Symbol != "" }

func (l Location) String() string {
	if !l.HasSymbol() {
		return fmt.Sprintf("In %s (%s)", l.Library, l.LibraryBase)
	}
	return fmt.Sprintf("In %s (%s) at %s (%s%+d)", l.Library, l.LibraryBase, l.Symbol, l.SymbolBase, l.Offset)
}

// Resolver maps an address to the module, and if possible the exported
// symbol, containing it.
type Resolver interface {
	Resolve(addr address.Address) (Location, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(addr address.Address) (Location, bool)

func (f ResolverFunc) Resolve(addr address.Address) (Location, bool) { return f(addr) }

// Chain asks each resolver in turn and returns the first answer.
type Chain []Resolver

func (c Chain) Resolve(addr address.Address) (Location, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if loc, ok := r.Resolve(addr); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// Symbol is an exported symbol at its runtime address.
type Symbol struct {
	Name string
	Addr address.Address
}

// Module is a loaded object occupying [Start, End).
type Module struct {
	Path    string
	Base    address.Address
	Start   address.Address
	End     address.Address
	Symbols []Symbol
}

// Table resolves addresses against a fixed set of modules.
type Table struct {
	modules []Module
}

// NewTable sorts mods and their symbols by address.
func NewTable(mods []Module) *Table {
	t := &Table{modules: append([]Module(nil), mods...)}
	sort.Slice(t.modules, func(i, j int) bool { return t.modules[i].Start < t.modules[j].Start })
	for i := range t.modules {
		syms := append([]Symbol(nil), t.modules[i].Symbols...)
		sort.SliceStable(syms, func(a, b int) bool { return syms[a].Addr < syms[b].Addr })
		t.modules[i].Symbols = syms
	}
	return t
}

// Resolve finds the module containing addr and the nearest symbol at or below
// it.
func (t *Table) Resolve(addr address.Address) (Location, bool) {
	i := sort.Search(len(t.modules), func(i int) bool { return t.modules[i].End > addr })
	if i == len(t.modules) || addr < t.modules[i].Start {
		return Location{}, false
	}
	mod := t.modules[i]
	loc := Location{Library: mod.Path, LibraryBase: mod.Base}

	j := sort.Search(len(mod.Symbols), func(j int) bool { return mod.Symbols[j].Addr > addr })
	if j > 0 {
		sym := mod.Symbols[j-1]
		loc.Symbol = sym.Name
		loc.SymbolBase = sym.Addr
		loc.Offset = addr.Offset(sym.Addr)
	}
	return loc, true
}

// Reporter prints fault provenance and terminates the process.
type Reporter struct {
	Resolver Resolver
	Logger   *slog.Logger
	// Exit defaults to os.Exit.
	Exit func(code int)
}

// Describe resolves addr. A resolver that panics is treated as having found
// nothing.
func (r Reporter) Describe(addr address.Address) (loc Location, ok bool) {
	if r.Resolver == nil {
		return Location{}, false
	}
	defer func() {
		if recover() != nil {
			loc, ok = Location{}, false
		}
	}()
	return r.Resolver.Resolve(addr)
}

// TrapExit reports a trap at addr and exits with code. It always exits, even
// when nothing is known about addr.
func (r Reporter) TrapExit(code int, addr address.Address) {
	exit := r.Exit
	if exit == nil {
		exit = os.Exit
	}
	defer exit(code)

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if loc, ok := r.Describe(addr); ok {
		logger.Error(loc.String())
	}
	logger.Error(fmt.Sprintf("Trap in native code at %s", addr), "code", code)
}
