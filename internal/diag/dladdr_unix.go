//go:build darwin || freebsd || linux || netbsd

package diag

import (
	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/dynlink"
)

// Dladdr resolves addresses with the dynamic linker's dladdr.
type Dladdr struct{}

func (Dladdr) Resolve(addr address.Address) (Location, bool) {
	info, ok := dynlink.Dladdr(addr.Uintptr())
	if !ok {
		return Location{}, false
	}
	loc := Location{Library: info.File, LibraryBase: address.Address(info.FileBase)}
	if info.Symbol != "" {
		loc.Symbol = info.Symbol
		loc.SymbolBase = address.Address(info.SymbolBase)
		loc.Offset = addr.Offset(loc.SymbolBase)
	}
	return loc, true
}
