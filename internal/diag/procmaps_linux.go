//go:build linux

package diag

import (
	"bufio"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/tinyrange/maxboot/internal/address"
)

// LoadProcessTable builds a Table from /proc/self/maps and the dynamic symbol
// tables of the mapped files.
func LoadProcessTable() (*Table, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("open process maps: %w", err)
	}
	defer f.Close()

	mods, err := parseMaps(f)
	if err != nil {
		return nil, err
	}
	for i := range mods {
		mods[i].Symbols = loadSymbols(mods[i].Path, mods[i].Base)
	}
	return NewTable(mods), nil
}

// parseMaps groups file-backed mappings by path. Base is the start of the
// mapping at file offset zero.
func parseMaps(r io.Reader) ([]Module, error) {
	var mods []Module
	index := make(map[string]int)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}
		path := strings.Join(fields[5:], " ")
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		start, err1 := strconv.ParseUint(lo, 16, 64)
		end, err2 := strconv.ParseUint(hi, 16, 64)
		off, err3 := strconv.ParseUint(fields[2], 16, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		i, seen := index[path]
		if !seen {
			i = len(mods)
			index[path] = i
			mods = append(mods, Module{Path: path, Start: address.Address(start), End: address.Address(end)})
		}
		m := &mods[i]
		if address.Address(start) < m.Start {
			m.Start = address.Address(start)
		}
		if address.Address(end) > m.End {
			m.End = address.Address(end)
		}
		if off == 0 && (m.Base == 0 || address.Address(start) < m.Base) {
			m.Base = address.Address(start)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read process maps: %w", err)
	}
	for i := range mods {
		if mods[i].Base == 0 {
			mods[i].Base = mods[i].Start
		}
	}
	return mods, nil
}

// loadSymbols returns the defined dynamic symbols of the ELF file at path,
// relocated to base. Unreadable files yield no symbols.
func loadSymbols(path string, base address.Address) []Symbol {
	f, err := elf.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var bias uint64
	if f.Type == elf.ET_DYN {
		first := ^uint64(0)
		for _, p := range f.Progs {
			if p.Type != elf.PT_LOAD {
				continue
			}
			v := p.Vaddr
			if p.Align > 1 {
				v &^= p.Align - 1
			}
			if v < first {
				first = v
			}
		}
		if first == ^uint64(0) {
			first = 0
		}
		bias = uint64(base) - first
	}

	dyn, err := f.DynamicSymbols()
	if err != nil {
		return nil
	}
	syms := make([]Symbol, 0, len(dyn))
	for _, s := range dyn {
		if s.Section == elf.SHN_UNDEF || s.Value == 0 || s.Name == "" {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.SymType(10): // 10 = STT_GNU_IFUNC (constant added to debug/elf after go1.21)
		default:
			continue
		}
		syms = append(syms, Symbol{Name: s.Name, Addr: address.Address(s.Value + bias)})
	}
	return syms
}

var processTable = sync.OnceValues(LoadProcessTable)

// DefaultResolver asks dladdr first and falls back to the process maps.
func DefaultResolver() Resolver {
	return Chain{
		Dladdr{},
		ResolverFunc(func(addr address.Address) (Location, bool) {
			t, err := processTable()
			if err != nil {
				return Location{}, false
			}
			return t.Resolve(addr)
		}),
	}
}
