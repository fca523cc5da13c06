//go:build unix

package entry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tinyrange/maxboot/internal/address"
	"golang.org/x/sys/unix"
)

// Argv is a C argument vector: argc pointers to NUL-terminated strings
// followed by a null pointer, all inside one owned mapping.
type Argv struct {
	region *address.Region
	argc   int32
}

// NewArgv copies args into native memory.
func NewArgv(args []string) (*Argv, error) {
	if len(args) >= math.MaxInt32 {
		return nil, fmt.Errorf("too many arguments: %d", len(args))
	}
	table := uint64(len(args)+1) * address.WordSize
	size := table
	for _, arg := range args {
		size += uint64(len(arg)) + 1
	}

	region, err := address.Map(int(size), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return nil, fmt.Errorf("allocate argv: %w", err)
	}
	mem := region.Bytes()
	base := region.Base()

	off := table
	for i, arg := range args {
		putWord(mem[uint64(i)*address.WordSize:], uint64(base.Add(off)))
		copy(mem[off:], arg)
		mem[off+uint64(len(arg))] = 0
		off += uint64(len(arg)) + 1
	}
	putWord(mem[uint64(len(args))*address.WordSize:], 0)

	return &Argv{region: region, argc: int32(len(args))}, nil
}

func putWord(b []byte, v uint64) {
	if address.WordSize == 8 {
		binary.NativeEndian.PutUint64(b, v)
	} else {
		binary.NativeEndian.PutUint32(b, uint32(v))
	}
}

func (a *Argv) Argc() int32           { return a.argc }
func (a *Argv) Base() address.Address { return a.region.Base() }

// Release frees the vector. The runtime may keep argv pointers, so launchers
// only release it after the entry point returned.
func (a *Argv) Release() error { return a.region.Release() }
