//go:build unix

package image

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tinyrange/maxboot/internal/address"
	"golang.org/x/sys/unix"
)

// ErrNoEmbeddedImage is returned when an embedded build has no image
// registered.
var ErrNoEmbeddedImage = errors.New("no embedded image registered")

// MemoryLoader maps an image that is already in memory. The path passed to
// Load is ignored.
type MemoryLoader struct {
	Data       []byte
	ABIVersion uint32
	NoExec     bool
}

func (l MemoryLoader) Load(string) (*Handle, error) {
	if l.Data == nil {
		return nil, ErrNoEmbeddedImage
	}
	hdr, err := DecodeHeader(l.Data)
	if err != nil {
		return nil, fmt.Errorf("embedded image: %w", err)
	}
	if err := hdr.Validate(int64(len(l.Data)), 0, l.ABIVersion); err != nil {
		return nil, fmt.Errorf("embedded image: %w", err)
	}

	heap, err := address.Map(int(hdr.HeapSize), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return nil, fmt.Errorf("map embedded heap: %w", err)
	}
	copy(heap.Bytes(), l.Data[hdr.HeapOffset:hdr.HeapOffset+hdr.HeapSize])
	if err := heap.Protect(heapProt(l.NoExec)); err != nil {
		_ = heap.Release()
		return nil, fmt.Errorf("protect embedded heap: %w", err)
	}

	return &Handle{
		FD:     -1,
		Heap:   heap.Base(),
		Header: hdr,
		Extent: hdr.HeapSize,
		heap:   heap,
	}, nil
}

var embedded atomic.Pointer[[]byte]

// RegisterEmbedded installs the image used by builds without a filesystem
// image. It is typically called from an init function of the embedding
// program.
func RegisterEmbedded(data []byte) {
	embedded.Store(&data)
}

// Embedded returns a loader for the registered image. The loader reports
// ErrNoEmbeddedImage when nothing was registered.
func Embedded(abi uint32) MemoryLoader {
	l := MemoryLoader{ABIVersion: abi}
	if p := embedded.Load(); p != nil {
		l.Data = *p
	}
	return l
}
