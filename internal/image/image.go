package image

import (
	"fmt"

	"github.com/tinyrange/maxboot/internal/address"
)

// Loader maps a boot image and reports where its heap landed.
type Loader interface {
	Load(path string) (*Handle, error)
}

// Handle describes a loaded image. FD is -1 when the image did not come from
// a file.
type Handle struct {
	FD     int
	Heap   address.Address
	Header Header
	Extent uint64

	heap *address.Region
}

// Region returns the mapped heap.
func (h *Handle) Region() *address.Region { return h.heap }

// Close releases the image file descriptor. The heap stays mapped.
func (h *Handle) Close() error {
	if h == nil || h.FD < 0 {
		return nil
	}
	fd := h.FD
	h.FD = -1
	if err := closeFD(fd); err != nil {
		return fmt.Errorf("close image fd %d: %w", fd, err)
	}
	return nil
}

// Unmap releases the heap mapping. Image inspection uses it; a booted runtime
// owns the heap until the process exits.
func (h *Handle) Unmap() error {
	if h == nil {
		return nil
	}
	return h.heap.Release()
}
