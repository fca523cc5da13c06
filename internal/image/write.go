package image

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/tinyrange/maxboot/internal/address"
)

// WithDefaults fills in a zero PageSize, WordSize and HeapOffset.
func (h Header) WithDefaults() Header {
	if h.PageSize == 0 {
		h.PageSize = DefaultPageAlign
	}
	if h.WordSize == 0 {
		h.WordSize = uint32(unsafe.Sizeof(uintptr(0)))
	}
	if h.HeapOffset == 0 {
		h.HeapOffset = address.AlignUp(HeaderSize, uint64(h.PageSize))
	}
	return h
}

// Size returns the total size of an image with header h.
func (h Header) Size() int64 {
	return int64(h.HeapOffset + h.HeapSize)
}

// Write emits an image with header h followed by h.HeapSize bytes read from
// heap. Defaults are applied first.
func Write(w io.Writer, h Header, heap io.Reader) error {
	h = h.WithDefaults()
	if h.HeapOffset < HeaderSize {
		return fmt.Errorf("heap offset %d overlaps header", h.HeapOffset)
	}

	prefix := make([]byte, h.HeapOffset)
	if err := h.Encode(prefix); err != nil {
		return err
	}
	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("write image header: %w", err)
	}
	if n, err := io.CopyN(w, heap, int64(h.HeapSize)); err != nil {
		return fmt.Errorf("write image heap (%d of %d bytes): %w", n, h.HeapSize, err)
	}
	return nil
}
