//go:build unix

package image

import (
	"fmt"

	"github.com/tinyrange/maxboot/internal/address"
	"golang.org/x/sys/unix"
)

// FileLoader maps the heap of an image file privately into the process.
type FileLoader struct {
	// ABIVersion, if non-zero, must match the image header.
	ABIVersion uint32
	// NoExec maps the heap without execute permission.
	NoExec bool
}

func (l FileLoader) Load(path string) (*Handle, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("stat image %s: %w", path, err)
	}

	buf := make([]byte, HeaderSize)
	n, err := unix.Pread(fd, buf, 0)
	if err != nil {
		return nil, fmt.Errorf("read image header %s: %w", path, err)
	}
	hdr, err := DecodeHeader(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	if err := hdr.Validate(st.Size, unix.Getpagesize(), l.ABIVersion); err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}

	mem, err := unix.Mmap(fd, int64(hdr.HeapOffset), int(hdr.HeapSize), heapProt(l.NoExec), unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("map image heap %s: %w", path, err)
	}

	ok = true
	return &Handle{
		FD:     fd,
		Heap:   address.Of(mem),
		Header: hdr,
		Extent: hdr.HeapSize,
		heap:   address.NewRegion(mem, unix.Munmap),
	}, nil
}

func heapProt(noExec bool) int {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if !noExec {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
