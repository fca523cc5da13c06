// Package image reads boot images: a fixed header followed by the pre-built
// heap of the managed runtime.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/mod/semver"
)

const (
	// HeaderSize is the encoded size of Header.
	HeaderSize = 96

	// DefaultPageAlign is the heap alignment used by Write. It is a multiple
	// of every page size the launcher runs on.
	DefaultPageAlign = 64 << 10

	producerLen = 32
)

// Magic identifies a boot image.
var Magic = [8]byte{'M', 'A', 'X', 'I', 'N', 'E', 'V', 'M'}

var (
	ErrBadMagic        = errors.New("bad image magic")
	ErrABIMismatch     = errors.New("entry ABI version mismatch")
	ErrWordSize        = errors.New("image word size does not match host")
	ErrHeapBounds      = errors.New("heap outside image file")
	ErrHeapAlignment   = errors.New("heap offset not page aligned")
	ErrEntryOffset     = errors.New("entry offset outside heap")
	ErrProducerVersion = errors.New("unsupported image producer version")
	ErrTruncated       = errors.New("image header truncated")
)

// Header is the fixed record at the start of a boot image.
type Header struct {
	ABIVersion uint32 `yaml:"abiVersion"`
	WordSize   uint32 `yaml:"wordSize"`
	PageSize   uint32 `yaml:"pageSize"`
	Flags      uint32 `yaml:"flags"`

	VMRunMethodOffset  uint64 `yaml:"vmRunMethodOffset"`
	VMThreadLocalsSize uint64 `yaml:"vmThreadLocalsSize"`
	AuxiliarySpaceSize uint64 `yaml:"auxiliarySpaceSize"`

	HeapOffset uint64 `yaml:"heapOffset"`
	HeapSize   uint64 `yaml:"heapSize"`

	// Producer is the semver of the tool that wrote the image.
	Producer string `yaml:"producer"`
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if !bytes.Equal(b[0:8], Magic[:]) {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, b[0:8])
	}
	le := binary.LittleEndian
	h := Header{
		ABIVersion:         le.Uint32(b[8:12]),
		WordSize:           le.Uint32(b[12:16]),
		PageSize:           le.Uint32(b[16:20]),
		Flags:              le.Uint32(b[20:24]),
		VMRunMethodOffset:  le.Uint64(b[24:32]),
		VMThreadLocalsSize: le.Uint64(b[32:40]),
		AuxiliarySpaceSize: le.Uint64(b[40:48]),
		HeapOffset:         le.Uint64(b[48:56]),
		HeapSize:           le.Uint64(b[56:64]),
		Producer:           strings.TrimRight(string(b[64:64+producerLen]), "\x00"),
	}
	return h, nil
}

// Encode writes h into the first HeaderSize bytes of b.
func (h Header) Encode(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if len(h.Producer) > producerLen {
		return fmt.Errorf("producer version %q longer than %d bytes", h.Producer, producerLen)
	}
	le := binary.LittleEndian
	copy(b[0:8], Magic[:])
	le.PutUint32(b[8:12], h.ABIVersion)
	le.PutUint32(b[12:16], h.WordSize)
	le.PutUint32(b[16:20], h.PageSize)
	le.PutUint32(b[20:24], h.Flags)
	le.PutUint64(b[24:32], h.VMRunMethodOffset)
	le.PutUint64(b[32:40], h.VMThreadLocalsSize)
	le.PutUint64(b[40:48], h.AuxiliarySpaceSize)
	le.PutUint64(b[48:56], h.HeapOffset)
	le.PutUint64(b[56:64], h.HeapSize)
	clear(b[64 : 64+producerLen])
	copy(b[64:], h.Producer)
	return nil
}

// Validate checks h against the host and the size of the image it came from.
// abi of zero skips the ABI check.
func (h Header) Validate(imageSize int64, pageSize int, abi uint32) error {
	if abi != 0 && h.ABIVersion != abi {
		return fmt.Errorf("%w: image %d, launcher %d", ErrABIMismatch, h.ABIVersion, abi)
	}
	if uint64(h.WordSize) != uint64(unsafe.Sizeof(uintptr(0))) {
		return fmt.Errorf("%w: image %d, host %d", ErrWordSize, h.WordSize, unsafe.Sizeof(uintptr(0)))
	}
	if h.HeapOffset < HeaderSize || h.HeapSize == 0 ||
		h.HeapOffset+h.HeapSize < h.HeapOffset ||
		imageSize < 0 || h.HeapOffset+h.HeapSize > uint64(imageSize) {
		return fmt.Errorf("%w: heap [%d, +%d), file size %d", ErrHeapBounds, h.HeapOffset, h.HeapSize, imageSize)
	}
	if pageSize > 0 && h.HeapOffset%uint64(pageSize) != 0 {
		return fmt.Errorf("%w: offset %d, page size %d", ErrHeapAlignment, h.HeapOffset, pageSize)
	}
	if h.VMRunMethodOffset >= h.HeapSize {
		return fmt.Errorf("%w: %#x >= %#x", ErrEntryOffset, h.VMRunMethodOffset, h.HeapSize)
	}
	if !semver.IsValid(h.Producer) || semver.Major(h.Producer) != SupportedProducerMajor {
		return fmt.Errorf("%w: %q", ErrProducerVersion, h.Producer)
	}
	return nil
}

// SupportedProducerMajor is the image producer major version this launcher
// understands.
const SupportedProducerMajor = "v1"

// AuxiliarySize returns the auxiliary space size with reserve bytes added.
func (h Header) AuxiliarySize(reserve uint64) uint64 {
	return h.AuxiliarySpaceSize + reserve
}
