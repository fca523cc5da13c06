//go:build unix

package address

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestMap(t *testing.T) {
	r, err := Map(100, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Release()

	if r.Len() != 100 {
		t.Errorf("Len = %d, want 100", r.Len())
	}
	if uint64(r.Base())%uint64(unix.Getpagesize()) != 0 {
		t.Errorf("base %s not page aligned", r.Base())
	}
	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want zero", i, b)
		}
	}
	r.Fill(0xab)

	if err := r.Protect(unix.PROT_READ); err != nil {
		t.Fatalf("Protect: %v", err)
	}
	if got := r.Bytes()[99]; got != 0xab {
		t.Errorf("read after Protect = %#x", got)
	}
	if err := r.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func TestMapRejectsEmpty(t *testing.T) {
	if _, err := Map(0, unix.PROT_READ); err == nil {
		t.Errorf("Map(0) succeeded")
	}
}

func TestMapAllocator(t *testing.T) {
	r, err := MapAllocator{}.Allocate(4096 + 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer r.Release()
	r.Bytes()[4096] = 1
}
