package address

import (
	"errors"
	"testing"
)

// pinned holds test buffers whose addresses are taken, so they live on the
// heap and cannot move with the goroutine stack.
var pinned [][]byte

func heapBuffer(b []byte) []byte {
	pinned = append(pinned, b)
	return b
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{7, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{100, 1, 100},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestAlignUpRejectsNonPowerOfTwo(t *testing.T) {
	for _, align := range []uint64{0, 3, 12} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("AlignUp(1, %d) did not panic", align)
				}
			}()
			AlignUp(1, align)
		}()
	}
}

func TestAddressArithmetic(t *testing.T) {
	a := Address(0x1003)
	if got := a.WordAligned(); uint64(got)%WordSize != 0 || got < a || uint64(got-a) >= WordSize {
		t.Errorf("WordAligned(%s) = %s", a, got)
	}
	if got := a.Add(0x10); got != 0x1013 {
		t.Errorf("Add = %s, want 0x1013", got)
	}
	if got := Address(0x1000).Offset(0x1010); got != -16 {
		t.Errorf("Offset = %d, want -16", got)
	}
	if got := a.String(); got != "0x1003" {
		t.Errorf("String = %q", got)
	}
	if !Address(0).IsZero() || a.IsZero() {
		t.Errorf("IsZero wrong")
	}
	if Of(nil) != 0 {
		t.Errorf("Of(nil) != 0")
	}
}

func TestRegionWindow(t *testing.T) {
	r := NewRegion(heapBuffer(make([]byte, 64)), nil)
	base := r.Base()

	w, err := r.Window(base.Add(8), 16)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(w) != 16 || cap(w) != 16 || Of(w) != base.Add(8) {
		t.Errorf("window len %d cap %d at %s", len(w), cap(w), Of(w))
	}

	for _, bad := range []struct {
		a Address
		n uint64
	}{
		{base.Add(60), 8},
		{base - 1, 1},
		{base.Add(64), 1},
	} {
		if _, err := r.Window(bad.a, bad.n); err == nil {
			t.Errorf("Window(%s, %d) succeeded", bad.a, bad.n)
		}
	}
	if !r.Contains(base) || !r.Contains(base.Add(63)) || r.Contains(base.Add(64)) {
		t.Errorf("Contains wrong at region edges")
	}
	if r.Base() != base {
		t.Errorf("region base moved from %s to %s", base, r.Base())
	}
}

func TestRegionFillAndRelease(t *testing.T) {
	released := 0
	r := NewRegion(heapBuffer(make([]byte, 10)), func([]byte) error {
		released++
		return errors.New("unmap failed")
	})
	r.Fill(0x01)
	for i, b := range r.Bytes() {
		if b != 0x01 {
			t.Fatalf("byte %d = %#x after Fill", i, b)
		}
	}
	r.Fill(0)
	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %#x after clear", i, b)
		}
	}

	if err := r.Release(); err == nil {
		t.Errorf("Release error lost")
	}
	if err := r.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if released != 1 {
		t.Errorf("release called %d times, want 1", released)
	}
	if r.Len() != 0 || !r.Base().IsZero() {
		t.Errorf("released region still has memory")
	}

	var nilRegion *Region
	if nilRegion.Len() != 0 || nilRegion.Bytes() != nil || nilRegion.Release() != nil {
		t.Errorf("nil region not empty")
	}
}

func TestCString(t *testing.T) {
	buf := heapBuffer([]byte("maxine\x00garbage"))
	if got := CString(Of(buf)); got != "maxine" {
		t.Errorf("CString = %q", got)
	}
	if got := CString(0); got != "" {
		t.Errorf("CString(0) = %q", got)
	}
}
