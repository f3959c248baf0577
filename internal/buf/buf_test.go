package buf

import (
	"math"
	"testing"
)

func TestU24LE(t *testing.T) {
	b := []byte{0x34, 0x12, 0x01}
	if got := U24LE(b, 0); got != 0x011234 {
		t.Fatalf("U24LE = 0x%X, want 0x011234", got)
	}
	if got := U24LE(b, 1); got != 0 {
		t.Fatalf("short read should return 0, got 0x%X", got)
	}
}

func TestPutU24LERoundTrip(t *testing.T) {
	b := make([]byte, 3)
	PutU24LE(b, 0, 0xABCDEF)
	if got := U24LE(b, 0); got != 0xABCDEF {
		t.Fatalf("round trip = 0x%X", got)
	}
}

func TestEndianPairs(t *testing.T) {
	b := make([]byte, 8)
	PutU16LE(b, 0, 0x1234)
	PutU16BE(b, 2, 0x1234)
	PutU32LE(b, 4, 0xDEADBEEF)
	if U16LE(b, 0) != 0x1234 || U16BE(b, 2) != 0x1234 {
		t.Fatalf("u16 mismatch: % X", b)
	}
	if U32LE(b, 4) != 0xDEADBEEF {
		t.Fatalf("u32 mismatch: % X", b)
	}
	// LE and BE must actually differ in byte layout.
	if b[0] == b[2] && b[1] == b[3] {
		t.Fatalf("LE and BE encodings identical: % X", b)
	}
}

func TestPutOutOfBoundsIsDropped(t *testing.T) {
	b := make([]byte, 2)
	PutU32LE(b, 0, 1)
	PutU16LE(b, 1, 1)
	if b[0] != 0 || b[1] != 0 {
		t.Fatalf("out-of-bounds put modified buffer: % X", b)
	}
}

func TestCheckListBounds(t *testing.T) {
	if _, err := CheckListBounds(100, 10, 10, 9); err != nil {
		t.Fatalf("valid bounds rejected: %v", err)
	}
	if _, err := CheckListBounds(100, 10, 10, 10); err == nil {
		t.Fatal("overrun accepted")
	}
	if _, err := CheckListBounds(100, 0, math.MaxInt, 2); err == nil {
		t.Fatal("overflow accepted")
	}
	if _, err := CheckListBounds(100, -1, 1, 1); err == nil {
		t.Fatal("negative offset accepted")
	}
}

func TestSlice(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	s, ok := Slice(b, 1, 2)
	if !ok || len(s) != 2 || s[0] != 2 {
		t.Fatalf("Slice(1,2) = %v, %v", s, ok)
	}
	if _, ok := Slice(b, 3, 2); ok {
		t.Fatal("overrun slice accepted")
	}
	if !Has(b, 0, 4) || Has(b, 0, 5) {
		t.Fatal("Has bounds wrong")
	}
}
