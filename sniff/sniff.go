// Package sniff identifies container formats from leading bytes, size
// heuristics and an optional filename extension hint. It decides which
// disk-image, filesystem or archive implementation to instantiate but never
// parses beyond the outermost header.
package sniff

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/internal/buf"
)

// Kind tags a recognized container format.
type Kind int

const (
	KindUnknown Kind = iota

	// KindSectorImage is a raw 5.25" sector image (.do/.po/.dsk).
	KindSectorImage

	// KindBlockImage is an unadorned block image (.hdv, large .po).
	KindBlockImage

	// KindNibble is a raw nibble track image (.nib).
	KindNibble

	// KindTwoIMG is a 2IMG-wrapped image.
	KindTwoIMG

	// KindBinary2 is a Binary II archive.
	KindBinary2

	// KindLBR is a CP/M LBR library.
	KindLBR

	// KindGzip is a gzip-wrapped single file.
	KindGzip
)

func (k Kind) String() string {
	switch k {
	case KindSectorImage:
		return "sector image"
	case KindBlockImage:
		return "block image"
	case KindNibble:
		return "nibble image"
	case KindTwoIMG:
		return "2IMG image"
	case KindBinary2:
		return "Binary II archive"
	case KindLBR:
		return "LBR library"
	case KindGzip:
		return "gzip file"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Result is an identification outcome. Order is a hint for sector images;
// OrderUnknown for formats where interleave does not apply.
type Result struct {
	Kind  Kind
	Order disk.SectorOrder
}

const (
	dos525ImageSize = 35 * 16 * disk.SectorSize // 143,360 bytes
	dos13ImageSize  = 35 * 13 * disk.SectorSize // 116,480 bytes
	nibImageSize    = 35 * 6656                 // 232,960 bytes
)

// Identify examines the container and returns the best-match format. The
// extension of name (may be empty) breaks ties that bytes alone cannot,
// which is exactly the .do/.po ambiguity: both are bare sector dumps.
func Identify(r io.ReaderAt, size int64, name string) Result {
	var head [32]byte
	n, _ := r.ReadAt(head[:], 0)
	h := head[:n]

	switch {
	case len(h) >= 2 && h[0] == 0x1F && h[1] == 0x8B:
		return Result{Kind: KindGzip}
	case len(h) >= 4 && string(h[:4]) == "2IMG":
		return Result{Kind: KindTwoIMG}
	case isBinary2(h, size):
		return Result{Kind: KindBinary2}
	case isLBR(h):
		return Result{Kind: KindLBR}
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case size == nibImageSize || ext == ".nib":
		if size == nibImageSize {
			return Result{Kind: KindNibble}
		}
	case size == dos525ImageSize:
		order := disk.OrderDOS
		if ext == ".po" {
			order = disk.OrderProDOS
		}
		return Result{Kind: KindSectorImage, Order: order}
	case size == dos13ImageSize:
		return Result{Kind: KindSectorImage, Order: disk.OrderPhysical}
	case size > 0 && size%disk.BlockSize == 0:
		return Result{Kind: KindBlockImage, Order: disk.OrderProDOS}
	}
	return Result{Kind: KindUnknown}
}

// isBinary2 checks the Binary II entry signature: ID bytes 0x0A 0x47 0x4C
// ("\nGL"), record type 0x02 at offset 18, and 128-byte granularity.
func isBinary2(h []byte, size int64) bool {
	if !buf.Has(h, 0, 19) || size == 0 || size%128 != 0 {
		return false
	}
	return h[0] == 0x0A && h[1] == 0x47 && h[2] == 0x4C && h[18] == 0x02
}

// isLBR checks the LBR control entry: status 0, an all-space name field and
// a zero index.
func isLBR(h []byte) bool {
	if !buf.Has(h, 0, 16) {
		return false
	}
	if h[0] != 0x00 {
		return false
	}
	for i := 1; i < 12; i++ {
		if h[i] != ' ' {
			return false
		}
	}
	return h[12] == 0 && h[13] == 0
}
