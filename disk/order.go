package disk

import "fmt"

// SectorOrder identifies the interleave in which a 16-sector-per-track image
// file stores its sectors. The order is a property of the image file; the
// access layer translates between it and the addressing scheme the caller
// uses, on every read and write.
type SectorOrder int

const (
	// OrderUnknown means the order has not been determined. Sector and
	// block access on a track-geometry device require a concrete order.
	OrderUnknown SectorOrder = iota

	// OrderPhysical stores sectors in physical address order (raw dumps,
	// sector data recovered from nibble images).
	OrderPhysical

	// OrderDOS stores sectors in DOS 3.3 logical order (".do", ".dsk").
	OrderDOS

	// OrderProDOS stores 512-byte blocks sequentially (".po").
	OrderProDOS

	// OrderCPM stores sectors in CP/M 3:1 interleave order.
	OrderCPM
)

func (o SectorOrder) String() string {
	switch o {
	case OrderPhysical:
		return "physical"
	case OrderDOS:
		return "dos"
	case OrderProDOS:
		return "prodos"
	case OrderCPM:
		return "cpm"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Skew tables map a scheme's logical sector number to the physical sector
// that holds it on a 16-sector track. These are protocol constants of the
// historical formats; changing them breaks image compatibility.
var (
	physFromDOS = [16]uint8{0, 13, 11, 9, 7, 5, 3, 1, 14, 12, 10, 8, 6, 4, 2, 15}
	physFromPro = [16]uint8{0, 2, 4, 6, 8, 10, 12, 14, 1, 3, 5, 7, 9, 11, 13, 15}
	physFromCPM = [16]uint8{0, 3, 6, 9, 12, 15, 2, 5, 8, 11, 14, 1, 4, 7, 10, 13}
	physIdent   = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
)

func (o SectorOrder) toPhys() (*[16]uint8, bool) {
	switch o {
	case OrderPhysical:
		return &physIdent, true
	case OrderDOS:
		return &physFromDOS, true
	case OrderProDOS:
		return &physFromPro, true
	case OrderCPM:
		return &physFromCPM, true
	default:
		return nil, false
	}
}

func invert(t *[16]uint8) [16]uint8 {
	var inv [16]uint8
	for i, p := range t {
		inv[p] = uint8(i)
	}
	return inv
}

// LogicalSector returns scheme order's logical number for physical sector
// phys on a 16-sector track; the inverse of the scheme's skew table.
func LogicalSector(order SectorOrder, phys uint32) (uint32, error) {
	if phys >= sectorsPerTrack16 {
		return 0, fmt.Errorf("disk: sector %d outside 16-sector track", phys)
	}
	t, ok := order.toPhys()
	if !ok {
		return 0, fmt.Errorf("disk: order %s cannot be translated", order)
	}
	return uint32(invert(t)[phys]), nil
}

// storedSector resolves the in-file sector index for logical sector s of
// scheme req on an image stored in order img.
//
// A file in order O stores, at index i, the sector whose physical address is
// O.toPhys(i). A request in scheme R for logical sector s names physical
// sector R.toPhys(s). The stored index is therefore inv(O.toPhys)(R.toPhys(s)).
func storedSector(img, req SectorOrder, s uint32) (uint32, error) {
	if s >= sectorsPerTrack16 {
		return 0, fmt.Errorf("disk: sector %d outside 16-sector track", s)
	}
	if img == req {
		return s, nil
	}
	imgT, ok := img.toPhys()
	if !ok {
		return 0, fmt.Errorf("disk: image order %s cannot be translated", img)
	}
	reqT, ok := req.toPhys()
	if !ok {
		return 0, fmt.Errorf("disk: requested order %s cannot be translated", req)
	}
	inv := invert(imgT)
	return uint32(inv[reqT[s]]), nil
}
