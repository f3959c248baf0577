// Package buf contains bounds-checked helpers for endian-safe decoding
// and encoding of on-disk structures.
//
// Legacy Apple container formats are little-endian almost everywhere
// (ProDOS, DOS 3.3, Binary II, 2IMG); partition maps and a few archive
// headers are big-endian. Both byte orders are provided, always with an
// explicit suffix so call sites read unambiguously.
package buf

import "encoding/binary"

// U16LE reads a little-endian uint16 at off. Returns 0 when b is too short.
func U16LE(b []byte, off int) uint16 {
	if off < 0 || off+2 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint16(b[off:])
}

// U24LE reads a 3-byte little-endian value at off. Returns 0 when b is too
// short. ProDOS file lengths and Binary II data sizes are 24-bit fields.
func U24LE(b []byte, off int) uint32 {
	if off < 0 || off+3 > len(b) {
		return 0
	}
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16
}

// U32LE reads a little-endian uint32 at off. Returns 0 when b is too short.
func U32LE(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}

// U16BE reads a big-endian uint16 at off. Returns 0 when b is too short.
func U16BE(b []byte, off int) uint16 {
	if off < 0 || off+2 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint16(b[off:])
}

// U32BE reads a big-endian uint32 at off. Returns 0 when b is too short.
func U32BE(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint32(b[off:])
}

// PutU16LE writes a little-endian uint16 at off. Out-of-bounds writes are
// silently dropped; callers validate bounds before assembling structures.
func PutU16LE(b []byte, off int, v uint16) {
	if off < 0 || off+2 > len(b) {
		return
	}
	binary.LittleEndian.PutUint16(b[off:], v)
}

// PutU24LE writes a 3-byte little-endian value at off.
func PutU24LE(b []byte, off int, v uint32) {
	if off < 0 || off+3 > len(b) {
		return
	}
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
}

// PutU32LE writes a little-endian uint32 at off.
func PutU32LE(b []byte, off int, v uint32) {
	if off < 0 || off+4 > len(b) {
		return
	}
	binary.LittleEndian.PutUint32(b[off:], v)
}

// PutU16BE writes a big-endian uint16 at off.
func PutU16BE(b []byte, off int, v uint16) {
	if off < 0 || off+2 > len(b) {
		return
	}
	binary.BigEndian.PutUint16(b[off:], v)
}

// PutU32BE writes a big-endian uint32 at off.
func PutU32BE(b []byte, off int, v uint32) {
	if off < 0 || off+4 > len(b) {
		return
	}
	binary.BigEndian.PutUint32(b[off:], v)
}
