package dos3

import (
	"fmt"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/internal/buf"
)

const (
	vtocTrack  = 17
	vtocSector = 0

	offCatTrack   = 0x01
	offCatSector  = 0x02
	offVersion    = 0x03
	offVolumeNum  = 0x06
	offMaxPairs   = 0x27
	offLastTrack  = 0x30
	offAllocDir   = 0x31
	offNumTracks  = 0x34
	offNumSectors = 0x35
	offBytesPerSec = 0x36
	offBitmap     = 0x38

	maxTSPairs = 122
)

// vtoc is the in-memory image of track 17 sector 0, plus the free-sector
// bitmap it carries. Callers mutate it and flush once per operation.
type vtoc struct {
	data [disk.SectorSize]byte
}

func readVTOC(dev *disk.ChunkAccess) (*vtoc, error) {
	v := &vtoc{}
	if err := dev.ReadSector(vtocTrack, vtocSector, v.data[:]); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *vtoc) flush(dev *disk.ChunkAccess) error {
	return dev.WriteSector(vtocTrack, vtocSector, v.data[:])
}

func (v *vtoc) volumeNum() uint8  { return v.data[offVolumeNum] }
func (v *vtoc) numTracks() uint32 { return uint32(v.data[offNumTracks]) }
func (v *vtoc) numSectors() uint32 {
	return uint32(v.data[offNumSectors])
}
func (v *vtoc) catTrack() uint32  { return uint32(v.data[offCatTrack]) }
func (v *vtoc) catSector() uint32 { return uint32(v.data[offCatSector]) }

// check validates the structural fields a probe relies on.
func (v *vtoc) check(dev *disk.ChunkAccess) error {
	if v.numTracks() != dev.Tracks() || v.numSectors() != dev.SectorsPerTrack() {
		return fmt.Errorf("%w: geometry %dx%d does not match device %dx%d",
			ErrBadVTOC, v.numTracks(), v.numSectors(), dev.Tracks(), dev.SectorsPerTrack())
	}
	if buf.U16LE(v.data[:], offBytesPerSec) != disk.SectorSize {
		return fmt.Errorf("%w: bytes per sector", ErrBadVTOC)
	}
	if v.catTrack() >= v.numTracks() || v.catSector() >= v.numSectors() {
		return fmt.Errorf("%w: catalog pointer %d/%d out of range", ErrBadVTOC, v.catTrack(), v.catSector())
	}
	if v.data[offMaxPairs] != maxTSPairs {
		return fmt.Errorf("%w: T/S pairs per list %d", ErrBadVTOC, v.data[offMaxPairs])
	}
	return nil
}

// bitmap layout: 4 bytes per track at offBitmap. Byte 0 holds sectors
// 15..8 in bits 7..0, byte 1 holds sectors 7..0. A set bit means free.
func (v *vtoc) bitFor(track, sector uint32) (idx int, mask byte) {
	base := offBitmap + int(track)*4
	if sector >= 8 {
		return base, 1 << (sector - 8)
	}
	return base + 1, 1 << sector
}

func (v *vtoc) isFree(track, sector uint32) bool {
	idx, mask := v.bitFor(track, sector)
	return v.data[idx]&mask != 0
}

func (v *vtoc) markFree(track, sector uint32) {
	idx, mask := v.bitFor(track, sector)
	v.data[idx] |= mask
}

func (v *vtoc) markUsed(track, sector uint32) {
	idx, mask := v.bitFor(track, sector)
	v.data[idx] &^= mask
}

// allocSector claims one free sector, scanning from the last-allocated
// track outward. Returns fs.ErrNoSpace via the caller when none is free.
func (v *vtoc) allocSector() (track, sector uint32, ok bool) {
	start := uint32(v.data[offLastTrack])
	if start >= v.numTracks() {
		start = vtocTrack
	}
	for i := uint32(0); i < v.numTracks(); i++ {
		t := (start + i) % v.numTracks()
		for s := v.numSectors(); s > 0; s-- {
			if v.isFree(t, s-1) {
				v.markUsed(t, s-1)
				v.data[offLastTrack] = byte(t)
				return t, s - 1, true
			}
		}
	}
	return 0, 0, false
}

// freeCount returns the number of free sectors.
func (v *vtoc) freeCount() int {
	n := 0
	for t := uint32(0); t < v.numTracks(); t++ {
		for s := uint32(0); s < v.numSectors(); s++ {
			if v.isFree(t, s) {
				n++
			}
		}
	}
	return n
}
