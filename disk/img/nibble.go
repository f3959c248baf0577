package img

import (
	"fmt"

	"github.com/joshuapare/diskkit/disk"
)

const (
	// NibTrackLen is the raw byte length of one nibblized track.
	NibTrackLen = 6656

	// NibTracks is the track count of a 5.25" nibble image.
	NibTracks = 35

	nibSectors = 16
	nibVolume  = 254

	gap1Len = 64
	gap2Len = 6
	gap3Len = 43
)

// SectorRef names one sector by track and physical sector number.
type SectorRef struct {
	Track    uint32
	Physical uint32
}

// NibbleImage presents a nibblized disk image as a flat sector container:
// reads and writes address the decoded 256-byte sectors in physical order,
// while the raw GCR bytes stay in the source. Tracks touched by a write are
// re-nibblized on Flush; untouched tracks keep their original bytes down to
// the last sync nibble.
type NibbleImage struct {
	src   disk.Container
	dec   []byte // decoded sectors, physical order
	found [NibTracks]uint16 // bitmask of decodable sectors per track
	dirty [NibTracks]bool
	bad   []SectorRef
}

// OpenNibble decodes every track of a raw ".nib" container. Sectors whose
// address or data field cannot be located or fails its checksum are
// recorded as bad; their decoded content reads as zeros.
func OpenNibble(src disk.Container) (*NibbleImage, error) {
	if src.Size() != NibTracks*NibTrackLen {
		return nil, fmt.Errorf("img: nibble image size %d, want %d", src.Size(), NibTracks*NibTrackLen)
	}
	n := &NibbleImage{
		src: src,
		dec: make([]byte, NibTracks*nibSectors*disk.SectorSize),
	}
	raw := make([]byte, NibTrackLen)
	for t := uint32(0); t < NibTracks; t++ {
		if _, err := src.ReadAt(raw, int64(t)*NibTrackLen); err != nil {
			return nil, err
		}
		n.found[t] = n.decodeTrack(t, raw)
		for s := uint32(0); s < nibSectors; s++ {
			if n.found[t]&(1<<s) == 0 {
				n.bad = append(n.bad, SectorRef{Track: t, Physical: s})
			}
		}
	}
	return n, nil
}

// decodeTrack scans one track's nibbles for address/data field pairs and
// fills the decoded buffer. Returns the bitmask of sectors recovered.
func (n *NibbleImage) decodeTrack(t uint32, raw []byte) uint16 {
	var mask uint16
	i := 0
	for i+14 <= len(raw) {
		if raw[i] != addrProlog0 || raw[i+1] != addrProlog1 || raw[i+2] != addrProlog2 {
			i++
			continue
		}
		vol := dec44(raw[i+3], raw[i+4])
		trk := dec44(raw[i+5], raw[i+6])
		sec := dec44(raw[i+7], raw[i+8])
		sum := dec44(raw[i+9], raw[i+10])
		i += 14
		if uint32(trk) != t || sec >= nibSectors || vol^trk^sec != sum {
			continue
		}
		// Data field prologue follows within the sync gap.
		j := i
		limit := i + 48
		if limit > len(raw)-3 {
			limit = len(raw) - 3
		}
		for ; j < limit; j++ {
			if raw[j] == addrProlog0 && raw[j+1] == addrProlog1 && raw[j+2] == dataProlog2 {
				break
			}
		}
		if j >= limit || j+3+sectorDataNibs+1+2 > len(raw) {
			continue
		}
		var nibs [sectorDataNibs + 1]byte
		copy(nibs[:], raw[j+3:])
		var data [256]byte
		if !decode62(&nibs, &data) {
			i = j + 3
			continue
		}
		tail := j + 3 + sectorDataNibs + 1
		if raw[tail] != epilog0 || raw[tail+1] != epilog1 {
			i = j + 3
			continue
		}
		copy(n.dec[n.sectorOff(t, uint32(sec)):], data[:])
		mask |= 1 << sec
		i = tail + 2
	}
	return mask
}

func (n *NibbleImage) sectorOff(t, physSector uint32) int {
	return int(t*nibSectors+physSector) * disk.SectorSize
}

// encodeTrack nibblizes the decoded sectors of track t.
func (n *NibbleImage) encodeTrack(t uint32) []byte {
	out := make([]byte, 0, NibTrackLen)
	for i := 0; i < gap1Len; i++ {
		out = append(out, 0xFF)
	}
	for s := uint32(0); s < nibSectors; s++ {
		out = append(out, addrProlog0, addrProlog1, addrProlog2)
		for _, b := range []byte{nibVolume, byte(t), byte(s), nibVolume ^ byte(t) ^ byte(s)} {
			hi, lo := enc44(b)
			out = append(out, hi, lo)
		}
		out = append(out, epilog0, epilog1, 0xEB)
		for i := 0; i < gap2Len; i++ {
			out = append(out, 0xFF)
		}
		var data [256]byte
		copy(data[:], n.dec[n.sectorOff(t, s):])
		var nibs [sectorDataNibs + 1]byte
		encode62(&data, &nibs)
		out = append(out, addrProlog0, addrProlog1, dataProlog2)
		out = append(out, nibs[:]...)
		out = append(out, epilog0, epilog1, 0xEB)
		for i := 0; i < gap3Len; i++ {
			out = append(out, 0xFF)
		}
	}
	return out
}

// Size implements disk.Container over the decoded sector view.
func (n *NibbleImage) Size() int64 { return int64(len(n.dec)) }

func (n *NibbleImage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= n.Size() {
		return 0, fmt.Errorf("img: read at %d outside nibble image", off)
	}
	return copy(p, n.dec[off:]), nil
}

// WriteAt updates the decoded view and marks every touched track dirty.
func (n *NibbleImage) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > n.Size() {
		return 0, fmt.Errorf("img: write at %d outside nibble image", off)
	}
	copy(n.dec[off:], p)
	trackBytes := int64(nibSectors * disk.SectorSize)
	for t := off / trackBytes; t <= (off+int64(len(p))-1)/trackBytes; t++ {
		n.dirty[t] = true
	}
	return len(p), nil
}

// Dirty reports whether any track has been modified since the last Flush.
func (n *NibbleImage) Dirty() bool {
	for _, d := range n.dirty {
		if d {
			return true
		}
	}
	return false
}

// BadSectors lists the sectors that could not be decoded.
func (n *NibbleImage) BadSectors() []SectorRef { return n.bad }

// Flush re-nibblizes dirty tracks into the source container. Clean tracks
// are left byte-identical.
func (n *NibbleImage) Flush() error {
	for t := uint32(0); t < NibTracks; t++ {
		if !n.dirty[t] {
			continue
		}
		if _, err := n.src.WriteAt(n.encodeTrack(t), int64(t)*NibTrackLen); err != nil {
			return err
		}
		n.dirty[t] = false
		n.found[t] = 1<<nibSectors - 1
	}
	return nil
}
