package pascal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/internal/buf"
)

const (
	dirStartBlock = 2
	dirBlocks     = 4
	firstDataBlock = dirStartBlock + dirBlocks

	entrySize  = 26
	maxFiles   = 77
	volNameLen = 7
	fileNameLen = 15

	offFirstBlock = 0x00
	offNextBlock  = 0x02
	offKind       = 0x04
	offName       = 0x06
	offLastBytes  = 0x16 // file entries
	offModDate    = 0x18 // file entries
	offTotalBlocks = 0x0E // volume entry
	offNumFiles    = 0x10 // volume entry
)

var (
	// ErrBadDirectory indicates a directory that fails sanity checks.
	ErrBadDirectory = errors.New("pascal: invalid directory")

	// ErrNoContiguousSpace indicates no single gap can hold the request.
	// Pascal files cannot fragment, so this can happen while free blocks
	// remain.
	ErrNoContiguousSpace = errors.New("pascal: no contiguous space")
)

// fileEnt is one parsed directory slot.
type fileEnt struct {
	first     uint32
	next      uint32 // exclusive
	kind      uint16
	name      string
	lastBytes uint16
	modDate   uint16
}

func (f *fileEnt) size() int64 {
	blocks := int64(f.next) - int64(f.first)
	if blocks <= 0 {
		return 0
	}
	return (blocks-1)*disk.BlockSize + int64(f.lastBytes)
}

// directory is the in-memory image of blocks 2-5 plus the parsed entries.
// Mutators edit the entry slice and serialize the whole image back.
type directory struct {
	volName     string
	totalBlocks uint32
	numFiles    int // recorded count, may disagree with len(files)
	files       []fileEnt
}

func readDirectory(dev *disk.ChunkAccess) (*directory, error) {
	raw := make([]byte, dirBlocks*disk.BlockSize)
	for i := 0; i < dirBlocks; i++ {
		if err := dev.ReadBlock(dirStartBlock+uint32(i), raw[i*disk.BlockSize:(i+1)*disk.BlockSize]); err != nil {
			return nil, err
		}
	}
	return parseDirectory(raw)
}

func parseDirectory(raw []byte) (*directory, error) {
	if buf.U16LE(raw, offFirstBlock) != 0 || buf.U16LE(raw, offNextBlock) != firstDataBlock {
		return nil, fmt.Errorf("%w: volume entry block range", ErrBadDirectory)
	}
	if buf.U16LE(raw, offKind) != 0 {
		return nil, fmt.Errorf("%w: volume entry kind", ErrBadDirectory)
	}
	n := int(raw[offName])
	if n < 1 || n > volNameLen {
		return nil, fmt.Errorf("%w: volume name length %d", ErrBadDirectory, n)
	}
	vn, ok := buf.Slice(raw, offName+1, n)
	if !ok {
		return nil, fmt.Errorf("%w: volume name out of range", ErrBadDirectory)
	}
	d := &directory{
		volName:     string(vn),
		totalBlocks: uint32(buf.U16LE(raw, offTotalBlocks)),
		numFiles:    int(buf.U16LE(raw, offNumFiles)),
	}
	// Slots end at the first never-used entry; the recorded count is
	// compared against what is actually present during scanning.
	for i := 1; i < len(raw)/entrySize; i++ {
		base := i * entrySize
		first := uint32(buf.U16LE(raw, base+offFirstBlock))
		if first == 0 {
			break
		}
		nl := int(raw[base+offName])
		if nl > fileNameLen {
			nl = fileNameLen
		}
		fn, ok := buf.Slice(raw, base+offName+1, nl)
		if !ok {
			return nil, fmt.Errorf("%w: slot %d name out of range", ErrBadDirectory, i)
		}
		d.files = append(d.files, fileEnt{
			first:     first,
			next:      uint32(buf.U16LE(raw, base+offNextBlock)),
			kind:      buf.U16LE(raw, base+offKind),
			name:      string(fn),
			lastBytes: buf.U16LE(raw, base+offLastBytes),
			modDate:   buf.U16LE(raw, base+offModDate),
		})
	}
	return d, nil
}

func (d *directory) flush(dev *disk.ChunkAccess) error {
	raw := make([]byte, dirBlocks*disk.BlockSize)
	buf.PutU16LE(raw, offNextBlock, firstDataBlock)
	raw[offName] = byte(len(d.volName))
	copy(raw[offName+1:], d.volName)
	buf.PutU16LE(raw, offTotalBlocks, uint16(d.totalBlocks))
	buf.PutU16LE(raw, offNumFiles, uint16(len(d.files)))
	d.numFiles = len(d.files)

	sort.Slice(d.files, func(i, j int) bool { return d.files[i].first < d.files[j].first })
	for i, f := range d.files {
		base := (i + 1) * entrySize
		buf.PutU16LE(raw, base+offFirstBlock, uint16(f.first))
		buf.PutU16LE(raw, base+offNextBlock, uint16(f.next))
		buf.PutU16LE(raw, base+offKind, f.kind)
		raw[base+offName] = byte(len(f.name))
		copy(raw[base+offName+1:], f.name)
		buf.PutU16LE(raw, base+offLastBytes, f.lastBytes)
		buf.PutU16LE(raw, base+offModDate, f.modDate)
	}
	for i := 0; i < dirBlocks; i++ {
		if err := dev.WriteBlock(dirStartBlock+uint32(i), raw[i*disk.BlockSize:(i+1)*disk.BlockSize]); err != nil {
			return err
		}
	}
	return nil
}

func (d *directory) byName(name string) *fileEnt {
	for i := range d.files {
		if d.files[i].name == name {
			return &d.files[i]
		}
	}
	return nil
}

func (d *directory) byFirst(first uint32) *fileEnt {
	for i := range d.files {
		if d.files[i].first == first {
			return &d.files[i]
		}
	}
	return nil
}

func (d *directory) remove(first uint32) bool {
	for i := range d.files {
		if d.files[i].first == first {
			d.files = append(d.files[:i], d.files[i+1:]...)
			return true
		}
	}
	return false
}

// gap describes a free run of blocks.
type gap struct {
	start uint32
	count uint32
}

// gaps returns the free runs between directory end, the (sorted) files and
// the end of the volume.
func (d *directory) gaps() []gap {
	sorted := make([]fileEnt, len(d.files))
	copy(sorted, d.files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].first < sorted[j].first })

	var out []gap
	pos := uint32(firstDataBlock)
	for _, f := range sorted {
		if f.first > pos {
			out = append(out, gap{pos, f.first - pos})
		}
		if f.next > pos {
			pos = f.next
		}
	}
	if d.totalBlocks > pos {
		out = append(out, gap{pos, d.totalBlocks - pos})
	}
	return out
}

// largestGap returns the biggest free run, or a zero gap.
func (d *directory) largestGap() gap {
	var best gap
	for _, g := range d.gaps() {
		if g.count > best.count {
			best = g
		}
	}
	return best
}

// gapLimit returns the first block after `first` claimed by another file,
// or the end of the volume. A file may grow up to this limit.
func (d *directory) gapLimit(first uint32) uint32 {
	limit := d.totalBlocks
	for _, f := range d.files {
		if f.first > first && f.first < limit {
			limit = f.first
		}
	}
	return limit
}
