package pascal

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
	"github.com/joshuapare/diskkit/internal/nameconv"
)

// File kinds stored in the directory entry.
const (
	KindCode = 2
	KindText = 3
	KindData = 5
)

// pasEntry is the per-entry state on fs.Entry.Priv. Entries are identified
// by their first block, which is unique on a valid volume.
type pasEntry struct {
	first uint32
}

type ops struct{}

func init() {
	fs.RegisterProbe("pascal", func(dev *disk.ChunkAccess) (fs.Ops, bool) {
		if dev.NumBlocks() < firstDataBlock {
			return nil, false
		}
		d, err := readDirectory(dev)
		if err != nil {
			return nil, false
		}
		if d.totalBlocks != dev.NumBlocks() || d.numFiles > maxFiles {
			return nil, false
		}
		return ops{}, true
	})
}

// NewOps returns the format hooks directly, for callers that bypass probing.
func NewOps() fs.Ops { return ops{} }

func (ops) FormatName() string { return "pascal" }

const badNameChars = "$=?,[#: "

func validName(name string, maxLen int) error {
	if len(name) == 0 || len(name) > maxLen {
		return fmt.Errorf("name must be 1-%d characters", maxLen)
	}
	if !nameconv.IsPrintableASCII(name) {
		return fmt.Errorf("name must be printable ASCII")
	}
	if strings.ContainsAny(name, badNameChars) {
		return fmt.Errorf("name must not contain %q", badNameChars)
	}
	return nil
}

func (ops) ValidVolumeName(name string) error { return validName(name, volNameLen) }
func (ops) ValidFileName(name string) error   { return validName(name, fileNameLen) }

// Format writes an empty directory. bootable is accepted but block 0/1 boot
// code is not installed.
func (ops) Format(dev *disk.ChunkAccess, volName string, bootable bool) error {
	d := &directory{
		volName:     strings.ToUpper(volName),
		totalBlocks: dev.NumBlocks(),
	}
	return d.flush(dev)
}

// Load parses the flat directory. A block range that escapes the volume or
// collides with the directory flags the entry Damaged; the recorded file
// count is surfaced through RecordedChildCount for the driver's asymmetric
// comparison.
func (ops) Load(dev *disk.ChunkAccess, sc *fs.Scan) (*fs.Entry, error) {
	d, err := readDirectory(dev)
	if err != nil {
		return nil, err
	}
	root := fs.NewVolumeEntry(d.volName)
	root.SetRecordedChildCount(d.numFiles)
	for u := uint32(dirStartBlock); u < firstDataBlock; u++ {
		sc.VisitUnit(u)
	}
	for i := range d.files {
		f := &d.files[i]
		e := fs.NewEntry(f.name, false)
		e.SetFileType(uint8(f.kind))
		e.ClearAttrsDirty()
		e.Priv = &pasEntry{first: f.first}
		if f.first < firstDataBlock || f.next <= f.first || f.next > d.totalBlocks {
			e.MarkDamaged()
			sc.Damaged(d.volName+"/"+f.name, "block range %d-%d out of bounds", f.first, f.next)
		} else {
			e.SetExtents([]fs.Extent{{Start: f.first, Count: f.next - f.first}})
			e.SetDataLen(f.size())
			for u := f.first; u < f.next; u++ {
				sc.VisitUnit(u)
			}
			if f.lastBytes > disk.BlockSize {
				e.MarkDubious()
				sc.Dubious(d.volName+"/"+f.name, "last block holds %d bytes", f.lastBytes)
			}
		}
		root.Attach(e)
	}
	return root, nil
}

// Create places the file at the start of the largest free gap, sized at one
// block and empty. It grows into the gap as it is written.
func (ops) Create(dev *disk.ChunkAccess, parent *fs.Entry, name string, dir bool) (*fs.Entry, error) {
	if dir {
		return nil, fs.ErrNotDirectory
	}
	d, err := readDirectory(dev)
	if err != nil {
		return nil, err
	}
	if len(d.files) >= maxFiles {
		return nil, fs.ErrNoSpace
	}
	g := d.largestGap()
	if g.count == 0 {
		return nil, ErrNoContiguousSpace
	}
	f := fileEnt{
		first:   g.start,
		next:    g.start + 1,
		kind:    KindData,
		name:    name,
		modDate: encodeDate(time.Now()),
	}
	d.files = append(d.files, f)
	if err := d.flush(dev); err != nil {
		return nil, err
	}
	e := fs.NewEntry(name, false)
	e.SetFileType(KindData)
	e.ClearAttrsDirty()
	e.Priv = &pasEntry{first: f.first}
	e.SetExtents([]fs.Extent{{Start: f.first, Count: 1}})
	return e, nil
}

// Delete drops the directory slot; the block range simply becomes a gap.
func (ops) Delete(dev *disk.ChunkAccess, e *fs.Entry) error {
	pe := e.Priv.(*pasEntry)
	d, err := readDirectory(dev)
	if err != nil {
		return err
	}
	if !d.remove(pe.first) {
		return fs.ErrEntryNotFound
	}
	return d.flush(dev)
}

func (ops) Rename(dev *disk.ChunkAccess, e *fs.Entry, newName string) error {
	pe := e.Priv.(*pasEntry)
	d, err := readDirectory(dev)
	if err != nil {
		return err
	}
	if other := d.byName(newName); other != nil && other.first != pe.first {
		return fs.ErrDuplicateName
	}
	f := d.byFirst(pe.first)
	if f == nil {
		return fs.ErrEntryNotFound
	}
	f.name = newName
	return d.flush(dev)
}

func (ops) SaveAttrs(dev *disk.ChunkAccess, e *fs.Entry) error {
	pe := e.Priv.(*pasEntry)
	d, err := readDirectory(dev)
	if err != nil {
		return err
	}
	f := d.byFirst(pe.first)
	if f == nil {
		return fs.ErrEntryNotFound
	}
	f.kind = uint16(e.FileType())
	f.modDate = encodeDate(time.Now())
	return d.flush(dev)
}

func (ops) OpenFork(dev *disk.ChunkAccess, e *fs.Entry, raw bool) (fs.Fork, error) {
	return newBlockFork(dev, e)
}

// FreeRanges enumerates the gaps, in blocks. Implements fs.FreeMapper.
func (ops) FreeRanges(dev *disk.ChunkAccess) []fs.Extent {
	d, err := readDirectory(dev)
	if err != nil {
		return nil
	}
	var out []fs.Extent
	for _, g := range d.gaps() {
		out = append(out, fs.Extent{Start: g.start, Count: g.count})
	}
	return out
}

// encodeDate packs a date the Pascal way: month in bits 0-3, day in bits
// 4-8, two-digit year in bits 9-15.
func encodeDate(t time.Time) uint16 {
	y, m, day := t.Date()
	return uint16(m)&0xF | uint16(day&0x1F)<<4 | uint16(y%100)<<9
}
