package dos3

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
	"github.com/joshuapare/diskkit/internal/buf"
	"github.com/joshuapare/diskkit/internal/nameconv"
)

const (
	catEntryBase = 0x0B
	catEntrySize = 35
	catEntriesPerSector = 7

	offEntTSTrack  = 0x00
	offEntTSSector = 0x01
	offEntType     = 0x02
	offEntName     = 0x03
	offEntSectors  = 0x21

	nameLen = 30

	entDeleted = 0xFF

	typeLocked = 0x80

	offTSNext       = 0x01
	offTSNextSector = 0x02
	offTSFirstIndex = 0x05
	offTSPairs      = 0x0C
)

// dosEntry is the per-entry state the format keeps on fs.Entry.Priv: where
// the catalog slot lives and where the first T/S list is.
type dosEntry struct {
	catTrack  uint32
	catSector uint32
	slot      int
	tsTrack   uint32
	tsSector  uint32
	sectors   int // recorded sector count from the catalog
}

type ops struct{}

func init() {
	fs.RegisterProbe("dos3", func(dev *disk.ChunkAccess) (fs.Ops, bool) {
		if dev.Tracks() == 0 || dev.SectorsPerTrack() != 16 {
			return nil, false
		}
		v, err := readVTOC(dev)
		if err != nil || v.check(dev) != nil {
			return nil, false
		}
		return ops{}, true
	})
}

// NewOps returns the format hooks directly, for callers that bypass probing.
func NewOps() fs.Ops { return ops{} }

func (ops) FormatName() string { return "dos3" }

// ValidVolumeName accepts a DOS volume number, 1-254, in decimal.
func (ops) ValidVolumeName(name string) error {
	n, err := strconv.Atoi(name)
	if err != nil || n < 1 || n > 254 {
		return fmt.Errorf("volume name must be a number 1-254")
	}
	return nil
}

// ValidFileName enforces catalog rules: 1-30 printable ASCII characters,
// starting with a letter, no commas.
func (ops) ValidFileName(name string) error {
	if len(name) == 0 || len(name) > nameLen {
		return fmt.Errorf("file name must be 1-%d characters", nameLen)
	}
	if !nameconv.IsPrintableASCII(name) {
		return fmt.Errorf("file name must be printable ASCII")
	}
	first := name[0]
	if (first < 'A' || first > 'Z') && (first < 'a' || first > 'z') {
		return fmt.Errorf("file name must start with a letter")
	}
	if strings.ContainsRune(name, ',') {
		return fmt.Errorf("file name must not contain a comma")
	}
	return nil
}

func unit(dev *disk.ChunkAccess, track, sector uint32) uint32 {
	return track*dev.SectorsPerTrack() + sector
}

func validTS(dev *disk.ChunkAccess, track, sector uint32) bool {
	return track < dev.Tracks() && sector < dev.SectorsPerTrack()
}

// Format lays down a VTOC and an empty catalog chain on track 17. Track 0
// stays reserved; bootable additionally reserves tracks 1 and 2 for the
// DOS image.
func (ops) Format(dev *disk.ChunkAccess, volName string, bootable bool) error {
	n, _ := strconv.Atoi(volName)
	v := &vtoc{}
	v.data[offCatTrack] = vtocTrack
	v.data[offCatSector] = byte(dev.SectorsPerTrack() - 1)
	v.data[offVersion] = 3
	v.data[offVolumeNum] = byte(n)
	v.data[offMaxPairs] = maxTSPairs
	v.data[offLastTrack] = vtocTrack + 1
	v.data[offAllocDir] = 1
	v.data[offNumTracks] = byte(dev.Tracks())
	v.data[offNumSectors] = byte(dev.SectorsPerTrack())
	buf.PutU16LE(v.data[:], offBytesPerSec, disk.SectorSize)

	reserved := uint32(1)
	if bootable {
		reserved = 3
	}
	for t := uint32(0); t < dev.Tracks(); t++ {
		if t < reserved || t == vtocTrack {
			continue
		}
		for s := uint32(0); s < dev.SectorsPerTrack(); s++ {
			v.markFree(t, s)
		}
	}
	if err := v.flush(dev); err != nil {
		return err
	}

	// Catalog chain: track 17 sector 15 down to sector 1, each linking to
	// the next lower, the last terminating at 0/0.
	sec := make([]byte, disk.SectorSize)
	for s := dev.SectorsPerTrack() - 1; s >= 1; s-- {
		for i := range sec {
			sec[i] = 0
		}
		if s > 1 {
			sec[offTSNext] = vtocTrack
			sec[offTSNextSector] = byte(s - 1)
		}
		if err := dev.WriteSector(vtocTrack, s, sec); err != nil {
			return err
		}
	}
	return nil
}

// Load walks the catalog chain and every file's T/S lists. Structural
// problems are reported through sc: a bad pointer or a T/S cycle flags the
// file Damaged, a recorded sector count below reality flags it Dubious, and
// a catalog cycle flags the whole volume.
func (ops) Load(dev *disk.ChunkAccess, sc *fs.Scan) (*fs.Entry, error) {
	v, err := readVTOC(dev)
	if err != nil {
		return nil, err
	}
	if err := v.check(dev); err != nil {
		return nil, err
	}
	root := fs.NewVolumeEntry(strconv.Itoa(int(v.volumeNum())))

	sec := make([]byte, disk.SectorSize)
	ct, cs := v.catTrack(), v.catSector()
	for ct != 0 || cs != 0 {
		if !validTS(dev, ct, cs) {
			root.MarkDamaged()
			sc.Damaged(root.Path(), "catalog pointer %d/%d out of range", ct, cs)
			break
		}
		if !sc.VisitUnit(unit(dev, ct, cs)) {
			root.MarkDamaged()
			sc.Damaged(root.Path(), "catalog chain loops at %d/%d", ct, cs)
			break
		}
		if err := dev.ReadSector(ct, cs, sec); err != nil {
			root.MarkDamaged()
			sc.Damaged(root.Path(), "catalog sector %d/%d unreadable", ct, cs)
			break
		}
		for i := 0; i < catEntriesPerSector; i++ {
			base := catEntryBase + i*catEntrySize
			tsT := sec[base+offEntTSTrack]
			if tsT == 0 {
				continue // never used
			}
			if tsT == entDeleted {
				continue
			}
			e := loadEntry(dev, sc, sec, base, ct, cs, i)
			root.Attach(e)
		}
		ct, cs = uint32(sec[offTSNext]), uint32(sec[offTSNextSector])
	}
	return root, nil
}

func loadEntry(dev *disk.ChunkAccess, sc *fs.Scan, sec []byte, base int, catT, catS uint32, slot int) *fs.Entry {
	name := nameconv.TrimPadding([]byte(nameconv.FromHighASCII(sec[base+offEntName : base+offEntName+nameLen])))
	e := fs.NewEntry(name, false)
	typ := sec[base+offEntType]
	e.SetFileType(typ &^ typeLocked)
	e.SetLocked(typ&typeLocked != 0)
	e.ClearAttrsDirty()

	de := &dosEntry{
		catTrack:  catT,
		catSector: catS,
		slot:      slot,
		tsTrack:   uint32(sec[base+offEntTSTrack]),
		tsSector:  uint32(sec[base+offEntTSSector]),
		sectors:   int(buf.U16LE(sec, base+offEntSectors)),
	}
	e.Priv = de

	ext, spanned, used, ok := walkTSLists(dev, sc, e, de.tsTrack, de.tsSector)
	e.SetExtents(ext)
	e.SetDataLen(int64(spanned) * disk.SectorSize)
	if ok && de.sectors < used {
		e.MarkDubious()
		sc.Dubious(e.Path(), "catalog records %d sectors, found %d", de.sectors, used)
	}
	return e
}

// walkTSLists visits every T/S list sector of a file, returning the claimed
// extents, the spanned sector count (holes included), and the total sectors
// in use (T/S lists plus data). ok is false when the walk aborted.
func walkTSLists(dev *disk.ChunkAccess, sc *fs.Scan, e *fs.Entry, tsT, tsS uint32) (ext []fs.Extent, spanned, used int, ok bool) {
	sec := make([]byte, disk.SectorSize)
	for tsT != 0 || tsS != 0 {
		if !validTS(dev, tsT, tsS) {
			e.MarkDamaged()
			sc.Damaged(e.Path(), "T/S list pointer %d/%d out of range", tsT, tsS)
			return ext, spanned, used, false
		}
		if !sc.VisitUnit(unit(dev, tsT, tsS)) {
			e.MarkDamaged()
			sc.Damaged(e.Path(), "T/S list chain loops at %d/%d", tsT, tsS)
			return ext, spanned, used, false
		}
		ext = append(ext, fs.Extent{Start: unit(dev, tsT, tsS), Count: 1})
		used++
		if err := dev.ReadSector(tsT, tsS, sec); err != nil {
			e.MarkDamaged()
			sc.Damaged(e.Path(), "T/S list %d/%d unreadable", tsT, tsS)
			return ext, spanned, used, false
		}
		first := int(buf.U16LE(sec, offTSFirstIndex))
		for i := 0; i < maxTSPairs; i++ {
			dt := uint32(sec[offTSPairs+i*2])
			ds := uint32(sec[offTSPairs+i*2+1])
			if dt == 0 && ds == 0 {
				continue // sparse hole, or tail padding
			}
			if !validTS(dev, dt, ds) {
				e.MarkDamaged()
				sc.Damaged(e.Path(), "data sector pointer %d/%d out of range", dt, ds)
				return ext, spanned, used, false
			}
			sc.VisitUnit(unit(dev, dt, ds))
			ext = append(ext, fs.Extent{Start: unit(dev, dt, ds), Count: 1})
			used++
			if first+i+1 > spanned {
				spanned = first + i + 1
			}
		}
		tsT, tsS = uint32(sec[offTSNext]), uint32(sec[offTSNextSector])
	}
	return ext, spanned, used, true
}

// Create claims a catalog slot and one T/S list sector. New files start
// empty, typed as text.
func (ops) Create(dev *disk.ChunkAccess, parent *fs.Entry, name string, dir bool) (*fs.Entry, error) {
	if dir {
		return nil, ErrDirUnsupported
	}
	v, err := readVTOC(dev)
	if err != nil {
		return nil, err
	}
	tsT, tsS, ok := v.allocSector()
	if !ok {
		return nil, fs.ErrNoSpace
	}

	catT, catS, slot, sec, err := findFreeSlot(dev, v)
	if err != nil {
		return nil, err
	}

	zero := make([]byte, disk.SectorSize)
	if err := dev.WriteSector(tsT, tsS, zero); err != nil {
		return nil, err
	}

	base := catEntryBase + slot*catEntrySize
	sec[base+offEntTSTrack] = byte(tsT)
	sec[base+offEntTSSector] = byte(tsS)
	sec[base+offEntType] = 0x00 // text
	copy(sec[base+offEntName:], nameconv.ToHighASCII(name, nameLen))
	buf.PutU16LE(sec, base+offEntSectors, 1)
	if err := dev.WriteSector(catT, catS, sec); err != nil {
		return nil, err
	}
	if err := v.flush(dev); err != nil {
		return nil, err
	}

	e := fs.NewEntry(name, false)
	e.ClearAttrsDirty()
	e.Priv = &dosEntry{catTrack: catT, catSector: catS, slot: slot, tsTrack: tsT, tsSector: tsS, sectors: 1}
	e.SetExtents([]fs.Extent{{Start: unit(dev, tsT, tsS), Count: 1}})
	return e, nil
}

// findFreeSlot scans the catalog chain for a never-used or deleted slot and
// returns the slot plus the sector image it lives in.
func findFreeSlot(dev *disk.ChunkAccess, v *vtoc) (catT, catS uint32, slot int, sec []byte, err error) {
	sec = make([]byte, disk.SectorSize)
	ct, cs := v.catTrack(), v.catSector()
	for ct != 0 || cs != 0 {
		if !validTS(dev, ct, cs) {
			return 0, 0, 0, nil, fmt.Errorf("%w: catalog pointer %d/%d", ErrBadVTOC, ct, cs)
		}
		if err := dev.ReadSector(ct, cs, sec); err != nil {
			return 0, 0, 0, nil, err
		}
		for i := 0; i < catEntriesPerSector; i++ {
			base := catEntryBase + i*catEntrySize
			if t := sec[base+offEntTSTrack]; t == 0 || t == entDeleted {
				return ct, cs, i, sec, nil
			}
		}
		ct, cs = uint32(sec[offTSNext]), uint32(sec[offTSNextSector])
	}
	return 0, 0, 0, nil, ErrCatalogFull
}

// Delete frees the file's sectors in the VTOC bitmap and marks the catalog
// slot deleted, preserving the T/S track in the last name byte the way DOS
// does so UNDELETE-style tools can recover it.
func (ops) Delete(dev *disk.ChunkAccess, e *fs.Entry) error {
	de := e.Priv.(*dosEntry)
	v, err := readVTOC(dev)
	if err != nil {
		return err
	}
	sec := make([]byte, disk.SectorSize)
	tsT, tsS := de.tsTrack, de.tsSector
	for (tsT != 0 || tsS != 0) && validTS(dev, tsT, tsS) {
		if err := dev.ReadSector(tsT, tsS, sec); err != nil {
			break
		}
		v.markFree(tsT, tsS)
		for i := 0; i < maxTSPairs; i++ {
			dt := uint32(sec[offTSPairs+i*2])
			ds := uint32(sec[offTSPairs+i*2+1])
			if (dt != 0 || ds != 0) && validTS(dev, dt, ds) {
				v.markFree(dt, ds)
			}
		}
		tsT, tsS = uint32(sec[offTSNext]), uint32(sec[offTSNextSector])
	}

	if err := dev.ReadSector(de.catTrack, de.catSector, sec); err != nil {
		return err
	}
	base := catEntryBase + de.slot*catEntrySize
	sec[base+offEntName+nameLen-1] = sec[base+offEntTSTrack]
	sec[base+offEntTSTrack] = entDeleted
	if err := dev.WriteSector(de.catTrack, de.catSector, sec); err != nil {
		return err
	}
	return v.flush(dev)
}

// Rename rewrites the 30-byte high-ASCII name in place.
func (ops) Rename(dev *disk.ChunkAccess, e *fs.Entry, newName string) error {
	de := e.Priv.(*dosEntry)
	sec := make([]byte, disk.SectorSize)
	if err := dev.ReadSector(de.catTrack, de.catSector, sec); err != nil {
		return err
	}
	base := catEntryBase + de.slot*catEntrySize
	copy(sec[base+offEntName:], nameconv.ToHighASCII(newName, nameLen))
	return dev.WriteSector(de.catTrack, de.catSector, sec)
}

// SaveAttrs persists the type byte; DOS keeps the lock flag in its high bit.
func (ops) SaveAttrs(dev *disk.ChunkAccess, e *fs.Entry) error {
	de := e.Priv.(*dosEntry)
	sec := make([]byte, disk.SectorSize)
	if err := dev.ReadSector(de.catTrack, de.catSector, sec); err != nil {
		return err
	}
	base := catEntryBase + de.slot*catEntrySize
	typ := e.FileType() &^ typeLocked
	if e.Locked() {
		typ |= typeLocked
	}
	sec[base+offEntType] = typ
	return dev.WriteSector(de.catTrack, de.catSector, sec)
}

func (ops) OpenFork(dev *disk.ChunkAccess, e *fs.Entry, raw bool) (fs.Fork, error) {
	return newTSFork(dev, e)
}
