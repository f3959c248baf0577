package dos3

import (
	"errors"
	"io"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
	"github.com/joshuapare/diskkit/internal/buf"
)

type tsPair struct{ t, s uint32 }

// tsFork is random access over a DOS file's sector chain. pairs holds one
// slot per spanned file sector; a zero pair is a hole that reads as zeros
// and is materialized on first write.
type tsFork struct {
	dev    *disk.ChunkAccess
	e      *fs.Entry
	de     *dosEntry
	tsSecs []tsPair // T/S list sectors, in chain order
	pairs  []tsPair
}

func newTSFork(dev *disk.ChunkAccess, e *fs.Entry) (*tsFork, error) {
	de := e.Priv.(*dosEntry)
	f := &tsFork{dev: dev, e: e, de: de}
	sec := make([]byte, disk.SectorSize)
	t, s := de.tsTrack, de.tsSector
	for t != 0 || s != 0 {
		if !validTS(dev, t, s) {
			return nil, fs.ErrEntryDamaged
		}
		f.tsSecs = append(f.tsSecs, tsPair{t, s})
		if err := dev.ReadSector(t, s, sec); err != nil {
			return nil, err
		}
		first := int(buf.U16LE(sec, offTSFirstIndex))
		for i := 0; i < maxTSPairs; i++ {
			dt := uint32(sec[offTSPairs+i*2])
			ds := uint32(sec[offTSPairs+i*2+1])
			if dt == 0 && ds == 0 {
				continue
			}
			if !validTS(dev, dt, ds) {
				return nil, fs.ErrEntryDamaged
			}
			f.grow(first + i + 1)
			f.pairs[first+i] = tsPair{dt, ds}
		}
		t, s = uint32(sec[offTSNext]), uint32(sec[offTSNextSector])
	}
	return f, nil
}

func (f *tsFork) grow(n int) {
	for len(f.pairs) < n {
		f.pairs = append(f.pairs, tsPair{})
	}
}

func (f *tsFork) Size() int64 { return int64(len(f.pairs)) * disk.SectorSize }

var errNegativeOffset = errors.New("dos3: negative offset")

func (f *tsFork) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	sec := make([]byte, disk.SectorSize)
	total := 0
	for len(p) > 0 {
		idx := int(off / disk.SectorSize)
		if idx >= len(f.pairs) {
			return total, io.EOF
		}
		in := int(off % disk.SectorSize)
		n := disk.SectorSize - in
		if n > len(p) {
			n = len(p)
		}
		pr := f.pairs[idx]
		if pr.t == 0 && pr.s == 0 {
			for i := 0; i < n; i++ {
				p[i] = 0
			}
		} else {
			if err := f.dev.ReadSector(pr.t, pr.s, sec); err != nil {
				return total, err
			}
			copy(p[:n], sec[in:in+n])
		}
		p = p[n:]
		off += int64(n)
		total += n
	}
	return total, nil
}

func (f *tsFork) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	v, err := readVTOC(f.dev)
	if err != nil {
		return 0, err
	}
	sec := make([]byte, disk.SectorSize)
	total := 0
	for len(p) > 0 {
		idx := int(off / disk.SectorSize)
		pr, err := f.ensure(v, idx)
		if err != nil {
			return total, err
		}
		in := int(off % disk.SectorSize)
		n := disk.SectorSize - in
		if n > len(p) {
			n = len(p)
		}
		if n < disk.SectorSize {
			if err := f.dev.ReadSector(pr.t, pr.s, sec); err != nil {
				return total, err
			}
		}
		copy(sec[in:], p[:n])
		if err := f.dev.WriteSector(pr.t, pr.s, sec); err != nil {
			return total, err
		}
		p = p[n:]
		off += int64(n)
		total += n
	}
	if err := v.flush(f.dev); err != nil {
		return total, err
	}
	if err := f.updateCatalog(); err != nil {
		return total, err
	}
	f.e.SetDataLen(f.Size())
	return total, nil
}

// ensure materializes the data sector for file sector idx, allocating it
// and any T/S list sector needed to hold its pair.
func (f *tsFork) ensure(v *vtoc, idx int) (tsPair, error) {
	f.grow(idx + 1)
	if pr := f.pairs[idx]; pr.t != 0 || pr.s != 0 {
		return pr, nil
	}
	sec := make([]byte, disk.SectorSize)
	for len(f.tsSecs) <= idx/maxTSPairs {
		t, s, ok := v.allocSector()
		if !ok {
			return tsPair{}, fs.ErrNoSpace
		}
		for i := range sec {
			sec[i] = 0
		}
		buf.PutU16LE(sec, offTSFirstIndex, uint16(len(f.tsSecs)*maxTSPairs))
		if err := f.dev.WriteSector(t, s, sec); err != nil {
			return tsPair{}, err
		}
		prev := f.tsSecs[len(f.tsSecs)-1]
		if err := f.dev.ReadSector(prev.t, prev.s, sec); err != nil {
			return tsPair{}, err
		}
		sec[offTSNext] = byte(t)
		sec[offTSNextSector] = byte(s)
		if err := f.dev.WriteSector(prev.t, prev.s, sec); err != nil {
			return tsPair{}, err
		}
		f.tsSecs = append(f.tsSecs, tsPair{t, s})
	}

	dt, ds, ok := v.allocSector()
	if !ok {
		return tsPair{}, fs.ErrNoSpace
	}
	for i := range sec {
		sec[i] = 0
	}
	if err := f.dev.WriteSector(dt, ds, sec); err != nil {
		return tsPair{}, err
	}
	list := f.tsSecs[idx/maxTSPairs]
	if err := f.dev.ReadSector(list.t, list.s, sec); err != nil {
		return tsPair{}, err
	}
	slot := offTSPairs + (idx%maxTSPairs)*2
	sec[slot] = byte(dt)
	sec[slot+1] = byte(ds)
	if err := f.dev.WriteSector(list.t, list.s, sec); err != nil {
		return tsPair{}, err
	}
	f.pairs[idx] = tsPair{dt, ds}
	return f.pairs[idx], nil
}

// updateCatalog rewrites the entry's recorded sector count.
func (f *tsFork) updateCatalog() error {
	used := len(f.tsSecs)
	for _, pr := range f.pairs {
		if pr.t != 0 || pr.s != 0 {
			used++
		}
	}
	f.de.sectors = used
	sec := make([]byte, disk.SectorSize)
	if err := f.dev.ReadSector(f.de.catTrack, f.de.catSector, sec); err != nil {
		return err
	}
	base := catEntryBase + f.de.slot*catEntrySize
	buf.PutU16LE(sec, base+offEntSectors, uint16(used))
	return f.dev.WriteSector(f.de.catTrack, f.de.catSector, sec)
}

// NextData returns the next offset at or after off backed by a real sector.
func (f *tsFork) NextData(off int64) int64 {
	for idx := int(off / disk.SectorSize); idx < len(f.pairs); idx++ {
		pr := f.pairs[idx]
		if pr.t != 0 || pr.s != 0 {
			start := int64(idx) * disk.SectorSize
			if start < off {
				return off
			}
			return start
		}
	}
	return f.Size()
}

// NextHole returns the next hole at or after off.
func (f *tsFork) NextHole(off int64) int64 {
	for idx := int(off / disk.SectorSize); idx < len(f.pairs); idx++ {
		pr := f.pairs[idx]
		if pr.t == 0 && pr.s == 0 {
			start := int64(idx) * disk.SectorSize
			if start < off {
				return off
			}
			return start
		}
	}
	return f.Size()
}
