package pascal

import (
	"errors"
	"io"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
)

var errNegativeOffset = errors.New("pascal: negative offset")

// blockFork is random access over a contiguous block run. Growth is capped
// by the next file's first block; Pascal cannot relocate a file to a bigger
// gap on the fly.
type blockFork struct {
	dev   *disk.ChunkAccess
	e     *fs.Entry
	first uint32
	next  uint32
	last  uint16 // bytes in final block
	limit uint32 // first block this file must not reach
}

func newBlockFork(dev *disk.ChunkAccess, e *fs.Entry) (*blockFork, error) {
	pe := e.Priv.(*pasEntry)
	d, err := readDirectory(dev)
	if err != nil {
		return nil, err
	}
	f := d.byFirst(pe.first)
	if f == nil {
		return nil, fs.ErrEntryNotFound
	}
	return &blockFork{
		dev:   dev,
		e:     e,
		first: f.first,
		next:  f.next,
		last:  f.lastBytes,
		limit: d.gapLimit(f.first),
	}, nil
}

func (f *blockFork) Size() int64 {
	blocks := int64(f.next) - int64(f.first)
	if blocks <= 0 {
		return 0
	}
	return (blocks-1)*disk.BlockSize + int64(f.last)
}

func (f *blockFork) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	size := f.Size()
	if off >= size {
		return 0, io.EOF
	}
	var capped bool
	if off+int64(len(p)) > size {
		p = p[:size-off]
		capped = true
	}
	blk := make([]byte, disk.BlockSize)
	total := 0
	for len(p) > 0 {
		num := f.first + uint32(off/disk.BlockSize)
		in := int(off % disk.BlockSize)
		n := disk.BlockSize - in
		if n > len(p) {
			n = len(p)
		}
		if err := f.dev.ReadBlock(num, blk); err != nil {
			return total, err
		}
		copy(p[:n], blk[in:in+n])
		p = p[n:]
		off += int64(n)
		total += n
	}
	if capped {
		return total, io.EOF
	}
	return total, nil
}

func (f *blockFork) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	end := off + int64(len(p))
	if end > int64(f.limit-f.first)*disk.BlockSize {
		return 0, ErrNoContiguousSpace
	}
	blk := make([]byte, disk.BlockSize)
	total := 0
	for len(p) > 0 {
		num := f.first + uint32(off/disk.BlockSize)
		in := int(off % disk.BlockSize)
		n := disk.BlockSize - in
		if n > len(p) {
			n = len(p)
		}
		if n < disk.BlockSize {
			if err := f.dev.ReadBlock(num, blk); err != nil {
				return total, err
			}
		}
		copy(blk[in:], p[:n])
		if err := f.dev.WriteBlock(num, blk); err != nil {
			return total, err
		}
		p = p[n:]
		off += int64(n)
		total += n
	}
	if end > f.Size() {
		f.next = f.first + uint32((end+disk.BlockSize-1)/disk.BlockSize)
		f.last = uint16(end % disk.BlockSize)
		if f.last == 0 {
			f.last = disk.BlockSize
		}
		if err := f.updateDir(); err != nil {
			return total, err
		}
		f.e.SetDataLen(f.Size())
		f.e.SetExtents([]fs.Extent{{Start: f.first, Count: f.next - f.first}})
	}
	return total, nil
}

func (f *blockFork) updateDir() error {
	d, err := readDirectory(f.dev)
	if err != nil {
		return err
	}
	ent := d.byFirst(f.first)
	if ent == nil {
		return fs.ErrEntryNotFound
	}
	ent.next = f.next
	ent.lastBytes = f.last
	return d.flush(f.dev)
}
