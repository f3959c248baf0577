// Package img opens disk image files and binds the right chunk access
// geometry: bare sector and block images, 2IMG-wrapped images, and GCR
// nibble images. It decides layout; the disk package does the addressing.
package img

import (
	"fmt"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/internal/buf"
	"github.com/joshuapare/diskkit/sniff"
)

const (
	twoIMGHeaderLen = 64

	twoIMGFormatDOS    = 0
	twoIMGFormatProDOS = 1
	twoIMGFormatNibble = 2

	twoIMGLockedFlag = 1 << 31
)

// Image is an opened disk image: identification outcome plus a bound
// device. Nib is non-nil when the image is nibblized; its Flush must be
// called (or Image.Flush) to push sector writes back into GCR form.
type Image struct {
	Kind   sniff.Kind
	Dev    *disk.ChunkAccess
	Nib    *NibbleImage
	Locked bool // 2IMG write-protect flag

	file *disk.FileContainer
}

// Open memory-maps path and binds a device for it.
func Open(path string, writable bool) (*Image, error) {
	fc, err := disk.OpenFile(path, writable)
	if err != nil {
		return nil, err
	}
	im, err := open(fc, path)
	if err != nil {
		fc.Close()
		return nil, err
	}
	im.file = fc
	return im, nil
}

// FromBytes binds a device over an in-memory image. name supplies the
// extension hint.
func FromBytes(data []byte, name string) (*Image, error) {
	return open(disk.NewMemContainer(data), name)
}

func open(c disk.Container, name string) (*Image, error) {
	res := sniff.Identify(c, c.Size(), name)
	im := &Image{Kind: res.Kind}
	var err error
	switch res.Kind {
	case sniff.KindSectorImage:
		spt := uint32(16)
		if c.Size() == 35*13*disk.SectorSize {
			spt = 13
		}
		im.Dev, err = disk.NewSectorAccess(c, 35, spt, res.Order)
	case sniff.KindBlockImage:
		im.Dev, err = disk.NewBlockAccess(c)
	case sniff.KindNibble:
		im.Nib, err = OpenNibble(c)
		if err != nil {
			return nil, err
		}
		im.Dev, err = disk.NewSectorAccess(im.Nib, NibTracks, nibSectors, disk.OrderPhysical)
		if err != nil {
			return nil, err
		}
		err = markBadSectors(im.Dev, im.Nib.BadSectors())
	case sniff.KindTwoIMG:
		return openTwoIMG(c)
	default:
		return nil, fmt.Errorf("img: %w: %s", disk.ErrGeometry, res.Kind)
	}
	if err != nil {
		return nil, err
	}
	return im, nil
}

// markBadSectors transfers nibble decode failures into the device damage
// map. Bad sectors are known by physical number; the damage API addresses
// DOS-logical sectors.
func markBadSectors(dev *disk.ChunkAccess, bad []SectorRef) error {
	for _, ref := range bad {
		logical, err := disk.LogicalSector(disk.OrderDOS, ref.Physical)
		if err != nil {
			return err
		}
		if err := dev.MarkSectorUnreadable(ref.Track, logical); err != nil {
			return err
		}
	}
	return nil
}

// openTwoIMG parses the 64-byte wrapper and binds the enclosed image.
func openTwoIMG(c disk.Container) (*Image, error) {
	head := make([]byte, twoIMGHeaderLen)
	if _, err := c.ReadAt(head, 0); err != nil {
		return nil, err
	}
	if string(head[:4]) != "2IMG" {
		return nil, fmt.Errorf("img: not a 2IMG file")
	}
	format := buf.U32LE(head, 12)
	flags := buf.U32LE(head, 16)
	dataOff := int64(buf.U32LE(head, 24))
	dataLen := int64(buf.U32LE(head, 28))
	if dataOff < twoIMGHeaderLen || dataOff+dataLen > c.Size() {
		return nil, fmt.Errorf("img: 2IMG data range %d+%d outside file", dataOff, dataLen)
	}
	inner := &section{c: c, off: dataOff, n: dataLen}
	im := &Image{Kind: sniff.KindTwoIMG, Locked: flags&twoIMGLockedFlag != 0}
	var err error
	switch format {
	case twoIMGFormatDOS:
		im.Dev, err = disk.NewSectorAccess(inner, 35, 16, disk.OrderDOS)
	case twoIMGFormatProDOS:
		im.Dev, err = disk.NewBlockAccess(inner)
	case twoIMGFormatNibble:
		im.Nib, err = OpenNibble(inner)
		if err != nil {
			return nil, err
		}
		im.Dev, err = disk.NewSectorAccess(im.Nib, NibTracks, nibSectors, disk.OrderPhysical)
		if err != nil {
			return nil, err
		}
		err = markBadSectors(im.Dev, im.Nib.BadSectors())
	default:
		return nil, fmt.Errorf("img: 2IMG image format %d not supported", format)
	}
	if err != nil {
		return nil, err
	}
	return im, nil
}

// Flush pushes pending nibble-track rewrites and syncs a file-backed image.
func (im *Image) Flush() error {
	if im.Nib != nil {
		if err := im.Nib.Flush(); err != nil {
			return err
		}
	}
	if im.file != nil {
		return im.file.Sync()
	}
	return nil
}

// Close invalidates the device and releases the mapping, if any.
func (im *Image) Close() error {
	im.Dev.Invalidate()
	if im.file != nil {
		return im.file.Close()
	}
	return nil
}

// section is a bounded window into a larger container, used for wrapper
// formats that place image data at an offset.
type section struct {
	c   disk.Container
	off int64
	n   int64
}

func (s *section) Size() int64 { return s.n }

func (s *section) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > s.n {
		return 0, fmt.Errorf("img: read at %d outside section", off)
	}
	if int64(len(p)) > s.n-off {
		p = p[:s.n-off]
	}
	return s.c.ReadAt(p, s.off+off)
}

func (s *section) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.n {
		return 0, fmt.Errorf("img: write at %d outside section", off)
	}
	return s.c.WriteAt(p, s.off+off)
}
