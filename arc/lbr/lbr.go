// Package lbr reads and writes CP/M LBR libraries: a fixed 256-slot
// directory of 32-byte entries at the front of the container, followed by
// member data in 128-byte sectors. Slot 0 describes the directory itself.
// Members are stored uncompressed with a CRC-16 per member.
//
// A library whose every member has been deleted serializes to zero bytes.
package lbr

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/codec"
	"github.com/joshuapare/diskkit/internal/buf"
	"github.com/joshuapare/diskkit/internal/nameconv"
)

const (
	// SectorSize is the unit of the container.
	SectorSize = 128

	// DirSlots is the fixed directory size, slot 0 included.
	DirSlots = 256

	entrySize  = 32
	dirSectors = DirSlots * entrySize / SectorSize
	dirBytes   = DirSlots * entrySize

	statusActive  = 0x00
	statusDeleted = 0xFE
	statusUnused  = 0xFF

	offStatus     = 0
	offName       = 1  // 8 bytes, space padded
	offExt        = 9  // 3 bytes, space padded
	offIndex      = 12 // u16le, first sector
	offLength     = 14 // u16le, sectors
	offCRC        = 16 // u16le
	offCreateDate = 18
	offChangeDate = 20
	offCreateTime = 22
	offChangeTime = 24
	offPadCount   = 26 // unused bytes in the last sector
)

var (
	// ErrBadDirectory indicates a container whose slot 0 is not a valid
	// LBR directory entry.
	ErrBadDirectory = errors.New("lbr: bad directory")

	// ErrChecksum indicates member data whose CRC-16 does not match its
	// directory entry.
	ErrChecksum = errors.New("lbr: member checksum mismatch")
)

// slotInfo preserves per-member directory state across a rewrite.
type slotInfo struct {
	crc        uint16
	createDate uint16
	createTime uint16
}

type ops struct{}

// NewOps returns the LBR format implementation.
func NewOps() arc.Ops { return ops{} }

func (ops) FormatName() string { return "lbr" }

// Supports reports stored data parts only; LBR has no forks and no
// compression of its own.
func (ops) Supports(kind arc.PartKind, format codec.Format) bool {
	return kind == arc.PartData && format == codec.FormatStore
}
func (ops) MaxRecords() int    { return DirSlots - 1 }
func (ops) FixedRecords() bool { return false }

// ValidName accepts CP/M 8.3 names: 1-8 characters, optionally a dot and a
// 1-3 character extension, from uppercase letters, digits, and -_$.
func (ops) ValidName(name string) error {
	base, ext, hasExt := strings.Cut(name, ".")
	if err := validPiece(base, 8); err != nil {
		return err
	}
	if hasExt {
		if err := validPiece(ext, 3); err != nil {
			return err
		}
	}
	return nil
}

func validPiece(s string, max int) error {
	if s == "" || len(s) > max {
		return fmt.Errorf("name piece must be 1-%d characters", max)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '$':
		default:
			return fmt.Errorf("character %q not allowed", c)
		}
	}
	return nil
}

func (ops) Read(src io.ReaderAt, size int64) ([]*arc.Record, error) {
	if size == 0 {
		return nil, nil
	}
	if size < dirBytes {
		return nil, fmt.Errorf("%w: %d bytes is too short for the directory", ErrBadDirectory, size)
	}
	dir := make([]byte, dirBytes)
	if _, err := src.ReadAt(dir, 0); err != nil {
		return nil, err
	}
	if dir[offStatus] != statusActive || dir[offIndex] != 0 || dir[offIndex+1] != 0 {
		return nil, fmt.Errorf("%w: bad slot 0", ErrBadDirectory)
	}
	for i := offName; i < offName+11; i++ {
		if dir[i] != ' ' {
			return nil, fmt.Errorf("%w: slot 0 has a name", ErrBadDirectory)
		}
	}
	if got := buf.U16LE(dir, offLength); int(got) != dirSectors {
		return nil, fmt.Errorf("%w: directory length %d sectors", ErrBadDirectory, got)
	}

	var recs []*arc.Record
	for slot := 1; slot < DirSlots; slot++ {
		e := dir[slot*entrySize : (slot+1)*entrySize]
		if e[offStatus] != statusActive {
			continue
		}
		index := int64(buf.U16LE(e, offIndex))
		sectors := int64(buf.U16LE(e, offLength))
		pad := int64(e[offPadCount])
		if pad >= SectorSize || (sectors == 0 && pad != 0) {
			return nil, fmt.Errorf("%w: slot %d pad count %d", ErrBadDirectory, slot, pad)
		}
		start := index * SectorSize
		if _, err := buf.CheckListBounds(int(size), int(start), int(sectors), SectorSize); err != nil {
			return nil, fmt.Errorf("%w: slot %d %v", ErrBadDirectory, slot, err)
		}
		if index < int64(dirSectors) {
			return nil, fmt.Errorf("%w: slot %d overlaps the directory", ErrBadDirectory, slot)
		}
		r := arc.NewRecord(entryName(e))
		r.SetModTime(lbrToTime(buf.U16LE(e, offChangeDate), buf.U16LE(e, offChangeTime)))
		r.Priv = slotInfo{
			crc:        buf.U16LE(e, offCRC),
			createDate: buf.U16LE(e, offCreateDate),
			createTime: buf.U16LE(e, offCreateTime),
		}
		dataLen := sectors*SectorSize - pad
		r.SetPart(&arc.Part{
			Kind:    arc.PartData,
			Format:  codec.FormatStore,
			Offset:  start,
			CompLen: dataLen,
			Len:     dataLen,
		})
		recs = append(recs, r)
	}
	return recs, nil
}

func entryName(e []byte) string {
	base := nameconv.TrimPadding(e[offName : offName+8])
	ext := nameconv.TrimPadding(e[offExt : offExt+3])
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func (ops) Open(src io.ReaderAt, rec *arc.Record, kind arc.PartKind) (io.ReadCloser, error) {
	p, ok := rec.Part(kind)
	if !ok {
		return nil, arc.ErrPartNotFound
	}
	info, _ := rec.Priv.(slotInfo)
	inner := &crcReader{
		r:    io.NewSectionReader(src, p.Offset, p.CompLen),
		want: info.crc,
	}
	return codec.NewCheckedReader(inner, p.Len), nil
}

// crcReader accumulates the member CRC while streaming and verifies it when
// the underlying section is exhausted.
type crcReader struct {
	r       io.Reader
	crc     uint16
	want    uint16
	checked bool
}

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.crc = crc16(c.crc, p[:n])
	if err == io.EOF && !c.checked {
		c.checked = true
		if c.crc != c.want {
			return n, fmt.Errorf("%w: have %04X, want %04X", ErrChecksum, c.crc, c.want)
		}
	}
	return n, err
}

func (c *crcReader) Close() error { return nil }

// Write serializes in two passes: the first streams every member through
// the CRC to size the directory, the second writes directory then data.
// A library with no members serializes to nothing.
func (ops) Write(w io.Writer, recs []*arc.Record, open arc.PartOpener) error {
	if len(recs) == 0 {
		return nil
	}

	type member struct {
		rec     *arc.Record
		size    int64
		sectors int64
		crc     uint16
	}
	members := make([]member, len(recs))
	for i, r := range recs {
		for _, k := range r.PartKinds() {
			if k != arc.PartData {
				return fmt.Errorf("lbr: cannot store %s part of %q", k, r.Name())
			}
		}
		m := member{rec: r}
		if p, ok := r.Part(arc.PartData); ok {
			if p.Format != codec.FormatStore {
				return fmt.Errorf("lbr: cannot store %s data of %q", p.Format, r.Name())
			}
			var err error
			m.size, m.crc, err = measure(r, open)
			if err != nil {
				return err
			}
			m.sectors = (m.size + SectorSize - 1) / SectorSize
		}
		members[i] = m
	}

	dir := make([]byte, dirBytes)
	for slot := 1; slot < DirSlots; slot++ {
		dir[slot*entrySize+offStatus] = statusUnused
	}

	// Slot 0 is the directory itself.
	e0 := dir[:entrySize]
	e0[offStatus] = statusActive
	for i := offName; i < offName+11; i++ {
		e0[i] = ' '
	}
	buf.PutU16LE(e0, offLength, dirSectors)

	index := int64(dirSectors)
	for i, m := range members {
		e := dir[(i+1)*entrySize : (i+2)*entrySize]
		e[offStatus] = statusActive
		putName(e, m.rec.Name())
		buf.PutU16LE(e, offIndex, uint16(index))
		buf.PutU16LE(e, offLength, uint16(m.sectors))
		buf.PutU16LE(e, offCRC, m.crc)
		info, _ := m.rec.Priv.(slotInfo)
		buf.PutU16LE(e, offCreateDate, info.createDate)
		buf.PutU16LE(e, offCreateTime, info.createTime)
		d, tm := timeToLBR(m.rec.ModTime())
		buf.PutU16LE(e, offChangeDate, d)
		buf.PutU16LE(e, offChangeTime, tm)
		e[offPadCount] = byte(m.sectors*SectorSize - m.size)
		index += m.sectors
	}

	// Directory CRC is computed with its own CRC field zeroed.
	buf.PutU16LE(e0, offCRC, crc16(0, dir))

	if _, err := w.Write(dir); err != nil {
		return err
	}
	pad := make([]byte, SectorSize)
	for _, m := range members {
		if m.sectors == 0 {
			continue
		}
		rc, size, err := open(m.rec, arc.PartData)
		if err != nil {
			return err
		}
		if size != m.size {
			rc.Close()
			return fmt.Errorf("lbr: %q changed size between passes", m.rec.Name())
		}
		n, err := io.Copy(w, rc)
		if cerr := rc.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if n != size {
			return fmt.Errorf("lbr: %q: wrote %d of %d bytes", m.rec.Name(), n, size)
		}
		if rem := n % SectorSize; rem != 0 {
			if _, err := w.Write(pad[:SectorSize-rem]); err != nil {
				return err
			}
		}
	}
	return nil
}

func measure(r *arc.Record, open arc.PartOpener) (int64, uint16, error) {
	rc, _, err := open(r, arc.PartData)
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()
	var (
		size int64
		crc  uint16
		b    [4096]byte
	)
	for {
		n, err := rc.Read(b[:])
		size += int64(n)
		crc = crc16(crc, b[:n])
		if err == io.EOF {
			return size, crc, nil
		}
		if err != nil {
			return 0, 0, err
		}
	}
}

func putName(e []byte, name string) {
	base, ext, _ := strings.Cut(name, ".")
	for i := 0; i < 8; i++ {
		e[offName+i] = ' '
	}
	for i := 0; i < 3; i++ {
		e[offExt+i] = ' '
	}
	copy(e[offName:offName+8], base)
	copy(e[offExt:offExt+3], ext)
}

// lbrToTime decodes the directory date (days since 1977-12-31, 0 meaning
// unset) and DOS-packed time.
func lbrToTime(d, t uint16) time.Time {
	if d == 0 {
		return time.Time{}
	}
	day := time.Date(1977, time.December, 31, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, int(d))
	hour := int(t>>11) & 0x1F
	min := int(t>>5) & 0x3F
	sec := int(t&0x1F) * 2
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, sec, 0, time.UTC)
}

func timeToLBR(t time.Time) (uint16, uint16) {
	if t.IsZero() {
		return 0, 0
	}
	epoch := time.Date(1977, time.December, 31, 0, 0, 0, 0, time.UTC)
	days := int64(t.Truncate(24*time.Hour).Sub(epoch).Hours() / 24)
	if days < 1 || days > 0xFFFF {
		return 0, 0
	}
	tm := uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return uint16(days), tm
}
