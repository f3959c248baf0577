// Package binary2 reads and writes Binary II archives: a sequence of
// 128-byte record headers, each followed by the file content padded to a
// multiple of 128 bytes. Content is always stored uncompressed.
package binary2

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/codec"
	"github.com/joshuapare/diskkit/internal/buf"
)

const (
	// BlockSize is the unit of the container: headers are one block, data
	// is padded to whole blocks.
	BlockSize = 128

	// MaxRecords is the format's hard limit (filesToFollow is one byte).
	MaxRecords = 256

	maxNameLen = 64
	maxSegLen  = 15

	hdrID0 = 0x0A
	hdrID1 = 0x47
	hdrID2 = 0x4C
	hdrID3 = 0x02 // at offset 18

	offAccess      = 3
	offFileType    = 4
	offAuxType     = 5
	offStorageType = 7
	offBlocks      = 8
	offModDate     = 10
	offModTime     = 12
	offCreateDate  = 14
	offCreateTime  = 16
	offID3         = 18
	offEOF         = 20 // 3 bytes, little-endian
	offNameLen     = 23
	offName        = 24
	offOSType      = 125
	offToFollow    = 127

	storageSeedling = 0x01
	storageSapling  = 0x02
	storageTree     = 0x03
	storageDir      = 0x0D
)

// ErrBadHeader indicates a block that is not a Binary II record header.
var ErrBadHeader = errors.New("binary2: bad record header")

// hdrInfo is the per-record header state preserved across a rewrite.
type hdrInfo struct {
	access     uint8
	createDate uint16
	createTime uint16
}

type ops struct{}

// NewOps returns the Binary II format implementation.
func NewOps() arc.Ops { return ops{} }

func (ops) FormatName() string { return "binary2" }

// Supports reports stored data parts only; Binary II carries no resource
// forks and leaves compression to an outer wrapper.
func (ops) Supports(kind arc.PartKind, format codec.Format) bool {
	return kind == arc.PartData && format == codec.FormatStore
}
func (ops) MaxRecords() int    { return MaxRecords }
func (ops) FixedRecords() bool { return false }

// ValidName accepts ProDOS partial paths: at most 64 characters, slash-
// separated segments of 1-15 characters, each starting with a letter and
// continuing with letters, digits, or periods.
func (ops) ValidName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("name must be 1-%d characters", maxNameLen)
	}
	seg := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			if seg == 0 {
				return fmt.Errorf("empty path segment")
			}
			seg = 0
			continue
		}
		seg++
		if seg > maxSegLen {
			return fmt.Errorf("path segment longer than %d characters", maxSegLen)
		}
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case seg > 1 && (c >= '0' && c <= '9' || c == '.'):
		default:
			return fmt.Errorf("character %q not allowed", c)
		}
	}
	if seg == 0 {
		return fmt.Errorf("name ends with a slash")
	}
	return nil
}

func (ops) Read(src io.ReaderAt, size int64) ([]*arc.Record, error) {
	var recs []*arc.Record
	hdr := make([]byte, BlockSize)
	off := int64(0)
	for off+BlockSize <= size {
		if _, err := src.ReadAt(hdr, off); err != nil {
			return nil, err
		}
		if allZero(hdr) {
			// Terminator block of an empty archive.
			break
		}
		if hdr[0] != hdrID0 || hdr[1] != hdrID1 || hdr[2] != hdrID2 || hdr[offID3] != hdrID3 {
			return nil, fmt.Errorf("%w at offset %d", ErrBadHeader, off)
		}
		nameLen := int(hdr[offNameLen])
		if nameLen == 0 || nameLen > maxNameLen {
			return nil, fmt.Errorf("%w at offset %d: name length %d", ErrBadHeader, off, nameLen)
		}
		eof := int64(buf.U24LE(hdr, offEOF))

		r := arc.NewRecord(string(hdr[offName : offName+nameLen]))
		r.SetFileType(hdr[offFileType])
		r.SetAuxType(buf.U16LE(hdr, offAuxType))
		r.SetModTime(prodosToTime(buf.U16LE(hdr, offModDate), buf.U16LE(hdr, offModTime)))
		r.Priv = hdrInfo{
			access:     hdr[offAccess],
			createDate: buf.U16LE(hdr, offCreateDate),
			createTime: buf.U16LE(hdr, offCreateTime),
		}

		dataBlocks := int64(0)
		if hdr[offStorageType] == storageDir {
			r.SetDirectory(true)
		} else {
			dataBlocks = (eof + BlockSize - 1) / BlockSize
			if _, err := buf.CheckListBounds(int(size), int(off+BlockSize), int(dataBlocks), BlockSize); err != nil {
				return nil, fmt.Errorf("%w at offset %d: %v", ErrBadHeader, off, err)
			}
			r.SetPart(&arc.Part{
				Kind:    arc.PartData,
				Format:  codec.FormatStore,
				Offset:  off + BlockSize,
				CompLen: eof,
				Len:     eof,
			})
		}
		recs = append(recs, r)
		off += BlockSize * (1 + dataBlocks)
	}
	return recs, nil
}

func (ops) Open(src io.ReaderAt, rec *arc.Record, kind arc.PartKind) (io.ReadCloser, error) {
	p, ok := rec.Part(kind)
	if !ok {
		return nil, arc.ErrPartNotFound
	}
	c, err := codec.Lookup(p.Format)
	if err != nil {
		return nil, err
	}
	return c.Expander(io.NewSectionReader(src, p.Offset, p.CompLen), p.Len)
}

func (ops) Write(w io.Writer, recs []*arc.Record, open arc.PartOpener) error {
	if len(recs) == 0 {
		// An empty archive is a single terminator block.
		_, err := w.Write(make([]byte, BlockSize))
		return err
	}
	pad := make([]byte, BlockSize)
	for i, r := range recs {
		for _, k := range r.PartKinds() {
			if k != arc.PartData {
				return fmt.Errorf("binary2: cannot store %s part of %q", k, r.Name())
			}
		}
		size := int64(0)
		var rc io.ReadCloser
		if p, ok := r.Part(arc.PartData); ok {
			if p.Format != codec.FormatStore {
				return fmt.Errorf("binary2: cannot store %s data of %q", p.Format, r.Name())
			}
			var err error
			rc, size, err = open(r, arc.PartData)
			if err != nil {
				return err
			}
		}
		hdr := buildHeader(r, size, len(recs)-1-i)
		if _, err := w.Write(hdr); err != nil {
			closeQuiet(rc)
			return err
		}
		if rc != nil {
			n, err := io.Copy(w, rc)
			if cerr := rc.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if n != size {
				return fmt.Errorf("binary2: %q: wrote %d of %d bytes", r.Name(), n, size)
			}
			if rem := n % BlockSize; rem != 0 {
				if _, err := w.Write(pad[:BlockSize-rem]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func buildHeader(r *arc.Record, eof int64, toFollow int) []byte {
	hdr := make([]byte, BlockSize)
	hdr[0], hdr[1], hdr[2] = hdrID0, hdrID1, hdrID2
	hdr[offID3] = hdrID3

	info, _ := r.Priv.(hdrInfo)
	if r.Priv == nil {
		info.access = 0xC3
	}
	hdr[offAccess] = info.access
	hdr[offFileType] = r.FileType()
	buf.PutU16LE(hdr, offAuxType, r.AuxType())
	hdr[offStorageType] = storageTypeFor(r, eof)
	buf.PutU16LE(hdr, offBlocks, uint16((eof+BlockSize-1)/BlockSize))
	d, tm := timeToProdos(r.ModTime())
	buf.PutU16LE(hdr, offModDate, d)
	buf.PutU16LE(hdr, offModTime, tm)
	buf.PutU16LE(hdr, offCreateDate, info.createDate)
	buf.PutU16LE(hdr, offCreateTime, info.createTime)
	buf.PutU24LE(hdr, offEOF, uint32(eof))
	hdr[offNameLen] = byte(len(r.Name()))
	copy(hdr[offName:], r.Name())
	hdr[offOSType] = 0 // ProDOS
	if toFollow > 255 {
		toFollow = 255
	}
	hdr[offToFollow] = byte(toFollow)
	return hdr
}

func storageTypeFor(r *arc.Record, eof int64) byte {
	switch {
	case r.IsDirectory():
		return storageDir
	case eof <= 512:
		return storageSeedling
	case eof <= 128*1024:
		return storageSapling
	default:
		return storageTree
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func closeQuiet(rc io.ReadCloser) {
	if rc != nil {
		rc.Close()
	}
}

// prodosToTime decodes the packed ProDOS date/time words. Years 0-39 are
// 2000-2039, 40-99 are 1940-1999, 100+ count from 1900.
func prodosToTime(d, t uint16) time.Time {
	if d == 0 {
		return time.Time{}
	}
	year := int(d >> 9)
	switch {
	case year < 40:
		year += 2000
	default:
		year += 1900
	}
	month := int(d>>5) & 0x0F
	day := int(d) & 0x1F
	hour := int(t>>8) & 0x1F
	min := int(t) & 0x3F
	return time.Date(year, time.Month(month), day, hour, min, 0, 0, time.UTC)
}

func timeToProdos(t time.Time) (uint16, uint16) {
	if t.IsZero() {
		return 0, 0
	}
	year := t.Year()
	switch {
	case year >= 2000 && year <= 2039:
		year -= 2000
	case year >= 1940 && year <= 1999:
		year -= 1900
	default:
		year = 0
	}
	d := uint16(year)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm := uint16(t.Hour())<<8 | uint16(t.Minute())
	return d, tm
}
