package arc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joshuapare/diskkit/codec"
)

// PartKind names the payloads a record can carry.
type PartKind int

const (
	// PartData is the data fork.
	PartData PartKind = iota

	// PartRsrc is the resource fork.
	PartRsrc

	// PartDiskImage is a disk image payload.
	PartDiskImage
)

func (k PartKind) String() string {
	switch k {
	case PartData:
		return "data"
	case PartRsrc:
		return "rsrc"
	case PartDiskImage:
		return "disk"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Part describes one stored or staged payload. Stored parts reference a
// byte range of the source container; staged parts reference a PartSource
// that is consumed at commit.
type Part struct {
	Kind    PartKind
	Format  codec.Format
	Offset  int64 // into the source container; stored parts only
	CompLen int64
	Len     int64

	source PartSource
}

// Staged reports whether the part's content comes from a pending source
// rather than the archive.
func (p *Part) Staged() bool { return p.source != nil }

// Record is one member of an archive.
type Record struct {
	name    string
	dir     bool
	parts   map[PartKind]*Part
	deleted bool
	fresh   bool // created in the open transaction

	fileType uint8
	auxType  uint16
	modTime  time.Time

	// Priv carries format-private state (slot index, header offset).
	Priv any
}

// NewRecord constructs a record shell. Format packages call this from Read;
// everyone else goes through Archive.CreateRecord.
func NewRecord(name string) *Record {
	return &Record{name: name, parts: map[PartKind]*Part{}}
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// IsDirectory reports whether the record marks a directory.
func (r *Record) IsDirectory() bool { return r.dir }

// SetDirectory marks the record as a directory entry.
func (r *Record) SetDirectory(dir bool) { r.dir = dir }

// FileType returns the stored file type.
func (r *Record) FileType() uint8 { return r.fileType }

// SetFileType stages the file type.
func (r *Record) SetFileType(t uint8) { r.fileType = t }

// AuxType returns the stored auxiliary type.
func (r *Record) AuxType() uint16 { return r.auxType }

// SetAuxType stages the auxiliary type.
func (r *Record) SetAuxType(t uint16) { r.auxType = t }

// ModTime returns the stored modification time.
func (r *Record) ModTime() time.Time { return r.modTime }

// SetModTime stages the modification time.
func (r *Record) SetModTime(t time.Time) { r.modTime = t }

// Part returns the part of the given kind.
func (r *Record) Part(kind PartKind) (*Part, bool) {
	p, ok := r.parts[kind]
	return p, ok
}

// SetPart installs a stored part; used by format Read implementations.
func (r *Record) SetPart(p *Part) { r.parts[p.Kind] = p }

// PartKinds returns the kinds present, data before resource before disk.
func (r *Record) PartKinds() []PartKind {
	var out []PartKind
	for _, k := range []PartKind{PartData, PartRsrc, PartDiskImage} {
		if _, ok := r.parts[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// clone deep-copies the record for transaction snapshots.
func (r *Record) clone() *Record {
	c := *r
	c.parts = make(map[PartKind]*Part, len(r.parts))
	for k, p := range r.parts {
		pc := *p
		c.parts[k] = &pc
	}
	return &c
}

// PartSource supplies the content of a staged part. Open may be called more
// than once: once per commit attempt.
type PartSource interface {
	Open() (io.ReadCloser, error)
	Size() (int64, error)
}

type bytesSource struct {
	b []byte
}

// BytesSource stages an in-memory payload.
func BytesSource(b []byte) PartSource { return &bytesSource{b} }

func (s *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.b)), nil
}

func (s *bytesSource) Size() (int64, error) { return int64(len(s.b)), nil }

type fileSource struct {
	path string
}

// FileSource stages a payload read from the filesystem at commit time.
func FileSource(path string) PartSource { return &fileSource{path} }

func (s *fileSource) Open() (io.ReadCloser, error) { return os.Open(s.path) }

func (s *fileSource) Size() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
