// Package gzipsingle treats a gzip stream as a one-record archive. The
// record set is fixed: the single record always exists, and mutation means
// replacing its data part or renaming it (the name and modification time
// live in the gzip header). The stream's CRC-32 is verified on read.
package gzipsingle

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/codec"
	"github.com/joshuapare/diskkit/internal/buf"
)

// DefaultName names the record when the gzip header carries no file name,
// and the record of a still-empty container.
const DefaultName = "UNTITLED"

type ops struct{}

// NewOps returns the gzip wrapper format implementation.
func NewOps() arc.Ops { return ops{} }

func (ops) FormatName() string { return "gzip" }

// Supports reports deflate-compressed data parts only, the one shape a
// gzip member can hold.
func (ops) Supports(kind arc.PartKind, format codec.Format) bool {
	return kind == arc.PartData && format == codec.FormatFlate
}
func (ops) MaxRecords() int    { return 1 }
func (ops) FixedRecords() bool { return true }

// ValidName accepts printable ASCII up to 255 characters; the gzip header
// stores names as Latin-1 and path separators make no sense for a single
// wrapped file.
func (ops) ValidName(name string) error {
	if name == "" || len(name) > 255 {
		return fmt.Errorf("name must be 1-255 characters")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c > 0x7E || c == '/' {
			return fmt.Errorf("character %q not allowed", c)
		}
	}
	return nil
}

// Read parses the gzip header. An empty stream is a container that has not
// been written yet; it still presents its one record, with no data part.
func (ops) Read(src io.ReaderAt, size int64) ([]*arc.Record, error) {
	if size == 0 {
		return []*arc.Record{arc.NewRecord(DefaultName)}, nil
	}
	zr, err := gzip.NewReader(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, fmt.Errorf("gzipsingle: %w", err)
	}
	defer zr.Close()

	name := zr.Name
	if name == "" {
		name = DefaultName
	}
	r := arc.NewRecord(name)
	if !zr.ModTime.IsZero() {
		r.SetModTime(zr.ModTime)
	}

	// ISIZE trailer: uncompressed length mod 2^32.
	tail := make([]byte, 4)
	if _, err := src.ReadAt(tail, size-4); err != nil {
		return nil, err
	}
	uncompressed := int64(buf.U32LE(tail, 0))
	r.SetPart(&arc.Part{
		Kind:    arc.PartData,
		Format:  codec.FormatFlate,
		Offset:  0,
		CompLen: size,
		Len:     uncompressed,
	})
	return []*arc.Record{r}, nil
}

// Open decompresses the whole stream. gzip's own CRC-32 check runs at
// end-of-stream; the length wrapper forces it on the exact-length path too.
func (ops) Open(src io.ReaderAt, rec *arc.Record, kind arc.PartKind) (io.ReadCloser, error) {
	if kind != arc.PartData {
		return nil, arc.ErrPartNotFound
	}
	p, ok := rec.Part(kind)
	if !ok {
		return nil, arc.ErrPartNotFound
	}
	zr, err := gzip.NewReader(io.NewSectionReader(src, 0, p.CompLen))
	if err != nil {
		return nil, fmt.Errorf("gzipsingle: %w", err)
	}
	return codec.NewCheckedReader(zr, p.Len), nil
}

func (ops) Write(w io.Writer, recs []*arc.Record, open arc.PartOpener) error {
	if len(recs) != 1 {
		return fmt.Errorf("gzipsingle: exactly one record required, have %d", len(recs))
	}
	r := recs[0]
	for _, k := range r.PartKinds() {
		if k != arc.PartData {
			return fmt.Errorf("gzipsingle: cannot store %s part", k)
		}
	}
	if _, ok := r.Part(arc.PartData); !ok {
		return fmt.Errorf("gzipsingle: record %q has no data part", r.Name())
	}
	rc, _, err := open(r, arc.PartData)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(w)
	zw.Name = r.Name()
	zw.ModTime = r.ModTime()
	if _, err := io.Copy(zw, rc); err != nil {
		rc.Close()
		zw.Close()
		return err
	}
	if err := rc.Close(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
