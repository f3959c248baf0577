package arc

import (
	"fmt"
	"io"
	"os"
)

// Stream is the storage an archive lives in: random-access readable,
// rewritable from scratch, and truncatable. Commit writes a whole new
// container image into one.
type Stream interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Size() int64
}

// MemStream is an in-memory Stream.
type MemStream struct {
	data []byte
}

// NewMemStream returns a stream seeded with data (may be nil).
func NewMemStream(data []byte) *MemStream {
	return &MemStream{data: data}
}

// Bytes returns the current content.
func (m *MemStream) Bytes() []byte { return m.data }

func (m *MemStream) Size() int64 { return int64(len(m.data)) }

func (m *MemStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("arc: read at %d outside stream", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("arc: write at negative offset")
	}
	for int64(len(m.data)) < off+int64(len(p)) {
		m.data = append(m.data, 0)
	}
	copy(m.data[off:], p)
	return len(p), nil
}

func (m *MemStream) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("arc: truncate to negative size")
	}
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	for int64(len(m.data)) < size {
		m.data = append(m.data, 0)
	}
	return nil
}

// FileStream adapts an os.File.
type FileStream struct {
	f *os.File
}

// OpenFileStream opens (or creates) path read-write.
func OpenFileStream(path string) (*FileStream, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileStream{f: f}, nil
}

func (s *FileStream) ReadAt(p []byte, off int64) (int, error)  { return s.f.ReadAt(p, off) }
func (s *FileStream) WriteAt(p []byte, off int64) (int, error) { return s.f.WriteAt(p, off) }
func (s *FileStream) Truncate(size int64) error                { return s.f.Truncate(size) }

func (s *FileStream) Size() int64 {
	fi, err := s.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Close closes the underlying file.
func (s *FileStream) Close() error { return s.f.Close() }

// offsetWriter turns a WriterAt into a sequential writer and counts bytes.
type offsetWriter struct {
	w   io.WriterAt
	off int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.WriteAt(p, o.off)
	o.off += int64(n)
	return n, err
}
