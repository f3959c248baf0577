package disk

import (
	"fmt"
	"io"

	"github.com/joshuapare/diskkit/internal/mmfile"
)

// Container is the byte-level backing store beneath a ChunkAccess. Disk
// images are read-write in place, so the container must support positioned
// writes as well as reads.
type Container interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// MemContainer is an in-memory container over a byte slice. The zero-copy
// view returned by Bytes is shared with every access bound to it.
type MemContainer struct {
	data     []byte
	readOnly bool
}

// NewMemContainer wraps data in a read-write container.
func NewMemContainer(data []byte) *MemContainer {
	return &MemContainer{data: data}
}

// NewROMemContainer wraps data in a read-only container. Writes fail with
// ErrReadOnly.
func NewROMemContainer(data []byte) *MemContainer {
	return &MemContainer{data: data, readOnly: true}
}

func (m *MemContainer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("disk: read at %d beyond size %d", off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemContainer) WriteAt(p []byte, off int64) (int, error) {
	if m.readOnly {
		return 0, ErrReadOnly
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("disk: write [%d,%d) beyond size %d", off, off+int64(len(p)), len(m.data))
	}
	return copy(m.data[off:], p), nil
}

func (m *MemContainer) Size() int64 { return int64(len(m.data)) }

// Bytes returns the backing slice.
func (m *MemContainer) Bytes() []byte { return m.data }

// ReadOnly reports whether writes are rejected.
func (m *MemContainer) ReadOnly() bool { return m.readOnly }

// FileContainer is a memory-mapped file container. On Unix the mapping is
// shared, so writes land in the page cache and Sync makes them durable.
type FileContainer struct {
	MemContainer
	path    string
	cleanup func() error
}

// OpenFile maps the file at path. With writable=false the mapping is
// read-only and every write through the container fails with ErrReadOnly.
func OpenFile(path string, writable bool) (*FileContainer, error) {
	var (
		data    []byte
		cleanup func() error
		err     error
	)
	if writable {
		data, cleanup, err = mmfile.MapRW(path)
	} else {
		data, cleanup, err = mmfile.Map(path)
	}
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	return &FileContainer{
		MemContainer: MemContainer{data: data, readOnly: !writable},
		path:         path,
		cleanup:      cleanup,
	}, nil
}

// Path returns the mapped file's path.
func (f *FileContainer) Path() string { return f.path }

// Sync flushes the mapping back to the file.
func (f *FileContainer) Sync() error {
	if f.readOnly {
		return nil
	}
	return mmfile.Sync(f.data)
}

// Close unmaps the file. The container must not be used afterwards.
func (f *FileContainer) Close() error {
	if f.cleanup == nil {
		return nil
	}
	err := f.cleanup()
	f.cleanup = nil
	f.data = nil
	return err
}
