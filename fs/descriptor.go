package fs

import (
	"fmt"
	"io"
)

// Descriptor is an open file handle. While any descriptor is open the
// owning volume (and every ancestor volume) is pinned in FileAccess mode.
//
// A descriptor opened raw=true sees the stored layout and, when the format
// supports it, hole/data structure through NextData/NextHole. A cooked
// descriptor sees reassembled content; on it the sparse operations
// degenerate to "everything is data".
type Descriptor struct {
	vol      *Volume
	entry    *Entry
	fork     Fork
	raw      bool
	writable bool
	pos      int64
	closed   bool
}

// Entry returns the entry this descriptor is open on.
func (d *Descriptor) Entry() *Entry { return d.entry }

// Raw reports whether this is a stored-layout view.
func (d *Descriptor) Raw() bool { return d.raw }

func (d *Descriptor) ok() error {
	if d.closed {
		return ErrDescriptorClosed
	}
	if !d.entry.Valid() {
		return ErrEntryInvalid
	}
	return nil
}

// Read reads from the current position.
func (d *Descriptor) Read(p []byte) (int, error) {
	if err := d.ok(); err != nil {
		return 0, err
	}
	if d.pos >= d.fork.Size() {
		return 0, io.EOF
	}
	n, err := d.fork.ReadAt(p, d.pos)
	d.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Write writes at the current position.
func (d *Descriptor) Write(p []byte) (int, error) {
	if err := d.ok(); err != nil {
		return 0, err
	}
	if !d.writable {
		return 0, ErrReadOnlyFS
	}
	n, err := d.fork.WriteAt(p, d.pos)
	d.pos += int64(n)
	return n, err
}

// Seek repositions the descriptor. Standard whence values apply.
func (d *Descriptor) Seek(offset int64, whence int) (int64, error) {
	if err := d.ok(); err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = d.pos
	case io.SeekEnd:
		base = d.fork.Size()
	default:
		return 0, fmt.Errorf("fs: bad whence %d", whence)
	}
	np := base + offset
	if np < 0 {
		return 0, fmt.Errorf("fs: negative seek position %d", np)
	}
	d.pos = np
	return np, nil
}

// Size returns the fork's current size.
func (d *Descriptor) Size() int64 {
	if d.closed {
		return 0
	}
	return d.fork.Size()
}

// NextData returns the position of the next data byte at or after off. On a
// cooked view, or a raw view without sparse structure, every byte up to the
// size is data.
func (d *Descriptor) NextData(off int64) (int64, error) {
	if err := d.ok(); err != nil {
		return 0, err
	}
	if sf, ok := d.sparse(); ok {
		return sf.NextData(off), nil
	}
	if off > d.fork.Size() {
		return d.fork.Size(), nil
	}
	return off, nil
}

// NextHole returns the position of the next hole at or after off. On a
// cooked or non-sparse view the only hole is end-of-file.
func (d *Descriptor) NextHole(off int64) (int64, error) {
	if err := d.ok(); err != nil {
		return 0, err
	}
	if sf, ok := d.sparse(); ok {
		return sf.NextHole(off), nil
	}
	return d.fork.Size(), nil
}

func (d *Descriptor) sparse() (SparseFork, bool) {
	if !d.raw {
		return nil, false
	}
	sf, ok := d.fork.(SparseFork)
	return sf, ok
}

// Close releases the descriptor and unpins the volume. Idempotent.
func (d *Descriptor) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.vol.removeFD(d)
	return nil
}
