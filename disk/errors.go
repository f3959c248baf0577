package disk

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly indicates a write to a read-only container.
	ErrReadOnly = errors.New("disk: container is read-only")

	// ErrUnreadable indicates a read from a chunk marked unreadable.
	ErrUnreadable = errors.New("disk: chunk marked unreadable")

	// ErrUnwritable indicates a write to a chunk marked unwritable.
	ErrUnwritable = errors.New("disk: chunk marked unwritable")

	// ErrInvalidated indicates use of an access whose owner was disposed
	// or reformatted.
	ErrInvalidated = errors.New("disk: access has been invalidated")

	// ErrOverlap indicates a subset range that overlaps a live sibling.
	ErrOverlap = errors.New("disk: subset overlaps existing subset")

	// ErrBufSize indicates a caller buffer of the wrong length.
	ErrBufSize = errors.New("disk: buffer length does not match chunk size")

	// ErrGeometry indicates an operation unsupported by the device
	// geometry, such as sector access on a block-only device.
	ErrGeometry = errors.New("disk: operation not supported by geometry")
)

// RangeError reports an out-of-range chunk address. Addresses are computed
// by callers from parsed structures, so an out-of-range address is a usage
// error, never retried.
type RangeError struct {
	Op    string // "read block", "write sector", ...
	Index uint32
	Limit uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("disk: %s %d out of range (limit %d)", e.Op, e.Index, e.Limit)
}
