package fs

import "errors"

var (
	// ErrNotRawMode indicates an operation that requires Raw mode.
	ErrNotRawMode = errors.New("fs: volume not in raw access mode")

	// ErrNotFileAccess indicates an operation that requires FileAccess mode.
	ErrNotFileAccess = errors.New("fs: volume not in file access mode")

	// ErrVolumeBusy indicates a mode transition blocked by an open
	// descriptor somewhere at or below this volume.
	ErrVolumeBusy = errors.New("fs: descriptor open on volume or descendant")

	// ErrReadOnlyFS indicates a mutation on a read-only (or
	// damage-escalated read-only) volume.
	ErrReadOnlyFS = errors.New("fs: volume is read-only")

	// ErrInvalidName indicates a name that violates the format's charset
	// or length rules.
	ErrInvalidName = errors.New("fs: invalid name")

	// ErrDuplicateName indicates a sibling with the same name.
	ErrDuplicateName = errors.New("fs: name already exists")

	// ErrEntryNotFound indicates a lookup miss.
	ErrEntryNotFound = errors.New("fs: entry not found")

	// ErrNotDirectory indicates a file used where a directory is required.
	ErrNotDirectory = errors.New("fs: entry is not a directory")

	// ErrIsDirectory indicates a directory used where a file is required.
	ErrIsDirectory = errors.New("fs: entry is a directory")

	// ErrDirNotEmpty indicates deletion of a non-empty directory.
	ErrDirNotEmpty = errors.New("fs: directory not empty")

	// ErrCannotDeleteRoot indicates an attempt to delete the volume
	// directory.
	ErrCannotDeleteRoot = errors.New("fs: cannot delete volume directory")

	// ErrEntryDamaged indicates an operation rejected because the entry is
	// flagged Dubious or Damaged.
	ErrEntryDamaged = errors.New("fs: entry flagged dubious or damaged")

	// ErrEntryInvalid indicates use of a descriptor or entry handle whose
	// entry was deleted.
	ErrEntryInvalid = errors.New("fs: entry has been deleted")

	// ErrDescriptorClosed indicates use of a closed descriptor.
	ErrDescriptorClosed = errors.New("fs: descriptor closed")

	// ErrNoSpace indicates the volume cannot hold the requested data.
	ErrNoSpace = errors.New("fs: volume full")

	// ErrUnrecognized indicates no registered format matched the device.
	ErrUnrecognized = errors.New("fs: no filesystem recognized")
)
