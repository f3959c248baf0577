package dos3

import "errors"

var (
	// ErrBadVTOC indicates a volume table of contents that fails basic
	// sanity checks.
	ErrBadVTOC = errors.New("dos3: invalid VTOC")

	// ErrCatalogFull indicates no free catalog slot remains.
	ErrCatalogFull = errors.New("dos3: catalog full")

	// ErrDirUnsupported indicates an attempt to create a directory; DOS
	// 3.3 has a single flat catalog.
	ErrDirUnsupported = errors.New("dos3: directories not supported")
)
