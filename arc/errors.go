package arc

import "errors"

var (
	// ErrTransactionOpen indicates an operation that requires idle state
	// while a transaction is open.
	ErrTransactionOpen = errors.New("arc: transaction already open")

	// ErrNoTransaction indicates a mutation or commit without an open
	// transaction.
	ErrNoTransaction = errors.New("arc: no open transaction")

	// ErrRecordNotFound indicates a lookup miss or a second delete of the
	// same record.
	ErrRecordNotFound = errors.New("arc: record not found")

	// ErrDuplicateName indicates a record name already present.
	ErrDuplicateName = errors.New("arc: record name already exists")

	// ErrInvalidName indicates a record name the format cannot store.
	ErrInvalidName = errors.New("arc: invalid record name")

	// ErrPartExists indicates adding a part kind the record already has.
	ErrPartExists = errors.New("arc: part already exists")

	// ErrUnsupportedPart indicates a part kind or compression format the
	// bound format cannot store.
	ErrUnsupportedPart = errors.New("arc: part kind or format not supported")

	// ErrPartNotFound indicates deleting or opening an absent part.
	ErrPartNotFound = errors.New("arc: part not found")

	// ErrTooManyRecords indicates the format's record limit is exceeded.
	ErrTooManyRecords = errors.New("arc: record limit exceeded")

	// ErrFixedLayout indicates record creation or deletion on a format
	// with a fixed record set (single-file wrappers).
	ErrFixedLayout = errors.New("arc: format has a fixed record layout")

	// ErrSelfOverwrite indicates committing into the stream the archive
	// is reading from.
	ErrSelfOverwrite = errors.New("arc: commit would overwrite the source")

	// ErrDirectoryWithData indicates a directory record carrying a data
	// part.
	ErrDirectoryWithData = errors.New("arc: directory record has a data part")

	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("arc: archive closed")
)
