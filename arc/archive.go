package arc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joshuapare/diskkit/codec"
)

// PartOpener hands a format's Write implementation the uncompressed content
// of one part, along with its length.
type PartOpener func(rec *Record, kind PartKind) (io.ReadCloser, int64, error)

// Ops is the format-specific half of an archive. Read and Write never see
// transaction state; the driver decides when they run.
type Ops interface {
	// FormatName returns the format's short name ("binary2", "lbr").
	FormatName() string

	// ValidName validates a record name against format rules.
	ValidName(name string) error

	// MaxRecords returns the format's record limit, 0 for none.
	MaxRecords() int

	// FixedRecords reports whether the record set is fixed (single-file
	// wrappers); creation and deletion are then rejected.
	FixedRecords() bool

	// Supports reports whether the format can store a part of the given
	// kind with the given compression format.
	Supports(kind PartKind, format codec.Format) bool

	// Read parses the container into records.
	Read(src io.ReaderAt, size int64) ([]*Record, error)

	// Open returns an expanded, integrity-checked reader over a stored
	// part.
	Open(src io.ReaderAt, rec *Record, kind PartKind) (io.ReadCloser, error)

	// Write serializes the record set as a complete container.
	Write(w io.Writer, recs []*Record, open PartOpener) error
}

// Archive drives one container through the transaction protocol.
type Archive struct {
	ops    Ops
	src    Stream
	logger *slog.Logger

	records  []*Record
	snapshot []*Record // set while a transaction is open
	recon    bool
	closed   bool
}

// New parses src with the format and returns an idle archive. An empty
// stream is a valid empty archive for formats whose Read accepts size 0.
func New(ops Ops, src Stream, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	recs, err := ops.Read(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("arc: %s read: %w", ops.FormatName(), err)
	}
	return &Archive{ops: ops, src: src, logger: logger, records: recs}, nil
}

// FormatName returns the bound format's name.
func (a *Archive) FormatName() string { return a.ops.FormatName() }

// Records returns the live records: staged deletions excluded, staged
// creations included.
func (a *Archive) Records() []*Record {
	out := make([]*Record, 0, len(a.records))
	for _, r := range a.records {
		if !r.deleted {
			out = append(out, r)
		}
	}
	return out
}

// FindRecord locates a live record by name.
func (a *Archive) FindRecord(name string) (*Record, error) {
	for _, r := range a.records {
		if !r.deleted && r.name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
}

// InTransaction reports whether a transaction is open.
func (a *Archive) InTransaction() bool { return a.snapshot != nil }

// IsReconstructionNeeded reports whether staged changes require writing a
// new container. Reset by Cancel and by a successful Commit.
func (a *Archive) IsReconstructionNeeded() bool { return a.recon }

// StartTransaction opens the mutation bracket. Only one transaction may be
// open.
func (a *Archive) StartTransaction() error {
	if a.closed {
		return ErrClosed
	}
	if a.snapshot != nil {
		return ErrTransactionOpen
	}
	snap := make([]*Record, len(a.records))
	for i, r := range a.records {
		snap[i] = r.clone()
	}
	a.snapshot = snap
	return nil
}

// CancelTransaction discards every staged change and returns to idle.
func (a *Archive) CancelTransaction() error {
	if a.snapshot == nil {
		return ErrNoTransaction
	}
	a.records = a.snapshot
	a.snapshot = nil
	a.recon = false
	return nil
}

func (a *Archive) mutable() error {
	if a.closed {
		return ErrClosed
	}
	if a.snapshot == nil {
		return ErrNoTransaction
	}
	return nil
}

// CreateRecord stages a new empty record.
func (a *Archive) CreateRecord(name string) (*Record, error) {
	if err := a.mutable(); err != nil {
		return nil, err
	}
	if a.ops.FixedRecords() {
		return nil, ErrFixedLayout
	}
	if err := a.ops.ValidName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if _, err := a.FindRecord(name); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if max := a.ops.MaxRecords(); max > 0 && len(a.Records()) >= max {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRecords, max)
	}
	r := NewRecord(name)
	r.fresh = true
	a.records = append(a.records, r)
	a.recon = true
	return r, nil
}

// DeleteRecord stages removal. Deleting twice fails: the second call no
// longer finds a live record.
func (a *Archive) DeleteRecord(r *Record) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if a.ops.FixedRecords() {
		return ErrFixedLayout
	}
	if r.deleted || !a.owns(r) {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, r.name)
	}
	r.deleted = true
	a.recon = true
	return nil
}

// RenameRecord stages a name change.
func (a *Archive) RenameRecord(r *Record, name string) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if r.deleted || !a.owns(r) {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, r.name)
	}
	if err := a.ops.ValidName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if other, err := a.FindRecord(name); err == nil && other != r {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.name = name
	a.recon = true
	return nil
}

// AddPart stages content for a part kind the record does not yet have;
// replacing means deleting first.
func (a *Archive) AddPart(r *Record, kind PartKind, format codec.Format, src PartSource) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if r.deleted || !a.owns(r) {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, r.name)
	}
	if !a.ops.Supports(kind, format) {
		return fmt.Errorf("%w: %s/%s in %s", ErrUnsupportedPart, kind, format, a.ops.FormatName())
	}
	if _, ok := r.parts[kind]; ok {
		return fmt.Errorf("%w: %s", ErrPartExists, kind)
	}
	r.parts[kind] = &Part{Kind: kind, Format: format, source: src}
	a.recon = true
	return nil
}

// DeletePart stages removal of a part.
func (a *Archive) DeletePart(r *Record, kind PartKind) error {
	if err := a.mutable(); err != nil {
		return err
	}
	if r.deleted || !a.owns(r) {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, r.name)
	}
	if _, ok := r.parts[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrPartNotFound, kind)
	}
	delete(r.parts, kind)
	a.recon = true
	return nil
}

func (a *Archive) owns(r *Record) bool {
	for _, x := range a.records {
		if x == r {
			return true
		}
	}
	return false
}

// OpenPart returns an expanded, integrity-checked reader over a stored
// part. Reads happen outside the mutation bracket.
func (a *Archive) OpenPart(r *Record, kind PartKind) (io.ReadCloser, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if a.snapshot != nil {
		return nil, ErrTransactionOpen
	}
	p, ok := r.parts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, kind)
	}
	if p.Staged() {
		rc, err := p.source.Open()
		return rc, err
	}
	return a.ops.Open(a.src, r, kind)
}

// validate runs the commit-time checks over the final record set.
func (a *Archive) validate(recs []*Record) error {
	seen := map[string]bool{}
	for _, r := range recs {
		if err := a.ops.ValidName(r.name); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidName, r.name, err)
		}
		if seen[r.name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, r.name)
		}
		seen[r.name] = true
		if r.dir {
			if _, ok := r.parts[PartData]; ok {
				return fmt.Errorf("%w: %q", ErrDirectoryWithData, r.name)
			}
		}
	}
	if max := a.ops.MaxRecords(); max > 0 && len(recs) > max {
		return fmt.Errorf("%w: %d > %d", ErrTooManyRecords, len(recs), max)
	}
	return nil
}

// Commit validates the staged record set and writes a complete container
// into out. Validation failure leaves out untouched and the transaction
// open for correction. A failure while streaming truncates out to zero
// bytes and reverts the archive to its pre-transaction state; the caller
// may start over.
//
// On success the archive re-reads itself from out, which becomes its
// backing stream.
func (a *Archive) Commit(out Stream) error {
	if a.closed {
		return ErrClosed
	}
	if a.snapshot == nil {
		return ErrNoTransaction
	}
	if out == a.src {
		return ErrSelfOverwrite
	}
	final := a.Records()
	if err := a.validate(final); err != nil {
		return err
	}

	if err := out.Truncate(0); err != nil {
		return err
	}
	w := &offsetWriter{w: out}
	if err := a.ops.Write(w, final, a.openForWrite); err != nil {
		if terr := out.Truncate(0); terr != nil {
			a.logger.Error("rollback truncate failed", "format", a.ops.FormatName(), "err", terr)
		}
		a.records = a.snapshot
		a.snapshot = nil
		a.recon = false
		return err
	}
	if err := out.Truncate(w.off); err != nil {
		return err
	}

	recs, err := a.ops.Read(out, out.Size())
	if err != nil {
		return fmt.Errorf("arc: %s re-read after commit: %w", a.ops.FormatName(), err)
	}
	a.src = out
	a.records = recs
	a.snapshot = nil
	a.recon = false
	return nil
}

// openForWrite is the PartOpener handed to format Write implementations:
// staged parts stream from their source, stored parts from the old
// container through the format's own reader.
func (a *Archive) openForWrite(r *Record, kind PartKind) (io.ReadCloser, int64, error) {
	p, ok := r.parts[kind]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrPartNotFound, kind)
	}
	if p.Staged() {
		size, err := p.source.Size()
		if err != nil {
			return nil, 0, err
		}
		rc, err := p.source.Open()
		if err != nil {
			return nil, 0, err
		}
		return rc, size, nil
	}
	rc, err := a.ops.Open(a.src, r, kind)
	if err != nil {
		return nil, 0, err
	}
	return rc, p.Len, nil
}

// Close cancels any open transaction and marks the archive unusable.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	if a.snapshot != nil {
		a.logger.Warn("archive closed with open transaction, cancelling",
			"format", a.ops.FormatName())
		a.CancelTransaction()
	}
	a.closed = true
	return nil
}
