package fs

import (
	"fmt"

	"github.com/joshuapare/diskkit/disk"
)

// Mode is a volume's access state.
type Mode int

const (
	// ModeRaw permits raw chunk I/O and Format; the entry tree is not
	// available.
	ModeRaw Mode = iota

	// ModeFileAccess permits entry-tree operations and descriptor opens;
	// raw chunk I/O is not legal.
	ModeFileAccess
)

func (m Mode) String() string {
	if m == ModeFileAccess {
		return "file-access"
	}
	return "raw"
}

// Volume is the generic filesystem driver. It owns exactly one ChunkAccess
// and delegates format-specific structure handling to its Ops.
type Volume struct {
	dev *disk.ChunkAccess
	ops Ops

	mode Mode
	root *Entry
	scan *Scan

	dubious     bool
	escalatedRO bool

	fds      []*Descriptor
	parent   *Volume
	children []*Volume
	closed   bool
}

// NewVolume binds a driver over a device. The volume starts in Raw mode;
// call PrepareFileAccess before touching the entry tree.
func NewVolume(dev *disk.ChunkAccess, ops Ops) *Volume {
	return &Volume{dev: dev, ops: ops}
}

// FormatName returns the bound format's short name.
func (v *Volume) FormatName() string { return v.ops.FormatName() }

// Mode returns the current access mode.
func (v *Volume) Mode() Mode { return v.mode }

// Device returns the volume's chunk access. Composition layers use it to
// carve partition sub-views; performing raw I/O through it while the volume
// is in FileAccess mode violates the access contract.
func (v *Volume) Device() *disk.ChunkAccess { return v.dev }

// IsDubious reports whether scanning found structural problems anywhere on
// the volume.
func (v *Volume) IsDubious() bool { return v.dubious }

// ReadOnly reports whether mutations are rejected, either because the
// backing device is read-only or because damage escalated the volume.
func (v *Volume) ReadOnly() bool { return v.dev.ReadOnly() || v.escalatedRO }

// Root returns the volume-directory entry, or nil in Raw mode.
func (v *Volume) Root() *Entry { return v.root }

// Findings returns the last scan's findings.
func (v *Volume) Findings() []Finding {
	if v.scan == nil {
		return nil
	}
	return v.scan.Findings()
}

// Format initializes empty directory and allocation structures. Legal only
// in Raw mode on a writable device; the volume name must satisfy the
// format's rules. The device is zero-filled first, which also clears its
// damage map (reformat is the one path that un-sticks damage marks).
func (v *Volume) Format(volName string, bootable bool) error {
	if v.closed {
		return ErrVolumeBusy
	}
	if v.mode != ModeRaw {
		return ErrNotRawMode
	}
	if v.ReadOnly() {
		return ErrReadOnlyFS
	}
	if err := v.ops.ValidVolumeName(volName); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := v.dev.Initialize(); err != nil {
		return err
	}
	v.dubious = false
	v.escalatedRO = false
	v.scan = nil
	return v.ops.Format(v.dev, volName, bootable)
}

// PrepareFileAccess builds the entry tree and enters FileAccess mode. With
// scan=true the full structural verification pass runs: every allocation
// unit is visited at most once, allocation overlaps and directory count
// mismatches are classified, and any Damaged entry escalates the volume to
// Dubious and read-only. Calling it in FileAccess mode is a no-op.
func (v *Volume) PrepareFileAccess(scan bool) error {
	if v.closed {
		return ErrVolumeBusy
	}
	if v.mode == ModeFileAccess {
		return nil
	}
	sc := newScan(v.scanUnits())
	root, err := v.ops.Load(v.dev, sc)
	if err != nil {
		return fmt.Errorf("fs: %s load: %w", v.ops.FormatName(), err)
	}
	v.root = root
	v.scan = sc
	v.mode = ModeFileAccess
	v.dubious = false
	v.escalatedRO = false
	if scan {
		sc.checkOverlaps(root)
		if sc.checkCounts(root) {
			v.dubious = true
		}
	}
	v.escalate()
	return nil
}

func (v *Volume) scanUnits() uint32 {
	if v.dev.Tracks() > 0 {
		return v.dev.Tracks() * v.dev.SectorsPerTrack()
	}
	return v.dev.NumBlocks()
}

// escalate recomputes volume-level flags from entry health. Damaged content
// anywhere forces the whole volume read-only; mutation on a structure that
// is already lying about itself only spreads the damage.
func (v *Volume) escalate() {
	walkTree(v.root, func(e *Entry) {
		switch e.Health() {
		case HealthDubious:
			v.dubious = true
		case HealthDamaged:
			v.dubious = true
			v.escalatedRO = true
		}
	})
}

// PrepareRawAccess force-closes this volume's open descriptors, tears down
// any embedded child volumes, and returns to Raw mode. It fails with
// ErrVolumeBusy while a descendant volume still has a descriptor open: the
// caller must release the inner volume before flattening the outer one.
func (v *Volume) PrepareRawAccess() error {
	if v.closed {
		return ErrVolumeBusy
	}
	if v.mode == ModeRaw {
		return nil
	}
	for _, child := range v.children {
		if child.openDescriptors() > 0 {
			return ErrVolumeBusy
		}
	}
	for len(v.fds) > 0 {
		v.fds[len(v.fds)-1].Close()
	}
	for len(v.children) > 0 {
		v.children[len(v.children)-1].Close()
	}
	v.root = nil
	v.mode = ModeRaw
	return nil
}

// openDescriptors counts descriptors open on this volume and every volume
// nested beneath it.
func (v *Volume) openDescriptors() int {
	n := len(v.fds)
	for _, child := range v.children {
		n += child.openDescriptors()
	}
	return n
}

// OpenDescriptorCount returns the number of descriptors open on this volume
// and its descendants.
func (v *Volume) OpenDescriptorCount() int { return v.openDescriptors() }

// Adopt registers child as nested beneath v, so open descriptors on child
// pin v in FileAccess mode. The composition layer calls this when it
// analyzes an embedded volume.
func (v *Volume) Adopt(child *Volume) {
	child.parent = v
	v.children = append(v.children, child)
}

// Children returns the adopted nested volumes.
func (v *Volume) Children() []*Volume { return v.children }

// CreateFile creates a file or directory under parent. FileAccess mode
// only; the name must be valid for the format and unique in parent.
func (v *Volume) CreateFile(parent *Entry, name string, dir bool) (*Entry, error) {
	if err := v.mutationOK(); err != nil {
		return nil, err
	}
	if !parent.Valid() {
		return nil, ErrEntryInvalid
	}
	if !parent.IsDirectory() {
		return nil, ErrNotDirectory
	}
	if err := v.ops.ValidFileName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if parent.ChildNamed(name) != nil {
		return nil, ErrDuplicateName
	}
	return v.ops.Create(v.dev, parent, name, dir)
}

// DeleteFile removes an entry. Deleting the volume directory, a non-empty
// directory, or an entry flagged Dubious/Damaged is rejected. Outstanding
// descriptors on the entry are invalidated, not closed: their next
// operation fails with ErrEntryInvalid.
func (v *Volume) DeleteFile(e *Entry) error {
	if err := v.mutationOK(); err != nil {
		return err
	}
	if !e.Valid() {
		return ErrEntryInvalid
	}
	if e.IsVolume() {
		return ErrCannotDeleteRoot
	}
	if e.Health() != HealthOK {
		return ErrEntryDamaged
	}
	if e.IsDirectory() && len(e.Children()) > 0 {
		return ErrDirNotEmpty
	}
	parent := e.Parent()
	if err := v.ops.Delete(v.dev, e); err != nil {
		return err
	}
	parent.Detach(e)
	return nil
}

// Rename changes an entry's name, enforcing validity and uniqueness.
func (v *Volume) Rename(e *Entry, newName string) error {
	if err := v.mutationOK(); err != nil {
		return err
	}
	if !e.Valid() {
		return ErrEntryInvalid
	}
	var validate error
	if e.IsVolume() {
		validate = v.ops.ValidVolumeName(newName)
	} else {
		validate = v.ops.ValidFileName(newName)
	}
	if validate != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, validate)
	}
	if p := e.Parent(); p != nil && p.ChildNamed(newName) != nil {
		return ErrDuplicateName
	}
	if err := v.ops.Rename(v.dev, e, newName); err != nil {
		return err
	}
	e.rename(newName)
	return nil
}

// SaveAttrs persists staged attribute edits of e.
func (v *Volume) SaveAttrs(e *Entry) error {
	if err := v.mutationOK(); err != nil {
		return err
	}
	if !e.Valid() {
		return ErrEntryInvalid
	}
	if err := v.ops.SaveAttrs(v.dev, e); err != nil {
		return err
	}
	e.ClearAttrsDirty()
	return nil
}

func (v *Volume) mutationOK() error {
	if v.closed {
		return ErrVolumeBusy
	}
	if v.mode != ModeFileAccess {
		return ErrNotFileAccess
	}
	if v.ReadOnly() {
		return ErrReadOnlyFS
	}
	return nil
}

// Open opens a descriptor on a file entry. write requires a writable,
// unescalated volume; raw selects the stored-layout (possibly sparse) view
// of the content. Read-write opens on a Damaged entry are rejected.
func (v *Volume) Open(e *Entry, write, raw bool) (*Descriptor, error) {
	if v.closed {
		return nil, ErrVolumeBusy
	}
	if v.mode != ModeFileAccess {
		return nil, ErrNotFileAccess
	}
	if !e.Valid() {
		return nil, ErrEntryInvalid
	}
	if e.IsDirectory() {
		return nil, ErrIsDirectory
	}
	if write {
		if v.ReadOnly() {
			return nil, ErrReadOnlyFS
		}
		if e.Health() == HealthDamaged {
			return nil, ErrEntryDamaged
		}
	}
	fork, err := v.ops.OpenFork(v.dev, e, raw)
	if err != nil {
		return nil, err
	}
	fd := &Descriptor{vol: v, entry: e, fork: fork, raw: raw, writable: write}
	v.fds = append(v.fds, fd)
	return fd, nil
}

func (v *Volume) removeFD(fd *Descriptor) {
	for i, f := range v.fds {
		if f == fd {
			v.fds = append(v.fds[:i], v.fds[i+1:]...)
			return
		}
	}
}

// FreeRanges enumerates block ranges not claimed by the filesystem, when
// the format supports it. Embedded-volume discovery scans these.
func (v *Volume) FreeRanges() ([]Extent, bool) {
	fm, ok := v.ops.(FreeMapper)
	if !ok {
		return nil, false
	}
	return fm.FreeRanges(v.dev), true
}

// Close disposes the volume: every descriptor is closed, children are
// closed first, and the device view is invalidated. Close runs the same
// teardown on every path and is idempotent.
func (v *Volume) Close() {
	if v.closed {
		return
	}
	for len(v.children) > 0 {
		v.children[len(v.children)-1].Close()
	}
	for len(v.fds) > 0 {
		v.fds[len(v.fds)-1].Close()
	}
	if p := v.parent; p != nil {
		for i, c := range p.children {
			if c == v {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		v.parent = nil
	}
	v.dev.Invalidate()
	v.root = nil
	v.closed = true
}
