package fs

// Health classifies the structural state of an entry or a whole volume.
type Health int

const (
	// HealthOK means no structural problem was observed.
	HealthOK Health = iota

	// HealthDubious means structurally suspicious but content-readable,
	// e.g. an allocation range shared with another entry.
	HealthDubious

	// HealthDamaged means content cannot be safely read, e.g. an
	// out-of-range block pointer or a cyclic directory reference.
	HealthDamaged
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthDubious:
		return "dubious"
	case HealthDamaged:
		return "damaged"
	default:
		return "unknown"
	}
}

// Extent is a contiguous run of allocation units claimed by an entry.
// The unit is format-defined (sectors for DOS 3.3, blocks for Pascal).
type Extent struct {
	Start uint32
	Count uint32
}

// Entry is one node of a volume's directory tree. Attribute setters stage
// changes on the in-memory node; nothing reaches disk until SaveAttrs is
// called through the owning volume.
type Entry struct {
	name     string
	dir      bool
	volume   bool // root volume-directory entry
	parent   *Entry
	children []*Entry

	health  Health
	invalid bool // set when the entry is deleted

	dataLen int64
	extents []Extent

	fileType uint8
	auxType  uint16
	locked   bool

	// recordedCount is the child count stored in the directory structure,
	// or -1 when the format does not record one. Compared against the
	// live count during scanning.
	recordedCount int

	attrsDirty bool

	// Priv carries the format package's private per-entry state (catalog
	// slot location, first block, ...). Opaque to the driver.
	Priv any
}

// NewEntry constructs a tree node. Format packages call this from Load and
// Create hooks.
func NewEntry(name string, dir bool) *Entry {
	return &Entry{name: name, dir: dir, recordedCount: -1}
}

// NewVolumeEntry constructs the root volume-directory node.
func NewVolumeEntry(name string) *Entry {
	e := NewEntry(name, true)
	e.volume = true
	return e
}

// Name returns the entry's name.
func (e *Entry) Name() string { return e.name }

// IsDirectory reports whether the entry is a directory.
func (e *Entry) IsDirectory() bool { return e.dir }

// IsVolume reports whether this is the root volume-directory entry.
func (e *Entry) IsVolume() bool { return e.volume }

// Parent returns the containing directory, or nil for the root.
func (e *Entry) Parent() *Entry { return e.parent }

// Children returns the live child list. Callers must not mutate it.
func (e *Entry) Children() []*Entry { return e.children }

// Health returns the entry's scan classification.
func (e *Entry) Health() Health { return e.health }

// MarkDubious raises the entry to Dubious unless it is already Damaged.
func (e *Entry) MarkDubious() {
	if e.health == HealthOK {
		e.health = HealthDubious
	}
}

// MarkDamaged raises the entry to Damaged.
func (e *Entry) MarkDamaged() { e.health = HealthDamaged }

// DataLen returns the logical data length.
func (e *Entry) DataLen() int64 { return e.dataLen }

// SetDataLen stages a new logical length. Format hooks also call this while
// loading.
func (e *Entry) SetDataLen(n int64) { e.dataLen = n }

// Extents returns the allocation ranges claimed by the entry.
func (e *Entry) Extents() []Extent { return e.extents }

// SetExtents replaces the entry's allocation ranges.
func (e *Entry) SetExtents(ex []Extent) { e.extents = ex }

// FileType returns the format-specific file type code.
func (e *Entry) FileType() uint8 { return e.fileType }

// SetFileType stages a new file type. Persisted by SaveAttrs.
func (e *Entry) SetFileType(t uint8) {
	if e.fileType != t {
		e.fileType = t
		e.attrsDirty = true
	}
}

// AuxType returns the format-specific auxiliary type.
func (e *Entry) AuxType() uint16 { return e.auxType }

// SetAuxType stages a new auxiliary type. Persisted by SaveAttrs.
func (e *Entry) SetAuxType(t uint16) {
	if e.auxType != t {
		e.auxType = t
		e.attrsDirty = true
	}
}

// Locked reports the entry's locked (write-protect) flag.
func (e *Entry) Locked() bool { return e.locked }

// SetLocked stages the locked flag. Persisted by SaveAttrs.
func (e *Entry) SetLocked(locked bool) {
	if e.locked != locked {
		e.locked = locked
		e.attrsDirty = true
	}
}

// AttrsDirty reports whether staged attribute changes await SaveAttrs.
func (e *Entry) AttrsDirty() bool { return e.attrsDirty }

// ClearAttrsDirty is called by the driver after a successful SaveAttrs.
func (e *Entry) ClearAttrsDirty() { e.attrsDirty = false }

// RecordedChildCount returns the child count stored on disk, or -1.
func (e *Entry) RecordedChildCount() int { return e.recordedCount }

// SetRecordedChildCount is called by format Load hooks for directories
// whose structure stores an explicit entry count.
func (e *Entry) SetRecordedChildCount(n int) { e.recordedCount = n }

// Valid reports whether the entry is still live (not deleted).
func (e *Entry) Valid() bool { return !e.invalid }

// Attach links child under e. Used by format hooks while building and
// mutating the tree.
func (e *Entry) Attach(child *Entry) {
	child.parent = e
	e.children = append(e.children, child)
}

// Detach unlinks child from e and marks it invalid, which fails any
// descriptor still holding it.
func (e *Entry) Detach(child *Entry) {
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			break
		}
	}
	child.parent = nil
	child.invalid = true
}

// ChildNamed returns the child with the exact name, or nil. Formats with
// case-insensitive names normalize before storing.
func (e *Entry) ChildNamed(name string) *Entry {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Rename is the driver-side half of a rename; the format hook has already
// persisted the change when this is called.
func (e *Entry) rename(name string) { e.name = name }

// Path returns the slash-joined path from the volume root.
func (e *Entry) Path() string {
	if e.parent == nil {
		return e.name
	}
	return e.parent.Path() + "/" + e.name
}
