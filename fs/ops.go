package fs

import (
	"io"
	"sort"
	"sync"

	"github.com/joshuapare/diskkit/disk"
)

// Fork is random-access content of one entry fork, as exposed by a format
// package. A "cooked" fork presents reassembled content; a "raw" fork
// presents the stored layout and may be sparse.
type Fork interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// SparseFork is a raw fork with hole/data structure. Offsets returned are
// clamped to [off, Size].
type SparseFork interface {
	Fork

	// NextData returns the offset of the next byte at or after off that
	// lies in a data region, or Size when none remains.
	NextData(off int64) int64

	// NextHole returns the offset of the next hole at or after off, or
	// Size when the remainder is data.
	NextHole(off int64) int64
}

// Ops is the format-specific half of a volume. Implementations parse and
// serialize their own directory and allocation structures; all protocol
// decisions (modes, scanning policy, descriptor rules) stay in the driver.
type Ops interface {
	// FormatName returns the format's short name ("dos3", "pascal").
	FormatName() string

	// ValidVolumeName validates a volume name against format rules.
	ValidVolumeName(name string) error

	// ValidFileName validates a file name against format rules.
	ValidFileName(name string) error

	// Format writes empty directory and allocation structures. The driver
	// has already zero-filled the device.
	Format(dev *disk.ChunkAccess, volName string, bootable bool) error

	// Load parses the directory tree. Structural anomalies are reported
	// through sc (never by failing the whole load, except when the volume
	// root itself cannot be parsed). Allocation-unit visits go through
	// sc.VisitUnit so the driver can stop cycles.
	Load(dev *disk.ChunkAccess, sc *Scan) (*Entry, error)

	// Create adds a new file or directory under parent and persists it.
	Create(dev *disk.ChunkAccess, parent *Entry, name string, dir bool) (*Entry, error)

	// Delete removes the entry from its directory and frees its storage.
	Delete(dev *disk.ChunkAccess, e *Entry) error

	// Rename persists a name change.
	Rename(dev *disk.ChunkAccess, e *Entry, newName string) error

	// SaveAttrs persists staged attribute changes of e.
	SaveAttrs(dev *disk.ChunkAccess, e *Entry) error

	// OpenFork opens entry content. raw selects the stored layout view.
	OpenFork(dev *disk.ChunkAccess, e *Entry, raw bool) (Fork, error)
}

// FreeMapper is implemented by formats that can enumerate allocation ranges
// not claimed by any entry. Embedded-volume discovery scans these ranges.
type FreeMapper interface {
	// FreeRanges returns free block ranges in device block units.
	FreeRanges(dev *disk.ChunkAccess) []Extent
}

// Probe inspects a device and returns the format's Ops when it recognizes
// the on-disk structures.
type Probe func(dev *disk.ChunkAccess) (Ops, bool)

var (
	probeMu sync.RWMutex
	probes  []struct {
		name string
		p    Probe
	}
)

// RegisterProbe installs a filesystem recognizer. Format packages call this
// from init; order of registration breaks ties, so more distinctive formats
// register first.
func RegisterProbe(name string, p Probe) {
	probeMu.Lock()
	defer probeMu.Unlock()
	probes = append(probes, struct {
		name string
		p    Probe
	}{name, p})
}

// Analyze tries every registered probe against the device and binds a
// Volume for the first match. The device stays in Raw mode.
func Analyze(dev *disk.ChunkAccess) (*Volume, error) {
	probeMu.RLock()
	defer probeMu.RUnlock()
	for _, entry := range probes {
		if ops, ok := entry.p(dev); ok {
			return NewVolume(dev, ops), nil
		}
	}
	return nil, ErrUnrecognized
}

// ProbeNames returns the registered format names, sorted.
func ProbeNames() []string {
	probeMu.RLock()
	defer probeMu.RUnlock()
	names := make([]string, 0, len(probes))
	for _, e := range probes {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}
