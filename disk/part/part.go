// Package part composes devices out of bigger devices: fixed partition
// maps, and volumes embedded in the free space of another filesystem. Each
// partition binds a sub-range chunk access lazily and can carry its own
// analyzed volume, nesting to any depth.
package part

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
)

var (
	// ErrNoMap indicates no partition map was found on the device.
	ErrNoMap = errors.New("part: no partition map")

	// ErrOverlap indicates a partition that intersects an existing one.
	ErrOverlap = errors.New("part: partitions overlap")
)

// Partition is one contiguous block range of a parent device.
type Partition struct {
	Start uint32
	Count uint32
	Name  string
	Type  string

	dev *disk.ChunkAccess
	sub *disk.ChunkAccess
	vol *fs.Volume
}

// Device returns the partition's own chunk access, creating the sub-view on
// first use. The view shares the parent's damage map.
func (p *Partition) Device() (*disk.ChunkAccess, error) {
	if p.sub == nil {
		sub, err := p.dev.CreateSubset(p.Start, p.Count)
		if err != nil {
			return nil, err
		}
		p.sub = sub
	}
	return p.sub, nil
}

// Analyze probes the partition for a filesystem and binds a volume over it.
// The result is cached; the volume starts in Raw mode.
func (p *Partition) Analyze() (*fs.Volume, error) {
	if p.vol != nil {
		return p.vol, nil
	}
	dev, err := p.Device()
	if err != nil {
		return nil, err
	}
	vol, err := fs.Analyze(dev)
	if err != nil {
		return nil, err
	}
	p.vol = vol
	return vol, nil
}

// Table is an ordered, non-overlapping set of partitions on one device.
type Table struct {
	dev   *disk.ChunkAccess
	parts []*Partition
}

// NewTable starts an empty table over dev.
func NewTable(dev *disk.ChunkAccess) *Table {
	return &Table{dev: dev}
}

// Add appends a partition, keeping the table sorted by start block. A range
// that escapes the device or intersects an existing member is rejected.
func (t *Table) Add(start, count uint32, name, typ string) (*Partition, error) {
	if count == 0 || start+count < start || start+count > t.dev.NumBlocks() {
		return nil, &disk.RangeError{Op: "add partition", Index: start + count, Limit: t.dev.NumBlocks()}
	}
	for _, q := range t.parts {
		if start < q.Start+q.Count && q.Start < start+count {
			return nil, fmt.Errorf("%w: %s at %d-%d", ErrOverlap, q.Name, q.Start, q.Start+q.Count)
		}
	}
	p := &Partition{Start: start, Count: count, Name: name, Type: typ, dev: t.dev}
	t.parts = append(t.parts, p)
	sort.Slice(t.parts, func(i, j int) bool { return t.parts[i].Start < t.parts[j].Start })
	return p, nil
}

// Partitions returns the members in start order.
func (t *Table) Partitions() []*Partition { return t.parts }

// Close invalidates every bound sub-view and closes analyzed volumes.
func (t *Table) Close() {
	for _, p := range t.parts {
		if p.vol != nil {
			p.vol.Close()
		} else if p.sub != nil {
			p.sub.Invalidate()
		}
	}
}
