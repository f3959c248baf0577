package part

import (
	"fmt"

	"github.com/joshuapare/diskkit/fs"
)

// embedSizes are the block counts of geometries worth probing for, largest
// first: 32 MB ProDOS limit (with and without the classic off-by-one), an
// 800K disk, a 140K disk.
var embedSizes = []uint32{65536, 65535, 1600, 280}

// FindEmbeddedVolumes scans the free ranges of an analyzed volume for
// filesystems hiding inside them and returns them as a table, with every
// discovered volume adopted as a child of v so descriptor pinning reaches
// the outer volume.
//
// A free range can hold several geometries; the choice is deterministic:
// the largest candidate size that evenly divides the range wins, and the
// range is probed in slices of that size from its lowest offset.
func FindEmbeddedVolumes(v *fs.Volume) (*Table, error) {
	free, ok := v.FreeRanges()
	if !ok {
		return nil, fmt.Errorf("part: %s: free space not enumerable", v.FormatName())
	}
	t := NewTable(v.Device())
	for _, ext := range free {
		size := uint32(0)
		for _, c := range embedSizes {
			if c <= ext.Count && ext.Count%c == 0 {
				size = c
				break
			}
		}
		if size == 0 {
			continue
		}
		for off := uint32(0); off < ext.Count; off += size {
			start := ext.Start + off
			sub, err := v.Device().CreateSubset(start, size)
			if err != nil {
				continue
			}
			inner, err := fs.Analyze(sub)
			if err != nil {
				sub.Invalidate()
				continue
			}
			p, err := t.Add(start, size, fmt.Sprintf("embedded@%d", start), inner.FormatName())
			if err != nil {
				inner.Close()
				continue
			}
			p.sub = sub
			p.vol = inner
			v.Adopt(inner)
		}
	}
	return t, nil
}
