// Package disk provides addressable chunk access over raw disk-image bytes.
//
// # Overview
//
// A ChunkAccess is a view over a byte container, addressable by 512-byte
// logical block or by (track, sector) pair. It is the lowest layer of the
// storage stack: disk images bind a ChunkAccess over their data area,
// partitions bind sub-views of their parent image, and filesystems perform
// all I/O through the ChunkAccess they own.
//
// # Sector order
//
// Sector-interleave translation is a property of the access instance, not of
// the data. A ".do" image stores sectors in DOS 3.3 logical order while a
// ".po" image stores ProDOS blocks sequentially; both expose identical
// ReadBlock/ReadSector semantics because the order translation is applied on
// every read and write. See order.go for the translation rule.
//
// # Damage map
//
// Every chunk can be independently marked unreadable or unwritable. Marks are
// sticky: they survive sub-view creation and are cleared only by Initialize
// (the reformat path). Sub-views share their root's damage map, so damage
// observed through a partition is visible through the parent and vice versa.
//
// # Sub-views
//
// CreateSubset carves a contiguous, re-based slice out of a parent access.
// Sibling subsets may not overlap, and writes through a subset can never
// touch bytes outside its declared range. Invalidate disposes a view and,
// transitively, every sub-view below it.
package disk
