// Package fs implements the common filesystem engine shared by every
// on-disk format: the entry tree, the Raw/FileAccess lifecycle, the
// structural damage scan, and open-descriptor bookkeeping.
//
// # Division of labor
//
// The generic driver (Volume) owns protocol: mode transitions, scan
// classification, descriptor pinning, and the create/delete/rename rules
// that are identical across formats. Format packages (fs/dos3, fs/pascal)
// implement the Ops interface: parsing and serializing their directory and
// allocation structures, nothing else. Scanning policy lives here exactly
// once; a format package never decides what counts as Dubious.
//
// # Lifecycle
//
//	Unformatted --Format--> Raw <--PrepareRawAccess/PrepareFileAccess--> FileAccess
//
// Raw block/sector I/O through the volume's ChunkAccess is only legal in
// Raw mode. Structural mutation (create, delete, rename, attribute save) is
// only legal in FileAccess mode. PrepareFileAccess(scan=true) runs the full
// structural verification pass and classifies entries as healthy, Dubious
// (structurally suspicious, content readable) or Damaged (content unsafe to
// read). Any Damaged entry escalates the whole volume to Dubious and
// read-only.
//
// # Nesting
//
// A volume analyzed out of a partition, or discovered embedded inside
// another volume's free space, is adopted as a child of its parent volume.
// Open descriptors pin every ancestor: PrepareRawAccess fails while any
// descendant descriptor remains open, and Close tears down children first.
package fs
