// Package pascal implements the Apple Pascal (UCSD) filesystem: a flat
// directory in blocks 2-5 and strictly contiguous files. The directory
// records how many files it holds, and each entry records the byte count of
// its final block; everything else about a file is implied by its block
// range.
//
// Because free space is always a set of gaps between entries, the package
// implements the fs.FreeMapper interface, which embedded-volume discovery
// relies on.
package pascal
