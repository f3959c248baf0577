// Package dos3 implements the DOS 3.3 filesystem: a VTOC on track 17, a
// chained catalog of flat 35-byte entries, and per-file track/sector lists.
// File content is addressed in 256-byte sectors; a (0,0) pair in a T/S list
// is a sparse hole, common in random-access text files.
//
// The package registers itself with the fs driver; callers normally reach
// it through fs.Analyze.
package dos3
