// Package arc is the transactional file-archive engine. An Archive pairs a
// format implementation (Binary II, LBR, gzip) with a driver that owns the
// transaction protocol: all mutations happen between StartTransaction and
// Commit, Commit streams a complete new container and never modifies the
// source in place, and any failure mid-commit leaves a zero-length output
// and the archive back in its idle state.
//
// Formats describe records and parts; the driver decides when they may
// change and what a well-formed record set looks like.
package arc
