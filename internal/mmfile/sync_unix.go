//go:build unix

package mmfile

import "golang.org/x/sys/unix"

// Sync flushes a mapped region back to its file with msync(MS_SYNC).
// data must be a slice returned by MapRW (page-aligned base).
func Sync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}
