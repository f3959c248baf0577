//go:build !unix

// Package mmfile provides platform-specific helpers for memory-mapping
// disk-image files.
package mmfile

import "os"

// Map reads the entire file when mmap is not available.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}

// MapRW reads the entire file when mmap is not available. Mutations made
// through the returned slice are NOT written back; callers on such platforms
// must persist explicitly.
func MapRW(path string) ([]byte, func() error, error) {
	return Map(path)
}
