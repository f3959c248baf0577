//go:build !unix

package mmfile

// Sync is a no-op on platforms without shared mappings; MapRW loads a copy
// and persistence is the caller's responsibility.
func Sync(data []byte) error {
	return nil
}
