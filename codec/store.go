package codec

import "io"

// storeCodec is the identity transform. Stored parts have no checksum of
// their own; containers that need one verify it a layer up.
type storeCodec struct{}

func (storeCodec) Compressor(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (storeCodec) Expander(r io.Reader, expectedLen int64) (io.ReadCloser, error) {
	return NewCheckedReader(io.NopCloser(r), expectedLen), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func init() {
	Register(FormatStore, storeCodec{})
}
