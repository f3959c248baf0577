package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// flateCodec implements DEFLATE streams. DEFLATE has no trailing checksum of
// its own; structural damage shows up as a CorruptInputError or a truncated
// stream, both of which are mapped onto ErrCorrupt.
type flateCodec struct{}

func (flateCodec) Compressor(w io.Writer) (io.WriteCloser, error) {
	zw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return zw, nil
}

func (flateCodec) Expander(r io.Reader, expectedLen int64) (io.ReadCloser, error) {
	return NewCheckedReader(&flateReader{zr: flate.NewReader(r)}, expectedLen), nil
}

type flateReader struct {
	zr io.ReadCloser
}

func (f *flateReader) Read(p []byte) (int, error) {
	n, err := f.zr.Read(p)
	if err != nil && err != io.EOF {
		var ce flate.CorruptInputError
		if errors.As(err, &ce) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return n, err
}

func (f *flateReader) Close() error { return f.zr.Close() }

func init() {
	Register(FormatFlate, flateCodec{})
}
