package codec

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec implements LZ4 frame compression. The frame format carries block
// and frame checksums, so mismatches are detected by the lz4 reader itself
// and mapped onto ErrCorrupt here.
type lz4Codec struct{}

func (lz4Codec) Compressor(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Codec) Expander(r io.Reader, expectedLen int64) (io.ReadCloser, error) {
	return NewCheckedReader(&lz4Reader{zr: lz4.NewReader(r)}, expectedLen), nil
}

type lz4Reader struct {
	zr *lz4.Reader
}

func (l *lz4Reader) Read(p []byte) (int, error) {
	n, err := l.zr.Read(p)
	if err != nil && err != io.EOF {
		// Anything the frame decoder rejects mid-stream is data-level
		// damage from the caller's point of view.
		err = fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, err
}

func (l *lz4Reader) Close() error { return nil }

func init() {
	Register(FormatLZ4, lz4Codec{})
}
