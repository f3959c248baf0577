// Package codec defines the streaming compress/expand boundary used by
// archive parts and filesystem forks, and a registry of implementations.
//
// Codecs are pluggable: the archive engine selects one by Format tag and
// consumes it only through the Codec interface. Corruption (checksum or
// structure mismatch) is reported as an error wrapping ErrCorrupt, and is
// detectable both when the caller reads to end-of-stream and when it reads
// to the exact expected length.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Format tags a compression algorithm. Tags are stored in container part
// headers, so the numeric values are protocol constants.
type Format uint8

const (
	// FormatStore is the identity codec (no compression).
	FormatStore Format = 0

	// FormatFlate is DEFLATE via klauspost/compress.
	FormatFlate Format = 1

	// FormatLZ4 is LZ4 frame compression via pierrec/lz4.
	FormatLZ4 Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatStore:
		return "store"
	case FormatFlate:
		return "flate"
	case FormatLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

var (
	// ErrCorrupt indicates a checksum or structure mismatch in compressed
	// data. Distinguishable from transport errors so callers can classify
	// the containing entry instead of aborting.
	ErrCorrupt = errors.New("codec: corrupt compressed data")

	// ErrUnknownFormat indicates a format tag with no registered codec.
	ErrUnknownFormat = errors.New("codec: unknown format")
)

// Codec is one streaming compression algorithm.
type Codec interface {
	// Compressor returns a sink that compresses writes into w. Close
	// flushes trailing state and must be called before the output is
	// complete.
	Compressor(w io.Writer) (io.WriteCloser, error)

	// Expander returns a source that expands r. expectedLen is the
	// uncompressed length recorded by the container, or -1 when unknown.
	Expander(r io.Reader, expectedLen int64) (io.ReadCloser, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[Format]Codec{}
)

// Register installs a codec for a format tag, replacing any previous one.
func Register(f Format, c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f] = c
}

// Lookup returns the codec registered for f.
func Lookup(f Format) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	return c, nil
}

// Registered reports whether a codec exists for f.
func Registered(f Format) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[f]
	return ok
}

// checkedReader enforces the exact-length detection contract: once the
// caller has consumed expectedLen bytes, the underlying expander is probed
// one byte further so trailing-checksum validation runs even when the
// caller never reads to EOF.
type checkedReader struct {
	rc       io.ReadCloser
	expected int64 // -1 when unknown
	consumed int64
	probed   bool
	err      error
}

// NewCheckedReader wraps an expander stream with length accounting. Reads
// past expectedLen return io.EOF; reaching expectedLen triggers trailer
// verification on the spot.
func NewCheckedReader(rc io.ReadCloser, expectedLen int64) io.ReadCloser {
	return &checkedReader{rc: rc, expected: expectedLen}
}

func (c *checkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.expected >= 0 {
		remain := c.expected - c.consumed
		if remain == 0 {
			c.err = c.probe()
			if c.err == nil {
				c.err = io.EOF
			}
			return 0, c.err
		}
		if int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := c.rc.Read(p)
	c.consumed += int64(n)
	if err == nil && c.expected >= 0 && c.consumed == c.expected {
		// Force trailer validation now rather than on the next call, so a
		// checksum mismatch surfaces at the exact-length read too.
		if perr := c.probe(); perr != nil {
			c.err = perr
			return n, perr
		}
	}
	if err == io.EOF && c.expected >= 0 && c.consumed < c.expected {
		err = fmt.Errorf("%w: short stream (%d of %d bytes)", ErrCorrupt, c.consumed, c.expected)
	}
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}

func (c *checkedReader) probe() error {
	if c.probed {
		return nil
	}
	c.probed = true
	var scratch [1]byte
	n, err := c.rc.Read(scratch[:])
	switch {
	case n > 0:
		return fmt.Errorf("%w: stream longer than declared length %d", ErrCorrupt, c.expected)
	case err == nil || err == io.EOF:
		return nil
	default:
		return err
	}
}

func (c *checkedReader) Close() error { return c.rc.Close() }
