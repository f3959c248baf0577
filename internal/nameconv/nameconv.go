// Package nameconv converts file and volume names between Go strings and the
// one-byte charsets used by legacy Apple-era containers.
//
// Three encodings cover the formats in this module:
//
//   - High ASCII: plain ASCII with the high bit forced on, space-padded with
//     0xA0. DOS 3.3 catalog entries store names this way.
//   - Mac OS Roman: the classic Mac single-byte charset, used for HFS-style
//     names and GS/OS option lists. Decoded through x/text's charmap so
//     accented characters survive the round trip.
//   - Plain ASCII: Pascal, CP/M and ProDOS names.
package nameconv

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const highBit = 0x80

// FromHighASCII decodes a high-ASCII byte sequence, stripping the high bit
// and trailing 0xA0 padding.
func FromHighASCII(raw []byte) string {
	end := len(raw)
	for end > 0 && (raw[end-1] == 0xA0 || raw[end-1] == 0x00) {
		end--
	}
	out := make([]byte, end)
	for i := 0; i < end; i++ {
		out[i] = raw[i] &^ highBit
	}
	return string(out)
}

// ToHighASCII encodes name as high ASCII into a field of width bytes,
// padding with 0xA0. Names longer than width are truncated.
func ToHighASCII(name string, width int) []byte {
	out := make([]byte, width)
	for i := range out {
		out[i] = 0xA0
	}
	for i := 0; i < len(name) && i < width; i++ {
		out[i] = name[i] | highBit
	}
	return out
}

// FromMacRoman decodes Mac OS Roman bytes into a Go string. Mac OS Roman
// maps every byte value, so decoding cannot fail.
func FromMacRoman(raw []byte) string {
	decoded, err := charmap.Macintosh.NewDecoder().Bytes(raw)
	if err != nil {
		// Unreachable for a complete single-byte charmap; fall back to
		// a lossy byte-for-byte copy rather than dropping the name.
		return string(raw)
	}
	return string(decoded)
}

// ToMacRoman encodes a Go string as Mac OS Roman. Characters outside the
// charset are replaced with the charset's substitution byte.
func ToMacRoman(name string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Macintosh.NewEncoder())
	encoded, err := enc.Bytes([]byte(name))
	if err != nil {
		out := make([]byte, 0, len(name))
		for _, r := range name {
			if r < 0x80 {
				out = append(out, byte(r))
			} else {
				out = append(out, '?')
			}
		}
		return out
	}
	return encoded
}

// IsPrintableASCII reports whether every byte of name is printable ASCII.
// Most legacy formats restrict names to this range.
func IsPrintableASCII(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7E {
			return false
		}
	}
	return true
}

// TrimPadding removes trailing spaces and NULs from a fixed-width name field.
func TrimPadding(raw []byte) string {
	return strings.TrimRight(string(raw), " \x00")
}
