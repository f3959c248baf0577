package nameconv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHighASCIIRoundTrip(t *testing.T) {
	raw := ToHighASCII("HELLO", 30)
	require.Len(t, raw, 30)
	require.Equal(t, byte('H')|0x80, raw[0])
	require.Equal(t, byte(0xA0), raw[29])
	require.Equal(t, "HELLO", FromHighASCII(raw))
}

func TestHighASCIITruncates(t *testing.T) {
	raw := ToHighASCII("ABCDEFGH", 4)
	require.Equal(t, "ABCD", FromHighASCII(raw))
}

func TestMacRomanRoundTrip(t *testing.T) {
	// 0xA5 is the bullet character in Mac OS Roman.
	name := FromMacRoman([]byte{'T', 'e', 's', 't', 0xA5})
	require.Equal(t, "Test•", name)
	require.Equal(t, []byte{'T', 'e', 's', 't', 0xA5}, ToMacRoman(name))
}

func TestIsPrintableASCII(t *testing.T) {
	require.True(t, IsPrintableASCII("HELLO.WORLD"))
	require.False(t, IsPrintableASCII("bad\x01name"))
	require.False(t, IsPrintableASCII("café"))
}

func TestTrimPadding(t *testing.T) {
	require.Equal(t, "SYSTEM", TrimPadding([]byte("SYSTEM  \x00")))
}
