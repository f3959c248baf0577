package sniff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/diskkit/disk"
)

func identify(data []byte, name string) Result {
	return Identify(bytes.NewReader(data), int64(len(data)), name)
}

func TestIdentifyGzip(t *testing.T) {
	res := identify([]byte{0x1F, 0x8B, 0x08, 0x00}, "disk.po.gz")
	require.Equal(t, KindGzip, res.Kind)
}

func TestIdentifyTwoIMG(t *testing.T) {
	data := make([]byte, 64+143360)
	copy(data, "2IMG")
	require.Equal(t, KindTwoIMG, identify(data, "x.2mg").Kind)
}

func TestIdentifyBinary2(t *testing.T) {
	data := make([]byte, 128)
	data[0], data[1], data[2] = 0x0A, 0x47, 0x4C
	data[18] = 0x02
	require.Equal(t, KindBinary2, identify(data, "files.bny").Kind)

	// Wrong granularity is not Binary II.
	odd := make([]byte, 130)
	copy(odd, data)
	require.NotEqual(t, KindBinary2, identify(odd, "files.bny").Kind)
}

func TestIdentifyLBR(t *testing.T) {
	data := make([]byte, 128)
	copy(data[1:], bytes.Repeat([]byte{' '}, 11))
	require.Equal(t, KindLBR, identify(data, "files.lbr").Kind)
}

func TestIdentifySectorImageByExtension(t *testing.T) {
	data := make([]byte, 143360)
	require.Equal(t, disk.OrderDOS, identify(data, "game.do").Order)
	require.Equal(t, disk.OrderDOS, identify(data, "game.dsk").Order)
	require.Equal(t, disk.OrderProDOS, identify(data, "sys.po").Order)
	require.Equal(t, KindSectorImage, identify(data, "").Kind)
}

func TestIdentifyThirteenSector(t *testing.T) {
	data := make([]byte, 35*13*256)
	res := identify(data, "old.d13")
	require.Equal(t, KindSectorImage, res.Kind)
	require.Equal(t, disk.OrderPhysical, res.Order)
}

func TestIdentifyNibble(t *testing.T) {
	data := make([]byte, 232960)
	require.Equal(t, KindNibble, identify(data, "game.nib").Kind)
}

func TestIdentifyBlockImage(t *testing.T) {
	data := make([]byte, 1600*512)
	res := identify(data, "hd.hdv")
	require.Equal(t, KindBlockImage, res.Kind)
	require.Equal(t, disk.OrderProDOS, res.Order)
}

func TestIdentifyUnknown(t *testing.T) {
	require.Equal(t, KindUnknown, identify([]byte{1, 2, 3}, "x.bin").Kind)
	require.Equal(t, KindUnknown, identify(nil, "").Kind)
}
