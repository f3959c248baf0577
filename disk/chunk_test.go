package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newBlockDevice(t *testing.T, blocks int) (*ChunkAccess, *MemContainer) {
	t.Helper()
	c := NewMemContainer(make([]byte, blocks*BlockSize))
	ca, err := NewBlockAccess(c)
	require.NoError(t, err)
	return ca, c
}

func TestBlockRoundTrip(t *testing.T) {
	ca, _ := newBlockDevice(t, 16)
	out := make([]byte, BlockSize)
	for i := range out {
		out[i] = byte(i)
	}
	require.NoError(t, ca.WriteBlock(5, out))

	in := make([]byte, BlockSize)
	require.NoError(t, ca.ReadBlock(5, in))
	require.Equal(t, out, in)
}

func TestBlockOutOfRange(t *testing.T) {
	ca, _ := newBlockDevice(t, 4)
	err := ca.ReadBlock(4, make([]byte, BlockSize))
	var re *RangeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, uint32(4), re.Index)
	require.Equal(t, uint32(4), re.Limit)
}

func TestBufSizeChecked(t *testing.T) {
	ca, _ := newBlockDevice(t, 4)
	require.ErrorIs(t, ca.ReadBlock(0, make([]byte, 100)), ErrBufSize)
}

func TestDamageMarksSticky(t *testing.T) {
	ca, _ := newBlockDevice(t, 8)
	require.NoError(t, ca.MarkBlockUnreadable(3))

	err := ca.ReadBlock(3, make([]byte, BlockSize))
	require.ErrorIs(t, err, ErrUnreadable)
	require.Equal(t, 2, ca.CountUnreadable()) // two sector halves

	exists, _ := ca.TestBlock(3)
	require.False(t, exists)

	// Initialize is the reformat path and is the only thing that clears marks.
	require.NoError(t, ca.Initialize())
	require.NoError(t, ca.ReadBlock(3, make([]byte, BlockSize)))
	require.Equal(t, 0, ca.CountUnreadable())
}

func TestUnwritableSticky(t *testing.T) {
	ca, _ := newBlockDevice(t, 8)
	require.NoError(t, ca.MarkBlockUnwritable(2))
	require.ErrorIs(t, ca.WriteBlock(2, make([]byte, BlockSize)), ErrUnwritable)
	// Still readable.
	require.NoError(t, ca.ReadBlock(2, make([]byte, BlockSize)))
	exists, writable := ca.TestBlock(2)
	require.True(t, exists)
	require.False(t, writable)
}

func TestReadOnlyContainer(t *testing.T) {
	c := NewROMemContainer(make([]byte, 4*BlockSize))
	ca, err := NewBlockAccess(c)
	require.NoError(t, err)
	require.True(t, ca.ReadOnly())
	require.ErrorIs(t, ca.WriteBlock(0, make([]byte, BlockSize)), ErrReadOnly)
}

func TestSubsetTranslation(t *testing.T) {
	ca, c := newBlockDevice(t, 16)
	sub, err := ca.CreateSubset(4, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(8), sub.NumBlocks())

	blk := make([]byte, BlockSize)
	blk[0] = 0xEE
	require.NoError(t, sub.WriteBlock(0, blk))
	// Sub-view block 0 is parent block 4.
	require.Equal(t, byte(0xEE), c.Bytes()[4*BlockSize])

	// Writes through the subset cannot escape the declared range.
	err = sub.WriteBlock(8, blk)
	var re *RangeError
	require.ErrorAs(t, err, &re)
}

func TestSubsetSharesDamage(t *testing.T) {
	ca, _ := newBlockDevice(t, 16)
	sub, err := ca.CreateSubset(4, 8)
	require.NoError(t, err)

	require.NoError(t, sub.MarkBlockUnreadable(1))
	// Parent block 5 is the same storage.
	require.ErrorIs(t, ca.ReadBlock(5, make([]byte, BlockSize)), ErrUnreadable)
	require.Equal(t, 2, sub.CountUnreadable())
}

func TestSubsetSiblingOverlapRejected(t *testing.T) {
	ca, _ := newBlockDevice(t, 16)
	_, err := ca.CreateSubset(0, 8)
	require.NoError(t, err)
	_, err = ca.CreateSubset(7, 4)
	require.ErrorIs(t, err, ErrOverlap)
	// Adjacent is fine.
	_, err = ca.CreateSubset(8, 8)
	require.NoError(t, err)
}

func TestInvalidatePropagates(t *testing.T) {
	ca, _ := newBlockDevice(t, 16)
	sub, err := ca.CreateSubset(0, 8)
	require.NoError(t, err)
	nested, err := sub.CreateSubset(2, 2)
	require.NoError(t, err)

	ca.Invalidate()
	require.True(t, sub.Invalidated())
	require.True(t, nested.Invalidated())
	require.ErrorIs(t, sub.ReadBlock(0, make([]byte, BlockSize)), ErrInvalidated)
}

func TestInvalidateFreesRange(t *testing.T) {
	ca, _ := newBlockDevice(t, 16)
	sub, err := ca.CreateSubset(0, 8)
	require.NoError(t, err)
	sub.Invalidate()
	// The range is free for a new subset once the old one is gone.
	_, err = ca.CreateSubset(0, 8)
	require.NoError(t, err)
}

func TestSectorGeometry(t *testing.T) {
	c := NewMemContainer(make([]byte, 35*16*SectorSize))
	ca, err := NewSectorAccess(c, 35, 16, OrderDOS)
	require.NoError(t, err)
	require.Equal(t, uint32(35), ca.Tracks())
	require.Equal(t, uint32(280), ca.NumBlocks())

	buf := make([]byte, SectorSize)
	buf[0] = 0x42
	require.NoError(t, ca.WriteSector(17, 0, buf))
	in := make([]byte, SectorSize)
	require.NoError(t, ca.ReadSector(17, 0, in))
	require.Equal(t, buf, in)

	// Sector access on a block device fails by geometry.
	bca, _ := newBlockDevice(t, 8)
	require.ErrorIs(t, bca.ReadSector(0, 0, buf), ErrGeometry)
}

func TestSectorDamage(t *testing.T) {
	c := NewMemContainer(make([]byte, 35*16*SectorSize))
	ca, err := NewSectorAccess(c, 35, 16, OrderDOS)
	require.NoError(t, err)
	require.NoError(t, ca.MarkSectorUnreadable(3, 5))
	require.ErrorIs(t, ca.ReadSector(3, 5, make([]byte, SectorSize)), ErrUnreadable)
	require.Equal(t, 1, ca.CountUnreadable())
}

func TestSubsetOnInterleavedTrackDeviceRejected(t *testing.T) {
	c := NewMemContainer(make([]byte, 35*16*SectorSize))
	ca, err := NewSectorAccess(c, 35, 16, OrderDOS)
	require.NoError(t, err)
	_, err = ca.CreateSubset(0, 8)
	require.ErrorIs(t, err, ErrGeometry)
}
