package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkewTablesArePermutations(t *testing.T) {
	for _, tbl := range []*[16]uint8{&physFromDOS, &physFromPro, &physFromCPM, &physIdent} {
		seen := [16]bool{}
		for _, p := range tbl {
			require.Less(t, int(p), 16)
			require.False(t, seen[p], "duplicate physical sector %d", p)
			seen[p] = true
		}
	}
}

func TestStoredSectorIdentityWhenOrdersMatch(t *testing.T) {
	for s := uint32(0); s < 16; s++ {
		got, err := storedSector(OrderDOS, OrderDOS, s)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestStoredSectorBijective(t *testing.T) {
	orders := []SectorOrder{OrderPhysical, OrderDOS, OrderProDOS, OrderCPM}
	for _, img := range orders {
		for _, req := range orders {
			seen := [16]bool{}
			for s := uint32(0); s < 16; s++ {
				got, err := storedSector(img, req, s)
				require.NoError(t, err)
				require.Less(t, int(got), 16)
				require.False(t, seen[got], "img=%s req=%s s=%d collides", img, req, s)
				seen[got] = true
			}
		}
	}
}

func TestStoredSectorDOSInPhysicalImage(t *testing.T) {
	// A physical-order image stores DOS logical sector s at its physical
	// address, so the translation is the DOS skew table itself.
	for s := uint32(0); s < 16; s++ {
		got, err := storedSector(OrderPhysical, OrderDOS, s)
		require.NoError(t, err)
		require.Equal(t, uint32(physFromDOS[s]), got)
	}
}

func TestStoredSectorRejectsUnknownOrder(t *testing.T) {
	_, err := storedSector(OrderUnknown, OrderDOS, 0)
	require.Error(t, err)
	_, err = storedSector(OrderDOS, OrderDOS, 16)
	require.Error(t, err)
}

func TestOrderString(t *testing.T) {
	require.Equal(t, "dos", OrderDOS.String())
	require.Equal(t, "prodos", OrderProDOS.String())
	require.Equal(t, "unknown(0)", OrderUnknown.String())
}
