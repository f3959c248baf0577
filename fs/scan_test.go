package fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVisitUnitDetectsRevisit(t *testing.T) {
	sc := newScan(200)
	require.True(t, sc.VisitUnit(0))
	require.True(t, sc.VisitUnit(199))
	require.True(t, sc.VisitUnit(64)) // word boundary
	require.False(t, sc.VisitUnit(0))
	require.False(t, sc.VisitUnit(64))
	require.False(t, sc.VisitUnit(200)) // out of range counts as invalid
	require.True(t, sc.Visited(199))
	require.False(t, sc.Visited(1))
}

func TestOverlapMarksExactlyTheOverlappingPair(t *testing.T) {
	root := NewVolumeEntry("VOL")
	a := NewEntry("A", false)
	a.SetExtents([]Extent{{Start: 10, Count: 5}})
	b := NewEntry("B", false)
	b.SetExtents([]Extent{{Start: 12, Count: 5}})
	c := NewEntry("C", false)
	c.SetExtents([]Extent{{Start: 30, Count: 5}})
	root.Attach(a)
	root.Attach(b)
	root.Attach(c)

	sc := newScan(100)
	sc.checkOverlaps(root)

	// Overlap is suspicious, not fatal: both claimants become Dubious,
	// the bystander stays untouched.
	require.Equal(t, HealthDubious, a.Health())
	require.Equal(t, HealthDubious, b.Health())
	require.Equal(t, HealthOK, c.Health())
	require.Equal(t, HealthOK, root.Health())

	var pairFindings, summary int
	for _, f := range sc.Findings() {
		require.Equal(t, SevDubious, f.Sev)
		if f.Path == "" {
			summary++
			require.Contains(t, f.Message, "1 overlapping")
		} else {
			pairFindings++
		}
	}
	require.Equal(t, 1, pairFindings)
	require.Equal(t, 1, summary)
}

func TestOverlapReportsEachPairOnce(t *testing.T) {
	root := NewVolumeEntry("VOL")
	a := NewEntry("A", false)
	a.SetExtents([]Extent{{Start: 0, Count: 4}, {Start: 8, Count: 4}})
	b := NewEntry("B", false)
	b.SetExtents([]Extent{{Start: 2, Count: 8}}) // hits both of A's extents
	root.Attach(a)
	root.Attach(b)

	sc := newScan(100)
	sc.checkOverlaps(root)

	var pairFindings int
	for _, f := range sc.Findings() {
		if f.Path != "" {
			pairFindings++
		}
	}
	require.Equal(t, 1, pairFindings)
}

func TestOverlapIgnoresSelfAndEmptyExtents(t *testing.T) {
	root := NewVolumeEntry("VOL")
	a := NewEntry("A", false)
	a.SetExtents([]Extent{{Start: 5, Count: 3}, {Start: 6, Count: 0}})
	root.Attach(a)

	sc := newScan(100)
	sc.checkOverlaps(root)
	require.Empty(t, sc.Findings())
	require.Equal(t, HealthOK, a.Health())
}

func TestCountMismatchAsymmetry(t *testing.T) {
	// Recorded lower than live is flagged.
	root := NewVolumeEntry("VOL")
	root.SetRecordedChildCount(1)
	root.Attach(NewEntry("A", false))
	root.Attach(NewEntry("B", false))

	sc := newScan(100)
	require.True(t, sc.checkCounts(root))
	require.Len(t, sc.Findings(), 1)
	require.Equal(t, SevDubious, sc.Findings()[0].Sev)

	// Recorded higher than live is tolerated: real volumes do this.
	root2 := NewVolumeEntry("VOL")
	root2.SetRecordedChildCount(9)
	root2.Attach(NewEntry("A", false))

	sc2 := newScan(100)
	require.False(t, sc2.checkCounts(root2))
	require.Empty(t, sc2.Findings())

	// No recorded count at all means nothing to compare.
	root3 := NewVolumeEntry("VOL")
	root3.Attach(NewEntry("A", false))
	sc3 := newScan(100)
	require.False(t, sc3.checkCounts(root3))
}

func TestFindingString(t *testing.T) {
	f := Finding{Sev: SevDubious, Path: "VOL/A", Message: "bad"}
	require.Equal(t, "[dubious] VOL/A: bad", f.String())
	vol := Finding{Sev: SevDamaged, Message: "broken"}
	require.Equal(t, "[damaged] broken", vol.String())
}

func TestEntryPath(t *testing.T) {
	root := NewVolumeEntry("VOL")
	dir := NewEntry("DIR", true)
	file := NewEntry("F", false)
	root.Attach(dir)
	dir.Attach(file)
	require.Equal(t, "VOL/DIR/F", file.Path())
	require.True(t, strings.HasPrefix(file.Path(), root.Path()))
}
