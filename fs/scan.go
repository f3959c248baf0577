package fs

import (
	"fmt"
	"sort"
)

// Severity grades a scan finding. It mirrors the entry Health ladder so a
// finding's severity and the flag it caused always agree.
type Severity int

const (
	// SevNote is informational: unusual but not suspicious.
	SevNote Severity = iota

	// SevDubious accompanies an entry or volume flagged Dubious.
	SevDubious

	// SevDamaged accompanies an entry flagged Damaged.
	SevDamaged
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "note"
	case SevDubious:
		return "dubious"
	case SevDamaged:
		return "damaged"
	default:
		return "unknown"
	}
}

// Finding is one scan observation, tied to the entry path it concerns
// (empty for volume-level findings).
type Finding struct {
	Sev     Severity
	Path    string
	Message string
}

func (f Finding) String() string {
	if f.Path == "" {
		return fmt.Sprintf("[%s] %s", f.Sev, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Sev, f.Path, f.Message)
}

// Scan carries per-walk state across the driver and the format's Load hook:
// the visited-unit bitmap that stops cycles, and the finding list.
type Scan struct {
	bits     []uint64
	units    uint32
	findings []Finding
}

const bitsPerWord = 64

func newScan(units uint32) *Scan {
	words := (units + bitsPerWord - 1) / bitsPerWord
	return &Scan{bits: make([]uint64, words), units: units}
}

// VisitUnit marks allocation unit u visited and reports whether this is the
// first visit. A second visit means two structures reference the same unit,
// which in a chain walk is a cycle; callers abort the walk and mark the
// offending directory Damaged instead of looping.
func (s *Scan) VisitUnit(u uint32) bool {
	if u >= s.units {
		return false
	}
	word, bit := u/bitsPerWord, u%bitsPerWord
	if s.bits[word]&(1<<bit) != 0 {
		return false
	}
	s.bits[word] |= 1 << bit
	return true
}

// Visited reports whether unit u was already visited.
func (s *Scan) Visited(u uint32) bool {
	if u >= s.units {
		return false
	}
	return s.bits[u/bitsPerWord]&(1<<(u%bitsPerWord)) != 0
}

// Note records an informational finding.
func (s *Scan) Note(path, format string, args ...any) {
	s.add(SevNote, path, format, args...)
}

// Dubious records a finding at Dubious severity. The caller flags the
// affected entry itself.
func (s *Scan) Dubious(path, format string, args ...any) {
	s.add(SevDubious, path, format, args...)
}

// Damaged records a finding at Damaged severity.
func (s *Scan) Damaged(path, format string, args ...any) {
	s.add(SevDamaged, path, format, args...)
}

func (s *Scan) add(sev Severity, path, format string, args ...any) {
	s.findings = append(s.findings, Finding{Sev: sev, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Findings returns everything recorded so far.
func (s *Scan) Findings() []Finding { return s.findings }

// checkOverlaps flags every pair of entries whose allocation ranges
// intersect. Both members of a pair become Dubious (content is still
// readable, but one of them is lying about ownership); one finding is
// recorded per pair plus a volume-level summary.
func (s *Scan) checkOverlaps(root *Entry) {
	type claim struct {
		e     *Entry
		start uint32
		end   uint32 // exclusive
	}
	var claims []claim
	walkTree(root, func(e *Entry) {
		for _, ex := range e.Extents() {
			if ex.Count == 0 {
				continue
			}
			claims = append(claims, claim{e, ex.Start, ex.Start + ex.Count})
		}
	})
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].start != claims[j].start {
			return claims[i].start < claims[j].start
		}
		return claims[i].end < claims[j].end
	})

	type pairKey struct{ a, b *Entry }
	reported := map[pairKey]bool{}
	pairs := 0
	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims) && claims[j].start < claims[i].end; j++ {
			a, b := claims[i].e, claims[j].e
			if a == b {
				continue // multi-extent file overlapping itself is a format bug, reported by Load
			}
			key := pairKey{a, b}
			if a.Path() > b.Path() {
				key = pairKey{b, a}
			}
			if reported[key] {
				continue
			}
			reported[key] = true
			pairs++
			a.MarkDubious()
			b.MarkDubious()
			s.Dubious(a.Path(), "allocation overlaps %s (units %d-%d)", b.Path(), claims[j].start, min32(claims[i].end, claims[j].end)-1)
		}
	}
	if pairs > 0 {
		s.Dubious("", "%d overlapping allocation pair(s) found", pairs)
	}
}

// checkCounts compares each directory's recorded entry count against the
// live entries found. A recorded count lower than reality marks the volume
// Dubious; a higher count is tolerated silently, because otherwise-healthy
// volumes written by real systems exhibit it. The asymmetry is deliberate.
func (s *Scan) checkCounts(root *Entry) (shortCount bool) {
	walkTree(root, func(e *Entry) {
		if !e.IsDirectory() || e.RecordedChildCount() < 0 {
			return
		}
		live := len(e.Children())
		if e.RecordedChildCount() < live {
			shortCount = true
			s.Dubious(e.Path(), "directory records %d entries, found %d", e.RecordedChildCount(), live)
		}
	})
	return shortCount
}

func walkTree(e *Entry, fn func(*Entry)) {
	fn(e)
	for _, c := range e.Children() {
		walkTree(c, fn)
	}
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
