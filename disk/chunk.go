package disk

import "fmt"

const (
	// SectorSize is the size of one track sector.
	SectorSize = 256

	// BlockSize is the size of one logical block (two sectors).
	BlockSize = 512

	sectorsPerTrack16 = 16
)

// ChunkAccess is an addressable view over a slice of a container. The root
// access covers an image's whole data area; CreateSubset carves re-based
// partition views out of it. All filesystem I/O goes through this type.
//
// Not thread-safe. The storage stack is single-threaded by design.
type ChunkAccess struct {
	c      Container
	off    int64 // byte offset of this view within the container
	length int64
	order  SectorOrder

	// Track geometry. tracks == 0 means block-only addressing.
	tracks    uint32
	secPerTrk uint32

	damage    *damageMap
	chunkSize int64 // damage granularity, fixed by the root
	dbase     uint32

	parent   *ChunkAccess
	children []*ChunkAccess
	subStart []uint32 // live child ranges, parallel slices (blocks)
	subCount []uint32

	invalid  bool
	readOnly bool
}

type damageMap struct {
	unreadable []bool
	unwritable []bool
}

// NewBlockAccess binds a block-addressed access over the whole container.
// The container length must be a multiple of BlockSize.
func NewBlockAccess(c Container) (*ChunkAccess, error) {
	size := c.Size()
	if size%BlockSize != 0 {
		return nil, fmt.Errorf("disk: container size %d not block aligned", size)
	}
	ca := &ChunkAccess{
		c:         c,
		length:    size,
		order:     OrderProDOS,
		chunkSize: BlockSize,
	}
	ca.damage = newDamageMap(size / BlockSize)
	ca.detectReadOnly()
	return ca, nil
}

// NewSectorAccess binds a track/sector access over the whole container.
// order describes the interleave the image file was written in.
func NewSectorAccess(c Container, tracks, sectorsPerTrack uint32, order SectorOrder) (*ChunkAccess, error) {
	size := c.Size()
	want := int64(tracks) * int64(sectorsPerTrack) * SectorSize
	if size != want {
		return nil, fmt.Errorf("disk: container size %d does not match %d tracks x %d sectors", size, tracks, sectorsPerTrack)
	}
	if sectorsPerTrack != sectorsPerTrack16 && order != OrderPhysical {
		return nil, fmt.Errorf("disk: %d-sector tracks support only physical order", sectorsPerTrack)
	}
	ca := &ChunkAccess{
		c:         c,
		length:    size,
		order:     order,
		tracks:    tracks,
		secPerTrk: sectorsPerTrack,
		chunkSize: SectorSize,
	}
	ca.damage = newDamageMap(size / SectorSize)
	ca.detectReadOnly()
	return ca, nil
}

func newDamageMap(chunks int64) *damageMap {
	return &damageMap{
		unreadable: make([]bool, chunks),
		unwritable: make([]bool, chunks),
	}
}

func (ca *ChunkAccess) detectReadOnly() {
	type roContainer interface{ ReadOnly() bool }
	if ro, ok := ca.c.(roContainer); ok {
		ca.readOnly = ro.ReadOnly()
	}
}

// Order returns the image sector order of this access.
func (ca *ChunkAccess) Order() SectorOrder { return ca.order }

// NumBlocks returns the number of addressable logical blocks.
func (ca *ChunkAccess) NumBlocks() uint32 {
	if ca.tracks > 0 {
		return ca.tracks * ca.secPerTrk / 2
	}
	return uint32(ca.length / BlockSize)
}

// Tracks returns the track count, or 0 for block-only devices.
func (ca *ChunkAccess) Tracks() uint32 { return ca.tracks }

// SectorsPerTrack returns the per-track sector count, or 0 for block-only
// devices.
func (ca *ChunkAccess) SectorsPerTrack() uint32 { return ca.secPerTrk }

// ReadOnly reports whether writes are rejected at the container level.
func (ca *ChunkAccess) ReadOnly() bool { return ca.readOnly }

// blockByteOff resolves the in-view byte offsets of the two sector halves of
// block num, honoring sector-order translation on track devices.
func (ca *ChunkAccess) blockByteOff(num uint32) (lo, hi int64, err error) {
	if ca.tracks == 0 {
		off := int64(num) * BlockSize
		return off, off + SectorSize, nil
	}
	blocksPerTrack := ca.secPerTrk / 2
	track := num / blocksPerTrack
	half := (num % blocksPerTrack) * 2
	s0, err := storedSector(ca.order, OrderProDOS, half)
	if err != nil {
		return 0, 0, err
	}
	s1, err := storedSector(ca.order, OrderProDOS, half+1)
	if err != nil {
		return 0, 0, err
	}
	base := int64(track) * int64(ca.secPerTrk) * SectorSize
	return base + int64(s0)*SectorSize, base + int64(s1)*SectorSize, nil
}

// ReadBlock reads logical block num into buf. len(buf) must be BlockSize.
func (ca *ChunkAccess) ReadBlock(num uint32, buf []byte) error {
	if err := ca.checkBlock("read block", num, len(buf)); err != nil {
		return err
	}
	lo, hi, err := ca.blockByteOff(num)
	if err != nil {
		return err
	}
	if ca.chunkUnreadable(lo) || ca.chunkUnreadable(hi) {
		return ErrUnreadable
	}
	if _, err := ca.c.ReadAt(buf[:SectorSize], ca.off+lo); err != nil {
		return err
	}
	_, err = ca.c.ReadAt(buf[SectorSize:BlockSize], ca.off+hi)
	return err
}

// WriteBlock writes buf to logical block num. len(buf) must be BlockSize.
func (ca *ChunkAccess) WriteBlock(num uint32, buf []byte) error {
	if err := ca.checkBlock("write block", num, len(buf)); err != nil {
		return err
	}
	if ca.readOnly {
		return ErrReadOnly
	}
	lo, hi, err := ca.blockByteOff(num)
	if err != nil {
		return err
	}
	if ca.chunkUnwritable(lo) || ca.chunkUnwritable(hi) {
		return ErrUnwritable
	}
	if _, err := ca.c.WriteAt(buf[:SectorSize], ca.off+lo); err != nil {
		return err
	}
	_, err = ca.c.WriteAt(buf[SectorSize:BlockSize], ca.off+hi)
	return err
}

func (ca *ChunkAccess) checkBlock(op string, num uint32, bufLen int) error {
	if ca.invalid {
		return ErrInvalidated
	}
	if bufLen != BlockSize {
		return ErrBufSize
	}
	if limit := ca.NumBlocks(); num >= limit {
		return &RangeError{Op: op, Index: num, Limit: limit}
	}
	return nil
}

// sectorByteOff resolves the in-view byte offset of DOS-logical sector
// (track, sector).
func (ca *ChunkAccess) sectorByteOff(track, sector uint32) (int64, error) {
	stored := sector
	if ca.secPerTrk == sectorsPerTrack16 {
		s, err := storedSector(ca.order, OrderDOS, sector)
		if err != nil {
			return 0, err
		}
		stored = s
	}
	return (int64(track)*int64(ca.secPerTrk) + int64(stored)) * SectorSize, nil
}

// ReadSector reads DOS-logical sector (track, sector) into buf. len(buf)
// must be SectorSize. Only valid on track-geometry devices.
func (ca *ChunkAccess) ReadSector(track, sector uint32, buf []byte) error {
	if err := ca.checkSector("read sector", track, sector, len(buf)); err != nil {
		return err
	}
	off, err := ca.sectorByteOff(track, sector)
	if err != nil {
		return err
	}
	if ca.chunkUnreadable(off) {
		return ErrUnreadable
	}
	_, err = ca.c.ReadAt(buf, ca.off+off)
	return err
}

// WriteSector writes buf to DOS-logical sector (track, sector).
func (ca *ChunkAccess) WriteSector(track, sector uint32, buf []byte) error {
	if err := ca.checkSector("write sector", track, sector, len(buf)); err != nil {
		return err
	}
	if ca.readOnly {
		return ErrReadOnly
	}
	off, err := ca.sectorByteOff(track, sector)
	if err != nil {
		return err
	}
	if ca.chunkUnwritable(off) {
		return ErrUnwritable
	}
	_, err = ca.c.WriteAt(buf, ca.off+off)
	return err
}

func (ca *ChunkAccess) checkSector(op string, track, sector uint32, bufLen int) error {
	if ca.invalid {
		return ErrInvalidated
	}
	if ca.tracks == 0 {
		return ErrGeometry
	}
	if bufLen != SectorSize {
		return ErrBufSize
	}
	if track >= ca.tracks {
		return &RangeError{Op: op, Index: track, Limit: ca.tracks}
	}
	if sector >= ca.secPerTrk {
		return &RangeError{Op: op, Index: sector, Limit: ca.secPerTrk}
	}
	return nil
}

// Damage map accessors. Indices are root-relative chunk numbers derived from
// in-view byte offsets; sub-views share the root map so damage is visible at
// every level.

func (ca *ChunkAccess) chunkIndex(byteOff int64) uint32 {
	return ca.dbase + uint32(byteOff/ca.chunkSize)
}

func (ca *ChunkAccess) chunkUnreadable(byteOff int64) bool {
	return ca.damage.unreadable[ca.chunkIndex(byteOff)]
}

func (ca *ChunkAccess) chunkUnwritable(byteOff int64) bool {
	return ca.damage.unwritable[ca.chunkIndex(byteOff)]
}

// MarkBlockUnreadable marks both sector halves of block num unreadable.
// The mark is sticky until Initialize.
func (ca *ChunkAccess) MarkBlockUnreadable(num uint32) error {
	if err := ca.checkBlock("mark block", num, BlockSize); err != nil {
		return err
	}
	lo, hi, err := ca.blockByteOff(num)
	if err != nil {
		return err
	}
	ca.damage.unreadable[ca.chunkIndex(lo)] = true
	ca.damage.unreadable[ca.chunkIndex(hi)] = true
	return nil
}

// MarkBlockUnwritable marks both sector halves of block num unwritable.
func (ca *ChunkAccess) MarkBlockUnwritable(num uint32) error {
	if err := ca.checkBlock("mark block", num, BlockSize); err != nil {
		return err
	}
	lo, hi, err := ca.blockByteOff(num)
	if err != nil {
		return err
	}
	ca.damage.unwritable[ca.chunkIndex(lo)] = true
	ca.damage.unwritable[ca.chunkIndex(hi)] = true
	return nil
}

// MarkSectorUnreadable marks DOS-logical sector (track, sector) unreadable.
func (ca *ChunkAccess) MarkSectorUnreadable(track, sector uint32) error {
	if err := ca.checkSector("mark sector", track, sector, SectorSize); err != nil {
		return err
	}
	off, err := ca.sectorByteOff(track, sector)
	if err != nil {
		return err
	}
	ca.damage.unreadable[ca.chunkIndex(off)] = true
	return nil
}

// TestBlock reports whether block num exists (in range and readable) and
// whether it may be written.
func (ca *ChunkAccess) TestBlock(num uint32) (exists, writable bool) {
	if ca.invalid || num >= ca.NumBlocks() {
		return false, false
	}
	lo, hi, err := ca.blockByteOff(num)
	if err != nil {
		return false, false
	}
	if ca.chunkUnreadable(lo) || ca.chunkUnreadable(hi) {
		return false, false
	}
	writable = !ca.readOnly && !ca.chunkUnwritable(lo) && !ca.chunkUnwritable(hi)
	return true, writable
}

// CountUnreadable returns the number of unreadable chunks within this view.
func (ca *ChunkAccess) CountUnreadable() int {
	if ca.invalid {
		return 0
	}
	first := ca.dbase
	last := ca.dbase + uint32(ca.length/ca.chunkSize)
	n := 0
	for i := first; i < last; i++ {
		if ca.damage.unreadable[i] {
			n++
		}
	}
	return n
}

// CreateSubset returns a block-addressed sub-view covering count blocks
// starting at startBlock. The child shares the backing store and the damage
// map; its block 0 is the parent's startBlock. Overlapping a live sibling
// fails with ErrOverlap.
func (ca *ChunkAccess) CreateSubset(startBlock, count uint32) (*ChunkAccess, error) {
	if ca.invalid {
		return nil, ErrInvalidated
	}
	if count == 0 {
		return nil, fmt.Errorf("disk: empty subset")
	}
	if ca.tracks > 0 && ca.order != OrderProDOS {
		// Blocks are not contiguous bytes under sector interleave, so a
		// re-based byte-range view cannot be carved out of such an image.
		return nil, ErrGeometry
	}
	limit := ca.NumBlocks()
	if startBlock >= limit || count > limit-startBlock {
		return nil, &RangeError{Op: "subset", Index: startBlock + count - 1, Limit: limit}
	}
	for i := range ca.subStart {
		if startBlock < ca.subStart[i]+ca.subCount[i] && ca.subStart[i] < startBlock+count {
			return nil, ErrOverlap
		}
	}
	byteOff := int64(startBlock) * BlockSize
	child := &ChunkAccess{
		c:         ca.c,
		off:       ca.off + byteOff,
		length:    int64(count) * BlockSize,
		order:     OrderProDOS,
		damage:    ca.damage,
		chunkSize: ca.chunkSize,
		dbase:     ca.dbase + uint32(byteOff/ca.chunkSize),
		parent:    ca,
		readOnly:  ca.readOnly,
	}
	ca.children = append(ca.children, child)
	ca.subStart = append(ca.subStart, startBlock)
	ca.subCount = append(ca.subCount, count)
	return child, nil
}

// Initialize zero-fills the view and clears its damage marks. This is the
// reformat path; any sub-views below this one are invalidated first.
func (ca *ChunkAccess) Initialize() error {
	if ca.invalid {
		return ErrInvalidated
	}
	if ca.readOnly {
		return ErrReadOnly
	}
	ca.invalidateChildren()
	zero := make([]byte, 64*1024)
	for off := int64(0); off < ca.length; {
		n := int64(len(zero))
		if ca.length-off < n {
			n = ca.length - off
		}
		if _, err := ca.c.WriteAt(zero[:n], ca.off+off); err != nil {
			return err
		}
		off += n
	}
	first := ca.dbase
	last := ca.dbase + uint32(ca.length/ca.chunkSize)
	for i := first; i < last; i++ {
		ca.damage.unreadable[i] = false
		ca.damage.unwritable[i] = false
	}
	return nil
}

// Invalidate disposes this view and, transitively, every sub-view below it.
// All subsequent operations fail with ErrInvalidated.
func (ca *ChunkAccess) Invalidate() {
	if ca.invalid {
		return
	}
	ca.invalidateChildren()
	ca.invalid = true
	if p := ca.parent; p != nil {
		for i, child := range p.children {
			if child == ca {
				p.children = append(p.children[:i], p.children[i+1:]...)
				p.subStart = append(p.subStart[:i], p.subStart[i+1:]...)
				p.subCount = append(p.subCount[:i], p.subCount[i+1:]...)
				break
			}
		}
		ca.parent = nil
	}
}

func (ca *ChunkAccess) invalidateChildren() {
	for len(ca.children) > 0 {
		ca.children[len(ca.children)-1].Invalidate()
	}
}

// Invalidated reports whether the view has been disposed.
func (ca *ChunkAccess) Invalidated() bool { return ca.invalid }
