package fs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/diskkit/disk"
)

// fakeFile describes one root-level file served by fakeOps.
type fakeFile struct {
	name    string
	extents []Extent
	// chain simulates the allocation-unit walk of a directory chain; a
	// revisit marks the file Damaged, like a cyclic catalog.
	chain  []uint32
	sparse bool
}

// fakeOps is a minimal in-memory format used to exercise the driver
// protocol without any on-disk structure.
type fakeOps struct {
	volName     string
	files       []fakeFile
	rootCount   int // recorded root entry count, -1 for none
	content     map[string][]byte
	formatted   bool
	saved       []string
	deleteErr   error
}

func newFakeOps(volName string) *fakeOps {
	return &fakeOps{volName: volName, rootCount: -1, content: map[string][]byte{}}
}

func (f *fakeOps) FormatName() string { return "fake" }

func (f *fakeOps) ValidVolumeName(name string) error {
	if name == "" || len(name) > 7 {
		return fmt.Errorf("volume name must be 1-7 chars")
	}
	return nil
}

func (f *fakeOps) ValidFileName(name string) error {
	if name == "" || len(name) > 15 {
		return fmt.Errorf("file name must be 1-15 chars")
	}
	return nil
}

func (f *fakeOps) Format(dev *disk.ChunkAccess, volName string, bootable bool) error {
	f.volName = volName
	f.files = nil
	f.formatted = true
	return nil
}

func (f *fakeOps) Load(dev *disk.ChunkAccess, sc *Scan) (*Entry, error) {
	root := NewVolumeEntry(f.volName)
	root.SetRecordedChildCount(f.rootCount)
	for i := range f.files {
		ff := &f.files[i]
		e := NewEntry(ff.name, false)
		e.SetExtents(ff.extents)
		e.SetDataLen(int64(len(f.content[ff.name])))
		root.Attach(e)
		for _, u := range ff.chain {
			if !sc.VisitUnit(u) {
				e.MarkDamaged()
				sc.Damaged(e.Path(), "cyclic chain at unit %d", u)
				break
			}
		}
	}
	return root, nil
}

func (f *fakeOps) Create(dev *disk.ChunkAccess, parent *Entry, name string, dir bool) (*Entry, error) {
	e := NewEntry(name, dir)
	parent.Attach(e)
	f.files = append(f.files, fakeFile{name: name})
	f.content[name] = nil
	return e, nil
}

func (f *fakeOps) Delete(dev *disk.ChunkAccess, e *Entry) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.content, e.Name())
	return nil
}

func (f *fakeOps) Rename(dev *disk.ChunkAccess, e *Entry, newName string) error {
	f.content[newName] = f.content[e.Name()]
	delete(f.content, e.Name())
	return nil
}

func (f *fakeOps) SaveAttrs(dev *disk.ChunkAccess, e *Entry) error {
	f.saved = append(f.saved, e.Name())
	return nil
}

func (f *fakeOps) OpenFork(dev *disk.ChunkAccess, e *Entry, raw bool) (Fork, error) {
	fk := &memFork{ops: f, name: e.Name()}
	for i := range f.files {
		if f.files[i].name == e.Name() && f.files[i].sparse && raw {
			return &sparseMemFork{memFork: fk}, nil
		}
	}
	return fk, nil
}

type memFork struct {
	ops  *fakeOps
	name string
}

func (m *memFork) Size() int64 { return int64(len(m.ops.content[m.name])) }

func (m *memFork) ReadAt(p []byte, off int64) (int, error) {
	data := m.ops.content[m.name]
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFork) WriteAt(p []byte, off int64) (int, error) {
	data := m.ops.content[m.name]
	for int64(len(data)) < off+int64(len(p)) {
		data = append(data, 0)
	}
	copy(data[off:], p)
	m.ops.content[m.name] = data
	return len(p), nil
}

// sparseMemFork treats the first half of the content as a hole.
type sparseMemFork struct {
	*memFork
}

func (s *sparseMemFork) NextData(off int64) int64 {
	half := s.Size() / 2
	if off < half {
		return half
	}
	if off > s.Size() {
		return s.Size()
	}
	return off
}

func (s *sparseMemFork) NextHole(off int64) int64 {
	half := s.Size() / 2
	if off < half {
		return off
	}
	return s.Size()
}

func newTestVolume(t *testing.T, ops Ops) *Volume {
	t.Helper()
	dev, err := disk.NewBlockAccess(disk.NewMemContainer(make([]byte, 64*disk.BlockSize)))
	require.NoError(t, err)
	return NewVolume(dev, ops)
}

func TestLifecycleModeErrors(t *testing.T) {
	ops := newFakeOps("VOL")
	v := newTestVolume(t, ops)

	// Structural mutation is illegal in Raw mode.
	_, err := v.CreateFile(nil, "X", false)
	require.ErrorIs(t, err, ErrNotFileAccess)

	require.NoError(t, v.PrepareFileAccess(true))
	require.Equal(t, ModeFileAccess, v.Mode())
	require.NotNil(t, v.Root())

	// Format is illegal outside Raw mode.
	require.ErrorIs(t, v.Format("NEW", false), ErrNotRawMode)

	require.NoError(t, v.PrepareRawAccess())
	require.Equal(t, ModeRaw, v.Mode())
	require.Nil(t, v.Root())

	// PrepareFileAccess is idempotent.
	require.NoError(t, v.PrepareFileAccess(false))
	require.NoError(t, v.PrepareFileAccess(true))
}

func TestFormatValidatesName(t *testing.T) {
	ops := newFakeOps("VOL")
	v := newTestVolume(t, ops)
	require.ErrorIs(t, v.Format("", false), ErrInvalidName)
	require.ErrorIs(t, v.Format("WAYTOOLONG", false), ErrInvalidName)
	require.NoError(t, v.Format("FRESH", false))
	require.True(t, ops.formatted)
}

func TestCreateDeleteRename(t *testing.T) {
	ops := newFakeOps("VOL")
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))
	root := v.Root()

	e, err := v.CreateFile(root, "ALPHA", false)
	require.NoError(t, err)
	require.Same(t, e, root.ChildNamed("ALPHA"))

	_, err = v.CreateFile(root, "ALPHA", false)
	require.ErrorIs(t, err, ErrDuplicateName)
	_, err = v.CreateFile(root, "", false)
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = v.CreateFile(e, "CHILD", false)
	require.ErrorIs(t, err, ErrNotDirectory)

	require.NoError(t, v.Rename(e, "BETA"))
	require.Equal(t, "BETA", e.Name())
	require.Nil(t, root.ChildNamed("ALPHA"))

	require.NoError(t, v.DeleteFile(e))
	require.False(t, e.Valid())
	require.ErrorIs(t, v.DeleteFile(e), ErrEntryInvalid)
	require.ErrorIs(t, v.DeleteFile(root), ErrCannotDeleteRoot)
}

func TestDeleteRejectsDubiousEntry(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{
		{name: "A", extents: []Extent{{Start: 0, Count: 4}}},
		{name: "B", extents: []Extent{{Start: 2, Count: 4}}},
	}
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(true))
	a := v.Root().ChildNamed("A")
	require.Equal(t, HealthDubious, a.Health())
	require.ErrorIs(t, v.DeleteFile(a), ErrEntryDamaged)
}

func TestDamagedEntryEscalatesVolume(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{
		{name: "LOOPY", chain: []uint32{3, 4, 3}},
		{name: "FINE"},
	}
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(true))

	loopy := v.Root().ChildNamed("LOOPY")
	require.Equal(t, HealthDamaged, loopy.Health())
	require.True(t, v.IsDubious())
	require.True(t, v.ReadOnly())

	// Damage-escalated read-only rejects mutation and write opens.
	_, err := v.CreateFile(v.Root(), "NEW", false)
	require.ErrorIs(t, err, ErrReadOnlyFS)
	_, err = v.Open(v.Root().ChildNamed("FINE"), true, false)
	require.ErrorIs(t, err, ErrReadOnlyFS)

	// Reading the healthy entry still works.
	fd, err := v.Open(v.Root().ChildNamed("FINE"), false, false)
	require.NoError(t, err)
	require.NoError(t, fd.Close())
}

func TestDescriptorPinsRawAccess(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{{name: "DATA"}}
	ops.content["DATA"] = []byte("hello")
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))

	fd, err := v.Open(v.Root().ChildNamed("DATA"), false, false)
	require.NoError(t, err)
	require.Equal(t, 1, v.OpenDescriptorCount())

	// Own descriptors are force-closed by PrepareRawAccess.
	require.NoError(t, v.PrepareRawAccess())
	require.Equal(t, 0, v.OpenDescriptorCount())
	_, err = fd.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrDescriptorClosed)
}

func TestDescendantDescriptorBlocksRawAccess(t *testing.T) {
	outerOps := newFakeOps("OUTER")
	outer := newTestVolume(t, outerOps)
	require.NoError(t, outer.PrepareFileAccess(false))

	innerOps := newFakeOps("INNER")
	innerOps.files = []fakeFile{{name: "PINNED"}}
	inner := newTestVolume(t, innerOps)
	require.NoError(t, inner.PrepareFileAccess(false))
	outer.Adopt(inner)

	fd, err := inner.Open(inner.Root().ChildNamed("PINNED"), false, false)
	require.NoError(t, err)

	// The open inner descriptor pins the outer volume.
	require.ErrorIs(t, outer.PrepareRawAccess(), ErrVolumeBusy)

	require.NoError(t, fd.Close())
	require.NoError(t, outer.PrepareRawAccess())
	// Returning to raw tore down the adopted child.
	require.Empty(t, outer.Children())
}

func TestCloseIsTransitive(t *testing.T) {
	outerOps := newFakeOps("OUTER")
	outer := newTestVolume(t, outerOps)
	require.NoError(t, outer.PrepareFileAccess(false))

	innerOps := newFakeOps("INNER")
	innerOps.files = []fakeFile{{name: "F"}}
	inner := newTestVolume(t, innerOps)
	require.NoError(t, inner.PrepareFileAccess(false))
	outer.Adopt(inner)

	fd, err := inner.Open(inner.Root().ChildNamed("F"), false, false)
	require.NoError(t, err)

	outer.Close()
	_, err = fd.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrDescriptorClosed)
	require.True(t, outer.Device().Invalidated())
}

func TestDescriptorReadWriteSeek(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{{name: "DATA"}}
	ops.content["DATA"] = []byte("hello world")
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))

	fd, err := v.Open(v.Root().ChildNamed("DATA"), true, false)
	require.NoError(t, err)
	defer fd.Close()

	buf := make([]byte, 5)
	n, err := fd.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	_, err = fd.Seek(6, io.SeekStart)
	require.NoError(t, err)
	_, err = fd.Write([]byte("there"))
	require.NoError(t, err)
	require.Equal(t, "hello there", string(ops.content["DATA"]))

	// Read-only descriptor rejects writes.
	ro, err := v.Open(v.Root().ChildNamed("DATA"), false, false)
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.Write([]byte("x"))
	require.ErrorIs(t, err, ErrReadOnlyFS)
}

func TestSparseSemantics(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{{name: "SPARSE", sparse: true}}
	ops.content["SPARSE"] = make([]byte, 100)
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))
	e := v.Root().ChildNamed("SPARSE")

	raw, err := v.Open(e, false, true)
	require.NoError(t, err)
	defer raw.Close()

	// The raw view exposes the hole structure: first half is a hole.
	nd, err := raw.NextData(0)
	require.NoError(t, err)
	require.Equal(t, int64(50), nd)
	nh, err := raw.NextHole(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), nh)
	nh, err = raw.NextHole(60)
	require.NoError(t, err)
	require.Equal(t, int64(100), nh)

	// The cooked view of the same content is all data.
	cooked, err := v.Open(e, false, false)
	require.NoError(t, err)
	defer cooked.Close()
	nd, err = cooked.NextData(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), nd)
	nh, err = cooked.NextHole(0)
	require.NoError(t, err)
	require.Equal(t, int64(100), nh)
}

func TestSaveAttrsStaging(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{{name: "F"}}
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))
	e := v.Root().ChildNamed("F")

	e.SetFileType(0x06)
	e.SetLocked(true)
	require.True(t, e.AttrsDirty())
	require.Empty(t, ops.saved) // nothing persisted yet

	require.NoError(t, v.SaveAttrs(e))
	require.False(t, e.AttrsDirty())
	require.Equal(t, []string{"F"}, ops.saved)
}

func TestDeleteErrorLeavesTreeIntact(t *testing.T) {
	ops := newFakeOps("VOL")
	ops.files = []fakeFile{{name: "F"}}
	ops.deleteErr = errors.New("boom")
	v := newTestVolume(t, ops)
	require.NoError(t, v.PrepareFileAccess(false))
	e := v.Root().ChildNamed("F")
	require.Error(t, v.DeleteFile(e))
	require.True(t, e.Valid())
	require.Same(t, e, v.Root().ChildNamed("F"))
}
