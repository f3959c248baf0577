package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/arc/binary2"
	"github.com/joshuapare/diskkit/codec"
	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/fs"
	"github.com/joshuapare/diskkit/fs/dos3"
	"github.com/joshuapare/diskkit/sniff"
)

// writeDOSImage builds a formatted DOS 3.3 floppy with one file on it and
// writes it out as a .do sector image.
func writeDOSImage(t *testing.T, content []byte) string {
	t.Helper()
	c := disk.NewMemContainer(make([]byte, 35*16*disk.SectorSize))
	dev, err := disk.NewSectorAccess(c, 35, 16, disk.OrderDOS)
	require.NoError(t, err)

	v := fs.NewVolume(dev, dos3.NewOps())
	require.NoError(t, v.Format("254", false))
	require.NoError(t, v.PrepareFileAccess(false))
	e, err := v.CreateFile(v.Root(), "HELLO", false)
	require.NoError(t, err)
	fd, err := v.Open(e, true, false)
	require.NoError(t, err)
	_, err = fd.Write(content)
	require.NoError(t, err)
	require.NoError(t, fd.Close())
	v.Close()

	path := filepath.Join(t.TempDir(), "test.do")
	require.NoError(t, os.WriteFile(path, c.Bytes(), 0o644))
	return path
}

func writeBinary2Archive(t *testing.T, name string, content []byte) string {
	t.Helper()
	a, err := arc.New(binary2.NewOps(), arc.NewMemStream(nil), nil)
	require.NoError(t, err)
	require.NoError(t, a.StartTransaction())
	r, err := a.CreateRecord(name)
	require.NoError(t, err)
	require.NoError(t, a.AddPart(r, arc.PartData, codec.FormatStore, arc.BytesSource(content)))
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))
	require.NoError(t, a.Close())

	path := filepath.Join(t.TempDir(), "files.bny")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestOpenContainerSectorImage(t *testing.T) {
	path := writeDOSImage(t, []byte("hello, world"))
	c, err := openContainer(path, false)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, sniff.KindSectorImage, c.kind)
	require.NotNil(t, c.img)
	require.NotNil(t, c.vol)
	require.Equal(t, "dos3", c.vol.FormatName())
	require.NotNil(t, c.vol.Root().ChildNamed("HELLO"))
}

func TestOpenContainerArchive(t *testing.T) {
	path := writeBinary2Archive(t, "NOTES", []byte("archived"))
	c, err := openContainer(path, false)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, sniff.KindBinary2, c.kind)
	require.NotNil(t, c.archive)
	require.Len(t, c.archive.Records(), 1)
}

func TestExtractFromSectorImage(t *testing.T) {
	content := []byte("precious payload")
	path := writeDOSImage(t, content)

	extractOut = filepath.Join(t.TempDir(), "hello.out")
	defer func() { extractOut = "" }()
	require.NoError(t, runExtract([]string{path, "HELLO"}))

	got, err := os.ReadFile(extractOut)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestExtractFromArchive(t *testing.T) {
	content := []byte("record body")
	path := writeBinary2Archive(t, "NOTES", content)

	extractOut = filepath.Join(t.TempDir(), "notes.out")
	defer func() { extractOut = "" }()
	require.NoError(t, runExtract([]string{path, "NOTES"}))

	got, err := os.ReadFile(extractOut)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestExtractMissingEntry(t *testing.T) {
	path := writeDOSImage(t, []byte("x"))
	extractOut = filepath.Join(t.TempDir(), "nope.out")
	defer func() { extractOut = "" }()
	require.Error(t, runExtract([]string{path, "NOSUCH"}))
	_, err := os.Stat(extractOut)
	require.True(t, os.IsNotExist(err))
}

func TestVerifyCleanImage(t *testing.T) {
	path := writeDOSImage(t, []byte("clean"))
	require.NoError(t, runVerify([]string{path}))
}

func TestFindEntryWalksPath(t *testing.T) {
	root := fs.NewVolumeEntry("VOL")
	dir := fs.NewEntry("SUB", true)
	root.Attach(dir)
	file := fs.NewEntry("F", false)
	dir.Attach(file)

	got, err := findEntry(root, "SUB/F")
	require.NoError(t, err)
	require.Equal(t, file, got)

	_, err = findEntry(root, "SUB/MISSING")
	require.ErrorIs(t, err, fs.ErrEntryNotFound)
	_, err = findEntry(root, "")
	require.ErrorIs(t, err, fs.ErrEntryNotFound)
}
