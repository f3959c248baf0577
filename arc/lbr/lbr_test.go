package lbr

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/codec"
	"github.com/joshuapare/diskkit/internal/buf"
)

func newLibrary(t *testing.T, data []byte) *arc.Archive {
	t.Helper()
	a, err := arc.New(NewOps(), arc.NewMemStream(data), nil)
	require.NoError(t, err)
	return a
}

func buildLibrary(t *testing.T, members map[string][]byte) (*arc.Archive, *arc.MemStream) {
	t.Helper()
	a := newLibrary(t, nil)
	require.NoError(t, a.StartTransaction())
	for name, data := range members {
		r, err := a.CreateRecord(name)
		require.NoError(t, err)
		require.NoError(t, a.AddPart(r, arc.PartData, codec.FormatStore, arc.BytesSource(data)))
	}
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))
	return a, out
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("cp/m forever "), 40)
	a, out := buildLibrary(t, map[string][]byte{"HELLO.TXT": payload})

	// Directory plus the padded member.
	sectors := (int64(len(payload)) + SectorSize - 1) / SectorSize
	require.Equal(t, int64(dirBytes)+sectors*SectorSize, out.Size())

	r, err := a.FindRecord("HELLO.TXT")
	require.NoError(t, err)
	rc, err := a.OpenPart(r, arc.PartData)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, got)
}

func TestDirectorySlotZero(t *testing.T) {
	_, out := buildLibrary(t, map[string][]byte{"A.B": []byte("x")})
	dir := out.Bytes()[:entrySize]
	require.Equal(t, byte(statusActive), dir[offStatus])
	for i := offName; i < offName+11; i++ {
		require.Equal(t, byte(' '), dir[i])
	}
	require.Equal(t, uint16(dirSectors), buf.U16LE(dir, offLength))
	require.NotZero(t, buf.U16LE(dir, offCRC))
}

func TestDeleteAllMembersYieldsEmptyContainer(t *testing.T) {
	a, _ := buildLibrary(t, map[string][]byte{
		"ONE.ASM": []byte("one"),
		"TWO.ASM": []byte("two"),
	})

	require.NoError(t, a.StartTransaction())
	for _, r := range a.Records() {
		require.NoError(t, a.DeleteRecord(r))
	}
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))
	require.Zero(t, out.Size())
	require.Empty(t, a.Records())
}

func TestChecksumMismatchDetected(t *testing.T) {
	payload := []byte("important bytes that must not rot")
	_, out := buildLibrary(t, map[string][]byte{"DATA.BIN": payload})

	// Flip a bit in the member data region.
	raw := out.Bytes()
	raw[dirBytes] ^= 0x01

	a := newLibrary(t, raw)
	r, err := a.FindRecord("DATA.BIN")
	require.NoError(t, err)

	// Detection on the read-to-EOF path.
	rc, err := a.OpenPart(r, arc.PartData)
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	require.ErrorIs(t, err, ErrChecksum)
	rc.Close()

	// Detection when reading exactly the recorded length.
	rc, err = a.OpenPart(r, arc.PartData)
	require.NoError(t, err)
	exact := make([]byte, len(payload))
	_, err = io.ReadFull(rc, exact)
	if err == nil {
		_, err = rc.Read(make([]byte, 1))
	}
	require.ErrorIs(t, err, ErrChecksum)
	rc.Close()
}

func TestUnmodifiedMemberSurvivesRewriteIntact(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x10, 0x21}
	a, _ := buildLibrary(t, map[string][]byte{
		"KEEP.BIN": payload,
		"DROP.BIN": []byte("going away"),
	})

	require.NoError(t, a.StartTransaction())
	r, err := a.FindRecord("DROP.BIN")
	require.NoError(t, err)
	require.NoError(t, a.DeleteRecord(r))
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))

	keep, err := a.FindRecord("KEEP.BIN")
	require.NoError(t, err)
	rc, err := a.OpenPart(keep, arc.PartData)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, got)
}

func TestModTimeRoundTrip(t *testing.T) {
	a := newLibrary(t, nil)
	require.NoError(t, a.StartTransaction())
	r, err := a.CreateRecord("DATED.TXT")
	require.NoError(t, err)
	stamp := time.Date(1984, time.June, 2, 12, 34, 56, 0, time.UTC)
	r.SetModTime(stamp)
	require.NoError(t, a.AddPart(r, arc.PartData, codec.FormatStore, arc.BytesSource([]byte("d"))))
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))

	got, err := a.FindRecord("DATED.TXT")
	require.NoError(t, err)
	require.Equal(t, stamp, got.ModTime())
}

func TestNameValidation(t *testing.T) {
	var o ops
	require.NoError(t, o.ValidName("README"))
	require.NoError(t, o.ValidName("FILE-1.TXT"))
	require.NoError(t, o.ValidName("A$B_C.X"))
	require.Error(t, o.ValidName(""))
	require.Error(t, o.ValidName("lower.txt"))
	require.Error(t, o.ValidName("WAYTOOLONG.TXT"))
	require.Error(t, o.ValidName("OK.LONG"))
	require.Error(t, o.ValidName("DOT."))
	require.Error(t, o.ValidName("TWO.DO.TS"))
}

func TestReadRejectsTruncatedDirectory(t *testing.T) {
	_, err := arc.New(NewOps(), arc.NewMemStream(make([]byte, 100)), nil)
	require.ErrorIs(t, err, ErrBadDirectory)
}

func TestReadRejectsMemberBeyondContainer(t *testing.T) {
	_, out := buildLibrary(t, map[string][]byte{"A.B": []byte("x")})

	// Inflate the member's sector count past the end of the container.
	raw := append([]byte(nil), out.Bytes()...)
	require.Equal(t, byte(statusActive), raw[entrySize+offStatus])
	raw[entrySize+offLength] = 0xFF
	raw[entrySize+offLength+1] = 0x7F

	_, err := arc.New(NewOps(), arc.NewMemStream(raw), nil)
	require.ErrorIs(t, err, ErrBadDirectory)
}

func TestEntryNameTrimsPadding(t *testing.T) {
	e := make([]byte, entrySize)
	copy(e[offName:], "AB      ")
	// Some writers pad the extension with NULs instead of spaces.
	copy(e[offExt:], "C\x00\x00")
	require.Equal(t, "AB.C", entryName(e))

	copy(e[offExt:], "   ")
	require.Equal(t, "AB", entryName(e))
}

func TestCRC16KnownVectors(t *testing.T) {
	// XMODEM CRC of "123456789" is 0x31C3.
	require.Equal(t, uint16(0x31C3), crc16(0, []byte("123456789")))
	require.Equal(t, uint16(0), crc16(0, nil))
}
