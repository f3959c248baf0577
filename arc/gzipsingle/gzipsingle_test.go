package gzipsingle

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/diskkit/arc"
	"github.com/joshuapare/diskkit/codec"
)

func gzipped(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	zw.Name = name
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func TestReadExistingStream(t *testing.T) {
	payload := bytes.Repeat([]byte("squeeze me "), 100)
	a, err := arc.New(NewOps(), arc.NewMemStream(gzipped(t, "notes.txt", payload)), nil)
	require.NoError(t, err)

	recs := a.Records()
	require.Len(t, recs, 1)
	require.Equal(t, "notes.txt", recs[0].Name())

	rc, err := a.OpenPart(recs[0], arc.PartData)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, got)
}

func TestEmptyStreamPresentsOneRecord(t *testing.T) {
	a, err := arc.New(NewOps(), arc.NewMemStream(nil), nil)
	require.NoError(t, err)
	recs := a.Records()
	require.Len(t, recs, 1)
	require.Equal(t, DefaultName, recs[0].Name())
	_, ok := recs[0].Part(arc.PartData)
	require.False(t, ok)
}

func TestWriteThenReadBack(t *testing.T) {
	a, err := arc.New(NewOps(), arc.NewMemStream(nil), nil)
	require.NoError(t, err)

	require.NoError(t, a.StartTransaction())
	r := a.Records()[0]
	require.NoError(t, a.RenameRecord(r, "report.bin"))
	r.SetModTime(time.Unix(500000000, 0).UTC())
	payload := []byte("compressed cargo")
	require.NoError(t, a.AddPart(r, arc.PartData, codec.FormatFlate, arc.BytesSource(payload)))

	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))

	// The output is a plain gzip stream other tools can read.
	zr, err := gzip.NewReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "report.bin", zr.Name)
	require.Equal(t, int64(500000000), zr.ModTime.Unix())
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())
	require.Equal(t, payload, got)

	// And the archive re-read itself from it.
	rec, err := a.FindRecord("report.bin")
	require.NoError(t, err)
	rc, err := a.OpenPart(rec, arc.PartData)
	require.NoError(t, err)
	back, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, payload, back)
}

func TestFixedRecordSet(t *testing.T) {
	a, err := arc.New(NewOps(), arc.NewMemStream(gzipped(t, "x", []byte("y"))), nil)
	require.NoError(t, err)
	require.NoError(t, a.StartTransaction())

	_, err = a.CreateRecord("another")
	require.ErrorIs(t, err, arc.ErrFixedLayout)
	require.ErrorIs(t, a.DeleteRecord(a.Records()[0]), arc.ErrFixedLayout)
}

func TestReplacingDataPart(t *testing.T) {
	a, err := arc.New(NewOps(), arc.NewMemStream(gzipped(t, "f", []byte("old contents"))), nil)
	require.NoError(t, err)

	require.NoError(t, a.StartTransaction())
	r := a.Records()[0]
	require.NoError(t, a.DeletePart(r, arc.PartData))
	require.NoError(t, a.AddPart(r, arc.PartData, codec.FormatFlate, arc.BytesSource([]byte("new contents"))))
	out := arc.NewMemStream(nil)
	require.NoError(t, a.Commit(out))

	rc, err := a.OpenPart(a.Records()[0], arc.PartData)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, []byte("new contents"), got)
}

func TestCorruptPayloadDetected(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)
	raw := gzipped(t, "big", payload)
	raw[len(raw)/2] ^= 0x40 // damage the deflate stream

	a, err := arc.New(NewOps(), arc.NewMemStream(raw), nil)
	if err != nil {
		// Header escaped damage detection only if the flip landed there.
		return
	}
	rc, err := a.OpenPart(a.Records()[0], arc.PartData)
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	require.Error(t, err)
	rc.Close()
}

func TestReadRejectsNonGzip(t *testing.T) {
	_, err := arc.New(NewOps(), arc.NewMemStream([]byte("definitely not gzip")), nil)
	require.Error(t, err)
}

func TestNameValidation(t *testing.T) {
	var o ops
	require.NoError(t, o.ValidName("archive.dat"))
	require.Error(t, o.ValidName(""))
	require.Error(t, o.ValidName("a/b"))
	require.Error(t, o.ValidName("tab\there"))
}
