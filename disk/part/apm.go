package part

import (
	"bytes"

	"github.com/joshuapare/diskkit/disk"
	"github.com/joshuapare/diskkit/internal/buf"
	"github.com/joshuapare/diskkit/internal/nameconv"
)

// Apple Partition Map: one entry per block starting at block 1, each
// carrying the total map entry count. Multi-byte fields are big-endian.
const (
	apmEntryBlock = 1

	offAPMSig       = 0x00 // "PM"
	offAPMMapCount  = 0x04
	offAPMStart     = 0x08
	offAPMCount     = 0x0C
	offAPMName      = 0x10 // 32 bytes, NUL padded
	offAPMType      = 0x30 // 32 bytes, NUL padded
	apmNameLen      = 32
)

// ReadAPM parses an Apple Partition Map into a table. Map and driver
// entries (the map describes itself) are carried like any other member, so
// the table covers exactly what the map claims.
func ReadAPM(dev *disk.ChunkAccess) (*Table, error) {
	blk := make([]byte, disk.BlockSize)
	if err := dev.ReadBlock(apmEntryBlock, blk); err != nil {
		return nil, err
	}
	if blk[0] != 'P' || blk[1] != 'M' {
		return nil, ErrNoMap
	}
	mapCount := buf.U32BE(blk, offAPMMapCount)
	if mapCount == 0 || mapCount > dev.NumBlocks() {
		return nil, ErrNoMap
	}
	t := NewTable(dev)
	for i := uint32(0); i < mapCount; i++ {
		if i > 0 {
			if err := dev.ReadBlock(apmEntryBlock+i, blk); err != nil {
				return nil, err
			}
			if blk[0] != 'P' || blk[1] != 'M' {
				return nil, ErrNoMap
			}
		}
		start := buf.U32BE(blk, offAPMStart)
		count := buf.U32BE(blk, offAPMCount)
		name := apmString(blk[offAPMName : offAPMName+apmNameLen])
		typ := apmString(blk[offAPMType : offAPMType+apmNameLen])
		if _, err := t.Add(start, count, name, typ); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteAPM serializes the table as an Apple Partition Map starting at block
// 1. Partitions must leave the map blocks themselves unclaimed.
func WriteAPM(dev *disk.ChunkAccess, t *Table) error {
	blk := make([]byte, disk.BlockSize)
	n := uint32(len(t.parts))
	for i, p := range t.parts {
		for j := range blk {
			blk[j] = 0
		}
		blk[0], blk[1] = 'P', 'M'
		buf.PutU32BE(blk, offAPMMapCount, n)
		buf.PutU32BE(blk, offAPMStart, p.Start)
		buf.PutU32BE(blk, offAPMCount, p.Count)
		copy(blk[offAPMName:offAPMName+apmNameLen], nameconv.ToMacRoman(p.Name))
		copy(blk[offAPMType:offAPMType+apmNameLen], nameconv.ToMacRoman(p.Type))
		if err := dev.WriteBlock(apmEntryBlock+uint32(i), blk); err != nil {
			return err
		}
	}
	return nil
}

// apmString decodes a NUL-padded map field. The fields are Mac OS Roman,
// the charset of the systems that wrote these maps.
func apmString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return nameconv.FromMacRoman(b)
}
