package img

// 6&2 group-coded recording, as used by 16-sector 5.25" disks. A 256-byte
// sector becomes 342 six-bit groups plus a checksum, each group mapped to a
// "disk byte" with the high bit set and no more than one pair of adjacent
// zero bits.

// writeTrans62 maps a 6-bit value to its disk byte.
var writeTrans62 = [64]byte{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

// readTrans62 is the inverse; 0xFF marks invalid disk bytes.
var readTrans62 [256]byte

func init() {
	for i := range readTrans62 {
		readTrans62[i] = 0xFF
	}
	for v, b := range writeTrans62 {
		readTrans62[b] = byte(v)
	}
}

const (
	sectorDataNibs = 342 // six-bit groups per sector, before the checksum

	addrProlog0 = 0xD5
	addrProlog1 = 0xAA
	addrProlog2 = 0x96
	dataProlog2 = 0xAD
	epilog0     = 0xDE
	epilog1     = 0xAA
)

// swap2 reverses the low two bits of b.
func swap2(b byte) byte {
	return (b&1)<<1 | (b>>1)&1
}

// enc44 encodes one byte as an odd/even pair.
func enc44(b byte) (byte, byte) {
	return b>>1 | 0xAA, b | 0xAA
}

// dec44 decodes an odd/even pair.
func dec44(hi, lo byte) byte {
	return (hi<<1 | 1) & lo
}

// encode62 turns 256 data bytes into 343 disk bytes (342 groups plus a
// rolling-XOR checksum).
func encode62(data *[256]byte, out *[sectorDataNibs + 1]byte) {
	var buf2 [86]byte
	for i := 0; i < 86; i++ {
		v := swap2(data[i])
		if i+86 < 256 {
			v |= swap2(data[i+86]) << 2
		}
		if i+172 < 256 {
			v |= swap2(data[i+172]) << 4
		}
		buf2[i] = v
	}
	var prev byte
	k := 0
	for i := 85; i >= 0; i-- {
		out[k] = writeTrans62[buf2[i]^prev]
		prev = buf2[i]
		k++
	}
	for i := 0; i < 256; i++ {
		v := data[i] >> 2
		out[k] = writeTrans62[v^prev]
		prev = v
		k++
	}
	out[k] = writeTrans62[prev]
}

// decode62 reverses encode62. Returns false on an invalid disk byte or a
// checksum mismatch.
func decode62(nibs *[sectorDataNibs + 1]byte, data *[256]byte) bool {
	var buf2 [86]byte
	var prev byte
	k := 0
	for i := 85; i >= 0; i-- {
		v := readTrans62[nibs[k]]
		if v == 0xFF {
			return false
		}
		buf2[i] = v ^ prev
		prev = buf2[i]
		k++
	}
	for i := 0; i < 256; i++ {
		v := readTrans62[nibs[k]]
		if v == 0xFF {
			return false
		}
		six := v ^ prev
		prev = six
		data[i] = six << 2
		k++
	}
	if v := readTrans62[nibs[k]]; v == 0xFF || v != prev {
		return false
	}
	for i := 0; i < 86; i++ {
		data[i] |= swap2(buf2[i])
		if i+86 < 256 {
			data[i+86] |= swap2(buf2[i] >> 2)
		}
		if i+172 < 256 {
			data[i+172] |= swap2(buf2[i] >> 4)
		}
	}
	return true
}
