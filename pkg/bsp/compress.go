package bsp

// PVS rows are zero-run encoded: a non-zero byte is stored as is, and a
// zero byte is followed by the length of the zero run it starts (1-255).

// CompressRow encodes one decompressed visibility row.
func CompressRow(row []byte) []byte {
	out := make([]byte, 0, len(row))
	for j := 0; j < len(row); j++ {
		out = append(out, row[j])
		if row[j] != 0 {
			continue
		}
		rep := byte(1)
		for j+1 < len(row) && row[j+1] == 0 && rep < 255 {
			rep++
			j++
		}
		out = append(out, rep)
	}
	return out
}

// DecompressRow decodes a row of rowBytes bytes from the start of src.
// Truncated input leaves the remainder zero.
func DecompressRow(src []byte, rowBytes int) []byte {
	row := make([]byte, rowBytes)
	decompressRowInto(row, src)
	return row
}

// decompressRowInto fills dst from src and returns the number of source
// bytes consumed.
func decompressRowInto(dst, src []byte) int {
	out, in := 0, 0
	for out < len(dst) && in < len(src) {
		if b := src[in]; b != 0 {
			dst[out] = b
			out++
			in++
			continue
		}
		if in+1 >= len(src) {
			in++
			break
		}
		n := int(src[in+1])
		in += 2
		for ; n > 0 && out < len(dst); n-- {
			dst[out] = 0
			out++
		}
	}
	for ; out < len(dst); out++ {
		dst[out] = 0
	}
	return in
}

// GetPVSBit reports whether leaf is set in a decompressed row.
func GetPVSBit(row []byte, leaf int32) bool {
	i := int(leaf >> 3)
	if leaf < 0 || i >= len(row) {
		return false
	}
	return row[i]&(1<<(leaf&7)) != 0
}

// SetPVSBit sets leaf in a decompressed row.
func SetPVSBit(row []byte, leaf int32) {
	i := int(leaf >> 3)
	if leaf < 0 || i >= len(row) {
		return
	}
	row[i] |= 1 << (leaf & 7)
}

// compressLeafSet packs one compressed row per leaf into PVSData and
// records each row's offset.
func (t *Tree) compressLeafSet(rows [][]byte) {
	t.PVSBytesPerSet = (len(t.Leaves) + 7) >> 3
	data := make([]byte, 0, len(rows)*2)
	for i, row := range rows {
		t.Leaves[i].VisibilityOffset = int32(len(data))
		data = append(data, CompressRow(row)...)
	}
	t.PVSData = data
}
