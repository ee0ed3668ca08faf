package bsp

import (
	"bytes"
	"testing"
)

func TestCompressRow(t *testing.T) {
	tests := []struct {
		name string
		row  []byte
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"literal", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"zero run", []byte{0, 0, 0, 5}, []byte{0, 3, 5}},
		{"trailing zeros", []byte{7, 0, 0}, []byte{7, 0, 2}},
		{"single zero", []byte{0}, []byte{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompressRow(tt.row)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("CompressRow(%v) = %v, want %v", tt.row, got, tt.want)
			}
		})
	}
}

func TestCompressRow_LongRun(t *testing.T) {
	row := make([]byte, 600)
	row[599] = 0x80

	packed := CompressRow(row)
	want := []byte{0, 255, 0, 255, 0, 89, 0x80}
	if !bytes.Equal(packed, want) {
		t.Errorf("CompressRow() = %v, want %v", packed, want)
	}
}

func TestDecompressRow_RoundTrip(t *testing.T) {
	rows := [][]byte{
		{},
		{0xff},
		make([]byte, 1000),
		{0, 1, 0, 0, 2, 0, 0, 0, 3, 0},
		bytes.Repeat([]byte{0, 0, 0x10}, 200),
	}
	for i, row := range rows {
		got := DecompressRow(CompressRow(row), len(row))
		if !bytes.Equal(got, row) {
			t.Errorf("row %d: round trip = %v, want %v", i, got, row)
		}
	}
}

func TestDecompressRow_Truncated(t *testing.T) {
	got := DecompressRow([]byte{3, 0}, 4)
	if !bytes.Equal(got, []byte{3, 0, 0, 0}) {
		t.Errorf("DecompressRow() = %v, want [3 0 0 0]", got)
	}
}

func TestDecompressRowInto_Consumed(t *testing.T) {
	data := append(CompressRow([]byte{0, 0, 9}), CompressRow([]byte{4, 0, 0})...)
	row := make([]byte, 3)
	n := decompressRowInto(row, data)
	if n != 3 {
		t.Errorf("consumed %d bytes, want 3", n)
	}
	n2 := decompressRowInto(row, data[n:])
	if n2 != 3 || !bytes.Equal(row, []byte{4, 0, 0}) {
		t.Errorf("second row = %v (%d bytes), want [4 0 0] (3 bytes)", row, n2)
	}
}

func TestPVSBits(t *testing.T) {
	row := make([]byte, 2)
	for _, leaf := range []int32{0, 7, 8, 15} {
		SetPVSBit(row, leaf)
	}
	if !bytes.Equal(row, []byte{0x81, 0x81}) {
		t.Errorf("row = %08b, want [10000001 10000001]", row)
	}
	for leaf := int32(0); leaf < 16; leaf++ {
		want := leaf == 0 || leaf == 7 || leaf == 8 || leaf == 15
		if got := GetPVSBit(row, leaf); got != want {
			t.Errorf("GetPVSBit(%d) = %v, want %v", leaf, got, want)
		}
	}
	if GetPVSBit(row, 16) || GetPVSBit(row, NoLeaf) {
		t.Error("out of range bits must read as unset")
	}
	SetPVSBit(row, 99)
	SetPVSBit(row, NoLeaf)
}
