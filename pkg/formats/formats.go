// Package formats reads and writes the binary files around the compiler:
// compiled trees (.pvs) and walkability grids (.gat) used as level input.
//
// All multi-byte values are little-endian. Readers bound every count and
// index before allocating, so a corrupt file fails with an error instead
// of exhausting memory.
package formats
