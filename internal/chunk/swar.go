package chunk

import "math/bits"

const (
	lsb      = 0x0101010101010101
	msb      = 0x8080808080808080
	semis    = ';' * lsb
	newlines = '\n' * lsb
)

// zeroBytes sets the high bit of every zero byte in x. The lowest set bit is
// exact, higher ones may be false positives caused by the borrow.
//
// https://jameshfisher.com/2017/01/24/bitwise-check-for-zero-byte
func zeroBytes(x uint64) uint64 {
	return (x - lsb) &^ x & msb
}

// indexDelim returns the index of the first ';' or '\n' in the little endian
// word w, or 8 if there is none.
func indexDelim(w uint64) int {
	m := zeroBytes(w^semis) | zeroBytes(w^newlines)
	return bits.TrailingZeros64(m) >> 3
}
