package chunk

import "encoding/binary"

// FNV-1a constants from hash/fnv, applied to 8-byte words instead of bytes.
const (
	offset64 uint64 = 14695981039346656037
	prime64  uint64 = 1099511628211
)

func mix(h, w uint64) uint64 {
	return (h ^ w) * prime64
}

// finish folds the high half into the low bits; table slots are picked by
// masking the low bits and the multiply only carries upward.
func finish(h uint64) uint64 {
	return h ^ h>>32
}

// Hash returns the hash the Scanner computes for a station name. Full words
// are read little endian, a trailing partial word is zero padded.
func Hash(name []byte) uint64 {
	h := offset64
	for len(name) >= 8 {
		h = mix(h, binary.LittleEndian.Uint64(name))
		name = name[8:]
	}
	if len(name) > 0 {
		var w uint64
		for i, c := range name {
			w |= uint64(c) << (8 * i)
		}
		h = mix(h, w)
	}
	return finish(h)
}
