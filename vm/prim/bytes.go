package prim

// wordsToBytes expands an object's data words into their little-endian byte
// view. Used by both the string and byte-array primitives, which both pack
// 4 bytes per word (spec §3 "Recognized types").
func wordsToBytes(words []int32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		u := uint32(w)
		out[i*4+0] = byte(u)
		out[i*4+1] = byte(u >> 8)
		out[i*4+2] = byte(u >> 16)
		out[i*4+3] = byte(u >> 24)
	}
	return out
}

// packBytesIntoWords writes b (left-aligned, zero-padded) across dst,
// which must already be sized to hold ceil(len(b)/4) words.
func packBytesIntoWords(dst []int32, b []byte) {
	for i := range dst {
		var u uint32
		for j := 0; j < 4; j++ {
			idx := i*4 + j
			if idx < len(b) {
				u |= uint32(b[idx]) << (8 * j)
			}
		}
		dst[i] = int32(u)
	}
}

// wordsForBytes returns how many 4-byte words are needed to hold n bytes.
func wordsForBytes(n int) uint32 {
	return uint32((n + 3) / 4)
}
