package brc

import (
	"encoding/binary"
	"math/bits"
)

var patternNl = compilePattern('\n')
var patternSemi = compilePattern(';')

// findIndexOf scans haystack a word at a time for the byte replicated in
// pattern. Faster than a byte loop on the short spans a line scan covers.
func findIndexOf(haystack []byte, pattern uint64) int {
	var i int
	hLen := len(haystack)
	for i = 0; i < hLen/8*8; i += 8 {
		if index := firstInstance(
			binary.BigEndian.Uint64(haystack[i:i+8]), pattern); index != 8 {
			return i + index
		}
	}
	if hLen%8 == 0 {
		return -1
	}
	sliceToUint := uint64(0)
	switch hLen % 8 {
	case 7:
		sliceToUint |= (uint64(haystack[i+6]) << 8)
		fallthrough
	case 6:
		sliceToUint |= (uint64(haystack[i+5]) << 16)
		fallthrough
	case 5:
		sliceToUint |= (uint64(haystack[i+4]) << 24)
		fallthrough
	case 4:
		sliceToUint |= (uint64(haystack[i+3]) << 32)
		fallthrough
	case 3:
		sliceToUint |= (uint64(haystack[i+2]) << 40)
		fallthrough
	case 2:
		sliceToUint |= (uint64(haystack[i+1]) << 48)
		fallthrough
	case 1:
		sliceToUint |= (uint64(haystack[i]) << 56)
	}
	if index := firstInstance(sliceToUint, pattern); index != 8 {
		return i + index
	}
	return -1
}

// https://richardstartin.github.io/posts/finding-bytes
func compilePattern(byteToFind byte) uint64 {
	var pattern uint64 = uint64(byteToFind & 0xFF)
	return pattern |
		(pattern << 8) |
		(pattern << 16) |
		(pattern << 24) |
		(pattern << 32) |
		(pattern << 40) |
		(pattern << 48) |
		(pattern << 56)
}

func firstInstance(word, pattern uint64) int {
	var input uint64 = word ^ pattern
	var tmp uint64 = (input & 0x7F7F7F7F7F7F7F7F) + 0x7F7F7F7F7F7F7F7F
	tmp = ^(tmp | input | 0x7F7F7F7F7F7F7F7F)
	return bits.LeadingZeros64(tmp) >> 3
}
