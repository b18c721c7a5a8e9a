//go:build amd64

// Package simd provides accelerated CSV delimiter scanning: a
// SWAR (SIMD-within-a-register) byte scan that tests 8 bytes per
// iteration via word-parallel comparisons instead of one byte at a
// time, the same trick the index worker's chunked scan depends on to
// keep up with a fast source.
package simd

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// HasAVX2 reports whether the CPU has AVX2. It is informational only:
// the scan here is scalar/SWAR rather than AVX2 assembly, and the
// index worker's chunk size is fixed.
func HasAVX2() bool { return cpu.X86.HasAVX2 }

const swarWord = 8

func broadcast(b byte) uint64 { return 0x0101010101010101 * uint64(b) }

// hasZeroByte detects, across an 8-byte word, whether any lane equals
// the byte XORed in by the caller, using the classic bit-trick from
// "Bit Twiddling Hacks" (has-zero-byte test on v = word ^ broadcast(target)).
func hasZeroByte(v uint64) uint64 {
	return (v - 0x0101010101010101) & ^v & 0x8080808080808080
}

func setBit(bitmap []uint64, i int) {
	bitmap[i/64] |= 1 << uint(i%64)
}

// Scan scans the input buffer and populates bitmaps for quotes, commas,
// and newlines.
//
// Each bit in the output slices corresponds to one byte in the input.
// A bit is set to 1 if that byte is the corresponding character.
//
// The bitmaps must be pre-allocated with length >= (len(input) + 63) / 64.
func Scan(input []byte, quotes, commas, newlines []uint64) {
	ScanWithSeparator(input, ',', quotes, commas, newlines)
}

// ScanWithSeparator scans the input buffer for quotes, a custom
// separator, and newlines, processing 8 bytes per iteration when at
// least that many remain.
func ScanWithSeparator(input []byte, sep byte, quotes, seps, newlines []uint64) {
	quoteWord := broadcast('"')
	sepWord := broadcast(sep)
	nlWord := broadcast('\n')

	i := 0
	n := len(input)
	for ; i+swarWord <= n; i += swarWord {
		word := binary.LittleEndian.Uint64(input[i : i+swarWord])
		qHits := hasZeroByte(word ^ quoteWord)
		sHits := hasZeroByte(word ^ sepWord)
		nHits := hasZeroByte(word ^ nlWord)
		if qHits == 0 && sHits == 0 && nHits == 0 {
			continue
		}
		for j := 0; j < swarWord; j++ {
			switch input[i+j] {
			case '"':
				setBit(quotes, i+j)
			case sep:
				setBit(seps, i+j)
			case '\n':
				setBit(newlines, i+j)
			}
		}
	}
	for ; i < n; i++ {
		switch input[i] {
		case '"':
			setBit(quotes, i)
		case sep:
			setBit(seps, i)
		case '\n':
			setBit(newlines, i)
		}
	}
}
