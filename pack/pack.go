// Package pack implements the variable-length integer packer and unpacker
// used by the hot-path codecs: the minimal little-endian byte encoding for
// unsigned and signed integers, and the two-nibbles-per-byte bookkeeping
// that lets an Unpacker walk a run of packed values without re-reading the
// packed bytes themselves.
package pack

import "encoding/binary"

// Nibble is the 4-bit tag a pack operation returns, recording how many
// bytes (and whether the value was negated) the packed encoding used.
type Nibble uint8

// MaxVarintLen64 is the largest number of bytes an 8-byte unsigned or
// signed integer can expand to.
const MaxVarintLen64 = 8

// Unsigned writes v into dst using the minimal number of little-endian
// bytes and returns that count (1-8) as the nibble. dst must have at
// least MaxVarintLen64 bytes of room; Unsigned returns the slice of dst
// actually written.
func Unsigned(dst []byte, v uint64) (Nibble, []byte) {
	n := byteWidth(v)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(dst, buf[:n])
	return Nibble(n), dst[:n]
}

// byteWidth returns the minimal number of bytes (1-8) needed to hold v,
// little-endian. A zero value still takes 1 byte.
func byteWidth(v uint64) int {
	n := 1
	for v>>8 != 0 {
		v >>= 8
		n++
	}
	return n
}

// Signed packs a signed value, taking the "negate" branch when it shrinks
// the encoding. Every value is packed as an int64, so that branch covers
// v in [-(1<<56)+1,-1]; values <= -(1<<56) are packed bitwise because
// negating them saves nothing. The returned nibble is in [0,15]; values 9-15 mean
// "negate and subtract 8".
func Signed(dst []byte, v int64) (Nibble, []byte) {
	if v >= 0 || v <= -(1<<56) {
		nb, out := Unsigned(dst, uint64(v))
		return nb, out
	}

	negated := uint64(-v)
	nb, out := Unsigned(dst, negated)
	return nb + 8, out
}

// UnpackUnsigned inverts Unsigned: nibble 0 means literal zero, nibble
// 1-8 reads that many bytes from src and zero-extends.
func UnpackUnsigned(nb Nibble, src []byte) uint64 {
	if nb == 0 {
		return 0
	}
	var buf [8]byte
	copy(buf[:], src[:nb])
	return binary.LittleEndian.Uint64(buf[:])
}

// UnpackSigned inverts Signed: nibble 9-15 reads (nibble-8) bytes, zero
// extends, and negates; nibble 0-8 behaves like UnpackUnsigned.
func UnpackSigned(nb Nibble, src []byte) int64 {
	if nb <= 8 {
		return int64(UnpackUnsigned(nb, src))
	}
	v := UnpackUnsigned(nb-8, src)
	return -int64(v)
}

// ByteLen returns how many value bytes a nibble's pack operation produced
// (0 for the literal-zero nibble).
func ByteLen(nb Nibble) int {
	if nb <= 8 {
		return int(nb)
	}
	return int(nb - 8)
}
