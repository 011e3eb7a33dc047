package pack

import (
	"encoding/binary"
	"math"
)

// Packer writes a run of variable-length-packed integers into a
// caller-supplied buffer, following the wire convention: the first
// ceil(numNibbles/2) bytes hold nibbles two-per-byte (first value's
// nibble in the low 4 bits, second's in the high 4 bits, and so on),
// immediately followed by the packed value bytes themselves in order.
//
// The caller must know numNibbles up front (it comes from the message's
// StaticLogInfo, computed once when the format string was parsed), since
// the nibble region must be sized before any value bytes can be placed
// after it.
type Packer struct {
	dst         []byte
	nibbleBytes int
	nibbleAt    int // index of next nibble slot, 0-based
	valuePos    int // write cursor into dst, starts at nibbleBytes
}

// NewPacker reserves the nibble region for numNibbles values at the
// start of dst and returns a Packer ready to accept that many
// Put{Unsigned,Signed} calls. dst must be large enough for the nibble
// region plus the worst-case value bytes (8 per integer).
func NewPacker(dst []byte, numNibbles int) *Packer {
	nb := (numNibbles + 1) / 2
	for i := 0; i < nb; i++ {
		dst[i] = 0
	}
	return &Packer{dst: dst, nibbleBytes: nb, valuePos: nb}
}

func (p *Packer) putNibble(nb Nibble) {
	byteIdx := p.nibbleAt / 2
	if p.nibbleAt%2 == 0 {
		p.dst[byteIdx] = (p.dst[byteIdx] &^ 0x0F) | byte(nb&0x0F)
	} else {
		p.dst[byteIdx] = (p.dst[byteIdx] &^ 0xF0) | byte(nb&0x0F)<<4
	}
	p.nibbleAt++
}

// PutUnsigned packs v and advances both cursors.
func (p *Packer) PutUnsigned(v uint64) {
	nb, out := Unsigned(p.dst[p.valuePos:], v)
	p.putNibble(nb)
	p.valuePos += len(out)
}

// PutSigned packs v and advances both cursors.
func (p *Packer) PutSigned(v int64) {
	nb, out := Signed(p.dst[p.valuePos:], v)
	p.putNibble(nb)
	p.valuePos += len(out)
}

// PutFloat32 writes v verbatim (no varint compression) and records a
// nibble of 4, reusing the byte-count slots but never taking the negate
// branch: floats are never reinterpreted as negative-magnitude integers.
func (p *Packer) PutFloat32(v float32) {
	binary.LittleEndian.PutUint32(p.dst[p.valuePos:], math.Float32bits(v))
	p.putNibble(4)
	p.valuePos += 4
}

// PutFloat64 writes v verbatim and records a nibble of 8.
func (p *Packer) PutFloat64(v float64) {
	binary.LittleEndian.PutUint64(p.dst[p.valuePos:], math.Float64bits(v))
	p.putNibble(8)
	p.valuePos += 8
}

// Bytes returns the full region written so far (nibble bytes + value
// bytes).
func (p *Packer) Bytes() []byte {
	return p.dst[:p.valuePos]
}

// Len reports the number of bytes consumed, including the nibble region.
func (p *Packer) Len() int {
	return p.valuePos
}

// Unpacker is the read-side counterpart of Packer: it reads nibbles from
// the nibble region and, in lockstep, the corresponding value bytes from
// the region right after it.
type Unpacker struct {
	src         []byte
	nibbleBytes int
	nibbleAt    int
	valuePos    int
}

// NewUnpacker skips the ceil(numNibbles/2)-byte nibble region at the
// start of src and returns an Unpacker positioned at the first value.
func NewUnpacker(src []byte, numNibbles int) *Unpacker {
	nb := (numNibbles + 1) / 2
	return &Unpacker{src: src, nibbleBytes: nb, valuePos: nb}
}

func (u *Unpacker) nextNibble() Nibble {
	byteIdx := u.nibbleAt / 2
	var nb Nibble
	if u.nibbleAt%2 == 0 {
		nb = Nibble(u.src[byteIdx] & 0x0F)
	} else {
		nb = Nibble(u.src[byteIdx] >> 4)
	}
	u.nibbleAt++
	return nb
}

// NextUnsigned reads and advances past the next packed unsigned value.
func (u *Unpacker) NextUnsigned() uint64 {
	nb := u.nextNibble()
	v := UnpackUnsigned(nb, u.src[u.valuePos:])
	u.valuePos += ByteLen(nb)
	return v
}

// NextSigned reads and advances past the next packed signed value.
func (u *Unpacker) NextSigned() int64 {
	nb := u.nextNibble()
	v := UnpackSigned(nb, u.src[u.valuePos:])
	u.valuePos += ByteLen(nb)
	return v
}

// NextFloat32 reads and advances past the next verbatim float32.
func (u *Unpacker) NextFloat32() float32 {
	u.nextNibble()
	v := math.Float32frombits(binary.LittleEndian.Uint32(u.src[u.valuePos:]))
	u.valuePos += 4
	return v
}

// NextFloat64 reads and advances past the next verbatim float64.
func (u *Unpacker) NextFloat64() float64 {
	u.nextNibble()
	v := math.Float64frombits(binary.LittleEndian.Uint64(u.src[u.valuePos:]))
	u.valuePos += 8
	return v
}

// EndOfPackedArguments returns the byte offset, within src, of the first
// byte after all packed primitive values. String arguments are stored
// after this point, length-delimited by a null terminator, in the order
// the format string consumes them.
func (u *Unpacker) EndOfPackedArguments() int {
	return u.valuePos
}

// Tail returns src starting at EndOfPackedArguments, where string
// payloads live.
func (u *Unpacker) Tail() []byte {
	return u.src[u.valuePos:]
}
