// Package registry implements the static-info side of the system: the
// append-only table mapping a message id to the StaticLogInfo needed to
// compress its record (the Codec) and, later, to decompress and render it
// (the FormatMetadata embedded inside StaticLogInfo).
package registry

import (
	"fmt"
	"math"

	"github.com/nanolog/nanolog/microcode"
	"github.com/nanolog/nanolog/pack"
)

// Codec is the per-call-site routine pair: Record lays a call's
// arguments out in the uncompressed, fixed-width representation the
// producer writes into the staging buffer, and Pack walks that raw
// representation back out into the compressed, nibble-packed
// representation the encoder writes to its output buffer.
type Codec struct {
	ArgTypes []microcode.FormatType
}

// NewCodec builds a Codec from a parsed format's fragments, skipping
// fragments that carry no argument (None) but keeping one entry per
// dynamic width/precision flag, in the order an argument list supplies
// them.
func NewCodec(meta *microcode.FormatMetadata) *Codec {
	c := &Codec{}
	for _, f := range meta.Fragments {
		if f.DynamicWidth {
			c.ArgTypes = append(c.ArgTypes, microcode.SignedInt)
		}
		if f.DynamicPrecision {
			c.ArgTypes = append(c.ArgTypes, microcode.SignedInt)
		}
		if f.ArgType != microcode.None {
			c.ArgTypes = append(c.ArgTypes, f.ArgType)
		}
	}
	return c
}

// rawWidth is the fixed byte width Record reserves for a single
// non-string argument's raw, uncompressed slot.
func rawWidth(t microcode.FormatType) int {
	switch t {
	case microcode.Float:
		return 4
	case microcode.Double, microcode.LongDouble:
		return 8
	default:
		return 8 // every other numeric/pointer category stored as a raw int64/uint64
	}
}

// RecordSize returns the number of raw bytes Record will need to lay out
// args, including 4-byte length prefixes for any string arguments. It
// does not include the message-id/timestamp header in front of each
// staged record; see RecordHeaderSize and PutRecordHeader.
func (c *Codec) RecordSize(args []interface{}) (int, error) {
	if len(args) != len(c.ArgTypes) {
		return 0, fmt.Errorf("registry: codec expects %d arguments, got %d", len(c.ArgTypes), len(args))
	}
	n := 0
	for i, t := range c.ArgTypes {
		if t.IsString() {
			s, ok := args[i].(string)
			if !ok {
				return 0, fmt.Errorf("registry: argument %d must be a string", i)
			}
			n += 4 + len(s)
			continue
		}
		n += rawWidth(t)
	}
	return n, nil
}

// Record serializes args into dst in the codec's raw layout: each
// non-string argument occupies its fixed raw width (as an int64,
// uint64, or native-width float bit pattern), and each string argument
// is a 4-byte little-endian length followed by its bytes. Record
// returns the number of bytes written.
func (c *Codec) Record(dst []byte, args []interface{}) (int, error) {
	if len(args) != len(c.ArgTypes) {
		return 0, fmt.Errorf("registry: codec expects %d arguments, got %d", len(c.ArgTypes), len(args))
	}
	pos := 0
	for i, t := range c.ArgTypes {
		if t.IsString() {
			s, ok := args[i].(string)
			if !ok {
				return 0, fmt.Errorf("registry: argument %d must be a string", i)
			}
			putUint32(dst[pos:], uint32(len(s)))
			pos += 4
			pos += copy(dst[pos:], s)
			continue
		}
		switch t {
		case microcode.Float:
			putUint32(dst[pos:], math.Float32bits(toFloat32(args[i])))
			pos += 4
		case microcode.Double, microcode.LongDouble:
			putUint64(dst[pos:], math.Float64bits(toFloat64(args[i])))
			pos += 8
		case microcode.Pointer, microcode.UnsignedChar, microcode.UnsignedShort,
			microcode.UnsignedInt, microcode.UnsignedLong, microcode.UnsignedLongLong,
			microcode.UintmaxT, microcode.SizeT, microcode.WintT:
			putUint64(dst[pos:], toUint64(args[i]))
			pos += 8
		default:
			putUint64(dst[pos:], uint64(toInt64(args[i])))
			pos += 8
		}
	}
	return pos, nil
}

// RawSize walks raw the same way Record laid it out and returns how many
// bytes belong to one record, without copying anything out. The
// compressor uses this to find a record's boundary inside a producer's
// staging buffer before handing the rest off to Pack.
func (c *Codec) RawSize(raw []byte) (int, error) {
	pos := 0
	for _, t := range c.ArgTypes {
		if t.IsString() {
			if pos+4 > len(raw) {
				return 0, fmt.Errorf("registry: truncated string length prefix")
			}
			l := int(getUint32(raw[pos:]))
			pos += 4 + l
			continue
		}
		pos += rawWidth(t)
	}
	if pos > len(raw) {
		return 0, fmt.Errorf("registry: truncated raw record")
	}
	return pos, nil
}

// Pack reads a raw record previously written by Record and emits its
// compressed form: a Packer-driven nibble-and-value region for every
// non-string argument, followed by the string payloads (null
// terminated) in argument order. dst must be large enough for the
// worst case (8 bytes per non-string argument plus nibble bytes, plus
// every string's bytes and terminator). Pack returns the number of
// bytes written.
func (c *Codec) Pack(dst []byte, raw []byte) int {
	numNibbles := 0
	for _, t := range c.ArgTypes {
		if t.ConsumesNibble() {
			numNibbles++
		}
	}
	p := pack.NewPacker(dst, numNibbles)

	rawPos := 0
	var strings [][]byte
	for _, t := range c.ArgTypes {
		if t.IsString() {
			l := getUint32(raw[rawPos:])
			rawPos += 4
			strings = append(strings, raw[rawPos:rawPos+int(l)])
			rawPos += int(l)
			continue
		}
		switch t {
		case microcode.Float:
			bits := getUint32(raw[rawPos:])
			rawPos += 4
			p.PutFloat32(math.Float32frombits(bits))
		case microcode.Double, microcode.LongDouble:
			bits := getUint64(raw[rawPos:])
			rawPos += 8
			p.PutFloat64(math.Float64frombits(bits))
		case microcode.Pointer, microcode.UnsignedChar, microcode.UnsignedShort,
			microcode.UnsignedInt, microcode.UnsignedLong, microcode.UnsignedLongLong,
			microcode.UintmaxT, microcode.SizeT, microcode.WintT:
			v := getUint64(raw[rawPos:])
			rawPos += 8
			p.PutUnsigned(v)
		default:
			v := int64(getUint64(raw[rawPos:]))
			rawPos += 8
			p.PutSigned(v)
		}
	}

	pos := p.Len()
	for _, s := range strings {
		pos += copy(dst[pos:], s)
		dst[pos] = 0
		pos++
	}
	return pos
}

// NumNibbles reports how many nibbles a record packed by Pack will
// consume, which callers need before they can size a CompressedRecord
// timestamp/fmtId header (see encoder.EncodeRecord).
func (c *Codec) NumNibbles() int {
	n := 0
	for _, t := range c.ArgTypes {
		if t.ConsumesNibble() {
			n++
		}
	}
	return n
}
