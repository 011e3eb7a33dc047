package decoder

import (
	"bytes"
	"fmt"

	"github.com/nanolog/nanolog/microcode"
	"github.com/nanolog/nanolog/pack"
	"github.com/nanolog/nanolog/registry"
)

// DecodeRecord decodes one compressed log record starting at src[0]
// (which must already have been identified as a LogMsgsOrDic tag inside
// a BufferExtent, not a top-level dictionary fragment). It returns the
// record's StaticLogInfo, its absolute timestamp, and the number of
// bytes consumed from src.
func DecodeRecord(reg *registry.Registry, src []byte, lastTimestamp int64, msg *LogMessage) (info *registry.StaticLogInfo, timestampNanos int64, consumed int, err error) {
	if len(src) < 1 {
		return nil, 0, 0, fmt.Errorf("decoder: empty record")
	}
	additionalFmtIDBytes, timestampNibble := decodeFlagsByte(src[0])
	pos := 1

	fmtWidth := int(additionalFmtIDBytes) + 1
	if pos+fmtWidth > len(src) {
		return nil, 0, 0, fmt.Errorf("decoder: truncated message id")
	}
	var id uint32
	for i := 0; i < fmtWidth; i++ {
		id |= uint32(src[pos+i]) << (8 * i)
	}
	pos += fmtWidth

	tsLen := pack.ByteLen(pack.Nibble(timestampNibble))
	if pos+tsLen > len(src) {
		return nil, 0, 0, fmt.Errorf("decoder: truncated timestamp")
	}
	delta := pack.UnpackSigned(pack.Nibble(timestampNibble), src[pos:])
	pos += tsLen
	timestampNanos = lastTimestamp + delta

	info = reg.Get(id)
	if info == nil {
		return nil, 0, 0, fmt.Errorf("decoder: unknown message id %d", id)
	}

	msg.Reset()
	n := decodeArgs(info, src[pos:], msg)
	pos += n

	return info, timestampNanos, pos, nil
}

func decodeFlagsByte(b byte) (additionalFmtIDBytes, timestampNibble uint8) {
	// Reads the two bitfields directly, using the same layout
	// wire.CompressedRecordFlags writes and wire.DecodeCompressedRecordFlags
	// reads.
	additionalFmtIDBytes = (b >> 2) & 0x03
	timestampNibble = (b >> 4) & 0x0F
	return
}

func decodeArgs(info *registry.StaticLogInfo, src []byte, msg *LogMessage) int {
	numNibbles := info.Codec.NumNibbles()
	u := pack.NewUnpacker(src, numNibbles)

	for _, t := range info.Codec.ArgTypes {
		if t.IsString() {
			continue
		}
		switch t {
		case microcode.Float:
			msg.Push(t, uint64(floatBits32(u.NextFloat32())))
		case microcode.Double, microcode.LongDouble:
			msg.Push(t, floatBits64(u.NextFloat64()))
		case microcode.Pointer, microcode.UnsignedChar, microcode.UnsignedShort,
			microcode.UnsignedInt, microcode.UnsignedLong, microcode.UnsignedLongLong,
			microcode.UintmaxT, microcode.SizeT, microcode.WintT:
			msg.Push(t, u.NextUnsigned())
		default:
			msg.Push(t, uint64(u.NextSigned()))
		}
	}

	pos := u.EndOfPackedArguments()
	for _, t := range info.Codec.ArgTypes {
		if !t.IsString() {
			continue
		}
		end := bytes.IndexByte(src[pos:], 0)
		if end < 0 {
			end = len(src) - pos
		}
		msg.PushString(string(src[pos : pos+end]))
		pos += end + 1
	}
	return pos
}
