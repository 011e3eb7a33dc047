// Package wire defines the on-disk binary log format shared by the
// encoder and the decoder: the four self-delimiting entry types, their
// byte-level layouts, and the helpers both sides use to read and write
// them. Keeping this logic in one package is what guarantees the encoder
// and decoder never drift apart on bit positions.
//
// Every framed entry begins with a 2-bit entry tag in the low bits of
// its first byte; an all-zero byte therefore always decodes as Invalid,
// which is what makes zero-padding safe.
package wire

import (
	"encoding/binary"
	"math"
	"time"
)

// EntryTag identifies the kind of the next framed entry in the stream.
type EntryTag uint8

const (
	// Invalid marks padding; any all-zero byte decodes to this.
	Invalid EntryTag = 0
	// LogMsgsOrDic is either a compressed log record (inside a buffer
	// extent) or a dictionary fragment (at top level).
	LogMsgsOrDic EntryTag = 1
	// BufferExtent marks the start of a contiguous run of records from
	// one producer.
	BufferExtent EntryTag = 2
	// Checkpoint is a time-base (and optional dictionary) snapshot.
	Checkpoint EntryTag = 3
)

// TagOf extracts the entry tag from the low 2 bits of b.
func TagOf(b byte) EntryTag {
	return EntryTag(b & 0x03)
}

// CheckpointHeaderSize is the fixed on-disk size of a Checkpoint header,
// not counting any embedded dictionary bytes that follow it.
const CheckpointHeaderSize = 1 + 8 + 8 + 8 + 4 + 4 + 8

// CheckpointHeader is the time-base anchor emitted at file start and at
// every file swap.
type CheckpointHeader struct {
	CyclesSample         uint64
	WallTimeUnixNano     int64
	CyclesPerSecond      float64
	NewMetadataBytes     uint32 // dictionary bytes immediately following
	TotalMetadataEntries uint32 // total dictionary entries expected
	DictHash             uint64 // xxhash64 of the embedded dictionary bytes
}

// Encode writes the header (tag + fixed fields) into dst, which must be
// at least CheckpointHeaderSize bytes.
func (h CheckpointHeader) Encode(dst []byte) int {
	dst[0] = byte(Checkpoint)
	binary.LittleEndian.PutUint64(dst[1:9], h.CyclesSample)
	binary.LittleEndian.PutUint64(dst[9:17], uint64(h.WallTimeUnixNano))
	binary.LittleEndian.PutUint64(dst[17:25], math.Float64bits(h.CyclesPerSecond))
	binary.LittleEndian.PutUint32(dst[25:29], h.NewMetadataBytes)
	binary.LittleEndian.PutUint32(dst[29:33], h.TotalMetadataEntries)
	binary.LittleEndian.PutUint64(dst[33:41], h.DictHash)
	return CheckpointHeaderSize
}

// DecodeCheckpointHeader reads a header previously written by Encode.
// src[0] is assumed to already have been identified as Checkpoint.
func DecodeCheckpointHeader(src []byte) (CheckpointHeader, error) {
	if len(src) < CheckpointHeaderSize {
		return CheckpointHeader{}, ErrTruncated
	}
	var h CheckpointHeader
	h.CyclesSample = binary.LittleEndian.Uint64(src[1:9])
	h.WallTimeUnixNano = int64(binary.LittleEndian.Uint64(src[9:17]))
	h.CyclesPerSecond = math.Float64frombits(binary.LittleEndian.Uint64(src[17:25]))
	h.NewMetadataBytes = binary.LittleEndian.Uint32(src[25:29])
	h.TotalMetadataEntries = binary.LittleEndian.Uint32(src[29:33])
	h.DictHash = binary.LittleEndian.Uint64(src[33:41])
	return h, nil
}

// WallTime returns the checkpoint's wall-clock time.
func (h CheckpointHeader) WallTime() time.Time {
	return time.Unix(0, h.WallTimeUnixNano).UTC()
}

// BufferExtentHeaderSize is the fixed on-disk size of a buffer extent
// header when the producer id is "short" (fits in the 4-bit field).
const BufferExtentHeaderSize = 1 + 4

// BufferExtentHeader marks the beginning of a contiguous run of records
// from one producer.
type BufferExtentHeader struct {
	WrapAround bool
	IsShort    bool
	// ShortID holds the producer id directly when IsShort; otherwise it
	// holds the pack nibble for the id that follows the header.
	ShortID uint8
	// ProducerID is only meaningful to callers after they've resolved a
	// non-short id from the trailing packed bytes; neither the encoder
	// nor the decoder sets it.
	ProducerID uint64
	Length     uint32 // total byte size of this extent including header
}

// EncodeFixed writes the tag byte only. The caller is responsible for
// placing any packed producer-id bytes after it and for writing the
// length field with PutLength once the extent's true size is known (see
// encoder.BeginBufferExtent for the exact layout).
func (h BufferExtentHeader) EncodeFixed(dst []byte) {
	b := byte(BufferExtent)
	if h.WrapAround {
		b |= 1 << 2
	}
	if h.IsShort {
		b |= 1 << 3
	}
	b |= (h.ShortID & 0x0F) << 4
	dst[0] = b
}

// DecodeBufferExtentFlags reads the tag byte's flags (but not the length, which
// follows a variable number of id bytes depending on IsShort).
func DecodeBufferExtentFlags(b byte) (wrapAround, isShort bool, shortID uint8) {
	wrapAround = b&(1<<2) != 0
	isShort = b&(1<<3) != 0
	shortID = (b >> 4) & 0x0F
	return
}

// PutLength patches the 32-bit length field at the given offset.
func PutLength(dst []byte, off int, length uint32) {
	binary.LittleEndian.PutUint32(dst[off:off+4], length)
}

// Length reads a 32-bit length field at the given offset.
func Length(src []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(src[off : off+4])
}

// DictionaryFragmentHeaderSize is the fixed size of a dictionary
// fragment's header (30-bit length packed with the tag, plus a running
// total).
const DictionaryFragmentHeaderSize = 4 + 4

// DictionaryFragmentHeader is a top-level LogMsgsOrDic entry adding a
// prefix-contiguous range of new message ids.
type DictionaryFragmentHeader struct {
	ByteLength           uint32 // byte size of the entries that follow, not counting this header
	TotalMetadataEntries uint32 // running total of dictionary entries seen so far
}

// Encode writes the header into dst (DictionaryFragmentHeaderSize bytes).
func (h DictionaryFragmentHeader) Encode(dst []byte) {
	tagAndLen := uint32(LogMsgsOrDic) | (h.ByteLength << 2)
	binary.LittleEndian.PutUint32(dst[0:4], tagAndLen)
	binary.LittleEndian.PutUint32(dst[4:8], h.TotalMetadataEntries)
}

// DecodeDictionaryFragmentHeader reads a header written by Encode.
func DecodeDictionaryFragmentHeader(src []byte) (DictionaryFragmentHeader, error) {
	if len(src) < DictionaryFragmentHeaderSize {
		return DictionaryFragmentHeader{}, ErrTruncated
	}
	tagAndLen := binary.LittleEndian.Uint32(src[0:4])
	var h DictionaryFragmentHeader
	h.ByteLength = tagAndLen >> 2
	h.TotalMetadataEntries = binary.LittleEndian.Uint32(src[4:8])
	return h, nil
}

// CompressedRecordFlags packs the 2-bit additionalFmtIdBytes and 4-bit
// additionalTimestampBytes fields alongside the LogMsgsOrDic tag, all in
// one byte.
func CompressedRecordFlags(additionalFmtIDBytes uint8, timestampNibble uint8) byte {
	b := byte(LogMsgsOrDic)
	b |= (additionalFmtIDBytes & 0x03) << 2
	b |= (timestampNibble & 0x0F) << 4
	return b
}

// DecodeCompressedRecordFlags splits a compressed-record tag byte back
// into its fields.
func DecodeCompressedRecordFlags(b byte) (additionalFmtIDBytes uint8, timestampNibble uint8) {
	additionalFmtIDBytes = (b >> 2) & 0x03
	timestampNibble = (b >> 4) & 0x0F
	return
}
