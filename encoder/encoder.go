// Package encoder turns registered call sites and raw producer records
// into the framed, compressed byte stream the compressor writes to disk
// and the decoder later reads back. It owns the active output buffer the
// compressor drains from, the running dictionary cursor, and the
// previous record's timestamp (so every record can store a delta instead
// of an absolute time).
package encoder

import (
	"fmt"

	"github.com/nanolog/nanolog/pack"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/wire"
)

// Encoder accumulates framed entries into a single backing buffer. It is
// not safe for concurrent use; the compressor owns a single Encoder and
// rebinds it with Reset to the other half of its double buffer rather
// than sharing one across goroutines.
type Encoder struct {
	buf      []byte
	writePos int

	reg           *registry.Registry
	emittedDict   uint32
	lastTimestamp int64

	scratch [pack.MaxVarintLen64 + 1]byte
}

// New returns an Encoder backed by buf, ready to accept entries at
// offset 0.
func New(buf []byte, reg *registry.Registry) *Encoder {
	return &Encoder{buf: buf, reg: reg}
}

// Reset rebinds the Encoder to a different backing buffer (the other
// half of the compressor's double buffer) and clears the write cursor,
// without touching the dictionary cursor or last-timestamp state: those
// describe the logical stream, not any one physical buffer.
func (e *Encoder) Reset(buf []byte) {
	e.buf = buf
	e.writePos = 0
}

// Bytes returns the entries written so far.
func (e *Encoder) Bytes() []byte { return e.buf[:e.writePos] }

// Remaining reports how many free bytes are left in the backing buffer.
func (e *Encoder) Remaining() int { return len(e.buf) - e.writePos }

func byteWidth(v uint64) int {
	n := 1
	for v>>8 != 0 {
		v >>= 8
		n++
	}
	return n
}

// WriteCheckpoint emits a Checkpoint entry carrying the given time base,
// plus any dictionary entries registered but not yet emitted (the common
// case at startup and at every file rotation, when the new file needs a
// self-contained dictionary before any record can reference it).
func (e *Encoder) WriteCheckpoint(cyclesSample uint64, wallTimeUnixNano int64, cyclesPerSecond float64) error {
	pending := e.reg.Since(e.emittedDict)
	dictBytes := dictionaryPayloadSize(pending)

	need := wire.CheckpointHeaderSize + dictBytes
	if e.Remaining() < need {
		return fmt.Errorf("encoder: buffer too small for checkpoint (%d bytes available, need %d)", e.Remaining(), need)
	}

	h := wire.CheckpointHeader{
		CyclesSample:         cyclesSample,
		WallTimeUnixNano:     wallTimeUnixNano,
		CyclesPerSecond:      cyclesPerSecond,
		NewMetadataBytes:     uint32(dictBytes),
		TotalMetadataEntries: uint32(len(pending)) + e.emittedDict,
		DictHash:             dictionaryHash(pending),
	}
	h.Encode(e.buf[e.writePos:])
	e.writePos += wire.CheckpointHeaderSize

	e.writePos += writeDictionaryEntries(e.buf[e.writePos:], pending)
	e.emittedDict += uint32(len(pending))
	e.lastTimestamp = wallTimeUnixNano
	return nil
}

// EmitNewDictionaryEntries writes a standalone dictionary fragment for
// any call sites registered since the last checkpoint or fragment. The
// compressor calls this whenever it is about to encode a record whose
// message id it hasn't described to the output stream yet.
func (e *Encoder) EmitNewDictionaryEntries() error {
	pending := e.reg.Since(e.emittedDict)
	if len(pending) == 0 {
		return nil
	}
	dictBytes := dictionaryPayloadSize(pending)
	need := wire.DictionaryFragmentHeaderSize + dictBytes
	if e.Remaining() < need {
		return fmt.Errorf("encoder: buffer too small for dictionary fragment (%d available, need %d)", e.Remaining(), need)
	}
	h := wire.DictionaryFragmentHeader{
		ByteLength:           uint32(dictBytes),
		TotalMetadataEntries: uint32(len(pending)) + e.emittedDict,
	}
	h.Encode(e.buf[e.writePos:])
	e.writePos += wire.DictionaryFragmentHeaderSize
	e.writePos += writeDictionaryEntries(e.buf[e.writePos:], pending)
	e.emittedDict += uint32(len(pending))
	return nil
}

// ResetDictionaryCursor forgets every dictionary entry emitted so far,
// so the next WriteCheckpoint or EmitNewDictionaryEntries call re-sends
// the registry's entire contents. The compressor calls this on file
// rotation: the new file has no prior checkpoint to inherit a dictionary
// from, so it needs a self-contained one of its own.
func (e *Encoder) ResetDictionaryCursor() {
	e.emittedDict = 0
	e.lastTimestamp = 0
}

// BeginBufferExtent writes a short-producer-id buffer extent header with
// a placeholder length and returns its offset, to be passed to
// EndBufferExtent once the extent's records have been written.
func (e *Encoder) BeginBufferExtent(producerID uint64, wrapAround bool) (int, error) {
	if producerID > 0x0F {
		return 0, fmt.Errorf("encoder: producer id %d exceeds the short 4-bit range", producerID)
	}
	if e.Remaining() < wire.BufferExtentHeaderSize {
		return 0, fmt.Errorf("encoder: buffer too small for buffer extent header")
	}
	h := wire.BufferExtentHeader{WrapAround: wrapAround, IsShort: true, ShortID: uint8(producerID)}
	h.EncodeFixed(e.buf[e.writePos:])
	pos := e.writePos
	e.writePos += wire.BufferExtentHeaderSize
	return pos, nil
}

// EndBufferExtent patches the length field of the extent header started
// at headerPos now that every record inside it has been written.
func (e *Encoder) EndBufferExtent(headerPos int) {
	wire.PutLength(e.buf, headerPos+1, uint32(e.writePos-headerPos))
}

// maxRecordOverhead is the worst-case framing bytes a single record can
// need beyond its codec-packed argument bytes: one flags byte, up to 4
// bytes for the message id, and up to 9 bytes for a signed timestamp
// delta.
const maxRecordOverhead = 1 + 4 + 9

// EncodeRecord compresses one producer record (raw, as laid out by
// info.Codec.Record) into the active buffer. The caller must have
// already ensured info's dictionary entry was emitted (EmitNewDictionaryEntries).
func (e *Encoder) EncodeRecord(info *registry.StaticLogInfo, timestampNanos int64, raw []byte) error {
	worst := maxRecordOverhead + len(raw) + info.Codec.NumNibbles()/2 + 1
	if e.Remaining() < worst {
		return fmt.Errorf("encoder: buffer too small for record (%d available, need up to %d)", e.Remaining(), worst)
	}

	delta := timestampNanos - e.lastTimestamp
	e.lastTimestamp = timestampNanos

	tsNibble, tsBytes := pack.Signed(e.scratch[:], delta)

	fmtWidth := byteWidth(uint64(info.ID))
	if fmtWidth > 4 {
		return fmt.Errorf("encoder: message id %d too large for a 4-byte field", info.ID)
	}

	flagsPos := e.writePos
	e.writePos++ // flags byte, patched below once we know tsNibble

	var idBuf [4]byte
	for i := 0; i < fmtWidth; i++ {
		idBuf[i] = byte(info.ID >> (8 * i))
	}
	e.writePos += copy(e.buf[e.writePos:], idBuf[:fmtWidth])
	e.writePos += copy(e.buf[e.writePos:], tsBytes)

	e.buf[flagsPos] = wire.CompressedRecordFlags(uint8(fmtWidth-1), uint8(tsNibble))

	e.writePos += info.Codec.Pack(e.buf[e.writePos:], raw)
	return nil
}
