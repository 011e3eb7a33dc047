// Package decoder turns a nanolog binary file back into text: it walks
// the framed entries the encoder wrote, rebuilds the dictionary as
// fragments arrive, and renders each compressed record through the same
// format metadata the producer registered it under.
package decoder

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/nanolog/nanolog/encoder"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/wire"
)

// maxShortProducers bounds the producer ids this decoder understands.
// The encoder only ever writes short (4-bit) producer ids
// (encoder.BeginBufferExtent rejects larger ones); the non-short BufferExtent layout
// wire.go reserves room for is otherwise unused, so decoding it is not
// implemented here.
const maxShortProducers = 16

// Record is one decoded, rendered log line.
type Record struct {
	Timestamp  int64
	Severity   int
	File       string
	Line       int
	Text       string
	ProducerID uint64
	MessageID  uint32

	// NewExecution marks a synthetic record standing in for a checkpoint
	// encountered after the file's first byte: spec.md §6.2's "a second
	// checkpoint simply starts a new execution in the decoder and resets
	// the dictionary". It carries no message id or producer; only
	// Timestamp and Text ("# New execution started") are meaningful.
	NewExecution bool
}

// decodeAll walks every framed entry in data, replaying dictionary
// fragments into reg and collecting every decoded record along the way.
// Both DecompressUnordered and DecompressInOrder build on this; the only
// difference between them is whether the result is re-sorted afterward.
func decodeAll(data []byte, reg *registry.Registry) ([]Record, error) {
	var records []Record
	// The encoder takes each timestamp delta against the previous record
	// in the stream, whichever producer wrote it.
	var lastTimestamp int64
	pos := 0
	firstCheckpointSeen := false

	for pos < len(data) {
		tag := wire.TagOf(data[pos])
		switch tag {
		case wire.Invalid:
			pos++

		case wire.Checkpoint:
			hdr, err := wire.DecodeCheckpointHeader(data[pos:])
			if err != nil {
				return records, err
			}
			pos += wire.CheckpointHeaderSize

			if firstCheckpointSeen {
				// A checkpoint after the file's first entry means a
				// second execution was appended to this file: flush the
				// old dictionary entirely rather than merge into it, so
				// the new execution's ids (which also start from 0)
				// can't collide with the old one's.
				reg.Reset()
				records = append(records, Record{
					Timestamp:    hdr.WallTimeUnixNano,
					Text:         "# New execution started",
					NewExecution: true,
				})
			}
			firstCheckpointSeen = true

			n, err := replayDictionary(data[pos:], reg, hdr.TotalMetadataEntries)
			if err != nil {
				return records, err
			}
			if xxhash.Sum64(data[pos:pos+n]) != hdr.DictHash {
				return records, fmt.Errorf("decoder: checkpoint dictionary checksum mismatch")
			}
			pos += n
			lastTimestamp = hdr.WallTimeUnixNano

		case wire.LogMsgsOrDic:
			hdr, err := wire.DecodeDictionaryFragmentHeader(data[pos:])
			if err != nil {
				return records, err
			}
			pos += wire.DictionaryFragmentHeaderSize
			n, err := replayDictionary(data[pos:], reg, hdr.TotalMetadataEntries)
			if err != nil {
				return records, err
			}
			pos += n

		case wire.BufferExtent:
			wrap, isShort, shortID := wire.DecodeBufferExtentFlags(data[pos])
			_ = wrap
			if !isShort {
				return records, fmt.Errorf("decoder: non-short producer ids are not supported")
			}
			length := wire.Length(data, pos+1)
			extentEnd := pos + int(length)
			pos += wire.BufferExtentHeaderSize

			var msg LogMessage
			for pos < extentEnd {
				info, ts, consumed, err := DecodeRecord(reg, data[pos:extentEnd], lastTimestamp, &msg)
				if err != nil {
					return records, err
				}
				lastTimestamp = ts

				text, err := Render(info, &msg)
				if err != nil {
					return records, err
				}
				records = append(records, Record{
					Timestamp:  ts,
					Severity:   info.Severity,
					File:       info.File,
					Line:       info.Line,
					Text:       text,
					ProducerID: uint64(shortID),
					MessageID:  info.ID,
				})
				pos += consumed
			}
		}
	}
	return records, nil
}

func replayDictionary(src []byte, reg *registry.Registry, totalAfter uint32) (int, error) {
	have := uint32(reg.Len())
	if totalAfter <= have {
		return 0, nil
	}
	entries, n, err := encoder.ReadDictionaryEntries(src, have, int(totalAfter-have))
	if err != nil {
		return n, err
	}
	for _, e := range entries {
		reg.AddDecoded(e)
	}
	return n, nil
}

// Decode walks every framed entry in data and returns the decoded
// records, sorted into chronological order when ordered is true. Callers
// that need to filter or reformat records before printing them (the
// nanolog-decode command's -id flag, for instance) should call this
// directly instead of DecompressUnordered/DecompressInOrder.
func Decode(data []byte, reg *registry.Registry, ordered bool) ([]Record, error) {
	records, err := decodeAll(data, reg)
	if err != nil {
		return nil, err
	}
	if ordered {
		sortByExecution(records)
	}
	return records, nil
}

// sortByExecution chronologically sorts each execution's records
// independently, leaving NewExecution marker records as the untouched
// boundaries between segments: different executions may use unrelated
// time bases, so only intra-execution order is a sorting invariant
// (spec.md §8 testable property 4).
func sortByExecution(records []Record) {
	start := 0
	for i, r := range records {
		if r.NewExecution {
			stableSortByTimestamp(records[start:i])
			start = i + 1
		}
	}
	stableSortByTimestamp(records[start:])
}

// DecompressUnordered renders every record in file order: interleaved
// across producers exactly as the compressor drained their staging
// buffers, which is bounded-reordered (see DecompressInOrder) but never
// out of order by more than one compressor pass.
func DecompressUnordered(data []byte, reg *registry.Registry, out io.Writer) error {
	records, err := Decode(data, reg, false)
	if err != nil {
		return err
	}
	return writeRecords(out, records)
}

// DecompressInOrder renders every record sorted chronologically within
// each execution; NewExecution markers stay where they are. Because this implementation (unlike the
// bounded-lookahead heap-merge a true streaming decoder would need)
// already buffers the whole decoded file in memory, a stable sort by
// timestamp is the simplest way to produce that sequence and needs no
// extra bound on cross-producer clock skew.
func DecompressInOrder(data []byte, reg *registry.Registry, out io.Writer) error {
	records, err := Decode(data, reg, true)
	if err != nil {
		return err
	}
	return writeRecords(out, records)
}

func stableSortByTimestamp(records []Record) {
	// insertion sort is fine here: compressor reordering is bounded to
	// one pass across a handful of producers, so runs are nearly sorted
	// already.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].Timestamp > records[j].Timestamp; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}

func writeRecords(out io.Writer, records []Record) error {
	for _, r := range records {
		if r.NewExecution {
			if _, err := fmt.Fprintln(out, r.Text); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(out, "%s:%d %s\n", r.File, r.Line, r.Text); err != nil {
			return err
		}
	}
	return nil
}
