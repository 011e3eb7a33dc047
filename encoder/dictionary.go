package encoder

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/nanolog/nanolog/registry"
)

// entrySize returns the serialized byte size of one StaticLogInfo's
// CompressedLogInfo entry: severity, line, the argument-type vector
// (one byte per entry, since a FormatType fits in a byte even though
// only 5 bits are meaningful), and length-prefixed file and format
// strings.
func entrySize(info *registry.StaticLogInfo) int {
	return 1 + 4 + 1 + len(info.Codec.ArgTypes) + 2 + len(info.File) + 2 + len(info.Format)
}

func dictionaryPayloadSize(entries []*registry.StaticLogInfo) int {
	n := 0
	for _, info := range entries {
		n += entrySize(info)
	}
	return n
}

// writeDictionaryEntries serializes entries in order and returns the
// number of bytes written. Ids are implicit: the decoder assigns ids by
// position, starting from whatever TotalMetadataEntries the enclosing
// header said came before this fragment.
func writeDictionaryEntries(dst []byte, entries []*registry.StaticLogInfo) int {
	pos := 0
	for _, info := range entries {
		dst[pos] = byte(info.Severity)
		pos++
		binary.LittleEndian.PutUint32(dst[pos:], uint32(info.Line))
		pos += 4
		dst[pos] = byte(len(info.Codec.ArgTypes))
		pos++
		for _, t := range info.Codec.ArgTypes {
			dst[pos] = byte(t)
			pos++
		}
		binary.LittleEndian.PutUint16(dst[pos:], uint16(len(info.File)))
		pos += 2
		pos += copy(dst[pos:], info.File)
		binary.LittleEndian.PutUint16(dst[pos:], uint16(len(info.Format)))
		pos += 2
		pos += copy(dst[pos:], info.Format)
	}
	return pos
}

// dictionaryHash checksums the serialized form of entries so a decoder
// can detect a truncated or corrupted dictionary fragment before it
// starts trusting ids out of it.
func dictionaryHash(entries []*registry.StaticLogInfo) uint64 {
	h := xxhash.New()
	buf := make([]byte, dictionaryPayloadSize(entries))
	writeDictionaryEntries(buf, entries)
	h.Write(buf)
	return h.Sum64()
}

// ReadDictionaryEntries parses count CompressedLogInfo entries out of
// src (as produced by writeDictionaryEntries), assigning sequential ids
// starting at firstID. It's the decoder-side counterpart, kept here
// because it is the exact inverse of this file's layout decisions.
func ReadDictionaryEntries(src []byte, firstID uint32, count int) ([]*registry.StaticLogInfo, int, error) {
	out := make([]*registry.StaticLogInfo, 0, count)
	pos := 0
	for i := 0; i < count; i++ {
		if pos+1+4+1 > len(src) {
			return nil, pos, errShortDictionary
		}
		severity := int(src[pos])
		pos++
		line := int(binary.LittleEndian.Uint32(src[pos:]))
		pos += 4
		numArgs := int(src[pos])
		pos++
		if pos+numArgs > len(src) {
			return nil, pos, errShortDictionary
		}
		argTypes := make([]byte, numArgs)
		copy(argTypes, src[pos:pos+numArgs])
		pos += numArgs

		if pos+2 > len(src) {
			return nil, pos, errShortDictionary
		}
		fileLen := int(binary.LittleEndian.Uint16(src[pos:]))
		pos += 2
		if pos+fileLen > len(src) {
			return nil, pos, errShortDictionary
		}
		file := string(src[pos : pos+fileLen])
		pos += fileLen

		if pos+2 > len(src) {
			return nil, pos, errShortDictionary
		}
		formatLen := int(binary.LittleEndian.Uint16(src[pos:]))
		pos += 2
		if pos+formatLen > len(src) {
			return nil, pos, errShortDictionary
		}
		format := string(src[pos : pos+formatLen])
		pos += formatLen

		info, err := registry.RebuildStaticLogInfo(firstID+uint32(i), severity, file, line, format, argTypes)
		if err != nil {
			return nil, pos, err
		}
		out = append(out, info)
	}
	return out, pos, nil
}
