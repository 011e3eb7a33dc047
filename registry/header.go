package registry

// RecordHeaderSize is the fixed-width header a producer writes ahead of
// its raw codec payload into a staging buffer reservation: the message
// id it registered under, then the timestamp it sampled at call time.
// This is the staging buffer's own internal framing, distinct from the
// compressed wire format the encoder later produces from it.
const RecordHeaderSize = 4 + 8

// PutRecordHeader writes id and timestampNanos into dst, which must be
// at least RecordHeaderSize bytes.
func PutRecordHeader(dst []byte, id uint32, timestampNanos int64) {
	putUint32(dst, id)
	putUint64(dst[4:], uint64(timestampNanos))
}

// GetRecordHeader reads a header previously written by PutRecordHeader.
func GetRecordHeader(src []byte) (id uint32, timestampNanos int64) {
	id = getUint32(src)
	timestampNanos = int64(getUint64(src[4:]))
	return
}
