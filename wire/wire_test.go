package wire

import "testing"

func TestCheckpointHeaderRoundTrip(t *testing.T) {
	h := CheckpointHeader{
		CyclesSample:         123456789,
		WallTimeUnixNano:     1700000000000000000,
		CyclesPerSecond:      2.4e9,
		NewMetadataBytes:     512,
		TotalMetadataEntries: 7,
		DictHash:             0xdeadbeefcafebabe,
	}
	buf := make([]byte, CheckpointHeaderSize)
	n := h.Encode(buf)
	if n != CheckpointHeaderSize {
		t.Fatalf("Encode returned %d, want %d", n, CheckpointHeaderSize)
	}
	if TagOf(buf[0]) != Checkpoint {
		t.Fatalf("tag = %d, want Checkpoint", TagOf(buf[0]))
	}
	got, err := DecodeCheckpointHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestBufferExtentFlags(t *testing.T) {
	h := BufferExtentHeader{WrapAround: true, IsShort: true, ShortID: 5}
	buf := make([]byte, BufferExtentHeaderSize)
	h.EncodeFixed(buf)
	if TagOf(buf[0]) != BufferExtent {
		t.Fatalf("tag = %d, want BufferExtent", TagOf(buf[0]))
	}
	wrap, short, id := DecodeBufferExtentFlags(buf[0])
	if !wrap || !short || id != 5 {
		t.Fatalf("got wrap=%v short=%v id=%d", wrap, short, id)
	}
}

func TestDictionaryFragmentHeaderRoundTrip(t *testing.T) {
	h := DictionaryFragmentHeader{ByteLength: 1 << 20, TotalMetadataEntries: 42}
	buf := make([]byte, DictionaryFragmentHeaderSize)
	h.Encode(buf)
	if TagOf(buf[0]) != LogMsgsOrDic {
		t.Fatalf("tag = %d, want LogMsgsOrDic", TagOf(buf[0]))
	}
	got, err := DecodeDictionaryFragmentHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestCompressedRecordFlagsRoundTrip(t *testing.T) {
	b := CompressedRecordFlags(2, 9)
	if TagOf(b) != LogMsgsOrDic {
		t.Fatalf("tag = %d, want LogMsgsOrDic", TagOf(b))
	}
	fmtBytes, tsNibble := DecodeCompressedRecordFlags(b)
	if fmtBytes != 2 || tsNibble != 9 {
		t.Fatalf("got fmtBytes=%d tsNibble=%d", fmtBytes, tsNibble)
	}
}

func TestInvalidIsAllZero(t *testing.T) {
	if TagOf(0) != Invalid {
		t.Fatalf("zero byte should decode as Invalid")
	}
}
