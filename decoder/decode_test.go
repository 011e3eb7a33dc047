package decoder

import (
	"bytes"
	"testing"

	"github.com/nanolog/nanolog/encoder"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/wire"
)

func TestDecodeRecordRoundTrip(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(2, "server.go", 42, "conn %d from %s at %.2f")
	if err != nil {
		t.Fatal(err)
	}

	args := []interface{}{int64(7), "10.0.0.1", 3.5}
	size, err := info.Codec.RecordSize(args)
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, size)
	if _, err := info.Codec.Record(raw, args); err != nil {
		t.Fatal(err)
	}

	e := encoder.New(make([]byte, 4096), reg)
	if err := e.EmitNewDictionaryEntries(); err != nil {
		t.Fatal(err)
	}
	dictBytes := e.Bytes()

	e2 := encoder.New(make([]byte, 4096), reg)
	if err := e2.EncodeRecord(info, 1000, raw); err != nil {
		t.Fatal(err)
	}
	recordBytes := e2.Bytes()

	decodeReg := registry.New()
	n, err := replayDictionary(dictBytes[wire.DictionaryFragmentHeaderSize:], decodeReg, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected dictionary replay to consume bytes")
	}

	var msg LogMessage
	decodedInfo, ts, consumed, err := DecodeRecord(decodeReg, recordBytes, 0, &msg)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(recordBytes) {
		t.Fatalf("consumed %d, want %d", consumed, len(recordBytes))
	}
	if ts != 1000 {
		t.Fatalf("timestamp = %d, want 1000", ts)
	}

	text, err := Render(decodedInfo, &msg)
	if err != nil {
		t.Fatal(err)
	}
	want := "conn 7 from 10.0.0.1 at 3.50"
	if text != want {
		t.Fatalf("Render() = %q, want %q", text, want)
	}
}

func TestRenderUnsignedDecimalSpecifier(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(2, "server.go", 43, "seq %u of %lu")
	if err != nil {
		t.Fatal(err)
	}

	args := []interface{}{uint64(7), uint64(4294967296)}
	size, err := info.Codec.RecordSize(args)
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, size)
	if _, err := info.Codec.Record(raw, args); err != nil {
		t.Fatal(err)
	}

	e := encoder.New(make([]byte, 4096), reg)
	if err := e.EncodeRecord(info, 1000, raw); err != nil {
		t.Fatal(err)
	}

	var msg LogMessage
	decodedInfo, _, _, err := DecodeRecord(reg, e.Bytes(), 0, &msg)
	if err != nil {
		t.Fatal(err)
	}
	text, err := Render(decodedInfo, &msg)
	if err != nil {
		t.Fatal(err)
	}
	want := "seq 7 of 4294967296"
	if text != want {
		t.Fatalf("Render() = %q, want %q (fmt has no %%u verb; must translate to %%d)", text, want)
	}
}

func TestDecodeRecordDeltaTimestamps(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(1, "a.go", 1, "%d")
	if err != nil {
		t.Fatal(err)
	}
	args := []interface{}{int64(1)}
	raw := make([]byte, 8)
	info.Codec.Record(raw, args)

	e := encoder.New(make([]byte, 4096), reg)
	if err := e.EncodeRecord(info, 5000, raw); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeRecord(info, 5200, raw); err != nil {
		t.Fatal(err)
	}
	data := e.Bytes()

	var msg LogMessage
	_, ts1, n1, err := DecodeRecord(reg, data, 0, &msg)
	if err != nil {
		t.Fatal(err)
	}
	if ts1 != 5000 {
		t.Fatalf("ts1 = %d, want 5000", ts1)
	}
	_, ts2, _, err := DecodeRecord(reg, data[n1:], ts1, &msg)
	if err != nil {
		t.Fatal(err)
	}
	if ts2 != 5200 {
		t.Fatalf("ts2 = %d, want 5200", ts2)
	}
}

func TestDecompressUnorderedFullFile(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(1, "a.go", 1, "hi %d")
	if err != nil {
		t.Fatal(err)
	}

	var file bytes.Buffer
	ce := encoder.New(make([]byte, 4096), reg)
	if err := ce.WriteCheckpoint(0, 1_700_000_000_000_000_000, 2.0e9); err != nil {
		t.Fatal(err)
	}
	file.Write(ce.Bytes())

	re := encoder.New(make([]byte, 4096), reg)
	raw := make([]byte, 8)
	info.Codec.Record(raw, []interface{}{int64(9)})
	if err := re.EncodeRecord(info, 1_700_000_000_000_000_000, raw); err != nil {
		t.Fatal(err)
	}
	recordBytes := re.Bytes()

	bh := wire.BufferExtentHeader{IsShort: true, ShortID: 0}
	hdrBuf := make([]byte, wire.BufferExtentHeaderSize)
	bh.EncodeFixed(hdrBuf)
	wire.PutLength(hdrBuf, 1, uint32(wire.BufferExtentHeaderSize+len(recordBytes)))
	file.Write(hdrBuf)
	file.Write(recordBytes)

	decodeReg := registry.New()
	var out bytes.Buffer
	if err := DecompressUnordered(file.Bytes(), decodeReg, &out); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Fatal("expected decoded output")
	}
	want := "a.go:1 hi 9\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

// writeExecution appends one execution's worth of framed entries (a
// checkpoint followed by one buffer extent containing a single record
// for "hi %d") to file, using a throwaway registry so ids in the second
// execution can legitimately collide with the first's.
func writeExecution(t *testing.T, file *bytes.Buffer, wallTime int64, arg int64) {
	t.Helper()
	reg := registry.New()
	info, err := reg.Register(1, "a.go", 1, "hi %d")
	if err != nil {
		t.Fatal(err)
	}

	ce := encoder.New(make([]byte, 4096), reg)
	if err := ce.WriteCheckpoint(0, wallTime, 2.0e9); err != nil {
		t.Fatal(err)
	}
	file.Write(ce.Bytes())

	raw := make([]byte, 8)
	info.Codec.Record(raw, []interface{}{arg})
	re := encoder.New(make([]byte, 4096), reg)
	if err := re.EncodeRecord(info, wallTime, raw); err != nil {
		t.Fatal(err)
	}
	recordBytes := re.Bytes()

	bh := wire.BufferExtentHeader{IsShort: true, ShortID: 0}
	hdrBuf := make([]byte, wire.BufferExtentHeaderSize)
	bh.EncodeFixed(hdrBuf)
	wire.PutLength(hdrBuf, 1, uint32(wire.BufferExtentHeaderSize+len(recordBytes)))
	file.Write(hdrBuf)
	file.Write(recordBytes)
}

func TestDecodeAppendedSecondExecution(t *testing.T) {
	var file bytes.Buffer
	writeExecution(t, &file, 1_700_000_000_000_000_000, 1)
	writeExecution(t, &file, 1_800_000_000_000_000_000, 2)

	decodeReg := registry.New()
	records, err := Decode(file.Bytes(), decodeReg, true)
	if err != nil {
		t.Fatal(err)
	}

	var markers int
	for _, r := range records {
		if r.NewExecution {
			markers++
		}
	}
	if markers != 1 {
		t.Fatalf("expected exactly one new-execution marker, got %d", markers)
	}

	var out bytes.Buffer
	if err := writeRecords(&out, records); err != nil {
		t.Fatal(err)
	}
	want := "a.go:1 hi 1\n# New execution started\na.go:1 hi 2\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestDecodeEmptyFile(t *testing.T) {
	reg := registry.New()
	records, err := Decode(nil, reg, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records from an empty file, got %d", len(records))
	}
}
