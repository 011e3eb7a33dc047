package encoder

import (
	"testing"

	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/wire"
)

func TestWriteCheckpointEmitsPendingDictionary(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(1, "a.go", 10, "hello %d")
	if err != nil {
		t.Fatal(err)
	}

	e := New(make([]byte, 4096), reg)
	if err := e.WriteCheckpoint(1000, 1700000000000000000, 2.4e9); err != nil {
		t.Fatal(err)
	}

	out := e.Bytes()
	if wire.TagOf(out[0]) != wire.Checkpoint {
		t.Fatalf("first entry should be a checkpoint, got tag %d", wire.TagOf(out[0]))
	}
	hdr, err := wire.DecodeCheckpointHeader(out)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.TotalMetadataEntries != 1 {
		t.Fatalf("TotalMetadataEntries = %d, want 1", hdr.TotalMetadataEntries)
	}

	entries, n, err := ReadDictionaryEntries(out[wire.CheckpointHeaderSize:], 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != int(hdr.NewMetadataBytes) {
		t.Fatalf("consumed %d bytes, header says %d", n, hdr.NewMetadataBytes)
	}
	if entries[0].Format != info.Format || entries[0].Line != info.Line {
		t.Fatalf("got %+v, want format %q line %d", entries[0], info.Format, info.Line)
	}
}

func TestEncodeRecordRoundTripsThroughCodec(t *testing.T) {
	reg := registry.New()
	info, err := reg.Register(1, "a.go", 20, "x=%d s=%s")
	if err != nil {
		t.Fatal(err)
	}

	args := []interface{}{int64(7), "hi"}
	size, err := info.Codec.RecordSize(args)
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, size)
	if _, err := info.Codec.Record(raw, args); err != nil {
		t.Fatal(err)
	}

	e := New(make([]byte, 4096), reg)
	if err := e.EmitNewDictionaryEntries(); err != nil {
		t.Fatal(err)
	}
	before := e.writePos
	if err := e.EncodeRecord(info, 123456789, raw); err != nil {
		t.Fatal(err)
	}
	if e.writePos <= before {
		t.Fatal("EncodeRecord did not advance the write cursor")
	}

	recordBytes := e.Bytes()[before:]
	if wire.TagOf(recordBytes[0]) != wire.LogMsgsOrDic {
		t.Fatalf("record tag = %d, want LogMsgsOrDic", wire.TagOf(recordBytes[0]))
	}
}

func TestSecondRecordOmitsAlreadyEmittedDictionary(t *testing.T) {
	reg := registry.New()
	if _, err := reg.Register(1, "a.go", 1, "%d"); err != nil {
		t.Fatal(err)
	}
	e := New(make([]byte, 4096), reg)
	if err := e.EmitNewDictionaryEntries(); err != nil {
		t.Fatal(err)
	}
	if err := e.EmitNewDictionaryEntries(); err != nil {
		t.Fatal(err)
	}
	// Second call should be a no-op: nothing new to emit.
	if e.emittedDict != 1 {
		t.Fatalf("emittedDict = %d, want 1", e.emittedDict)
	}
}
