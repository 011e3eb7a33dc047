package compressor_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nanolog/nanolog/compressor"
	"github.com/nanolog/nanolog/decoder"
	"github.com/nanolog/nanolog/internal/metrics"
	"github.com/nanolog/nanolog/internal/sink"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/staging"
)

func stageRecord(t *testing.T, buf *staging.StagingBuffer, info *registry.StaticLogInfo, ts int64, args []interface{}) {
	t.Helper()
	n, err := info.Codec.RecordSize(args)
	if err != nil {
		t.Fatalf("RecordSize: %v", err)
	}
	total := registry.RecordHeaderSize + n
	dst := buf.Reserve(total)
	if dst == nil {
		t.Fatal("Reserve returned nil, staging buffer unexpectedly full")
	}
	registry.PutRecordHeader(dst, info.ID, ts)
	if _, err := info.Codec.Record(dst[registry.RecordHeaderSize:], args); err != nil {
		t.Fatalf("Record: %v", err)
	}
	buf.Finish(total)
}

func newTestCompressor(t *testing.T, reg *registry.Registry, path string) (*compressor.Compressor, *metrics.Collector) {
	t.Helper()
	snk, err := sink.Open(path)
	if err != nil {
		t.Fatalf("sink.Open: %v", err)
	}
	collector := metrics.NewCollector()
	cfg := compressor.Config{
		OutputBufferSize: 64 * 1024,
		ReleaseThreshold: 64 * 1024,
		IdlePollInterval: time.Millisecond,
		IOPollInterval:   100 * time.Microsecond,
	}
	return compressor.New(reg, snk, collector, cfg), collector
}

func TestCompressorSanityWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	reg := registry.New()
	noParams, err := reg.Register(1, "a.go", 1, "hello")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	withString, err := reg.Register(1, "b.go", 2, "conn from %s")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	bufA := staging.New(5, 4096, false, nil)

	comp, _ := newTestCompressor(t, reg, path)
	comp.RegisterProducer(bufA)
	if err := comp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stageRecord(t, bufA, noParams, 100, nil)
	stageRecord(t, bufA, withString, 105, []interface{}{"10.0.0.1"})

	comp.Sync()
	if err := comp.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	decodeReg := registry.New()
	var out bytes.Buffer
	if err := decoder.DecompressUnordered(data, decodeReg, &out); err != nil {
		t.Fatalf("DecompressUnordered: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "hello") {
		t.Errorf("output missing first record: %q", text)
	}
	if !strings.Contains(text, "conn from 10.0.0.1") {
		t.Errorf("output missing second record: %q", text)
	}
}

func TestCompressorFileRotation(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.log")
	pathB := filepath.Join(dir, "b.log")

	reg := registry.New()
	info, err := reg.Register(1, "c.go", 3, "tick %d")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	bufA := staging.New(1, 4096, false, nil)
	comp, _ := newTestCompressor(t, reg, pathA)
	comp.RegisterProducer(bufA)
	if err := comp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		stageRecord(t, bufA, info, int64(i), []interface{}{i})
	}
	comp.Sync()

	if err := comp.SetLogFile(pathB); err != nil {
		t.Fatalf("SetLogFile: %v", err)
	}

	for i := 5; i < 10; i++ {
		stageRecord(t, bufA, info, int64(i), []interface{}{i})
	}
	comp.Sync()
	if err := comp.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	dataA, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("ReadFile a: %v", err)
	}
	dataB, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("ReadFile b: %v", err)
	}

	var outA, outB bytes.Buffer
	if err := decoder.DecompressUnordered(dataA, registry.New(), &outA); err != nil {
		t.Fatalf("decode a: %v", err)
	}
	if err := decoder.DecompressUnordered(dataB, registry.New(), &outB); err != nil {
		t.Fatalf("decode b: %v", err)
	}

	if got := strings.Count(outA.String(), "tick"); got != 5 {
		t.Errorf("file A has %d records, want 5: %q", got, outA.String())
	}
	if got := strings.Count(outB.String(), "tick"); got != 5 {
		t.Errorf("file B has %d records, want 5: %q", got, outB.String())
	}
}

func TestSyncIsIdempotentWithNoNewWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	reg := registry.New()
	info, err := reg.Register(1, "d.go", 4, "noop")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	bufA := staging.New(2, 4096, false, nil)
	comp, _ := newTestCompressor(t, reg, path)
	comp.RegisterProducer(bufA)
	if err := comp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stageRecord(t, bufA, info, 1, nil)
	comp.Sync()
	comp.Sync() // should return promptly, nothing new to flush

	if err := comp.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
