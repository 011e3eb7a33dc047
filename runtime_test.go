package nanolog_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nanolog/nanolog"
	"github.com/nanolog/nanolog/decoder"
	"github.com/nanolog/nanolog/registry"
)

func openTestRuntime(t *testing.T, opts ...func(*nanolog.Builder) *nanolog.Builder) (*nanolog.Runtime, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	b := nanolog.NewBuilder().WithPath(path).
		WithStagingBufferSize(64 * 1024).
		WithOutputBufferSize(64 * 1024)
	for _, opt := range opts {
		b = opt(b)
	}
	rt, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rt, path
}

func TestRuntimeEndToEndLogAndDecode(t *testing.T) {
	rt, path := openTestRuntime(t)

	site, err := rt.RegisterSite(nanolog.SeverityInfo, "main.go", 10, "request %s took %dms")
	if err != nil {
		t.Fatalf("RegisterSite: %v", err)
	}

	producer, err := rt.Preallocate()
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	defer producer.Close()

	if err := producer.Log(site, "/widgets", 12); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rt.Sync()
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var out bytes.Buffer
	if err := decoder.DecompressUnordered(data, registry.New(), &out); err != nil {
		t.Fatalf("DecompressUnordered: %v", err)
	}
	if !strings.Contains(out.String(), "request /widgets took 12ms") {
		t.Errorf("missing rendered record: %q", out.String())
	}
}

func TestRuntimeSetLogLevelFiltersBelowThreshold(t *testing.T) {
	rt, path := openTestRuntime(t)

	debugSite, err := rt.RegisterSite(nanolog.SeverityDebug, "a.go", 1, "debug line")
	if err != nil {
		t.Fatalf("RegisterSite: %v", err)
	}
	infoSite, err := rt.RegisterSite(nanolog.SeverityInfo, "a.go", 2, "info line")
	if err != nil {
		t.Fatalf("RegisterSite: %v", err)
	}

	rt.SetLogLevel(nanolog.SeverityInfo)
	if got := rt.LogLevel(); got != nanolog.SeverityInfo {
		t.Fatalf("LogLevel() = %v, want SeverityInfo", got)
	}

	producer, err := rt.Preallocate()
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	defer producer.Close()

	if err := producer.Log(debugSite); err != nil {
		t.Fatalf("Log(debug) should be silently dropped, not errored: %v", err)
	}
	if err := producer.Log(infoSite); err != nil {
		t.Fatalf("Log(info): %v", err)
	}

	rt.Sync()
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var out bytes.Buffer
	if err := decoder.DecompressUnordered(data, registry.New(), &out); err != nil {
		t.Fatalf("DecompressUnordered: %v", err)
	}
	if strings.Contains(out.String(), "debug line") {
		t.Errorf("debug record should have been filtered: %q", out.String())
	}
	if !strings.Contains(out.String(), "info line") {
		t.Errorf("info record missing: %q", out.String())
	}
}

func TestRuntimePreallocateExhaustsProducerSlots(t *testing.T) {
	rt, _ := openTestRuntime(t)
	defer rt.Close()

	for i := 0; i < 16; i++ {
		if _, err := rt.Preallocate(); err != nil {
			t.Fatalf("Preallocate #%d: %v", i, err)
		}
	}
	if _, err := rt.Preallocate(); err != nanolog.ErrNoFreeProducers {
		t.Fatalf("Preallocate #17 = %v, want ErrNoFreeProducers", err)
	}
}

func TestRuntimeCloseIsNotReentrant(t *testing.T) {
	rt, _ := openTestRuntime(t)
	if err := rt.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := rt.Close(); err != nanolog.ErrRuntimeClosed {
		t.Fatalf("second Close = %v, want ErrRuntimeClosed", err)
	}
}

func TestRuntimeRejectsOversizeRecord(t *testing.T) {
	rt, _ := openTestRuntime(t)
	defer rt.Close()

	site, err := rt.RegisterSite(nanolog.SeverityInfo, "big.go", 1, "blob %s")
	if err != nil {
		t.Fatalf("RegisterSite: %v", err)
	}
	producer, err := rt.Preallocate()
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	defer producer.Close()

	huge := strings.Repeat("x", 1<<20)
	if err := producer.Log(site, huge); err != nanolog.ErrRecordTooLarge {
		t.Fatalf("Log(huge) = %v, want ErrRecordTooLarge", err)
	}
}
