package nanolog

import (
	"testing"

	"github.com/nanolog/nanolog/internal/metrics"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/staging"
)

// newTestProducer builds a Producer directly on a discard-on-full staging
// buffer sized to capacity, bypassing Runtime.Preallocate and the
// compressor goroutine entirely so the buffer's fill state is
// deterministic, with no consumer ever draining it.
func newTestProducer(capacity int) (*Producer, *Runtime) {
	reg := registry.New()
	collector := metrics.NewCollector()
	rt := &Runtime{
		cfg:     Config{EnableHistograms: true},
		reg:     reg,
		metrics: collector,
		diag:    newDiagnostics(nil),
	}
	buf := staging.New(0, capacity, true, collector.TrackBlocked)
	return &Producer{rt: rt, buf: buf}, rt
}

func TestProducerLogFeedsRecordDiscardedIntoCollector(t *testing.T) {
	probe, _ := newTestProducer(64)
	info, err := probe.rt.reg.Register(int(SeverityInfo), "a.go", 1, "hi %d")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	payload, err := info.Codec.RecordSize([]interface{}{int64(0)})
	if err != nil {
		t.Fatalf("RecordSize: %v", err)
	}
	recordTotal := registry.RecordHeaderSize + payload

	// A buffer that fits exactly two records and nothing more, so the
	// third Log call must discard rather than block forever.
	producer, rt := newTestProducer(recordTotal * 2)
	siteInfo, err := rt.reg.Register(int(SeverityInfo), "a.go", 1, "hi %d")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	site := &Site{info: siteInfo}

	for i := 0; i < 2; i++ {
		if err := producer.Log(site, int64(i)); err != nil {
			t.Fatalf("Log #%d: %v", i, err)
		}
	}
	if err := producer.Log(site, int64(99)); err != nil {
		t.Fatalf("Log #3 (expected a silent discard, not an error): %v", err)
	}

	stats := rt.metrics.GetStats()
	if stats.RecordsDiscarded == 0 {
		t.Fatal("Stats().RecordsDiscarded = 0, want at least 1 after overfilling a discard-on-full buffer")
	}
	if got := producer.Discarded(); got != stats.RecordsDiscarded {
		t.Fatalf("producer.Discarded() = %d, collector RecordsDiscarded = %d, want equal", got, stats.RecordsDiscarded)
	}
}
