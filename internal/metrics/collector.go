// Package metrics tracks the compressor's and staging buffers' runtime
// counters, exposed to callers through Runtime.Stats and
// Runtime.Histograms.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector accumulates counters across every registered producer and
// the single compressor goroutine. All fields are updated with atomics
// or sync.Map so producers never take a lock on the hot path.
type Collector struct {
	recordsBySeverity sync.Map // map[int]*atomic.Uint64
	recordsDiscarded  uint64

	rotationCount     uint64
	syncCount         uint64
	bytesWritten      uint64
	dictionaryEntries uint64

	errorCount     uint64
	errorsBySource sync.Map // map[string]*atomic.Uint64

	writeCount     uint64
	totalWriteTime int64 // nanoseconds
	maxWriteTime   int64 // nanoseconds

	blockedHist    Histogram
	syncHist       Histogram
	recordSizeHist Histogram
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Stats is a point-in-time snapshot of the counters a caller of
// Runtime.Stats would want at a glance.
type Stats struct {
	RecordsBySeverity map[int]uint64 `json:"records_by_severity"`
	RecordsDiscarded  uint64         `json:"records_discarded"`

	RotationCount     uint64 `json:"rotation_count"`
	SyncCount         uint64 `json:"sync_count"`
	BytesWritten      uint64 `json:"bytes_written"`
	DictionaryEntries uint64 `json:"dictionary_entries"`

	ErrorCount     uint64            `json:"error_count"`
	ErrorsBySource map[string]uint64 `json:"errors_by_source"`

	AverageWriteTime time.Duration `json:"average_write_time"`
	MaxWriteTime     time.Duration `json:"max_write_time"`
}

// GetStats returns a snapshot of every counter.
func (c *Collector) GetStats() Stats {
	s := Stats{
		RecordsBySeverity: make(map[int]uint64),
		RecordsDiscarded:  atomic.LoadUint64(&c.recordsDiscarded),
		RotationCount:     atomic.LoadUint64(&c.rotationCount),
		SyncCount:         atomic.LoadUint64(&c.syncCount),
		BytesWritten:      atomic.LoadUint64(&c.bytesWritten),
		DictionaryEntries: atomic.LoadUint64(&c.dictionaryEntries),
		ErrorCount:        atomic.LoadUint64(&c.errorCount),
		ErrorsBySource:    make(map[string]uint64),
	}

	c.recordsBySeverity.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			s.RecordsBySeverity[key.(int)] = count
		}
		return true
	})
	c.errorsBySource.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			s.ErrorsBySource[key.(string)] = count
		}
		return true
	})

	if writeCount := atomic.LoadUint64(&c.writeCount); writeCount > 0 {
		s.AverageWriteTime = time.Duration(atomic.LoadInt64(&c.totalWriteTime)) / time.Duration(writeCount)
	}
	s.MaxWriteTime = time.Duration(atomic.LoadInt64(&c.maxWriteTime))
	return s
}

// Histograms is a snapshot of every distribution the collector tracks.
type Histograms struct {
	BlockedTime HistogramSnapshot `json:"blocked_time"`
	SyncTime    HistogramSnapshot `json:"sync_time"`
	RecordSize  HistogramSnapshot `json:"record_size"`
}

// GetHistograms returns a snapshot of every histogram.
func (c *Collector) GetHistograms() Histograms {
	return Histograms{
		BlockedTime: c.blockedHist.Snapshot(),
		SyncTime:    c.syncHist.Snapshot(),
		RecordSize:  c.recordSizeHist.Snapshot(),
	}
}

// Reset zeroes every counter and histogram.
func (c *Collector) Reset() {
	c.recordsBySeverity.Range(func(key, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
	atomic.StoreUint64(&c.recordsDiscarded, 0)
	atomic.StoreUint64(&c.rotationCount, 0)
	atomic.StoreUint64(&c.syncCount, 0)
	atomic.StoreUint64(&c.bytesWritten, 0)
	atomic.StoreUint64(&c.dictionaryEntries, 0)
	atomic.StoreUint64(&c.errorCount, 0)
	atomic.StoreUint64(&c.writeCount, 0)
	atomic.StoreInt64(&c.totalWriteTime, 0)
	atomic.StoreInt64(&c.maxWriteTime, 0)
	c.errorsBySource.Range(func(key, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
	c.blockedHist.Reset()
	c.syncHist.Reset()
	c.recordSizeHist.Reset()
}

// TrackRecordLogged counts one record the compressor encoded at severity.
func (c *Collector) TrackRecordLogged(severity int) {
	val, _ := c.recordsBySeverity.LoadOrStore(severity, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackRecordDiscarded counts one record dropped by a discard-on-full
// staging buffer.
func (c *Collector) TrackRecordDiscarded() {
	atomic.AddUint64(&c.recordsDiscarded, 1)
}

// TrackRotation counts one output file rotation.
func (c *Collector) TrackRotation() {
	atomic.AddUint64(&c.rotationCount, 1)
}

// TrackSync counts one completed two-phase sync and records how long it
// took.
func (c *Collector) TrackSync(d time.Duration) {
	atomic.AddUint64(&c.syncCount, 1)
	c.syncHist.Observe(d)
}

// TrackWrite records one compressor write to the sink: its size and
// duration, and updates the running max.
func (c *Collector) TrackWrite(bytes int64, duration time.Duration) {
	atomic.AddUint64(&c.bytesWritten, uint64(bytes))
	atomic.AddUint64(&c.writeCount, 1)
	atomic.AddInt64(&c.totalWriteTime, int64(duration))
	for {
		oldMax := atomic.LoadInt64(&c.maxWriteTime)
		if int64(duration) <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&c.maxWriteTime, oldMax, int64(duration)) {
			break
		}
	}
}

// TrackDictionaryEntries adds n newly emitted dictionary entries to the
// running total.
func (c *Collector) TrackDictionaryEntries(n int) {
	atomic.AddUint64(&c.dictionaryEntries, uint64(n))
}

// TrackError counts one error, by source (e.g. "sink.write",
// "decoder.dictionary").
func (c *Collector) TrackError(source string) {
	atomic.AddUint64(&c.errorCount, 1)
	val, _ := c.errorsBySource.LoadOrStore(source, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackBlocked records how long a producer spun inside Reserve waiting
// for the consumer to free space.
func (c *Collector) TrackBlocked(d time.Duration) {
	c.blockedHist.Observe(d)
}

// TrackRecordSize records one record's raw staged byte size (record
// header plus raw arguments).
func (c *Collector) TrackRecordSize(n int) {
	c.recordSizeHist.Observe(time.Duration(n))
}
