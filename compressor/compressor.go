// Package compressor runs the background goroutine that drains every
// producer's staging buffer, compresses records through an Encoder, and
// writes the result to disk through internal/sink: the only component in
// this system that ever touches the output file.
package compressor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nanolog/nanolog/encoder"
	"github.com/nanolog/nanolog/internal/metrics"
	"github.com/nanolog/nanolog/internal/sink"
	"github.com/nanolog/nanolog/internal/utils"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/staging"
)

// Config holds the tunables spec.md's configuration table names for the
// compressor and its output buffers.
type Config struct {
	// OutputBufferSize is the size of each half of the double buffer.
	OutputBufferSize int
	// ReleaseThreshold bounds how many bytes of one producer's backlog
	// the compressor drains before moving to the next producer, so no
	// single busy producer starves the others or holds up a sync.
	ReleaseThreshold int
	// IdlePollInterval is how long the run loop sleeps when there is
	// nothing to do and no sync has been requested.
	IdlePollInterval time.Duration
	// IOPollInterval is how often the run loop checks whether the
	// outstanding write has completed.
	IOPollInterval time.Duration
	// Diagnostics receives one line per I/O, dictionary-flush or drain
	// error (such as a record naming an unregistered message id), matching spec.md §7's "all diagnostics target the
	// process's standard error" policy. Defaults to os.Stderr.
	Diagnostics io.Writer
}

// DefaultConfig matches spec.md §6.4's defaults, scaled to this
// implementation's staging buffer default of 1 MiB.
func DefaultConfig() Config {
	return Config{
		OutputBufferSize: 64 << 20,
		ReleaseThreshold: 512 * 1024,
		IdlePollInterval: time.Microsecond,
		IOPollInterval:   time.Microsecond,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.OutputBufferSize <= 0 {
		c.OutputBufferSize = d.OutputBufferSize
	}
	if c.ReleaseThreshold <= 0 {
		c.ReleaseThreshold = d.ReleaseThreshold
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = d.IdlePollInterval
	}
	if c.IOPollInterval <= 0 {
		c.IOPollInterval = d.IOPollInterval
	}
	if c.Diagnostics == nil {
		c.Diagnostics = os.Stderr
	}
}

// minRecordRoom is the output buffer headroom the scan loop insists on
// before starting a new buffer extent; once Remaining() drops below it,
// scanning stops for this pass and resumes where it left off next time.
const minRecordRoom = 4096

// Compressor owns the single background goroutine that empties staging
// buffers into the output file. There is exactly one per Runtime.
type Compressor struct {
	reg     *registry.Registry
	metrics *metrics.Collector
	cfg     Config

	snk *sink.Sink

	producersMu sync.Mutex
	producers   []*staging.StagingBuffer
	lastChecked int
	wrapPending bool

	buffers   [2][]byte
	activeIdx int
	enc       *encoder.Encoder
	lastDictLen int

	writeCh      chan writeJob
	writeDone    chan error
	writeInFlight bool

	syncMu         sync.Mutex
	syncCond       *sync.Cond
	syncPhase      syncPhase
	syncRequestGen uint64
	syncDoneGen    uint64

	shutdown utils.AtomicBool
	wakeCh   chan struct{}
	doneCh   chan struct{}
}

type writeJob struct {
	buf     []byte
	started time.Time
}

// New builds a Compressor writing to snk. Call Start to begin draining.
func New(reg *registry.Registry, snk *sink.Sink, collector *metrics.Collector, cfg Config) *Compressor {
	cfg.applyDefaults()
	c := &Compressor{
		reg:     reg,
		metrics: collector,
		cfg:     cfg,
		snk:     snk,
		wakeCh:  make(chan struct{}, 1),
	}
	c.buffers[0] = make([]byte, cfg.OutputBufferSize)
	c.buffers[1] = make([]byte, cfg.OutputBufferSize)
	c.enc = encoder.New(c.buffers[0], reg)
	c.syncCond = sync.NewCond(&c.syncMu)
	return c
}

// RegisterProducer adds buf to the round-robin scan. Safe to call while
// the compressor is running.
func (c *Compressor) RegisterProducer(buf *staging.StagingBuffer) {
	c.producersMu.Lock()
	c.producers = append(c.producers, buf)
	c.producersMu.Unlock()
}

func (c *Compressor) removeProducer(buf *staging.StagingBuffer) {
	c.producersMu.Lock()
	for i, p := range c.producers {
		if p == buf {
			c.producers = append(c.producers[:i], c.producers[i+1:]...)
			if c.lastChecked > i {
				c.lastChecked--
			}
			break
		}
	}
	c.producersMu.Unlock()
}

func (c *Compressor) snapshotProducers() []*staging.StagingBuffer {
	c.producersMu.Lock()
	defer c.producersMu.Unlock()
	return append([]*staging.StagingBuffer(nil), c.producers...)
}

func (c *Compressor) allProducersEmpty() bool {
	c.producersMu.Lock()
	defer c.producersMu.Unlock()
	for _, p := range c.producers {
		if !p.Empty() {
			return false
		}
	}
	return true
}

// Start writes the file's opening checkpoint and launches the
// background goroutines. Safe to call again after Stop (e.g. on
// rotation), since every piece of run state it touches is reset here.
func (c *Compressor) Start() error {
	now := time.Now()
	if err := c.enc.WriteCheckpoint(uint64(now.UnixNano()), now.UnixNano(), 1e9); err != nil {
		return fmt.Errorf("compressor: start: %w", err)
	}
	c.lastDictLen = c.reg.Len()
	c.writeCh = make(chan writeJob, 1)
	c.writeDone = make(chan error, 1)
	c.writeInFlight = false
	c.shutdown.Store(false)
	c.doneCh = make(chan struct{})

	go c.writerLoop()
	go c.run()
	return nil
}

// Stop requests the run loop drain everything outstanding, then blocks
// until it has.
func (c *Compressor) Stop() error {
	c.shutdown.Store(true)
	c.wake()
	<-c.doneCh
	close(c.writeCh)
	return nil
}

func (c *Compressor) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Compressor) run() {
	defer close(c.doneCh)
	for {
		c.flushDictionary()
		c.scanProducers()

		if len(c.enc.Bytes()) > 0 {
			c.submitWrite()
		} else {
			c.pollWrite()
		}

		c.handleSyncRequest()

		if c.shutdown.Load() && len(c.enc.Bytes()) == 0 && c.allProducersEmpty() {
			c.waitForWrite()
			if err := c.snk.Sync(); err != nil {
				c.diag("sink.sync", "final sync of %s failed: %v", c.snk.Path(), err)
			}
			return
		}

		select {
		case <-c.wakeCh:
		case <-time.After(c.cfg.IdlePollInterval):
		}
	}
}

// flushDictionary emits any call sites registered since the last pass,
// so a record naming a brand new message id is never written before the
// dictionary entry describing it.
func (c *Compressor) flushDictionary() {
	total := c.reg.Len()
	if total == c.lastDictLen {
		return
	}
	if err := c.enc.EmitNewDictionaryEntries(); err != nil {
		c.diag("compressor.dictionary", "flushing dictionary entries failed: %v", err)
		return
	}
	c.metrics.TrackDictionaryEntries(total - c.lastDictLen)
	c.lastDictLen = total
}

// scanProducers performs one round-robin pass starting at lastChecked,
// stopping early if the output buffer runs low on room. A pass that
// reaches every producer without stopping early arms wrapPending, so the
// first extent of the next pass carries the wrap bit the in-order
// decoder uses to bound its reordering window.
func (c *Compressor) scanProducers() {
	producers := c.snapshotProducers()
	n := len(producers)
	if n == 0 {
		return
	}
	start := c.lastChecked % n

	completed := true
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		buf := producers[idx]

		if buf.Empty() {
			if buf.Deletable() {
				c.removeProducer(buf)
			}
			continue
		}

		wrap := c.wrapPending
		if err := c.drainProducer(buf, wrap); err != nil {
			c.diag("compressor.drain", "draining producer %d failed: %v", buf.ProducerID(), err)
			c.lastChecked = idx
			completed = false
			break
		}
		if wrap {
			c.wrapPending = false
		}

		if c.enc.Remaining() < minRecordRoom {
			c.lastChecked = idx
			completed = false
			break
		}
	}

	if completed {
		c.wrapPending = true
		c.lastChecked = start
	}
}

// drainProducer decodes raw records out of buf's next contiguous chunk
// (up to ReleaseThreshold bytes) and re-encodes each one into the active
// output buffer, framed inside one buffer extent.
func (c *Compressor) drainProducer(buf *staging.StagingBuffer, wrap bool) error {
	chunk := buf.Peek()
	if len(chunk) == 0 {
		return nil
	}
	limit := c.cfg.ReleaseThreshold
	if limit <= 0 || limit > len(chunk) {
		limit = len(chunk)
	}
	window := chunk[:limit]

	headerPos, err := c.enc.BeginBufferExtent(buf.ProducerID(), wrap)
	if err != nil {
		return err
	}

	pos := 0
	for pos < len(window) {
		if pos+registry.RecordHeaderSize > len(window) {
			break
		}
		id, ts := registry.GetRecordHeader(window[pos:])
		info := c.reg.Get(id)
		if info == nil {
			return fmt.Errorf("compressor: producer %d referenced unregistered message id %d", buf.ProducerID(), id)
		}

		rawStart := pos + registry.RecordHeaderSize
		rawLen, err := info.Codec.RawSize(window[rawStart:])
		if err != nil {
			break // record's tail didn't fit this chunk; pick it up next pass
		}
		if c.enc.Remaining() < minRecordRoom {
			break
		}
		if err := c.enc.EncodeRecord(info, ts, window[rawStart:rawStart+rawLen]); err != nil {
			break
		}

		c.metrics.TrackRecordLogged(info.Severity)
		c.metrics.TrackRecordSize(registry.RecordHeaderSize + rawLen)
		pos = rawStart + rawLen
	}

	c.enc.EndBufferExtent(headerPos)
	if pos > 0 {
		buf.Consume(pos)
	}
	return nil
}

// Stats returns a snapshot of the compressor's running counters.
func (c *Compressor) Stats() metrics.Stats { return c.metrics.GetStats() }

// Histograms returns a snapshot of the compressor's running distributions.
func (c *Compressor) Histograms() metrics.Histograms { return c.metrics.GetHistograms() }
