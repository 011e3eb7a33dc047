package nanolog

import (
	"time"

	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/staging"
)

// Site is the handle RegisterSite returns: a cached reference to a call
// site's StaticLogInfo (format, severity, codec), meant to be held by
// the caller for the lifetime of the process rather than looked up
// again on every log call — the Go-idiomatic analogue of the
// preprocessor's compile-time-generated packer pointer.
type Site struct {
	info *registry.StaticLogInfo
}

// Severity returns the site's registered severity.
func (s *Site) Severity() Severity { return Severity(s.info.Severity) }

// Producer is a per-goroutine (or per-worker) handle onto one
// StagingBuffer, obtained from Runtime.Preallocate. It is the
// Go-idiomatic stand-in for the original's thread-local staging buffer:
// callers are expected to obtain one per long-lived goroutine and reuse
// it across calls, not allocate one per log statement.
//
// A Producer is not safe for concurrent use by more than one goroutine
// at a time, mirroring the single-producer half of the staging buffer's
// SPSC discipline.
type Producer struct {
	rt  *Runtime
	buf *staging.StagingBuffer
}

// Preallocate ensures a staging buffer exists for a new producer and
// returns a handle to it, satisfying spec.md §6.1's preallocate(). It
// fails once maxProducers (16) staging buffers have been handed out by
// this Runtime, closed ones included, since the wire format's
// BufferExtent only has room for a 4-bit producer id.
func (r *Runtime) Preallocate() (*Producer, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRuntimeClosed
	}
	if r.nextSlot >= maxProducers {
		r.mu.Unlock()
		return nil, ErrNoFreeProducers
	}
	id := uint64(r.nextSlot)
	r.nextSlot++
	var onBlocked func(time.Duration)
	if r.cfg.EnableHistograms {
		collector := r.metrics
		onBlocked = collector.TrackBlocked
	}
	buf := staging.New(id, r.cfg.StagingBufferSize, r.cfg.DiscardOnFull, onBlocked)
	r.producers[id] = buf
	r.mu.Unlock()

	r.comp.RegisterProducer(buf)
	return &Producer{rt: r, buf: buf}, nil
}

// Close marks this producer's staging buffer deletable. The compressor
// reclaims the underlying memory the next time it observes the buffer
// both deletable and empty (spec.md §4.2's deferred-delete lifecycle);
// the numeric producer id itself is not recycled within this Runtime's
// lifetime (see DESIGN.md).
func (p *Producer) Close() {
	p.buf.MarkDeletable()
}

// Discarded returns how many records this producer has dropped because
// the ring was full and DiscardOnFull was set.
func (p *Producer) Discarded() uint64 {
	return p.buf.Discarded()
}

// Log is the hot path: reserve room for one record in this producer's
// staging buffer, lay out site's arguments in their fixed-width raw
// form, and commit. It must only be called with a Site returned by this
// Runtime's RegisterSite.
//
// Records whose severity falls below the Runtime's current SetLogLevel
// are dropped before anything is reserved, matching spec.md §6.1's
// "enforced by the caller of log" wording.
func (p *Producer) Log(site *Site, args ...interface{}) error {
	if site == nil || site.info == nil {
		return ErrUnregisteredSite
	}
	if Severity(site.info.Severity) < p.rt.LogLevel() {
		return nil
	}

	payload, err := site.info.Codec.RecordSize(args)
	if err != nil {
		return NewError(ErrCodeProducerMisuse, "Log", site.info.File, err).
			WithContext("line", site.info.Line)
	}
	total := registry.RecordHeaderSize + payload

	if total > p.buf.Capacity()/2 {
		p.rt.diag.Printf("record at %s:%d (%d bytes) exceeds half the staging buffer; refused",
			site.info.File, site.info.Line, total)
		return ErrRecordTooLarge
	}

	dst := p.buf.Reserve(total)
	if dst == nil {
		// DiscardOnFull dropped this record; staging.StagingBuffer
		// already counted it locally, and we feed the aggregate
		// collector here so Runtime.Stats().RecordsDiscarded agrees.
		p.rt.metrics.TrackRecordDiscarded()
		return nil
	}

	registry.PutRecordHeader(dst, site.info.ID, time.Now().UnixNano())
	if _, err := site.info.Codec.Record(dst[registry.RecordHeaderSize:], args); err != nil {
		// RecordSize already accepted these args, so Record should not
		// fail here. If it does, the reservation is still committed as
		// written so the producer's Reserve/Finish pairing stays intact.
		p.buf.Finish(total)
		return NewError(ErrCodeProducerMisuse, "Log", site.info.File, err).
			WithContext("line", site.info.Line)
	}
	p.buf.Finish(total)
	return nil
}
