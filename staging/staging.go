// Package staging implements the per-thread SPSC staging buffer: the
// lock-free ring each producer goroutine writes uncompressed records
// into, and the compressor drains on the consumer side. One StagingBuffer
// exists per registered producer; there is never more than one writer or
// more than one reader, which is what lets Reserve/Finish and Peek/Consume
// avoid any lock.
package staging

import (
	"math"
	"runtime"
	"time"

	"github.com/nanolog/nanolog/internal/utils"
)

// noWrapPending is the endOfRecordedSpace sentinel meaning "the producer
// has not padded past the physical end of the buffer since the consumer
// last caught up".
const noWrapPending = math.MaxUint64

// StagingBuffer is a fixed-capacity ring of raw bytes. A single producer
// calls Reserve then Finish for every record; a single consumer calls
// Peek then Consume to drain it. Capacity must be chosen large enough
// that the producer rarely has to wait on the consumer; DiscardOnFull
// trades durability for a producer that never blocks.
type StagingBuffer struct {
	buf      []byte
	capacity uint64

	producerPos        utils.AtomicUint64 // next byte offset the producer will write
	consumerPos        utils.AtomicUint64 // next byte offset the consumer will read
	endOfRecordedSpace utils.AtomicUint64 // logical offset where real data stopped before a pad, or noWrapPending

	// minFreeSpace is the producer's private cache of the last known
	// lower bound on free bytes. It only needs refreshing (a load of
	// consumerPos) when a reservation doesn't fit the cached bound,
	// which is what keeps Reserve off the cache line consumerPos lives
	// on during the common case.
	minFreeSpace uint64

	discardOnFull bool
	discarded     utils.AtomicUint64
	producerID    uint64

	// onBlocked, if non-nil, is called once per Reserve call that had to
	// wait for the consumer (spin or discard), with the total time spent
	// waiting. Runtime.Preallocate wires this to the Collector's
	// TrackBlocked when the Runtime's EnableHistograms config is set; left nil otherwise so a
	// disabled histogram costs Reserve nothing beyond the nil check.
	onBlocked func(time.Duration)

	// deletable is set once the owning producer is gone; the compressor
	// reclaims the buffer the next time it observes it both deletable
	// and empty.
	deletable utils.AtomicBool
}

// New allocates a StagingBuffer of the given capacity in bytes.
// discardOnFull controls what Reserve does when the consumer can't keep
// up: true drops the record and counts it in Discarded, false spins
// until space frees up. onBlocked may be nil; see StagingBuffer.onBlocked.
func New(producerID uint64, capacity int, discardOnFull bool, onBlocked func(time.Duration)) *StagingBuffer {
	s := &StagingBuffer{
		buf:           make([]byte, capacity),
		capacity:      uint64(capacity),
		discardOnFull: discardOnFull,
		producerID:    producerID,
		onBlocked:     onBlocked,
	}
	s.endOfRecordedSpace.Store(noWrapPending)
	return s
}

// ProducerID identifies which producer this buffer belongs to, for the
// encoder's BufferExtent framing.
func (s *StagingBuffer) ProducerID() uint64 { return s.producerID }

// Capacity returns the buffer's total byte capacity.
func (s *StagingBuffer) Capacity() int { return int(s.capacity) }

// Discarded returns the number of records dropped because the buffer was
// full and DiscardOnFull was set.
func (s *StagingBuffer) Discarded() uint64 { return s.discarded.Load() }

// freeSpace recomputes the true number of free bytes by reading
// consumerPos; it is only called when minFreeSpace's cached bound turns
// out not to be enough.
func (s *StagingBuffer) freeSpace(producerPos uint64) uint64 {
	consumerPos := s.consumerPos.Load()
	return s.capacity - (producerPos - consumerPos)
}

// Reserve returns a slice of exactly n contiguous bytes for the producer
// to fill, padding and wrapping to the buffer's start first if the
// remaining contiguous run before the physical end is too small. It
// returns nil if the buffer is full and DiscardOnFull is set; otherwise
// it spins (yielding the scheduler between attempts) until space opens
// up. The caller must follow every successful Reserve with exactly one
// Finish(n).
func (s *StagingBuffer) Reserve(n int) []byte {
	if uint64(n) > s.capacity {
		panic("staging: record larger than buffer capacity")
	}
	need := uint64(n)

	// blockedSince is only set the first time this call actually has to
	// wait on the consumer; the zero Time means "never blocked", so the
	// common uncontended path pays nothing beyond the IsZero checks.
	var blockedSince time.Time

	for {
		producerPos := s.producerPos.Load()
		physical := producerPos % s.capacity
		contiguous := s.capacity - physical

		if contiguous < need {
			// The record can't fit before the physical end; pad the
			// remainder of this lap and retry from offset 0.
			if s.minFreeSpace < contiguous+need {
				free := s.freeSpace(producerPos)
				if free < contiguous+need {
					if s.onBlocked != nil && blockedSince.IsZero() {
						blockedSince = time.Now()
					}
					if s.discardOnFull {
						s.discarded.Add(1)
						if s.onBlocked != nil {
							s.onBlocked(time.Since(blockedSince))
						}
						return nil
					}
					runtime.Gosched()
					continue
				}
				s.minFreeSpace = free
			}
			s.endOfRecordedSpace.Store(producerPos)
			s.producerPos.Store(producerPos + contiguous)
			s.minFreeSpace -= contiguous
			continue
		}

		if s.minFreeSpace < need {
			free := s.freeSpace(producerPos)
			if free < need {
				if s.onBlocked != nil && blockedSince.IsZero() {
					blockedSince = time.Now()
				}
				if s.discardOnFull {
					s.discarded.Add(1)
					if s.onBlocked != nil {
						s.onBlocked(time.Since(blockedSince))
					}
					return nil
				}
				runtime.Gosched()
				continue
			}
			s.minFreeSpace = free
		}

		if s.onBlocked != nil && !blockedSince.IsZero() {
			s.onBlocked(time.Since(blockedSince))
		}
		return s.buf[physical : physical+need]
	}
}

// Finish publishes the n bytes written into the slice Reserve returned,
// making them visible to the consumer.
func (s *StagingBuffer) Finish(n int) {
	s.minFreeSpace -= uint64(n)
	s.producerPos.Add(uint64(n))
}

// Peek returns the longest contiguous run of unread, committed bytes
// currently available, or nil if the buffer is empty. Consume must be
// called with however many of the returned bytes the caller actually
// processed before the next Peek.
func (s *StagingBuffer) Peek() []byte {
	consumerPos := s.consumerPos.Load()

	if eor := s.endOfRecordedSpace.Load(); eor != noWrapPending && consumerPos == eor {
		wrapped := consumerPos + (s.capacity - consumerPos%s.capacity)
		s.consumerPos.Store(wrapped)
		s.endOfRecordedSpace.Store(noWrapPending)
		consumerPos = wrapped
	}

	producerPos := s.producerPos.Load()
	if producerPos == consumerPos {
		return nil
	}

	physical := consumerPos % s.capacity
	avail := producerPos - consumerPos
	contiguous := s.capacity - physical
	if avail > contiguous {
		avail = contiguous
	}
	// If the producer has already padded and wrapped, stop at the pad.
	if eor := s.endOfRecordedSpace.Load(); eor != noWrapPending && consumerPos < eor && avail > eor-consumerPos {
		avail = eor - consumerPos
	}
	return s.buf[physical : physical+avail]
}

// Consume advances the read cursor past n bytes previously returned by
// Peek.
func (s *StagingBuffer) Consume(n int) {
	s.consumerPos.Add(uint64(n))
}

// Empty reports whether the consumer has caught up to the producer.
// Used by Sync to know when a staging buffer has nothing left to drain.
func (s *StagingBuffer) Empty() bool {
	return s.producerPos.Load() == s.consumerPos.Load()
}

// MarkDeletable records that this buffer's owning producer is gone. The
// compressor is the only reader of this flag; it reclaims the buffer
// once a scan finds it both deletable and Empty.
func (s *StagingBuffer) MarkDeletable() {
	s.deletable.Store(true)
}

// Deletable reports whether MarkDeletable was called.
func (s *StagingBuffer) Deletable() bool {
	return s.deletable.Load()
}
