package compressor

import (
	"time"

	"github.com/nanolog/nanolog/internal/sink"
)

// submitWrite hands the active buffer's contents to the writer
// goroutine and swaps the encoder onto the other half of the double
// buffer so encoding can continue while the write is in flight. Only
// one write may be outstanding at a time, so a write already running is
// waited out first.
func (c *Compressor) submitWrite() {
	c.waitForWrite()

	data := c.enc.Bytes()
	if len(data) == 0 {
		return
	}

	c.writeInFlight = true
	c.writeCh <- writeJob{buf: data, started: time.Now()}

	c.activeIdx ^= 1
	c.enc.Reset(c.buffers[c.activeIdx])
}

// waitForWrite blocks until the previously submitted write (if any)
// completes, polling at IOPollInterval rather than blocking on the
// channel outright so the interval config knob has somewhere to apply.
func (c *Compressor) waitForWrite() {
	if !c.writeInFlight {
		return
	}
	for {
		select {
		case <-c.writeDone:
			c.writeInFlight = false
			return
		case <-time.After(c.cfg.IOPollInterval):
		}
	}
}

// pollWrite clears writeInFlight without blocking if the outstanding
// write has already completed; otherwise it's a no-op, leaving the
// write to be picked up by a later submitWrite or the shutdown path's
// blocking waitForWrite.
func (c *Compressor) pollWrite() {
	if !c.writeInFlight {
		return
	}
	select {
	case <-c.writeDone:
		c.writeInFlight = false
	default:
	}
}

// writerLoop is the dedicated goroutine that owns the sink: the Go
// analogue of the spec's async-I/O control block, with the completion
// channel standing in for a polled status register.
func (c *Compressor) writerLoop() {
	for job := range c.writeCh {
		data := job.buf
		if align := c.snk.Alignment(); align > 1 {
			data = sink.AlignBuffer(data, align)
		}
		_, err := c.snk.Write(data)
		if err != nil {
			c.diag("sink.write", "writing %d bytes to %s failed: %v", len(data), c.snk.Path(), err)
		} else {
			c.metrics.TrackWrite(int64(len(data)), time.Since(job.started))
		}
		c.writeDone <- err
	}
}
