package compressor

import (
	"fmt"

	"github.com/nanolog/nanolog/internal/sink"
)

// SetLogFile implements spec.md §4.5's rotation sequence: sync, stop,
// swap the sink, reset the dictionary cursor so the new file gets a
// self-contained checkpoint, then restart.
func (c *Compressor) SetLogFile(path string, opts ...sink.Option) error {
	c.Sync()
	if err := c.Stop(); err != nil {
		return fmt.Errorf("compressor: rotate: stop: %w", err)
	}

	if err := c.snk.Close(); err != nil {
		c.diag("sink.close", "closing %s during rotation failed: %v", c.snk.Path(), err)
	}

	newSink, err := sink.Open(path, opts...)
	if err != nil {
		return fmt.Errorf("compressor: rotate: open %s: %w", path, err)
	}
	c.snk = newSink
	c.enc.ResetDictionaryCursor()
	c.metrics.TrackRotation()

	return c.Start()
}
