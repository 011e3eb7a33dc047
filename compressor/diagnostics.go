package compressor

import "fmt"

// diag counts one error against source and, unless Diagnostics was
// nilled out, writes a human-readable line describing it. This is the
// "emit a diagnostic, bump a metric, continue" policy spec.md §7 asks
// for on every non-fatal error kind the compressor can hit.
func (c *Compressor) diag(source, format string, args ...interface{}) {
	c.metrics.TrackError(source)
	if c.cfg.Diagnostics != nil {
		fmt.Fprintf(c.cfg.Diagnostics, "[nanolog] "+format+"\n", args...)
	}
}
