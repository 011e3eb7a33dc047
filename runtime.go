package nanolog

import (
	"sync"

	"github.com/nanolog/nanolog/compressor"
	"github.com/nanolog/nanolog/internal/metrics"
	"github.com/nanolog/nanolog/internal/sink"
	"github.com/nanolog/nanolog/internal/utils"
	"github.com/nanolog/nanolog/registry"
	"github.com/nanolog/nanolog/staging"
)

// Runtime is the process-wide singleton spec.md §2 describes: one
// Registry, one Compressor/sink pair, and up to maxProducers
// StagingBuffers handed out through Preallocate over its lifetime. Open or NewBuilder are
// the only ways to construct one.
type Runtime struct {
	cfg  Config
	diag *diagnostics

	reg     *registry.Registry
	metrics *metrics.Collector
	comp    *compressor.Compressor

	level utils.AtomicInt64

	mu        sync.Mutex
	producers [maxProducers]*staging.StagingBuffer
	nextSlot  int
	closed    bool
}

// Open creates or truncates the log file at path using default
// configuration and starts the background compressor, mirroring the
// teacher's package-level New(path).
func Open(path string) (*Runtime, error) {
	return NewBuilder().WithPath(path).Build()
}

// newRuntime is Builder.Build's implementation: open the sink, wire the
// registry/metrics/compressor triad, and start draining.
func newRuntime(cfg Config) (*Runtime, error) {
	cfg.applyDefaults()

	var opts []sink.Option
	if cfg.UseDirectIO {
		opts = append(opts, sink.WithDirectIO())
	}
	snk, err := sink.Open(cfg.Path, opts...)
	if err != nil {
		return nil, NewError(ErrCodeFatalInit, "Open", cfg.Path, err)
	}

	reg := registry.New()
	collector := metrics.NewCollector()

	d := newDiagnostics(cfg.Diagnostics)

	ccfg := compressor.Config{
		OutputBufferSize: cfg.OutputBufferSize,
		ReleaseThreshold: cfg.ReleaseThreshold,
		IdlePollInterval: cfg.IdlePollInterval,
		IOPollInterval:   cfg.IOPollInterval,
		Diagnostics:      d.w,
	}
	comp := compressor.New(reg, snk, collector, ccfg)
	if err := comp.Start(); err != nil {
		snk.Close()
		return nil, NewError(ErrCodeFatalInit, "Open", cfg.Path, err)
	}

	rt := &Runtime{
		cfg:     cfg,
		diag:    d,
		reg:     reg,
		metrics: collector,
		comp:    comp,
	}
	rt.level.Store(int64(cfg.Level))
	return rt, nil
}

// RegisterSite idempotently registers a call site and returns a Site
// handle carrying everything Producer.Log needs to compress a record
// for it: codec, format metadata, severity. Callers are expected to
// cache the returned *Site (e.g. in a package-level variable assigned
// once), the way a preprocessor-generated call site would hold its own
// packer rather than look it up on every call.
func (r *Runtime) RegisterSite(severity Severity, file string, line int, format string) (*Site, error) {
	info, err := r.reg.Register(int(severity), file, line, format)
	if err != nil {
		return nil, NewError(ErrCodeFormatString, "RegisterSite", file, err).
			WithContext("line", line).WithContext("format", format)
	}
	return &Site{info: info}, nil
}

// SetLogFile implements spec.md §4.5's rotation sequence (sync, stop,
// swap, restart) by delegating to the compressor, which already owns
// the sink.
func (r *Runtime) SetLogFile(path string) error {
	var opts []sink.Option
	if r.cfg.UseDirectIO {
		opts = append(opts, sink.WithDirectIO())
	}
	if err := r.comp.SetLogFile(path, opts...); err != nil {
		return NewError(ErrCodeIO, "SetLogFile", path, err)
	}
	r.cfg.Path = path
	return nil
}

// SetLogLevel clamps and stores the global minimum severity. Producer.Log
// enforces it the way spec.md §6.1 specifies ("enforced by the caller of
// log"): one atomic load and an integer compare before anything is
// staged.
func (r *Runtime) SetLogLevel(level Severity) {
	r.level.Store(int64(level.clamp()))
}

// LogLevel returns the current minimum severity.
func (r *Runtime) LogLevel() Severity {
	return Severity(r.level.Load())
}

// Sync blocks until every record staged before this call is durable on
// disk (spec.md §4.5's two-phase protocol, implemented in compressor.Sync).
func (r *Runtime) Sync() {
	r.comp.Sync()
}

// Stats returns a human-readable summary of the runtime's counters, per
// spec.md §6.1's getStats().
func (r *Runtime) Stats() metrics.Stats {
	return r.comp.Stats()
}

// Histograms returns a summary of the runtime's timing/size
// distributions, per spec.md §6.1's getHistograms().
func (r *Runtime) Histograms() metrics.Histograms {
	return r.comp.Histograms()
}

// Close syncs and stops the compressor. It does not close the output
// file or release its lock. A Runtime must not be used after Close.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRuntimeClosed
	}
	r.closed = true
	r.mu.Unlock()

	r.comp.Sync()
	if err := r.comp.Stop(); err != nil {
		return NewError(ErrCodeIO, "Close", r.cfg.Path, err)
	}
	return nil
}
