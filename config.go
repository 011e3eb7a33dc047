package nanolog

import (
	"io"
	"time"
)

// RegistrationMode distinguishes the two dictionary-persistence
// strategies spec.md §6.4 and §9 describe: a preprocessor build flushes
// its whole dictionary at compile time and never races a reader, while a
// dynamic build (the only mode this package implements — see
// DESIGN.md's Open Question resolution) registers call sites at runtime
// and relies on the fragment protocol in encoder.EmitNewDictionaryEntries.
type RegistrationMode int

const (
	// Dynamic registers call sites at runtime via RegisterSite and
	// persists new dictionary entries as fragments. This is the only
	// mode wired up; Preprocessor is named for documentation parity
	// with spec.md's compile-time flag and always returns an error if
	// selected.
	Dynamic RegistrationMode = iota
	Preprocessor
)

// Config holds every tunable spec.md §6.4 names. Build a Runtime from
// one with Open (defaults) or NewBuilder (fluent, validated).
type Config struct {
	// Path is the default log file path (spec.md: "./compressedLog").
	Path string

	// Level is the minimum severity SetLogLevel starts at; Producer.Log
	// calls below it are dropped before anything is staged.
	Level Severity

	// StagingBufferSize is the size of each per-producer ring (default
	// 1 MiB).
	StagingBufferSize int

	// OutputBufferSize is the size of each half of the compressor's
	// double buffer (default 64 MiB; must be >= StagingBufferSize).
	OutputBufferSize int

	// ReleaseThreshold bounds how many bytes of one producer's backlog
	// the compressor drains before moving to the next (default
	// StagingBufferSize/2).
	ReleaseThreshold int

	// IdlePollInterval is how long the compressor sleeps when idle.
	IdlePollInterval time.Duration

	// IOPollInterval is how often the compressor polls for write
	// completion.
	IOPollInterval time.Duration

	// UseDirectIO opens the log file with O_DIRECT|O_DSYNC where the
	// platform supports it (spec.md's "Default append + direct + dsync"
	// file open flags), falling back to buffered+fsync automatically
	// where it doesn't.
	UseDirectIO bool

	// DiscardOnFull trades durability for a producer that never blocks:
	// Reserve drops the record instead of spinning when the ring is
	// full. Benchmarking only, per spec.md §6.4.
	DiscardOnFull bool

	// EnableHistograms gates the producer-side blocked-time histogram
	// spec.md §4.2 calls "optional and guarded". The record-size and
	// sync-time histograms are always recorded.
	EnableHistograms bool

	// Mode selects the dictionary-persistence strategy. Only Dynamic is
	// implemented; see RegistrationMode's doc comment.
	Mode RegistrationMode

	// Diagnostics receives one "[nanolog] "-prefixed line per
	// diagnostic spec.md §7 calls for (oversize records, I/O errors,
	// records naming an unregistered message id). Defaults to os.Stderr.
	Diagnostics io.Writer
}

// DefaultConfig returns a Config with spec.md §6.4's defaults.
// ReleaseThreshold is left zero so that applyDefaults derives it from
// whatever StagingBufferSize ends up configured.
func DefaultConfig() Config {
	return Config{
		Path:              DefaultLogFilePath,
		Level:             SeverityDebug,
		StagingBufferSize: DefaultStagingBufferSize,
		OutputBufferSize:  DefaultOutputBufferSize,
		IdlePollInterval:  DefaultIdlePollInterval,
		IOPollInterval:    DefaultIOPollInterval,
		Mode:              Dynamic,
	}
}

// applyDefaults fills in any zero-valued field with DefaultConfig's
// value, the same "zero means default" convention compressor.Config
// and staging buffers use.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.StagingBufferSize <= 0 {
		c.StagingBufferSize = d.StagingBufferSize
	}
	if c.OutputBufferSize <= 0 {
		c.OutputBufferSize = d.OutputBufferSize
	}
	if c.OutputBufferSize < c.StagingBufferSize {
		c.OutputBufferSize = c.StagingBufferSize
	}
	if c.ReleaseThreshold <= 0 {
		c.ReleaseThreshold = c.StagingBufferSize / 2
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = d.IdlePollInterval
	}
	if c.IOPollInterval <= 0 {
		c.IOPollInterval = d.IOPollInterval
	}
}
