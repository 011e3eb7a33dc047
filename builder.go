package nanolog

import (
	"io"
	"time"
)

// Builder provides a fluent interface for constructing a Runtime,
// modeled on the teacher's own Builder (builder.go): each With* method
// short-circuits once an earlier call has failed, so Build need only
// check b.err once at the end.
type Builder struct {
	cfg Config
	err *Error
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithPath sets the default log file path.
func (b *Builder) WithPath(path string) *Builder {
	if b.err != nil {
		return b
	}
	if path == "" {
		b.err = NewError(ErrCodeFatalInit, "builder.WithPath", "", nil).WithContext("reason", "empty path")
		return b
	}
	b.cfg.Path = path
	return b
}

// WithLevel sets the minimum severity that will actually be staged.
func (b *Builder) WithLevel(level Severity) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Level = level.clamp()
	return b
}

// WithStagingBufferSize sets the per-producer ring size.
func (b *Builder) WithStagingBufferSize(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n <= 0 {
		b.err = NewError(ErrCodeFatalInit, "builder.WithStagingBufferSize", "", nil).WithContext("size", n)
		return b
	}
	b.cfg.StagingBufferSize = n
	return b
}

// WithOutputBufferSize sets each half of the compressor's double
// buffer. It must be at least the staging buffer size; the order of this
// call and WithStagingBufferSize does not matter since applyDefaults
// reconciles the two at Build time.
func (b *Builder) WithOutputBufferSize(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n <= 0 {
		b.err = NewError(ErrCodeFatalInit, "builder.WithOutputBufferSize", "", nil).WithContext("size", n)
		return b
	}
	b.cfg.OutputBufferSize = n
	return b
}

// WithReleaseThreshold sets the max bytes drained from one producer per
// compressor hop before moving on.
func (b *Builder) WithReleaseThreshold(n int) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.ReleaseThreshold = n
	return b
}

// WithPollIntervals sets the idle and I/O poll intervals.
func (b *Builder) WithPollIntervals(idle, ioInterval time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.IdlePollInterval = idle
	b.cfg.IOPollInterval = ioInterval
	return b
}

// WithDirectIO enables O_DIRECT|O_DSYNC on the output file.
func (b *Builder) WithDirectIO() *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.UseDirectIO = true
	return b
}

// WithDiscardOnFull makes a full staging buffer drop records instead of
// blocking the producer.
func (b *Builder) WithDiscardOnFull() *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.DiscardOnFull = true
	return b
}

// WithMode selects the dictionary-persistence strategy. Only Dynamic is
// implemented; Build rejects Preprocessor.
func (b *Builder) WithMode(mode RegistrationMode) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Mode = mode
	return b
}

// WithHistograms enables the producer-blocked-time histogram that
// Runtime.Histograms reports; the other histograms are always on.
func (b *Builder) WithHistograms() *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.EnableHistograms = true
	return b
}

// WithDiagnostics redirects diagnostic lines away from the default
// os.Stderr.
func (b *Builder) WithDiagnostics(w io.Writer) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Diagnostics = w
	return b
}

// Build validates the accumulated config and opens a Runtime from it.
func (b *Builder) Build() (*Runtime, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cfg.Mode == Preprocessor {
		return nil, NewError(ErrCodeFatalInit, "builder.Build", "", nil).
			WithContext("reason", "Preprocessor mode is not implemented; use Dynamic")
	}
	return newRuntime(b.cfg)
}
