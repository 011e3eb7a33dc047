// Package sink implements the compressor's output file: a process-safe,
// rotatable file the background writer goroutine appends framed entries
// to, with an O_DSYNC-backed Sync path for the two-phase sync protocol.
package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// alignment is the block size writes are padded to when the sink was
// opened with UseDirectIO, matching the O_DIRECT requirement that every
// write offset and length be a multiple of the device's block size.
const alignment = 512

// Sink is the compressor's current output file. Exactly one compressor
// goroutine owns a Sink at a time; the flock guards against a second
// nanolog process (or a stray second run of this one) writing to the
// same path concurrently, not against concurrent goroutines within this
// process.
type Sink struct {
	file   *os.File
	lock   *flock.Flock
	path   string
	size   int64
	direct bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	directIO bool
}

// WithDirectIO opens the file with O_DIRECT|O_DSYNC where the platform
// supports it, bypassing the page cache for the compressor's large
// sequential writes. Every Write must then be alignment-padded.
func WithDirectIO() Option {
	return func(o *options) { o.directIO = true }
}

// Open creates or truncates the file at path and takes an advisory lock
// on it.
func Open(path string, opts ...Option) (*Sink, error) {
	var o options
	for _, apply := range opts {
		apply(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if o.directIO {
		flags |= unix.O_DIRECT | unix.O_DSYNC
	}

	cleanPath := filepath.Clean(path)
	file, err := os.OpenFile(cleanPath, flags, 0o644)
	if err != nil && o.directIO {
		// Not every filesystem (tmpfs, some container overlays) supports
		// O_DIRECT; fall back to buffered+fsync rather than fail outright.
		file, err = os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		o.directIO = false
	}
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", cleanPath, err)
	}

	lock := flock.New(cleanPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sink: lock %s: %w", cleanPath, err)
	}
	if !locked {
		file.Close()
		return nil, fmt.Errorf("sink: %s is already open by another process", cleanPath)
	}

	return &Sink{file: file, lock: lock, path: cleanPath, direct: o.directIO}, nil
}

// Alignment reports the block size writes must be padded to, or 1 if
// this sink isn't using direct I/O.
func (s *Sink) Alignment() int {
	if s.direct {
		return alignment
	}
	return 1
}

// Write appends data to the file. When the sink uses direct I/O, the
// caller is responsible for padding data to a multiple of Alignment()
// first (the compressor's writer does so with AlignBuffer).
func (s *Sink) Write(data []byte) (int, error) {
	n, err := s.file.Write(data)
	s.size += int64(n)
	return n, err
}

// Sync flushes any OS buffering and fsyncs the file, completing the
// WAITING_ON_AIO phase of the two-phase sync protocol.
func (s *Sink) Sync() error {
	return s.file.Sync()
}

// Size returns the number of bytes written so far (not necessarily what
// has been fsynced).
func (s *Sink) Size() int64 { return s.size }

// Path returns the file's path.
func (s *Sink) Path() string { return s.path }

// Close flushes, unlocks, and closes the underlying file.
func (s *Sink) Close() error {
	syncErr := s.file.Sync()
	unlockErr := s.lock.Unlock()
	closeErr := s.file.Close()
	if syncErr != nil {
		return syncErr
	}
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

// AlignBuffer pads data up to a multiple of Alignment() with zero bytes,
// which the wire format's Invalid (all-zero) tag makes safe: a decoder
// that encounters the padding simply sees entries it skips.
func AlignBuffer(data []byte, blockSize int) []byte {
	if blockSize <= 1 {
		return data
	}
	rem := len(data) % blockSize
	if rem == 0 {
		return data
	}
	pad := blockSize - rem
	return append(data, make([]byte, pad)...)
}
