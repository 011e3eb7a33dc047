package nanolog

import "errors"

// Sentinel errors returned by Runtime operations, analogous to the
// teacher's errors_defs.go.
var (
	// ErrRuntimeClosed is returned by any operation attempted after
	// Close.
	ErrRuntimeClosed = errors.New("nanolog: runtime is closed")

	// ErrNoFreeProducers is returned by Preallocate once maxProducers
	// staging buffers have been handed out; ids of closed producers are
	// not reused.
	ErrNoFreeProducers = errors.New("nanolog: no free producer slots (max 16 producers per runtime)")

	// ErrRecordTooLarge is returned by Producer.Log when a record's
	// encoded size exceeds half the staging buffer's capacity, the
	// wrap-protocol bound from spec.md §3.
	ErrRecordTooLarge = errors.New("nanolog: record exceeds half the staging buffer's capacity")

	// ErrUnregisteredSite is returned if a Site somehow carries no
	// backing StaticLogInfo (defensive; should be unreachable outside
	// this package).
	ErrUnregisteredSite = errors.New("nanolog: site has not been registered")
)
