package registry

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nanolog/nanolog/microcode"
)

// StaticLogInfo is everything the system knows about a call site once it
// has been registered: enough for the encoder to compress a record
// (Codec) and enough for the decoder to print one back (FormatMetadata).
type StaticLogInfo struct {
	ID       uint32
	Severity int
	File     string
	Line     int
	Format   string
	Meta     *microcode.FormatMetadata
	Codec    *Codec
}

// Registry is the append-only table mapping message ids to
// StaticLogInfo, guarded by a single mutex. Registration only happens
// once per call site (the call site caches its own id after the first
// successful Register), so the mutex is never on any steady-state hot
// path; it only ever contends during startup when many goroutines hit
// new call sites for the first time.
type Registry struct {
	mu      sync.Mutex
	entries []*StaticLogInfo
	byHash  map[uint64]*StaticLogInfo
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byHash: make(map[uint64]*StaticLogInfo)}
}

func siteHash(file string, line int, format string) uint64 {
	h := xxhash.New()
	h.WriteString(file)
	h.Write([]byte{byte(line), byte(line >> 8), byte(line >> 16), byte(line >> 24)})
	h.WriteString(format)
	return h.Sum64()
}

// Register returns the StaticLogInfo for (file, line, format, severity),
// creating and appending a new entry on first sight. Two goroutines
// racing to register the same call site for the first time both parse
// the format string (the "early break" case from the spec: duplicate,
// harmless work), but only one of them wins the append and the other
// discards its half-built entry and returns the winner's.
func (r *Registry) Register(severity int, file string, line int, format string) (*StaticLogInfo, error) {
	h := siteHash(file, line, format)

	r.mu.Lock()
	if existing, ok := r.byHash[h]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	meta, err := microcode.Parse(format, severity, line, file)
	if err != nil {
		return nil, err
	}
	codec := NewCodec(meta)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byHash[h]; ok {
		return existing, nil
	}
	info := &StaticLogInfo{
		ID:       uint32(len(r.entries)),
		Severity: severity,
		File:     file,
		Line:     line,
		Format:   format,
		Meta:     meta,
		Codec:    codec,
	}
	r.entries = append(r.entries, info)
	r.byHash[h] = info
	return info, nil
}

// Get returns the StaticLogInfo for id, or nil if id is out of range.
// Callers only ever see ids assigned by this Registry in this process,
// but the decoder reads ids out of a dictionary built from the same
// sequence of Register calls replayed at a different time, so Get is
// also used there against a decoder-local Registry populated entirely
// from dictionary fragments instead of live calls.
func (r *Registry) Get(id uint32) *StaticLogInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.entries) {
		return nil
	}
	return r.entries[id]
}

// Len returns the number of registered call sites.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Since returns the entries with id >= from, in id order, for the
// encoder's dictionary-fragment emission (new metadata since the last
// checkpoint or fragment).
func (r *Registry) Since(from uint32) []*StaticLogInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(from) >= len(r.entries) {
		return nil
	}
	out := make([]*StaticLogInfo, len(r.entries)-int(from))
	copy(out, r.entries[from:])
	return out
}

// RebuildStaticLogInfo reconstructs a StaticLogInfo from a decoded
// dictionary entry. The argument-type vector is taken verbatim from the
// wire rather than re-derived by re-parsing format, since the wire bytes
// are what actually drove the encoder's Pack calls; format is still
// parsed (for Meta) so the decoder has fragments and literal text to
// render.
func RebuildStaticLogInfo(id uint32, severity int, file string, line int, format string, argTypeBytes []byte) (*StaticLogInfo, error) {
	meta, err := microcode.Parse(format, severity, line, file)
	if err != nil {
		return nil, err
	}
	argTypes := make([]microcode.FormatType, len(argTypeBytes))
	for i, b := range argTypeBytes {
		argTypes[i] = microcode.FormatType(b)
	}
	return &StaticLogInfo{
		ID:       id,
		Severity: severity,
		File:     file,
		Line:     line,
		Format:   format,
		Meta:     meta,
		Codec:    &Codec{ArgTypes: argTypes},
	}, nil
}

// Reset discards every entry, returning the Registry to its New() state.
// The decoder calls this when a second Checkpoint appears mid-file: per
// spec.md §6.2, an appended second execution starts its own dictionary
// from scratch, so ids from the first execution must not leak into the
// second one's lookups.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.byHash = make(map[uint64]*StaticLogInfo)
}

// AddDecoded installs a StaticLogInfo read back from a dictionary
// fragment at a specific id, for use by a decoder-side Registry. It does
// not hash-dedup: dictionary fragments are trusted to already be in id
// order with no duplicates.
func (r *Registry) AddDecoded(info *StaticLogInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uint32(len(r.entries)) <= info.ID {
		r.entries = append(r.entries, nil)
	}
	r.entries[info.ID] = info
}
