package decoder

import (
	"errors"

	"github.com/nanolog/nanolog/microcode"
)

// inlineSlots is how many argument values a LogMessage stores inline
// before spilling to a heap-allocated slice; ten covers all but the
// rare call site with a very long argument list without ever touching
// the allocator on the hot decode path.
const inlineSlots = 10

// ErrLongDoubleUnsupported is returned by LogMessage.Get when the slot
// holds a long double: the wire format records that it was present (so
// offsets downstream stay correct) but never carries its 80/128-bit
// payload, so there is nothing meaningful to return.
var ErrLongDoubleUnsupported = errors.New("decoder: long double arguments are not supported")

// longDoubleSentinel is pushed in place of a real value for long double
// slots, so Get can recognize one without a side channel.
const longDoubleSentinel = ^uint64(0)

// LogMessage carries one decoded record's argument values between the
// byte-level unpacking step and rendering. Values are stored as raw
// 64-bit words tagged with the FormatType that explains how to
// reinterpret them; strings are kept separately since they don't fit
// the fixed-width slot model.
type LogMessage struct {
	kinds  [inlineSlots]microcode.FormatType
	values [inlineSlots]uint64
	n      int

	extraKinds  []microcode.FormatType
	extraValues []uint64

	strings []string
}

// Reset clears m for reuse, so a decoder can pool LogMessage values
// across records instead of allocating one per line.
func (m *LogMessage) Reset() {
	m.n = 0
	m.extraKinds = m.extraKinds[:0]
	m.extraValues = m.extraValues[:0]
	m.strings = m.strings[:0]
}

// Push appends a decoded non-string value to the carrier.
func (m *LogMessage) Push(kind microcode.FormatType, v uint64) {
	if kind == microcode.LongDouble {
		v = longDoubleSentinel
	}
	if m.n < inlineSlots {
		m.kinds[m.n] = kind
		m.values[m.n] = v
		m.n++
		return
	}
	m.extraKinds = append(m.extraKinds, kind)
	m.extraValues = append(m.extraValues, v)
}

// PushString appends a decoded string argument.
func (m *LogMessage) PushString(s string) {
	m.strings = append(m.strings, s)
}

// Len reports how many non-string argument slots have been pushed.
func (m *LogMessage) Len() int {
	return m.n + len(m.extraKinds)
}

// Get returns the i'th non-string value and its type. It returns
// ErrLongDoubleUnsupported (and a value of 0, mirroring the original
// C++ API's -1 sentinel adapted to Go's unsigned words) if that slot
// held a long double.
func (m *LogMessage) Get(i int) (uint64, microcode.FormatType, error) {
	var kind microcode.FormatType
	var v uint64
	if i < m.n {
		kind, v = m.kinds[i], m.values[i]
	} else {
		j := i - m.n
		if j < 0 || j >= len(m.extraKinds) {
			return 0, 0, errors.New("decoder: argument index out of range")
		}
		kind, v = m.extraKinds[j], m.extraValues[j]
	}
	if kind == microcode.LongDouble {
		return 0, kind, ErrLongDoubleUnsupported
	}
	return v, kind, nil
}

// Strings returns the decoded string arguments, in the order the format
// string consumes them.
func (m *LogMessage) Strings() []string {
	return m.strings
}
