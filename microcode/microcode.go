// Package microcode implements the decoder's per-message "micro-code":
// it parses a printf-style format string into a FormatMetadata header and
// a sequence of PrintFragments, each carrying at most one conversion
// specifier plus the surrounding literal text. Both the static-info
// registry (to learn a site's argument-type vector and nibble count) and
// the decoder (to render a decoded record) build on this parse.
package microcode

import (
	"fmt"
	"regexp"
	"strings"
)

// FormatType is the 5-bit argument-type category a PrintFragment reads
// from the packed argument stream.
type FormatType uint8

const (
	// None means "no argument, just literal text".
	None FormatType = iota

	SignedChar
	SignedShort
	SignedInt
	SignedLong
	SignedLongLong
	IntmaxT
	PtrdiffT

	UnsignedChar
	UnsignedShort
	UnsignedInt
	UnsignedLong
	UnsignedLongLong
	UintmaxT
	SizeT

	WintT

	Float
	Double
	LongDouble

	Pointer

	String
	WString
)

// IsString reports whether the category is consumed from the payload
// tail (length-delimited by a null terminator) rather than the packed
// primitive stream.
func (t FormatType) IsString() bool {
	return t == String || t == WString
}

// ConsumesNibble reports whether a value of this category occupies a
// nibble slot. Every non-string category does, including floating point
// (whose nibble simply records its verbatim byte width rather than a
// pack encoding); None and the string categories do not.
func (t FormatType) ConsumesNibble() bool {
	return t != None && !t.IsString()
}

// PrintFragment is a slice of a format string containing at most one
// conversion specifier, plus the argument category it pulls from the
// decoded record.
type PrintFragment struct {
	ArgType          FormatType
	DynamicWidth     bool // width was '*'
	DynamicPrecision bool // precision was '*'

	// Literal is the plain text immediately preceding this fragment's
	// specifier (or the whole fragment, for a None fragment with no
	// specifier at all).
	Literal string
	// Spec is the conversion specifier rewritten without its C length
	// modifier (hh, h, l, ll, L, j, z, t, q strip cleanly since Go's fmt
	// verbs don't need to know the argument's storage width). The C verb
	// itself is kept, so the decoder still rewrites %u and %i to %d
	// before handing it to fmt.Sprintf. Empty for a None fragment.
	Spec string

	// Text is Literal+Spec, kept for callers that just want the original
	// slice of the format string back.
	Text string
}

// FormatMetadata is the decoder's per-message representation: a header
// plus the fragments that, concatenated and rendered in order, reproduce
// what a direct printf of the original format string and arguments would
// have produced.
type FormatMetadata struct {
	NumNibbles int
	Fragments  []PrintFragment
	Severity   int
	Line       int
	File       string
	Format     string
}

// specifierRE matches a printf conversion starting right after '%':
// flags, width (digits or '*'), precision (.digits or .*), a length
// modifier, and the specifier character.
var specifierRE = regexp.MustCompile(`^([-+ 0#]*)(\*|[0-9]+)?(\.(\*|[0-9]+))?(hh|h|ll|l|L|j|z|t|q)?([diouxXeEfFgGaAcspn%])`)

// lengthSpec maps a (length modifier, specifier) pair to its argument
// category.
func lengthSpec(length, specifier string) (FormatType, bool) {
	switch specifier {
	case "d", "i":
		switch length {
		case "hh":
			return SignedChar, true
		case "h":
			return SignedShort, true
		case "":
			return SignedInt, true
		case "l":
			return SignedLong, true
		case "ll", "q":
			return SignedLongLong, true
		case "j":
			return IntmaxT, true
		case "t":
			return PtrdiffT, true
		}
	case "u", "o", "x", "X":
		switch length {
		case "hh":
			return UnsignedChar, true
		case "h":
			return UnsignedShort, true
		case "":
			return UnsignedInt, true
		case "l":
			return UnsignedLong, true
		case "ll", "q":
			return UnsignedLongLong, true
		case "j":
			return UintmaxT, true
		case "z":
			return SizeT, true
		}
	case "e", "E", "f", "F", "g", "G", "a", "A":
		switch length {
		case "", "l":
			return Double, true
		case "L":
			return LongDouble, true
		}
	case "c":
		switch length {
		case "":
			return SignedInt, true
		case "l":
			return WintT, true
		}
	case "s":
		switch length {
		case "":
			return String, true
		case "l":
			return WString, true
		}
	case "p":
		if length == "" {
			return Pointer, true
		}
	case "n":
		// Writing back the number of bytes emitted so far has no sane
		// meaning once formatting happens on a different thread, offline.
		return None, false
	case "%":
		return None, true
	}
	return None, false
}

// Parse walks format left-to-right and builds its micro-code. Unknown
// specifiers cause the whole parse to fail; the caller must not install
// a partial FormatMetadata. A format string without specifiers produces
// a single None fragment covering the whole string.
func Parse(format string, severity, line int, file string) (*FormatMetadata, error) {
	meta := &FormatMetadata{Severity: severity, Line: line, File: file, Format: format}

	var cur strings.Builder
	flush := func(argType FormatType, dynWidth, dynPrec bool, literal, spec string) {
		meta.Fragments = append(meta.Fragments, PrintFragment{
			ArgType:          argType,
			DynamicWidth:     dynWidth,
			DynamicPrecision: dynPrec,
			Literal:          literal,
			Spec:             spec,
			Text:             literal + spec,
		})
	}

	i := 0
	n := len(format)
	for i < n {
		c := format[i]
		if c == '\\' && i+1 < n {
			cur.WriteByte(c)
			cur.WriteByte(format[i+1])
			i += 2
			continue
		}
		if c != '%' {
			cur.WriteByte(c)
			i++
			continue
		}

		// Count a run of consecutive '%'. An even-length run is pure
		// literal percents (%% -> %) and never starts a specifier.
		run := i
		for run < n && format[run] == '%' {
			run++
		}
		runLen := run - i
		if runLen%2 == 0 {
			for k := 0; k < runLen/2; k++ {
				cur.WriteByte('%')
			}
			i = run
			continue
		}
		// Odd run: the trailing '%' may start a real specifier; the
		// leading pairs are literal.
		for k := 0; k < (runLen-1)/2; k++ {
			cur.WriteByte('%')
		}
		i = run - 1

		rest := format[i+1:]
		m := specifierRE.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("microcode: unknown or malformed specifier at byte %d in %q", i, format)
		}
		flags, widthStr, precDot, precStr, length, specifier := m[1], m[2], m[3], m[4], m[5], m[6]
		argType, ok := lengthSpec(length, specifier)
		if !ok {
			return nil, fmt.Errorf("microcode: unsupported specifier %%%s%s at byte %d in %q", length, specifier, i, format)
		}

		dynWidth := widthStr == "*"
		dynPrec := precStr == "*"
		specEnd := i + 1 + len(m[0])

		if specifier == "%" {
			// Odd run collapsed to one literal '%' followed by another
			// '%': treat the pair as a literal and keep scanning.
			cur.WriteByte('%')
			i = specEnd
			continue
		}

		literal := cur.String()
		cur.Reset()
		spec := "%" + flags + widthStr + precDot + specifier

		flush(argType, dynWidth, dynPrec, literal, spec)

		if argType.ConsumesNibble() {
			meta.NumNibbles++
		}
		if dynWidth {
			meta.NumNibbles++
		}
		if dynPrec {
			meta.NumNibbles++
		}

		i = specEnd
	}

	if cur.Len() > 0 || len(meta.Fragments) == 0 {
		flush(None, false, false, cur.String(), "")
	}

	return meta, nil
}
