package decoder

import (
	"fmt"
	"math"
	"strings"

	"github.com/nanolog/nanolog/microcode"
	"github.com/nanolog/nanolog/registry"
)

// Render reproduces what a direct printf of info's original format
// string and arguments would have produced, pulling argument values out
// of msg in the same order registry.NewCodec assigned them.
func Render(info *registry.StaticLogInfo, msg *LogMessage) (string, error) {
	var out strings.Builder
	argIdx, strIdx := 0, 0
	strs := msg.Strings()

	for _, f := range info.Meta.Fragments {
		out.WriteString(f.Literal)
		if f.Spec == "" {
			continue
		}

		var callArgs []interface{}
		if f.DynamicWidth {
			v, _, err := msg.Get(argIdx)
			if err != nil {
				return "", err
			}
			callArgs = append(callArgs, int(int64(v)))
			argIdx++
		}
		if f.DynamicPrecision {
			v, _, err := msg.Get(argIdx)
			if err != nil {
				return "", err
			}
			callArgs = append(callArgs, int(int64(v)))
			argIdx++
		}

		if f.ArgType.IsString() {
			if strIdx >= len(strs) {
				return "", fmt.Errorf("decoder: missing string argument for %q", f.Spec)
			}
			callArgs = append(callArgs, strs[strIdx])
			strIdx++
			out.WriteString(fmt.Sprintf(f.Spec, callArgs...))
			continue
		}

		v, kind, err := msg.Get(argIdx)
		argIdx++
		if err != nil {
			out.WriteString("<long double unsupported>")
			continue
		}
		if kind == microcode.Pointer {
			out.WriteString(fmt.Sprintf("%#x", v))
			continue
		}
		callArgs = append(callArgs, valueFor(kind, v))
		out.WriteString(fmt.Sprintf(goVerb(f.Spec), callArgs...))
	}
	return out.String(), nil
}

// goVerb rewrites a C conversion specifier's trailing verb character into
// one Go's fmt package actually implements, leaving flags/width/precision
// untouched. C's unsigned-decimal family (%u, and %i as a %d synonym) has
// no Go equivalent; fmt renders it as "%!u(uint64=...)" otherwise, even
// though the decoded value (already unsigned) prints correctly under %d.
// Octal/hex (%o, %x, %X) and the floating-point verbs are valid Go verbs
// already and pass through unchanged.
func goVerb(spec string) string {
	if spec == "" {
		return spec
	}
	switch spec[len(spec)-1] {
	case 'u', 'i':
		return spec[:len(spec)-1] + "d"
	}
	return spec
}

func valueFor(kind microcode.FormatType, raw uint64) interface{} {
	switch kind {
	case microcode.SignedChar, microcode.SignedShort, microcode.SignedInt,
		microcode.SignedLong, microcode.SignedLongLong, microcode.IntmaxT, microcode.PtrdiffT:
		return int64(raw)
	case microcode.Float:
		return math.Float32frombits(uint32(raw))
	case microcode.Double:
		return math.Float64frombits(raw)
	case microcode.WintT:
		return rune(raw)
	default:
		return raw
	}
}
