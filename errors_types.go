package nanolog

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode groups the error kinds spec.md §7 names, so callers can
// branch on category without parsing Error's message.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota

	// Fatal init: cannot open the default log file, cannot allocate
	// aligned buffers, not enough room for a checkpoint.
	ErrCodeFatalInit

	// Producer misuse: oversize record, commit without a matching
	// reservation.
	ErrCodeProducerMisuse

	// Registration race: a record named a message id beyond the shadow
	// dictionary. The compressor reports this case as a diagnostic line,
	// not as an *Error carrying this code.
	ErrCodeRegistrationRace

	// Malformed log file: missing checkpoint, inconsistent dictionary
	// byte count, truncated frame.
	ErrCodeMalformedFile

	// I/O error: the sink's write or sync call returned an error.
	ErrCodeIO

	// Decoder format-string error: an unknown printf specifier.
	ErrCodeFormatString
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeFatalInit:
		return "fatal_init"
	case ErrCodeProducerMisuse:
		return "producer_misuse"
	case ErrCodeRegistrationRace:
		return "registration_race"
	case ErrCodeMalformedFile:
		return "malformed_file"
	case ErrCodeIO:
		return "io"
	case ErrCodeFormatString:
		return "format_string"
	default:
		return "unknown"
	}
}

// Error is the structured error every exported nanolog operation
// returns, modeled on the teacher's FlexLogError: a code for
// programmatic matching, the failing operation's name, contextual
// fields, and a wrapped cause that keeps its stack trace courtesy of
// github.com/pkg/errors.
type Error struct {
	Code    ErrorCode
	Op      string
	Path    string
	Context map[string]interface{}
	Err     error
}

// NewError wraps err (if non-nil) with errors.WithStack so %+v prints a
// trace, and returns an *Error ready for WithContext.
func NewError(code ErrorCode, op, path string, err error) *Error {
	if err != nil {
		err = errors.WithStack(err)
	}
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// WithContext attaches a key/value pair for diagnostics, returning the
// receiver for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("nanolog: %s: %s (%s): %v", e.Op, e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("nanolog: %s: %s: %v", e.Op, e.Code, e.Err)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, the same comparison the teacher's
// FlexLogError.Is uses.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Verbose renders the error together with its cause's stack trace, for
// the fatal-init paths spec.md §7 says should carry enough context to
// debug. The library itself never exits the process.
func (e *Error) Verbose() string {
	return fmt.Sprintf("%s\n%+v", e.Error(), e.Err)
}
