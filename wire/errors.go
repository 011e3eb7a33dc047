package wire

import "errors"

// ErrTruncated is returned when a buffer is too short to hold a frame
// header the caller has already committed to reading.
var ErrTruncated = errors.New("wire: truncated frame header")
