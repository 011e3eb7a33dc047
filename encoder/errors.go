package encoder

import "errors"

// errShortDictionary is returned when a dictionary fragment's declared
// entry count calls for more bytes than the fragment actually contains.
var errShortDictionary = errors.New("encoder: dictionary fragment truncated")
