package decoder

import "math"

func floatBits32(v float32) uint32 { return math.Float32bits(v) }
func floatBits64(v float64) uint64 { return math.Float64bits(v) }
