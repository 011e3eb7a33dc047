package registry

import "encoding/binary"

func putUint32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func putUint64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func getUint32(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }
func getUint64(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// toInt64, toUint64, toFloat32 and toFloat64 accept any of Go's sized
// integer/float types so call sites can pass int, int32, uint, uintptr
// and so on without the caller manually casting to the codec's internal
// raw-record representation.
func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}

func toUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uintptr:
		return uint64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int:
		return uint64(x)
	case int8:
		return uint64(x)
	case int16:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	default:
		return 0
	}
}

func toFloat32(v interface{}) float32 {
	switch x := v.(type) {
	case float32:
		return x
	case float64:
		return float32(x)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	default:
		return 0
	}
}
