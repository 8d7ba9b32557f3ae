package checker

import (
	"reflect"
	"time"
)

// IsConsistent compares an offline and an online value with the default
// numeric tolerance: two numerics are equal iff their absolute difference is
// below 1e-6, everything else compares structurally.
func IsConsistent(offlineValue, onlineValue interface{}) bool {
	return consistent(offlineValue, onlineValue, DefaultTolerance)
}

func (c *Checker) isConsistent(offlineValue, onlineValue interface{}) bool {
	return consistent(offlineValue, onlineValue, c.tolerance)
}

func consistent(a, b interface{}, tolerance float64) bool {
	if af, bf, ok := numericPair(a, b); ok {
		diff := af - bf
		if diff < 0 {
			diff = -diff
		}
		return diff < tolerance
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}

	return reflect.DeepEqual(normalize(a), normalize(b))
}

// numericPair reports both values as float64 when both are numeric.
func numericPair(a, b interface{}) (float64, float64, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return af, bf, aok && bok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func normalize(v interface{}) interface{} {
	if raw, ok := v.([]byte); ok {
		return string(raw)
	}
	return v
}
