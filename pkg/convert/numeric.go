// Package convert coerces the loosely-typed interface{} values cmd/nodal
// decodes from JSON property files and CLI flags into model.PropValue, and
// back. See propvalue.go for the conversion engine writes actually go
// through; this file and slice.go hold the element-level numeric coercions
// ToPropValue needs along the way.
package convert

import (
	"strconv"
)

// ToFloat64 converts various numeric types to float64. Returns (value, true)
// on success, (0, false) on failure.
//
// Supported types: float64, float32, the signed/unsigned int families, and
// string (parsed as decimal, scientific notation, or NaN/Inf).
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
