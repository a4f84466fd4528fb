package convert

// ToFloat32Slice converts various slice types to []float32, the format
// vector properties are stored in (model.Vector). Elements of a []interface{}
// that can't be converted are skipped, so the result can be shorter than the
// input; any other unsupported input type returns nil.
//
// Supported types: []float32 (returned as-is), []float64, []interface{}.
func ToFloat32Slice(v interface{}) []float32 {
	switch val := v.(type) {
	case []float32:
		return val
	case []float64:
		result := make([]float32, len(val))
		for i, f := range val {
			result[i] = float32(f)
		}
		return result
	case []interface{}:
		result := make([]float32, 0, len(val))
		for _, item := range val {
			if f, ok := ToFloat64(item); ok {
				result = append(result, float32(f))
			}
		}
		return result
	}
	return nil
}
