package convert

import (
	"math"

	"github.com/nodalgraph/nodal/pkg/model"
)

// ToPropValue coerces a decoded JSON value or CLI-flag argument into a
// model.PropValue. This is how cmd/nodal turns "--prop score=3.5" or a
// JSON property-file value into the tagged variant every engine write
// method takes.
//
// A whole-number JSON float (42.0) becomes KindInt64, matching how a human
// typing "age=42" on the command line expects it stored — JSON's lack of an
// integer type would otherwise turn every property into a float.
func ToPropValue(v interface{}) (model.PropValue, bool) {
	switch val := v.(type) {
	case nil:
		return model.Null(), true
	case model.PropValue:
		return val, true
	case bool:
		return model.Bool(val), true
	case string:
		return model.String(val), true
	case []float32:
		return model.Vector(val), true
	case []float64:
		vec := make([]float32, len(val))
		for i, f := range val {
			vec[i] = float32(f)
		}
		return model.Vector(vec), true
	case []interface{}:
		vec := ToFloat32Slice(val)
		if len(vec) != len(val) {
			return model.PropValue{}, false
		}
		return model.Vector(vec), true
	}

	if f, ok := ToFloat64(v); ok {
		if f == math.Trunc(f) && !math.IsInf(f, 0) && f >= math.MinInt64 && f <= math.MaxInt64 {
			return model.Int64(int64(f)), true
		}
		return model.Float64(f), true
	}
	return model.PropValue{}, false
}

// FromPropValue unwraps a model.PropValue into a plain interface{} suitable
// for JSON encoding by the CLI's read-path subcommands (get, export).
func FromPropValue(p model.PropValue) interface{} {
	switch p.Kind {
	case model.KindBool:
		return p.B
	case model.KindInt64:
		return p.I
	case model.KindFloat64:
		return p.F
	case model.KindString:
		return p.S
	case model.KindVector:
		return p.V
	default:
		return nil
	}
}
