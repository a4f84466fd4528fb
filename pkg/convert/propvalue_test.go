package convert

import (
	"testing"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestToPropValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  model.PropValue
		ok    bool
	}{
		{"nil", nil, model.Null(), true},
		{"bool", true, model.Bool(true), true},
		{"string", "alice", model.String("alice"), true},
		{"whole json float becomes int64", 42.0, model.Int64(42), true},
		{"fractional float stays float64", 3.5, model.Float64(3.5), true},
		{"int", 7, model.Int64(7), true},
		{"float32 vector", []float32{1, 2, 3}, model.Vector([]float32{1, 2, 3}), true},
		{"interface slice vector", []interface{}{1.0, 2.5, 3.0}, model.Vector([]float32{1, 2.5, 3}), true},
		{"interface slice non-numeric fails", []interface{}{1, "x"}, model.PropValue{}, false},
		{"unsupported map", map[string]int{"a": 1}, model.PropValue{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToPropValue(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFromPropValue(t *testing.T) {
	assert.Equal(t, true, FromPropValue(model.Bool(true)))
	assert.Equal(t, int64(9), FromPropValue(model.Int64(9)))
	assert.Equal(t, 1.5, FromPropValue(model.Float64(1.5)))
	assert.Equal(t, "hi", FromPropValue(model.String("hi")))
	assert.Equal(t, []float32{1, 2}, FromPropValue(model.Vector([]float32{1, 2})))
	assert.Nil(t, FromPropValue(model.Null()))
}
