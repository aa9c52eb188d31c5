package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookwire/internal/hook/condition"
)

func TestParseDescriptors(t *testing.T) {
	descs, err := condition.ParseDescriptors([]map[string]any{
		{"type": "environment", "value": "production"},
		{"type": "Role", "operator": "IN", "value": []any{"admin"}},
		{"type": "config", "key": "features.beta", "value": true},
		{"type": "weather", "value": "sunny"},
	})
	require.NoError(t, err)
	require.Len(t, descs, 4)

	assert.Equal(t, condition.TypeEnvironment, descs[0].Type)
	assert.Equal(t, condition.OpEq, descs[0].Operator)
	assert.Equal(t, condition.TypeRole, descs[1].Type)
	assert.Equal(t, condition.OpIn, descs[1].Operator)
	assert.Equal(t, "features.beta", descs[2].Key)
	assert.Equal(t, condition.Type("weather"), descs[3].Type)
}

func TestParseDescriptors_MissingType(t *testing.T) {
	_, err := condition.ParseDescriptors([]map[string]any{{"value": "x"}})
	assert.ErrorIs(t, err, condition.ErrInvalidValue)
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		expr string
		want condition.Descriptor
	}{
		{"role admin", condition.Descriptor{Type: condition.TypeRole, Operator: condition.OpEq, Value: "admin"}},
		{"environment in production,staging", condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpIn, Value: []any{"production", "staging"}}},
		{"config:features.limit gte 3", condition.Descriptor{Type: condition.TypeConfig, Key: "features.limit", Operator: condition.OpGte, Value: 3.0}},
		{"auth", condition.Descriptor{Type: condition.TypeAuth, Operator: condition.OpEq}},
		{"auth false", condition.Descriptor{Type: condition.TypeAuth, Operator: condition.OpEq, Value: false}},
		{"time in 09:00,17:00", condition.Descriptor{Type: condition.TypeTime, Operator: condition.OpIn, Value: []any{"09:00", "17:00"}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := condition.ParseExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Key, got.Key)
			assert.Equal(t, tt.want.Operator, got.Operator)
			assert.Equal(t, tt.want.Value, got.Value)
		})
	}

	_, err := condition.ParseExpression("   ")
	assert.ErrorIs(t, err, condition.ErrInvalidValue)
}

func TestMapSource_Lookup(t *testing.T) {
	src := condition.MapSource{
		"app.name": "flat",
		"app":      map[string]any{"debug": true},
	}

	v, ok := src.Lookup("app.name")
	assert.True(t, ok)
	assert.Equal(t, "flat", v)

	v, ok = src.Lookup("app.debug")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = src.Lookup("app.debug.deeper")
	assert.False(t, ok)
}

func TestSources_Lookup(t *testing.T) {
	src := condition.Sources{
		nil,
		condition.MapSource{"a": 1},
		condition.NewJSONSource([]byte(`{"a":2,"b":3}`)),
	}

	v, ok := src.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = src.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, float64(3), v)

	_, ok = src.Lookup("c")
	assert.False(t, ok)
}
