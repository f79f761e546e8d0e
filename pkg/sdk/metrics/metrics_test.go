package metrics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/brightfish/bluecanary/pkg/sdk/errs"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    float64
		unit     string
		typ      Type
		wantType Type
		wantErr  bool
	}{
		{name: "float default", key: "load", value: 0.5, wantType: FloatType},
		{name: "explicit int", key: "duration", value: 3465.3567, unit: "sec", typ: IntType, wantType: IntType},
		{name: "integer alias", key: "rows", value: 12, typ: "integer", wantType: IntType},
		{name: "max key", key: strings.Repeat("k", MaxKeyLength), value: 1, wantType: FloatType},
		{name: "max unit", key: "size", unit: "0123456789", wantType: FloatType},
		{name: "empty key", key: "", wantErr: true},
		{name: "key too long", key: strings.Repeat("k", MaxKeyLength+1), wantErr: true},
		{name: "unknown type", key: "x", typ: "double", wantErr: true},
		{name: "unit too long", key: "x", unit: "01234567890", wantErr: true},
		{name: "nan", key: "x", value: math.NaN(), wantErr: true},
		{name: "inf", key: "x", value: math.Inf(1), wantErr: true},
		{name: "int overflow", key: "x", value: 1e19, typ: IntType, wantErr: true},
		{name: "int underflow", key: "x", value: -1e19, typ: IntType, wantErr: true},
		{name: "large float", key: "x", value: 1e19, wantType: FloatType},
		{name: "min int", key: "x", value: math.MinInt64, typ: IntType, wantType: IntType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.key, tt.value, tt.unit, tt.typ)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrInvalidMetric)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.key, m.Key())
			require.Equal(t, tt.wantType, m.Type())
			require.Equal(t, tt.unit, m.Unit())
		})
	}
}

func TestSerializeCastsToType(t *testing.T) {
	m := MustNew("duration", 3465.3567, "sec", IntType)
	s := m.Serialize()

	require.Equal(t, "duration", s.Key)
	require.Equal(t, IntType, s.Type)
	require.Equal(t, json.Number("3465"), s.Value)
	require.NotNil(t, s.Unit)
	require.Equal(t, "sec", *s.Unit)

	neg := MustNew("delta", -2.9, "", IntType).Serialize()
	require.Equal(t, json.Number("-2"), neg.Value)
}

func TestSerializeJSON(t *testing.T) {
	raw, err := json.Marshal(SerializeAll([]Metric{
		MustNew("duration", 3465.3567, "sec", IntType),
		MustNew("ratio", 0.25, "", FloatType),
	}))
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"key":"duration","type":"int","value":3465,"unit":"sec"},
		{"key":"ratio","type":"float","value":0.25,"unit":null}
	]`, string(raw))
}

func TestMustNewPanics(t *testing.T) {
	require.Panics(t, func() { MustNew("", 1, "", FloatType) })
}
