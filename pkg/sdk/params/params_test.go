package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterAndCast(t *testing.T) {
	got := FilterAndCast(Params{
		KeyClientID:     "42",
		KeyClientName:   "",
		KeyStatusCode:   "3",
		KeyStatusRemark: "disk almost full",
		KeyGeneratedAt:  0,
		KeyUUID:         "5b8c58e9-b2ac-4ae4-9381-dcd4524dd7e7",
		"timeout":       2.5,
	})

	require.Equal(t, Params{
		KeyClientID:     "42",
		KeyClientName:   nil,
		KeyStatusCode:   3,
		KeyStatusRemark: "disk almost full",
		KeyGeneratedAt:  nil,
	}, got)
}

func TestFilterAndCastStatusCode(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{name: "nil", in: nil, want: 0},
		{name: "int", in: 4, want: 4},
		{name: "int64", in: int64(7), want: 7},
		{name: "float truncates", in: 5.9, want: 5},
		{name: "numeric string", in: "6", want: 6},
		{name: "float string", in: "2.7", want: 2},
		{name: "garbage string", in: "loud", want: 0},
		{name: "empty string", in: "", want: 0},
		{name: "true", in: true, want: 1},
		{name: "false", in: false, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterAndCast(Params{KeyStatusCode: tt.in})
			require.Equal(t, tt.want, got[KeyStatusCode])
		})
	}
}

func TestFilterAndCastOmitsAbsentKeys(t *testing.T) {
	got := FilterAndCast(Params{KeyStatusRemark: "hello"})
	_, ok := got[KeyStatusCode]
	require.False(t, ok)
	require.Len(t, got, 1)
}

func TestTransportOptions(t *testing.T) {
	opts := TransportOptions(Params{
		KeyBaseURI:      "https://canary.example",
		KeyCounter:      "nightly-backup",
		KeyClientID:     "7",
		KeyStatusRemark: "x",
		"timeout":       3,
		"headers":       map[string]string{"X-Trace": "abc"},
	})

	require.Equal(t, Options{
		"timeout": 3,
		"headers": map[string]string{"X-Trace": "abc"},
	}, opts)
}

func TestMergeLaterLayerWins(t *testing.T) {
	merged := Merge(
		Params{KeyUUID: "a", KeyCounter: "first-counter"},
		Params{KeyUUID: "b", KeyClientID: nil},
		nil,
	)

	require.Equal(t, "b", merged[KeyUUID])
	require.Equal(t, "first-counter", merged[KeyCounter])
	v, ok := merged[KeyClientID]
	require.True(t, ok)
	require.Nil(t, v)
}

func TestQuery(t *testing.T) {
	q := Query(Params{
		KeyClientID:     "7",
		KeyClientName:   nil,
		KeyStatusCode:   1,
		KeyStatusRemark: "all good & well",
		KeyMetrics:      []string{"ignored"},
	})

	require.Equal(t, "client_id=7&status_code=1&status_remark=all+good+%26+well", q)
}

func TestIsFalsy(t *testing.T) {
	var nilMap map[string]string
	var nilPtr *int

	for _, v := range []any{nil, "", "0", false, 0, 0.0, uint(0), []int{}, nilMap, nilPtr} {
		require.True(t, IsFalsy(v), "%#v should be falsy", v)
	}
	for _, v := range []any{"a", "00", true, 1, -1, 0.1, []int{0}, map[string]int{"a": 0}} {
		require.False(t, IsFalsy(v), "%#v should not be falsy", v)
	}
}

func TestKeys(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Keys(Params{"c": 1, "a": 2, "b": 3}))
}
