// Package params filters and casts the parameters sent with a Blue Canary
// event, and separates them from URI parts and transport options.
package params

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// Params is a set of per-call parameters. It may mix data keys, URI parts
// and transport options.
type Params map[string]any

// Options holds transport options, passed to the transport untouched.
type Options map[string]any

// Configuration keys.
const (
	KeyBaseURI    = "base_uri"
	KeyAPIVersion = "api_version"
	KeyClientID   = "client_id"
	KeyClientName = "client_name"
	KeyCounter    = "counter"
	KeyUUID       = "uuid"
)

// Data keys allowed on the wire.
const (
	KeyStatusCode   = "status_code"
	KeyStatusRemark = "status_remark"
	KeyGeneratedAt  = "generated_at"
	KeyMetrics      = "metrics"
)

var allowedDataKeys = map[string]struct{}{
	KeyClientID:     {},
	KeyClientName:   {},
	KeyStatusCode:   {},
	KeyStatusRemark: {},
	KeyGeneratedAt:  {},
	KeyMetrics:      {},
}

var configKeys = map[string]struct{}{
	KeyBaseURI:    {},
	KeyAPIVersion: {},
	KeyClientID:   {},
	KeyClientName: {},
	KeyCounter:    {},
	KeyUUID:       {},
}

// IsDataKey reports whether key is allowed in an event payload.
func IsDataKey(key string) bool {
	_, ok := allowedDataKeys[key]
	return ok
}

// IsConfigKey reports whether key is a client configuration key.
func IsConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// Merge returns a new Params with the layers applied in order; later layers
// win. A nil value in a later layer overrides an earlier one.
func Merge(layers ...Params) Params {
	out := Params{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// FilterAndCast keeps the allow-listed keys present in p. status_code is cast
// to an int (0 when falsy or unparsable); every other kept key becomes nil
// when its value is falsy.
func FilterAndCast(p Params) Params {
	out := Params{}
	for k, v := range p {
		if !IsDataKey(k) {
			continue
		}
		if k == KeyStatusCode {
			out[k] = toStatusCode(v)
			continue
		}
		if IsFalsy(v) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

// TransportOptions returns every key of p that is neither a data key nor a
// configuration key.
func TransportOptions(p Params) Options {
	out := Options{}
	for k, v := range p {
		if IsDataKey(k) || IsConfigKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Query URL-encodes filtered parameters for a GET request. Nil values and
// metrics are left out; keys are sorted.
func Query(p Params) string {
	values := url.Values{}
	for k, v := range p {
		if v == nil || k == KeyMetrics {
			continue
		}
		values.Set(k, stringify(v))
	}
	return values.Encode()
}

// Keys returns the keys of p in sorted order.
func Keys(p Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsFalsy reports whether v counts as empty: nil, "", "0", false, a numeric
// zero, or an empty slice or map.
func IsFalsy(v any) bool {
	if v == nil {
		return true
	}

	switch t := v.(type) {
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String:
		return rv.Len() == 0 || rv.String() == "0"
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func toStatusCode(v any) int {
	if IsFalsy(v) {
		return 0
	}
	if b, ok := v.(bool); ok && b {
		return 1
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return int(rv.Float())
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return int(f)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
