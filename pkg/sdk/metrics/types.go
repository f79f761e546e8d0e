package metrics

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/brightfish/bluecanary/pkg/sdk/errs"
)

// Type is the numeric type a metric value is cast to when serialized.
type Type string

const (
	FloatType Type = "float"
	IntType   Type = "int"

	// integerAlias is accepted on input and normalized to IntType.
	integerAlias Type = "integer"
)

// Limits enforced when a metric is constructed.
const (
	MaxKeyLength  = 255
	MaxUnitLength = 10
)

// Metric is a single named measurement attached to the next outgoing event.
// It is immutable once constructed.
type Metric struct {
	key   string
	typ   Type
	value float64
	unit  string
}

// Serialized is the wire representation of a metric inside a POST body.
type Serialized struct {
	Key   string      `json:"key"`
	Type  Type        `json:"type"`
	Value json.Number `json:"value"`
	Unit  *string     `json:"unit"`
}

// New validates its arguments and returns a Metric.
// An empty typ means FloatType; "integer" is accepted as IntType.
func New(key string, value float64, unit string, typ Type) (Metric, error) {
	if key == "" || len(key) > MaxKeyLength {
		return Metric{}, errs.New(errs.KindInvalidMetric,
			"The length of a metric key must be between 1 and 255 characters.")
	}

	switch typ {
	case "":
		typ = FloatType
	case integerAlias:
		typ = IntType
	case FloatType, IntType:
	default:
		return Metric{}, errs.Newf(errs.KindInvalidMetric,
			"A metric can only be a float or an int, got %q.", typ)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Metric{}, errs.New(errs.KindInvalidMetric,
			"A metric value must be a finite number.")
	}

	if typ == IntType && (value >= math.MaxInt64 || value < math.MinInt64) {
		return Metric{}, errs.New(errs.KindInvalidMetric,
			"An int metric value must fit in 64 bits.")
	}

	if len(unit) > MaxUnitLength {
		return Metric{}, errs.New(errs.KindInvalidMetric,
			"The unit can only be 10 characters long.")
	}

	return Metric{key: key, typ: typ, value: value, unit: unit}, nil
}

// MustNew is like New but panics on invalid input. Intended for metrics
// built from constants.
func MustNew(key string, value float64, unit string, typ Type) Metric {
	m, err := New(key, value, unit, typ)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Metric) Key() string    { return m.key }
func (m Metric) Type() Type     { return m.typ }
func (m Metric) Value() float64 { return m.value }
func (m Metric) Unit() string   { return m.unit }

// Serialize casts the value to the metric type. Int values are truncated
// toward zero.
func (m Metric) Serialize() Serialized {
	s := Serialized{Key: m.key, Type: m.typ}

	if m.typ == IntType {
		s.Value = json.Number(strconv.FormatInt(int64(m.value), 10))
	} else {
		s.Value = json.Number(strconv.FormatFloat(m.value, 'f', -1, 64))
	}

	if m.unit != "" {
		unit := m.unit
		s.Unit = &unit
	}

	return s
}

// SerializeAll serializes metrics preserving their order.
func SerializeAll(ms []Metric) []Serialized {
	out := make([]Serialized, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Serialize())
	}
	return out
}
