package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/storage"
)

// EventPayload is the event data sent by a client, either as query
// parameters (GET) or as a JSON body (POST).
type EventPayload struct {
	ClientID     looseString     `json:"client_id" validate:"max=255"`
	ClientName   looseString     `json:"client_name" validate:"max=255"`
	StatusCode   *int            `json:"status_code" validate:"required,min=0,max=7"`
	StatusRemark looseString     `json:"status_remark" validate:"max=65535"`
	GeneratedAt  looseString     `json:"generated_at" validate:"max=64"`
	Metrics      []MetricPayload `json:"metrics" validate:"max=1000,dive"`
}

// MetricPayload is a serialized metric inside a POST body.
type MetricPayload struct {
	Key   string      `json:"key" validate:"required,max=255"`
	Type  string      `json:"type" validate:"oneof=float int"`
	Value json.Number `json:"value" validate:"required"`
	Unit  *string     `json:"unit" validate:"omitempty,max=10"`
}

// looseString accepts any JSON scalar. Clients send values as they were
// given, so client_id may arrive as a number.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch t := v.(type) {
	case nil:
		*s = ""
	case json.Number:
		*s = looseString(t.String())
	default:
		str, err := cast.ToStringE(t)
		if err != nil {
			return fmt.Errorf("unsupported value %s", data)
		}
		*s = looseString(str)
	}
	return nil
}

// DecodeQuery reads a payload from GET query parameters. Metrics are never
// sent on a GET.
func DecodeQuery(values url.Values) (*EventPayload, error) {
	p := &EventPayload{
		ClientID:     looseString(values.Get(params.KeyClientID)),
		ClientName:   looseString(values.Get(params.KeyClientName)),
		StatusRemark: looseString(values.Get(params.KeyStatusRemark)),
		GeneratedAt:  looseString(values.Get(params.KeyGeneratedAt)),
	}

	if raw := values.Get(params.KeyStatusCode); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: status_code %q is not an integer", ErrInvalidEvent, raw)
		}
		p.StatusCode = &code
	}

	return p, nil
}

// DecodeBody reads a payload from a JSON body.
func DecodeBody(r io.Reader) (*EventPayload, error) {
	var p EventPayload
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidEvent, err)
	}
	return &p, nil
}

// Event converts a validated payload to a storage event.
func (p *EventPayload) Event(version string, series storage.Series, receivedAt time.Time) (storage.Event, error) {
	e := storage.Event{
		APIVersion:   version,
		UUID:         series.UUID,
		Counter:      series.Counter,
		ClientID:     string(p.ClientID),
		ClientName:   string(p.ClientName),
		StatusRemark: string(p.StatusRemark),
		GeneratedAt:  string(p.GeneratedAt),
		ReceivedAt:   receivedAt,
	}
	if p.StatusCode != nil {
		e.StatusCode = *p.StatusCode
	}

	for _, m := range p.Metrics {
		value, err := m.Value.Float64()
		if err != nil {
			return storage.Event{}, fmt.Errorf("%w: metric %q has value %q", ErrInvalidEvent, m.Key, m.Value)
		}
		sm := storage.Metric{Key: m.Key, Type: m.Type, Value: value}
		if m.Unit != nil {
			sm.Unit = *m.Unit
		}
		e.Metrics = append(e.Metrics, sm)
	}

	return e, nil
}
