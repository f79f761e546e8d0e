package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation and cardinality limits
const (
	// Per-event limits
	MaxMetricsPerEvent  = 1000  // Maximum metrics attached to one event
	MaxClientFieldLen   = 255   // Maximum client_id / client_name length
	MaxStatusRemarkLen  = 65535 // Maximum status_remark length
	MaxGeneratedAtLen   = 64    // Maximum generated_at length
	MaxMetricKeyLength  = 255   // Maximum metric key length
	MaxMetricUnitLength = 10    // Maximum metric unit length

	// Global limits
	MaxUniqueSeries   = 100000 // Maximum unique uuid/counter pairs
	MaxCountersPerApp = 1000   // Maximum counters per application uuid
)

var (
	// ErrInvalidUUID is returned when the path uuid is not a version 4 UUID
	ErrInvalidUUID = errors.New("the app uuid is invalid")

	// ErrInvalidCounter is returned when the path counter name is invalid
	ErrInvalidCounter = errors.New("the counter name is invalid")

	// ErrInvalidEvent wraps payload validation failures
	ErrInvalidEvent = errors.New("invalid event")

	// ErrCardinalityLimit is returned when the total series limit is exceeded
	ErrCardinalityLimit = fmt.Errorf("cardinality limit exceeded (max %d unique series)", MaxUniqueSeries)

	// ErrAppCardinalityLimit is returned when one application has too many counters
	ErrAppCardinalityLimit = fmt.Errorf("cardinality limit exceeded (max %d counters per app)", MaxCountersPerApp)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePayload checks a decoded payload against the event limits.
func ValidatePayload(p *EventPayload) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, describe(err))
	}
	return nil
}

// describe flattens validator errors into one readable line
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "EventPayload.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
