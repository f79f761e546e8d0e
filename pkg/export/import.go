package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/brightfish/bluecanary/pkg/sdk/endpoint"
	"github.com/brightfish/bluecanary/pkg/storage"
)

// ErrInvalidBackup is returned when a backup cannot be decoded
var ErrInvalidBackup = errors.New("invalid backup")

// Importer restores events from JSON backups
type Importer struct {
	storage storage.Storage
	now     func() time.Time
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store, now: time.Now}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	EventsImported int       `json:"events_imported"`
	TimeRange      string    `json:"time_range"`
	ImportedAt     time.Time `json:"imported_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// ImportFromJSON imports the valid events of a backup. Invalid events are
// skipped and reported in the result.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}

	if len(backup.Events) == 0 {
		return &ImportResult{
			TimeRange:  "empty",
			ImportedAt: im.now(),
		}, nil
	}

	var (
		validationErrors []string
		imported         int
		minTime, maxTime time.Time
	)

	for i, ev := range backup.Events {
		if err := im.validate(ev); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}

		if err := im.storage.Write(ctx, ev); err != nil {
			return nil, fmt.Errorf("failed to write event %d: %w", i, err)
		}
		imported++

		if minTime.IsZero() || ev.ReceivedAt.Before(minTime) {
			minTime = ev.ReceivedAt
		}
		if ev.ReceivedAt.After(maxTime) {
			maxTime = ev.ReceivedAt
		}
	}

	return &ImportResult{
		EventsImported: imported,
		TimeRange:      fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339)),
		ImportedAt:     im.now(),
		Errors:         validationErrors,
	}, nil
}

// validate checks an event before import
func (im *Importer) validate(ev storage.Event) error {
	if !endpoint.IsUUIDValid(ev.UUID) {
		return fmt.Errorf("invalid uuid %q", ev.UUID)
	}
	if !endpoint.IsCounterNameValid(ev.Counter) {
		return fmt.Errorf("invalid counter %q", ev.Counter)
	}
	if ev.StatusCode < 0 || ev.StatusCode > 7 {
		return fmt.Errorf("status code %d out of range", ev.StatusCode)
	}
	if ev.ReceivedAt.IsZero() {
		return fmt.Errorf("received_at cannot be zero")
	}

	now := im.now()
	if ev.ReceivedAt.Before(now.Add(-10 * 365 * 24 * time.Hour)) {
		return fmt.Errorf("received_at too far in past: %s", ev.ReceivedAt)
	}
	if ev.ReceivedAt.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("received_at too far in future: %s", ev.ReceivedAt)
	}

	for _, m := range ev.Metrics {
		if m.Key == "" {
			return fmt.Errorf("metric key cannot be empty")
		}
		if m.Type != "int" && m.Type != "float" {
			return fmt.Errorf("invalid metric type %q", m.Type)
		}
	}

	return nil
}
