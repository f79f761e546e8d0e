// Package export backs up and restores the events of a series.
//
// JSON backups carry metadata and can be imported again with POST
// /v1/import. CSV exports flatten each event to one row with a column per
// metric key, for spreadsheets and pandas; they cannot be re-imported.
//
//	curl "http://localhost:8080/v1/export?uuid=<uuid>&counter=nightly-backup&format=csv" \
//	  -o nightly-backup.csv
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/brightfish/bluecanary/pkg/storage"
)

// BackupVersion is written to the metadata of JSON backups.
const BackupVersion = "1.0"

// Exporter handles exporting events to various formats
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	Series storage.Series

	// Time range to export
	Start time.Time
	End   time.Time

	// Only export events at least this severe
	MinStatus int
}

// ExportResult contains stats about the export
type ExportResult struct {
	EventsExported int       `json:"events_exported"`
	Series         string    `json:"series"`
	TimeRange      string    `json:"time_range"`
	Format         string    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

// BackupMetadata describes a JSON backup
type BackupMetadata struct {
	ExportedAt time.Time `json:"exported_at"`
	UUID       string    `json:"uuid"`
	Counter    string    `json:"counter"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	EventCount int       `json:"event_count"`
	Version    string    `json:"version"`
}

// Backup is the JSON backup document
type Backup struct {
	Metadata BackupMetadata  `json:"metadata"`
	Events   []storage.Event `json:"events"`
}

func (e *Exporter) events(ctx context.Context, opts ExportOptions) ([]storage.Event, error) {
	events, err := e.storage.List(ctx, storage.Query{
		Series:    opts.Series,
		Start:     opts.Start,
		End:       opts.End,
		MinStatus: opts.MinStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	// Backups read oldest first
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ReceivedAt.Before(events[j].ReceivedAt)
	})
	return events, nil
}

func result(opts ExportOptions, n int, format string) *ExportResult {
	return &ExportResult{
		EventsExported: n,
		Series:         opts.Series.String(),
		TimeRange:      fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:         format,
		ExportedAt:     time.Now(),
	}
}

// ExportToJSON writes a JSON backup to w
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	events, err := e.events(ctx, opts)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []storage.Event{}
	}

	backup := Backup{
		Metadata: BackupMetadata{
			ExportedAt: time.Now(),
			UUID:       opts.Series.UUID,
			Counter:    opts.Series.Counter,
			StartTime:  opts.Start,
			EndTime:    opts.End,
			EventCount: len(events),
			Version:    BackupVersion,
		},
		Events: events,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return result(opts, len(events), "json"), nil
}

// ExportToCSV writes one row per event to w
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	events, err := e.events(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)

	metricKeys := collectMetricKeys(events)

	header := []string{
		"received_at", "status_code", "status_remark",
		"client_id", "client_name", "generated_at",
	}
	header = append(header, metricKeys...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ev := range events {
		row := []string{
			ev.ReceivedAt.Format(time.RFC3339Nano),
			strconv.Itoa(ev.StatusCode),
			ev.StatusRemark,
			ev.ClientID,
			ev.ClientName,
			ev.GeneratedAt,
		}

		values := make(map[string]string, len(ev.Metrics))
		for _, m := range ev.Metrics {
			values[m.Key] = strconv.FormatFloat(m.Value, 'f', -1, 64)
		}
		for _, key := range metricKeys {
			row = append(row, values[key])
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return result(opts, len(events), "csv"), nil
}

// collectMetricKeys gathers all unique metric keys and returns them sorted
func collectMetricKeys(events []storage.Event) []string {
	keySet := make(map[string]bool)
	for _, ev := range events {
		for _, m := range ev.Metrics {
			keySet[m.Key] = true
		}
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
