/*
Package storage provides the pluggable storage abstraction for received Blue
Canary events.

# Storage Interface

Backends:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Storage interface:

	type Storage interface {
	    Write(ctx context.Context, event Event) error
	    List(ctx context.Context, q Query) ([]Event, error)
	    Delete(ctx context.Context, before time.Time) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Series

Events are grouped by series: the application uuid and the counter name taken
from the event URL. Listing always targets one series and returns events
newest first.

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Write(ctx, storage.Event{
	    APIVersion: "v1",
	    UUID:       uuid,
	    Counter:    "nightly-backup",
	    StatusCode: 4,
	    ReceivedAt: time.Now(),
	})

	events, err := store.List(ctx, storage.Query{
	    Series:    storage.Series{UUID: uuid, Counter: "nightly-backup"},
	    MinStatus: 3,
	    Limit:     50,
	})

# Retention

Delete removes everything received before a cutoff. The server runs it
periodically with the configured retention.
*/
package storage
