package config

import "time"

// Client defaults
const (
	DefaultBaseURI    = "https://canary.stage"
	DefaultAPIVersion = "v1"

	// APIPathPrefix and EventPathSegment surround the API version in the
	// event URL: <base>/api/<version>/event/<uuid>/<counter>.
	APIPathPrefix    = "api"
	EventPathSegment = "event"

	// EventsPathSegment is the receiver's listing route segment.
	EventsPathSegment = "events"
)

// Transport defaults
const (
	DefaultTransportTimeout = 10 * time.Second
	DefaultMetricCapacity   = 8
)

// Receiver defaults
const (
	DefaultPort         = "8080"
	DefaultDataDir      = "./data/canaryd"
	DefaultMaxMemoryMB  = 48
	DefaultMaxStorageGB = 1
	DefaultRetention    = 30 * 24 * time.Hour
	DefaultListLimit    = 100
	MaxListLimit        = 1000
	MaxRequestBodyBytes = 1 << 20
)

// Receiver timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
	IngestTimeout      = 5 * time.Second
	ListTimeout        = 5 * time.Second
	BadgerGCInterval   = 10 * time.Minute
	RetentionInterval  = 1 * time.Hour

	// StorageUsageCacheDuration bounds how often the data directory is walked.
	StorageUsageCacheDuration = 10 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
