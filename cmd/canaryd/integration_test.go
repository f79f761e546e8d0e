package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/sdk"
	"github.com/brightfish/bluecanary/pkg/sdk/httpx"
	"github.com/brightfish/bluecanary/pkg/sdk/levels"
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/runtime"
	"github.com/brightfish/bluecanary/pkg/server"
	"github.com/brightfish/bluecanary/pkg/server/monitor"
	"github.com/brightfish/bluecanary/pkg/storage"
	"github.com/brightfish/bluecanary/pkg/storage/badger"
)

const testUUID = "5b8c58e9-b2ac-4ae4-9381-dcd4524dd7e7"

type receiver struct {
	url   string
	store storage.Storage
}

func startReceiver(t *testing.T) *receiver {
	t.Helper()

	store, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	storageMonitor := monitor.NewStorageMonitor(t.TempDir(), 1<<30)
	handler, exportHandler, hub := server.InitializeHandlers(store, storageMonitor, zap.NewNop())

	router := mux.NewRouter()
	server.SetupRoutes(router, handler, exportHandler, storageMonitor, &monitor.RetentionMonitor{}, hub, "8080")

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &receiver{url: srv.URL, store: store}
}

func (r *receiver) list(t *testing.T, counter string) []storage.Event {
	t.Helper()
	events, err := r.store.List(context.Background(), storage.Query{
		Series: storage.Series{UUID: testUUID, Counter: counter},
	})
	require.NoError(t, err)
	return events
}

func newClient(t *testing.T, r *receiver, opts ...sdk.Option) *sdk.Client {
	t.Helper()
	client, err := sdk.New(sdk.Config{
		BaseURI:    r.url,
		UUID:       testUUID,
		Counter:    "nightly-backup",
		ClientID:   "17",
		ClientName: "backup",
	}, opts...)
	require.NoError(t, err)
	return client
}

// TestE2E_GetEvent sends a plain event and reads it back from storage
func TestE2E_GetEvent(t *testing.T) {
	r := startReceiver(t)
	client := newClient(t, r)

	resp, err := client.Warning(context.Background(), "disk almost full", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, http.MethodGet, client.Method())

	events := r.list(t, "nightly-backup")
	require.Len(t, events, 1)
	assert.Equal(t, int(levels.Warning), events[0].StatusCode)
	assert.Equal(t, "disk almost full", events[0].StatusRemark)
	assert.Equal(t, "17", events[0].ClientID)
	assert.Equal(t, "backup", events[0].ClientName)
	assert.Equal(t, "v1", events[0].APIVersion)
}

// TestE2E_PostMetrics sends metrics in a POST body
func TestE2E_PostMetrics(t *testing.T) {
	r := startReceiver(t)
	client := newClient(t, r)

	require.NoError(t, client.Metric("rows", 1200, "", metrics.IntType))
	require.NoError(t, client.Metric("elapsed", 12.5, "s", metrics.FloatType))

	resp, err := client.Notice(context.Background(), "import done", params.Params{"counter": "nightly-import"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, client.Metrics())

	events := r.list(t, "nightly-import")
	require.Len(t, events, 1)
	require.Len(t, events[0].Metrics, 2)
	assert.Equal(t, storage.Metric{Key: "rows", Type: "int", Value: 1200}, events[0].Metrics[0])
	assert.Equal(t, storage.Metric{Key: "elapsed", Type: "float", Value: 12.5, Unit: "s"}, events[0].Metrics[1])

	// The override sticks only for this call
	_, err = client.Ok(context.Background(), "back to default", nil)
	require.NoError(t, err)
	assert.Len(t, r.list(t, "nightly-backup"), 1)
}

// TestE2E_Async waits on an async event
func TestE2E_Async(t *testing.T) {
	r := startReceiver(t)
	client := newClient(t, r)

	future, err := client.CriticalAsync(context.Background(), "replica lost", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	events := r.list(t, "nightly-backup")
	require.Len(t, events, 1)
	assert.Equal(t, int(levels.Critical), events[0].StatusCode)
}

// TestE2E_RejectedEvent surfaces receiver rejections as transport errors
func TestE2E_RejectedEvent(t *testing.T) {
	r := startReceiver(t)

	client := newClient(t, r)
	resp, err := client.Ok(context.Background(), "invalid counter", params.Params{"counter": "short"})
	require.Error(t, err)
	assert.Nil(t, resp)

	suppressing := newClient(t, r, sdk.WithErrorPolicy(sdk.SuppressErrors))
	resp, err = suppressing.Ok(context.Background(), "unknown route", params.Params{"base_uri": r.url + "/missing"})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

// TestE2E_Middleware reports failing requests of an instrumented handler
func TestE2E_Middleware(t *testing.T) {
	r := startReceiver(t)
	client := newClient(t, r)

	app := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(httpx.Middleware(client)(app))
	defer srv.Close()

	for _, path := range []string{"/ok", "/fail"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return len(r.list(t, "nightly-backup")) == 1
	}, 5*time.Second, 20*time.Millisecond)

	events := r.list(t, "nightly-backup")
	assert.Equal(t, int(levels.Error), events[0].StatusCode)
	assert.Equal(t, "GET /fail 500", events[0].StatusRemark)
}

// TestE2E_RuntimeHeartbeat runs the runtime collector against the receiver
func TestE2E_RuntimeHeartbeat(t *testing.T) {
	r := startReceiver(t)
	client := newClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.NewCollector(client, time.Hour, nil).Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(r.list(t, "nightly-backup")) == 1
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	event := r.list(t, "nightly-backup")[0]
	assert.Equal(t, "runtime heartbeat", event.StatusRemark)

	keys := make([]string, 0, len(event.Metrics))
	for _, m := range event.Metrics {
		keys = append(keys, m.Key)
	}
	assert.Contains(t, keys, "go_goroutines")
	assert.Contains(t, keys, "go_memory_heap_bytes")
}
