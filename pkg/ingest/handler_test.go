package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfish/bluecanary/pkg/storage"
	"github.com/brightfish/bluecanary/pkg/storage/memory"
)

const eventPath = "/api/v1/event/" + testUUID + "/nightly-backup"

var testSeries = storage.Series{UUID: testUUID, Counter: "nightly-backup"}

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/{version}/event/{uuid}/{counter}", h.HandleEvent).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/{version}/events/{uuid}/{counter}", h.HandleList).Methods(http.MethodGet)
	return r
}

// clock returns a now func that advances one second per call
func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandleEvent_Get(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)
	router := newTestRouter(h)

	rr := serve(t, router, http.MethodGet,
		eventPath+"?client_id=17&client_name=backup&status_code=4&status_remark=disk+full", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 0, resp.Metrics)

	events, err := store.List(context.Background(), storage.Query{Series: testSeries})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "v1", events[0].APIVersion)
	assert.Equal(t, testUUID, events[0].UUID)
	assert.Equal(t, "nightly-backup", events[0].Counter)
	assert.Equal(t, "17", events[0].ClientID)
	assert.Equal(t, 4, events[0].StatusCode)
	assert.Equal(t, "disk full", events[0].StatusRemark)
}

func TestHandleEvent_Post(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)
	router := newTestRouter(h)

	body := `{
		"client_id": 17,
		"status_code": 0,
		"status_remark": "done",
		"metrics": [
			{"key": "rows", "type": "int", "value": 1200},
			{"key": "elapsed", "type": "float", "value": 12.5, "unit": "s"}
		]
	}`
	rr := serve(t, router, http.MethodPost, eventPath, body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Metrics)

	events, err := store.List(context.Background(), storage.Query{Series: testSeries})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "17", events[0].ClientID)
	require.Len(t, events[0].Metrics, 2)
	assert.Equal(t, storage.Metric{Key: "elapsed", Type: "float", Value: 12.5, Unit: "s"}, events[0].Metrics[1])
}

func TestHandleEvent_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   string
	}{
		{
			name:   "invalid uuid",
			method: http.MethodGet,
			target: "/api/v1/event/not-a-uuid/nightly-backup?status_code=0",
			want:   "app uuid is invalid",
		},
		{
			name:   "invalid counter",
			method: http.MethodGet,
			target: "/api/v1/event/" + testUUID + "/short?status_code=0",
			want:   "counter name is invalid",
		},
		{
			name:   "missing status code",
			method: http.MethodGet,
			target: eventPath,
			want:   "StatusCode failed required",
		},
		{
			name:   "status code out of range",
			method: http.MethodGet,
			target: eventPath + "?status_code=9",
			want:   "StatusCode failed max=7",
		},
		{
			name:   "malformed body",
			method: http.MethodPost,
			target: eventPath,
			body:   `{"status_code":`,
			want:   "malformed JSON",
		},
		{
			name:   "unknown metric type",
			method: http.MethodPost,
			target: eventPath,
			body:   `{"status_code":0,"metrics":[{"key":"rows","type":"bool","value":1}]}`,
			want:   "invalid event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			router := newTestRouter(NewHandler(store, nil))

			rr := serve(t, router, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Contains(t, resp["message"], tt.want)

			stats, err := store.Stats(context.Background())
			require.NoError(t, err)
			assert.Zero(t, stats.TotalEvents)
		})
	}
}

type fakeChecker struct {
	used  int64
	limit int64
	err   error
}

func (f fakeChecker) GetUsage() (int64, error) { return f.used, f.err }
func (f fakeChecker) GetLimit() int64          { return f.limit }

func TestHandleEvent_StorageFull(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)
	h.SetStorageChecker(fakeChecker{used: 2048, limit: 1024})
	router := newTestRouter(h)

	rr := serve(t, router, http.MethodGet, eventPath+"?status_code=0", "")
	require.Equal(t, http.StatusInsufficientStorage, rr.Code)
	assert.Contains(t, rr.Body.String(), "storage limit reached")
}

func TestHandleEvent_StorageUsageUnknown(t *testing.T) {
	h := NewHandler(memory.New(), nil)
	h.SetStorageChecker(fakeChecker{limit: 1024, err: errors.New("walk failed")})
	router := newTestRouter(h)

	rr := serve(t, router, http.MethodGet, eventPath+"?status_code=0", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestHandleEvent_CardinalityLimit(t *testing.T) {
	h := NewHandler(memory.New(), nil)
	for i := 0; i < MaxCountersPerApp; i++ {
		h.tracker.Record(storage.Series{UUID: testUUID, Counter: fmt.Sprintf("counter-%d", i)})
	}
	router := newTestRouter(h)

	rr := serve(t, router, http.MethodGet, eventPath+"?status_code=0", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestHandleList(t *testing.T) {
	store := memory.New()
	h := NewHandler(store, nil)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = clock(start)
	router := newTestRouter(h)

	for _, code := range []string{"0", "4", "1", "6"} {
		rr := serve(t, router, http.MethodGet, eventPath+"?status_code="+code, "")
		require.Equal(t, http.StatusAccepted, rr.Code)
	}
	other := "/api/v1/event/" + testUUID + "/other-job?status_code=7"
	require.Equal(t, http.StatusAccepted, serve(t, router, http.MethodGet, other, "").Code)

	listPath := "/api/v1/events/" + testUUID + "/nightly-backup"

	list := func(t *testing.T, query string) []storage.Event {
		t.Helper()
		rr := serve(t, router, http.MethodGet, listPath+query, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp ListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, len(resp.Events), resp.Count)
		return resp.Events
	}

	codes := func(events []storage.Event) []int {
		out := make([]int, len(events))
		for i, e := range events {
			out[i] = e.StatusCode
		}
		return out
	}

	t.Run("newest first", func(t *testing.T) {
		assert.Equal(t, []int{6, 1, 4, 0}, codes(list(t, "")))
	})

	t.Run("limit", func(t *testing.T) {
		assert.Equal(t, []int{6, 1}, codes(list(t, "?limit=2")))
	})

	t.Run("min status", func(t *testing.T) {
		assert.Equal(t, []int{6, 4}, codes(list(t, "?min_status=3")))
	})

	t.Run("time range", func(t *testing.T) {
		since := start.Add(2 * time.Second).Format(time.RFC3339)
		until := start.Add(3 * time.Second).Format(time.RFC3339)
		assert.Equal(t, []int{1, 4}, codes(list(t, "?since="+since+"&until="+until)))
	})

	t.Run("empty series", func(t *testing.T) {
		rr := serve(t, router, http.MethodGet, "/api/v1/events/"+testUUID+"/never-seen", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"events":[],"count":0}`, rr.Body.String())
	})

	t.Run("invalid parameters", func(t *testing.T) {
		for _, q := range []string{"?limit=0", "?limit=abc", "?min_status=8", "?since=yesterday"} {
			rr := serve(t, router, http.MethodGet, listPath+q, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})
}

func TestHandleWebSocket_BroadcastsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewEventHub(nil)
	go hub.Run(ctx)

	h := NewHandler(memory.New(), nil)
	h.SetHub(hub)
	router := newTestRouter(h)
	router.HandleFunc("/v1/ws", h.HandleWebSocket(hub))

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + eventPath + "?status_code=5&status_remark=boom")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg EventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, 5, msg.Event.StatusCode)
	assert.Equal(t, "boom", msg.Event.StatusRemark)
	assert.Equal(t, "nightly-backup", msg.Event.Counter)
}
