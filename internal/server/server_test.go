// Package server_test contains the unit tests for the server package.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	v1 "github.com/ASHISH26940/heliokv/api/v1"
	"github.com/ASHISH26940/heliokv/internal/events"
	"github.com/ASHISH26940/heliokv/internal/store"
	"github.com/ASHISH26940/heliokv/internal/telemetry"
	"golang.org/x/net/websocket"
)

// unavailableBackend fails every call the way a timed-out raft apply does.
type unavailableBackend struct{}

var errUnavailable = errors.New("apply CREATE: timed out enqueuing operation")

func (unavailableBackend) Insert(int64, int64, []byte) (store.Entry, error) {
	return store.Entry{}, errUnavailable
}
func (unavailableBackend) Get(int64) (store.Entry, error) { return store.Entry{}, errUnavailable }
func (unavailableBackend) CompareAndUpdate(int64, int64, int64, []byte) (store.Entry, error) {
	return store.Entry{}, errUnavailable
}
func (unavailableBackend) Delete(int64) (store.Entry, error) { return store.Entry{}, errUnavailable }

func do(t *testing.T, srv http.Handler, method, path, body string) (*httptest.ResponseRecorder, v1.Result) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	var res v1.Result
	if rr.Code != http.StatusBadRequest && rr.Code != http.StatusServiceUnavailable {
		if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
			t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, res
}

func TestKVHandlers(t *testing.T) {
	srv := New(store.NewStore(), Options{})

	// --- Test Case 1: Create a new key ---
	// "aGVsbG8=" is base64 for "hello".
	rr, res := do(t, srv, http.MethodPost, "/kv/1", `{"timestamp":100,"data":"aGVsbG8="}`)
	if rr.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if res.Status != v1.StatusOK || res.Version != 1 {
		t.Errorf("expected ok at version 1, got %+v", res)
	}

	// --- Test Case 2: Read the key ---
	rr, res = do(t, srv, http.MethodGet, "/kv/1", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if res.Version != 1 || res.Timestamp != 100 || string(res.Data) != "hello" {
		t.Errorf("unexpected read result: %+v", res)
	}

	// --- Test Case 3: Duplicate create returns the existing entry ---
	rr, res = do(t, srv, http.MethodPost, "/kv/1", `{"timestamp":200,"data":"b3RoZXI="}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	if res.Status != v1.StatusConflict || res.Timestamp != 100 || string(res.Data) != "hello" {
		t.Errorf("expected conflict echoing the stored entry, got %+v", res)
	}

	// --- Test Case 4: Update with the current version ---
	rr, res = do(t, srv, http.MethodPut, "/kv/1", `{"version":1,"timestamp":300,"data":"d29ybGQ="}`)
	if rr.Code != http.StatusOK || res.Version != 2 || string(res.Data) != "world" {
		t.Errorf("expected update to version 2, got %d %+v", rr.Code, res)
	}

	// --- Test Case 5: Update with a stale version ---
	rr, res = do(t, srv, http.MethodPut, "/kv/1", `{"version":1,"timestamp":400,"data":""}`)
	if rr.Code != http.StatusConflict || res.Version != 2 {
		t.Errorf("expected conflict reporting version 2, got %d %+v", rr.Code, res)
	}

	// --- Test Case 6: Read a non-existent key ---
	rr, res = do(t, srv, http.MethodGet, "/kv/2", "")
	if rr.Code != http.StatusNotFound || res.Status != v1.StatusNotFound {
		t.Errorf("expected not found, got %d %+v", rr.Code, res)
	}

	// --- Test Case 7: Delete, then read and recreate ---
	rr, res = do(t, srv, http.MethodDelete, "/kv/1", "")
	if rr.Code != http.StatusOK || res.Version != 2 || res.Data != nil {
		t.Errorf("expected delete to report version 2 without data, got %d %+v", rr.Code, res)
	}
	rr, _ = do(t, srv, http.MethodGet, "/kv/1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected key to be deleted, got %d", rr.Code)
	}
	rr, _ = do(t, srv, http.MethodDelete, "/kv/1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected second delete to be not found, got %d", rr.Code)
	}
	_, res = do(t, srv, http.MethodPost, "/kv/1", `{"timestamp":500}`)
	if res.Version != 1 {
		t.Errorf("expected recreated key at version 1, got %d", res.Version)
	}
}

func TestBadRequests(t *testing.T) {
	srv := New(store.NewStore(), Options{})

	cases := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/kv/abc", ""},
		{http.MethodPost, "/kv/1", ""},
		{http.MethodPost, "/kv/1", `{"timestamp":"soon"}`},
		{http.MethodPut, "/kv/1", `{"version":1,"extra":true}`},
	}
	for _, c := range cases {
		rr, _ := do(t, srv, c.method, c.path, c.body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s %s %q: expected status %d, got %d", c.method, c.path, c.body, http.StatusBadRequest, rr.Code)
		}
	}
}

func TestBackendFailure(t *testing.T) {
	srv := New(unavailableBackend{}, Options{})

	rr, _ := do(t, srv, http.MethodPost, "/kv/1", `{"timestamp":1}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	var body v1.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Errorf("expected an error body, got %q", rr.Body.String())
	}
}

func TestConcurrentUpdatesOverHTTP(t *testing.T) {
	srv := New(store.NewStore(), Options{})
	do(t, srv, http.MethodPost, "/kv/9", `{"timestamp":1}`)

	const n = 32
	codes := make([]int, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, "/kv/9", strings.NewReader(`{"version":1,"timestamp":2}`))
			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	if ok != 1 || conflict != n-1 {
		t.Errorf("expected 1 ok and %d conflicts, got %d ok and %d conflicts", n-1, ok, conflict)
	}
}

func TestGreetHealthAndRequestID(t *testing.T) {
	srv := New(store.NewStore(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/greet/maria", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	var greet v1.GreetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &greet); err != nil || greet.Message != "Hello maria" {
		t.Errorf("expected 'Hello maria', got %q (%v)", rr.Body.String(), err)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id header")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if got := rr.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestGreetNames(t *testing.T) {
	srv := New(store.NewStore(), Options{})

	cases := []struct {
		path, want string
	}{
		{"/greet", "Hello world"},
		{"/greet/", "Hello world"},
		{"/greet/ana", "Hello ana"},
		{"/greet/a%2Fb", "Hello a/b"},
		{"/greet/100%25", "Hello 100%"},
		{"/greet/a%2F100%25", "Hello a/100%"},
		{"/greet/jo%C3%A3o%20silva", "Hello joão silva"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d", c.path, http.StatusOK, rr.Code)
			continue
		}
		var greet v1.GreetResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &greet); err != nil || greet.Message != c.want {
			t.Errorf("%s: expected %q, got %q (%v)", c.path, c.want, rr.Body.String(), err)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	// --- Test Case 1: Disabled without a sink ---
	srv := New(store.NewStore(), Options{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	// --- Test Case 2: Operations show up as counters ---
	m, sink, err := telemetry.New()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	srv = New(store.NewStore(), Options{Metrics: m, Sink: sink})
	do(t, srv, http.MethodPost, "/kv/1", `{"timestamp":1}`)
	do(t, srv, http.MethodGet, "/kv/1", "")

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "heliokv.op.create") {
		t.Errorf("expected create counter in metrics, got %s", rr.Body.String())
	}
}

func TestWatch(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()
	srv := New(store.NewStore(), Options{Bus: bus})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/watch"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("failed to dial watch endpoint: %v", err)
	}
	defer ws.Close()

	// Wait until the handler has subscribed before mutating.
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	do(t, srv, http.MethodPost, "/kv/5", `{"timestamp":1}`)
	do(t, srv, http.MethodPut, "/kv/5", `{"version":1,"timestamp":2}`)
	do(t, srv, http.MethodPut, "/kv/5", `{"version":1,"timestamp":3}`) // conflict, no event
	do(t, srv, http.MethodDelete, "/kv/5", "")

	do(t, srv, http.MethodPost, "/kv/5", `{"timestamp":4}`)

	want := []struct {
		typ     events.Type
		version int64
	}{
		{events.TypeCreated, 1},
		{events.TypeUpdated, 2},
		{events.TypeDeleted, 2},
		{events.TypeCreated, 1},
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var lastRev int64
	for i, w := range want {
		var ev events.Event
		if err := websocket.JSON.Receive(ws, &ev); err != nil {
			t.Fatalf("event %d: receive failed: %v", i, err)
		}
		if ev.Type != w.typ || ev.Key != 5 || ev.Version != w.version {
			t.Errorf("event %d: expected %s v%d on key 5, got %+v", i, w.typ, w.version, ev)
		}
		// The recreate restarts at version 1; the revision keeps it after the delete.
		if ev.Revision <= lastRev {
			t.Errorf("event %d: expected revision above %d, got %d", i, lastRev, ev.Revision)
		}
		lastRev = ev.Revision
	}
}
