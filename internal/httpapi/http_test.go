package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/config"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/ingest"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/metrics"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/store"
)

func setupTest(t *testing.T) *http.ServeMux {
	t.Helper()
	cfg := config.Config{UpsertPolicy: config.UpsertSkip, InitialBalance: 5000}
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return muxFor(cfg, st)
}

func muxFor(cfg config.Config, st store.CallStore) *http.ServeMux {
	counter := metrics.New()
	svc := ingest.New(cfg, st, counter)
	router := NewRouter(cfg, st, svc, counter)
	mux := http.NewServeMux()
	router.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, decoded
}

func TestWebhookSingleObject(t *testing.T) {
	mux := setupTest(t)
	rr, body := doJSON(t, mux, http.MethodPost, "/api/webhook",
		`{"id":"c1","caller_name":"Asha","call_start":"2026-08-30T10:00:00Z","call_end":"2026-08-30T10:02:00Z","cost":2.5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	processed := body["processed"].(map[string]any)
	if processed["saved"].(float64) != 1 {
		t.Fatalf("expected 1 saved, got %v", processed)
	}
}

func TestWebhookBatchPartial(t *testing.T) {
	mux := setupTest(t)
	rr, body := doJSON(t, mux, http.MethodPost, "/api/webhook",
		`[{"id":"c1"},{"id":"c2","call_start":"garbage"},{"id":"c3"}]`)
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", rr.Code)
	}
	processed := body["processed"].(map[string]any)
	if processed["total"].(float64) != 3 || processed["saved"].(float64) != 2 || processed["failed"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", processed)
	}
	errs := body["errors"].([]any)
	if len(errs) != 1 || errs[0].(map[string]any)["id"] != "c2" {
		t.Fatalf("expected c2 in errors, got %v", errs)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	mux := setupTest(t)
	rr, body := doJSON(t, mux, http.MethodPost, "/api/webhook", `{"id": "unterminated`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body["success"] != false {
		t.Fatalf("expected failure marker, got %v", body)
	}
}

func TestWebhookNonObjectElement(t *testing.T) {
	mux := setupTest(t)
	rr, _ := doJSON(t, mux, http.MethodPost, "/api/webhook", `[1,2,3]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookGetReturnsCalls(t *testing.T) {
	mux := setupTest(t)
	doJSON(t, mux, http.MethodPost, "/api/webhook", `{"id":"c1","caller_name":"Asha"}`)

	rr, body := doJSON(t, mux, http.MethodGet, "/api/webhook", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("expected 1 call, got %v", body)
	}
	data := body["data"].([]any)
	first := data[0].(map[string]any)
	if first["caller_name"] != "Asha" {
		t.Fatalf("unexpected record %v", first)
	}
	if _, ok := first["success_flag"]; !ok {
		t.Fatal("success_flag must be present even when unknown")
	}
	if first["success_flag"] != nil {
		t.Fatalf("expected null success_flag, got %v", first["success_flag"])
	}
}

func TestCORSPreflight(t *testing.T) {
	mux := setupTest(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/webhook", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestDashboardMetricsEndpoint(t *testing.T) {
	mux := setupTest(t)
	doJSON(t, mux, http.MethodPost, "/api/webhook", `{"id":"c1","duration":90,"cost":10,"success_flag":true}`)

	rr, body := doJSON(t, mux, http.MethodGet, "/api/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	m := body["metrics"].(map[string]any)
	if m["totalCalls"].(float64) != 1 {
		t.Fatalf("unexpected metrics %v", m)
	}
	if m["successRate"] != "100%" {
		t.Fatalf("unexpected success rate %v", m["successRate"])
	}
	if len(body["callsPerDay"].([]any)) != 14 {
		t.Fatal("expected 14-day series")
	}
}

func TestChartEndpointServesPNG(t *testing.T) {
	mux := setupTest(t)
	for _, path := range []string{"/api/charts/duration.png", "/api/charts/calls-per-day.png"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
			t.Fatalf("%s: unexpected content type %s", path, ct)
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
			t.Fatalf("%s: body is not a PNG", path)
		}
		// Charts are fetched cross-origin by the same dashboard as the JSON.
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s: missing CORS header", path)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := setupTest(t)
	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux := setupTest(t)
	doJSON(t, mux, http.MethodPost, "/api/webhook", `{"id":"c1"}`)

	rr, body := doJSON(t, mux, http.MethodGet, "/ops/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if body["calls"].(float64) != 1 {
		t.Fatalf("unexpected status body %v", body)
	}
	snap := body["ingest"].(map[string]any)
	if snap["saved"].(float64) != 1 {
		t.Fatalf("counter not recorded: %v", snap)
	}
}

// failingStore simulates an unreachable backing database.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) InsertIfAbsent(context.Context, *normalize.NormalizedCall) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Merge(context.Context, *normalize.NormalizedCall) error { return errStoreDown }
func (failingStore) GetByID(context.Context, string) (*normalize.NormalizedCall, error) {
	return nil, errStoreDown
}
func (failingStore) ListAll(context.Context) ([]normalize.NormalizedCall, error) {
	return nil, errStoreDown
}
func (failingStore) Count(context.Context) (int, error) { return 0, errStoreDown }
func (failingStore) Health(context.Context) error       { return errStoreDown }

func TestQueryDegradesWhenStoreDown(t *testing.T) {
	cfg := config.Config{UpsertPolicy: config.UpsertSkip, InitialBalance: 5000}
	mux := muxFor(cfg, failingStore{})

	rr, body := doJSON(t, mux, http.MethodGet, "/api/calls", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("query must not hard-fail, got %d", rr.Code)
	}
	if body["degraded"] != true || body["success"] != false {
		t.Fatalf("expected degraded marker, got %v", body)
	}
	if body["count"].(float64) != 0 {
		t.Fatalf("expected zero count, got %v", body)
	}
}

func TestIngestSurfacesStoreErrors(t *testing.T) {
	cfg := config.Config{UpsertPolicy: config.UpsertSkip, InitialBalance: 5000}
	mux := muxFor(cfg, failingStore{})

	rr, body := doJSON(t, mux, http.MethodPost, "/api/webhook", `{"id":"c1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	processed := body["processed"].(map[string]any)
	if processed["failed"].(float64) != 1 {
		t.Fatalf("expected store error surfaced per item, got %v", processed)
	}
}
