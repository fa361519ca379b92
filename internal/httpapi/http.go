// Package httpapi exposes the webhook, query, and ops endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/charts"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/config"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/dashboard"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/ingest"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/metrics"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/store"
)

// maxBodyBytes caps webhook request bodies.
const maxBodyBytes = 4 << 20

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg     config.Config
	store   store.CallStore
	ingest  *ingest.Service
	counter *metrics.Ingest
	now     func() time.Time
}

func NewRouter(cfg config.Config, st store.CallStore, svc *ingest.Service, counter *metrics.Ingest) *Router {
	return &Router{cfg: cfg, store: st, ingest: svc, counter: counter, now: config.Now}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/webhook", r.webhook)
	mux.HandleFunc("/api/calls", r.calls)
	mux.HandleFunc("/api/metrics", r.dashboardMetrics)
	mux.HandleFunc("/api/charts/calls-per-day.png", r.chartDaily)
	mux.HandleFunc("/api/charts/duration.png", r.chartDuration)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
}

// webhook accepts POSTed call payloads and serves the record set on GET,
// mirroring the single route the upstream automation was built against.
func (r *Router) webhook(w http.ResponseWriter, req *http.Request) {
	allowCORS(w)
	switch req.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		r.receive(w, req)
	case http.MethodGet:
		r.list(w, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) receive(w http.ResponseWriter, req *http.Request) {
	items, err := decodeItems(req.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("invalid json: %v", err),
		})
		return
	}

	res := r.ingest.ProcessBatch(req.Context(), items)

	status := http.StatusOK
	switch res.Outcome() {
	case ingest.OutcomePartial:
		status = http.StatusMultiStatus
	case ingest.OutcomeFailed:
		status = http.StatusUnprocessableEntity
	}
	body := map[string]any{
		"success":   res.Failed == 0,
		"processed": res,
	}
	if len(res.Errors) > 0 {
		body["errors"] = res.Errors
	}
	respondJSON(w, status, body)
}

// decodeItems reads the body as either one call object or an array of
// them. Anything else is a request-level parse error, reported before any
// item is processed.
func decodeItems(body io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		items := make([]map[string]any, 0, len(v))
		for i, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is not an object", i)
			}
			items = append(items, obj)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("body must be an object or array of objects")
	}
}

func (r *Router) calls(w http.ResponseWriter, req *http.Request) {
	allowCORS(w)
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.list(w, req)
}

// list returns every stored call, newest first. A store failure degrades
// to an empty, explicitly flagged payload so the dashboard stays up, and
// so a real outage is never mistaken for a day with zero calls.
func (r *Router) list(w http.ResponseWriter, req *http.Request) {
	calls, err := r.store.ListAll(req.Context())
	if err != nil {
		log.Printf("httpapi: list calls: %v", err)
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  false,
			"degraded": true,
			"count":    0,
			"data":     []normalize.NormalizedCall{},
			"error":    "call store unavailable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(calls),
		"data":    calls,
	})
}

func (r *Router) dashboardMetrics(w http.ResponseWriter, req *http.Request) {
	allowCORS(w)
	calls, err := r.store.ListAll(req.Context())
	if err != nil {
		log.Printf("httpapi: metrics: %v", err)
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  false,
			"degraded": true,
			"metrics":  dashboard.Compute(nil, r.cfg.InitialBalance, r.now()),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"metrics":     dashboard.Compute(calls, r.cfg.InitialBalance, r.now()),
		"callsPerDay": dashboard.CallsPerDay(calls, r.now()),
		"durations":   dashboard.DurationBuckets(calls),
	})
}

func (r *Router) chartDaily(w http.ResponseWriter, req *http.Request) {
	allowCORS(w)
	calls, err := r.store.ListAll(req.Context())
	if err != nil {
		http.Error(w, "call store unavailable", http.StatusServiceUnavailable)
		return
	}
	series := dashboard.CallsPerDay(calls, r.now())
	labels := make([]string, len(series))
	values := make([]int, len(series))
	for i, pt := range series {
		values[i] = pt.Calls
		// Every other label keeps the narrow day slots readable.
		if i%2 == 0 {
			labels[i] = pt.Date
		}
	}
	r.servePNG(w, "Calls Per Day", labels, values)
}

func (r *Router) chartDuration(w http.ResponseWriter, req *http.Request) {
	allowCORS(w)
	calls, err := r.store.ListAll(req.Context())
	if err != nil {
		http.Error(w, "call store unavailable", http.StatusServiceUnavailable)
		return
	}
	buckets := dashboard.DurationBuckets(calls)
	labels := make([]string, len(buckets))
	values := make([]int, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Name
		values[i] = b.Value
	}
	r.servePNG(w, "Call Duration", labels, values)
}

func (r *Router) servePNG(w http.ResponseWriter, title string, labels []string, values []int) {
	img, err := charts.RenderBars(title, labels, values)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		log.Printf("httpapi: write chart: %v", err)
	}
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	count, err := r.store.Count(req.Context())
	if err != nil {
		log.Printf("httpapi: status count: %v", err)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"calls":         count,
		"ingest":        r.counter.Snapshot(),
		"upsert_policy": r.cfg.UpsertPolicy,
		"environment":   r.cfg.Environment,
	})
}

func allowCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
