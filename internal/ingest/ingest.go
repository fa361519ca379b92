// Package ingest runs webhook payload batches through normalization and
// persistence, isolating failures per item.
package ingest

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/config"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/metrics"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/normalize"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/store"
)

// Batch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// ItemError reports one failed payload within a batch.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result aggregates per-item outcomes for one batch.
type Result struct {
	Total   int         `json:"total"`
	Saved   int         `json:"saved"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// Outcome classifies the batch: ok when every item saved, failed when none
// did, partial otherwise. Duplicates count as processed, not failed.
func (r Result) Outcome() string {
	if r.Failed == 0 {
		return OutcomeOK
	}
	if r.Saved == 0 && r.Skipped == 0 {
		return OutcomeFailed
	}
	return OutcomePartial
}

// Service ties the normalizer to the store under the configured upsert
// policy.
type Service struct {
	cfg     config.Config
	store   store.CallStore
	counter *metrics.Ingest
	now     func() time.Time
}

// New builds an ingestion service. A nil counter disables counting.
func New(cfg config.Config, st store.CallStore, counter *metrics.Ingest) *Service {
	return &Service{cfg: cfg, store: st, counter: counter, now: config.Now}
}

// ProcessBatch handles each payload independently and in order. One bad
// item never aborts its siblings; there is no cross-item transaction.
func (s *Service) ProcessBatch(ctx context.Context, items []map[string]any) Result {
	res := Result{Total: len(items)}
	for _, item := range items {
		s.processOne(ctx, item, &res)
	}
	if s.counter != nil {
		s.counter.Record(res.Saved, res.Failed, res.Skipped)
	}
	log.Printf("ingest: total=%d saved=%d failed=%d skipped=%d", res.Total, res.Saved, res.Failed, res.Skipped)
	return res
}

func (s *Service) processOne(ctx context.Context, item map[string]any, res *Result) {
	rec, err := normalize.Normalize(item, s.now())
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, ItemError{ID: itemID(item), Error: err.Error()})
		return
	}

	rec, err = s.resolveCollision(ctx, rec)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, ItemError{ID: rec.ID, Error: err.Error()})
		return
	}

	if s.cfg.UpsertPolicy == config.UpsertMerge {
		if err := s.store.Merge(ctx, rec); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{ID: rec.ID, Error: err.Error()})
			return
		}
		res.Saved++
		return
	}

	inserted, err := s.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, ItemError{ID: rec.ID, Error: err.Error()})
		return
	}
	if inserted {
		res.Saved++
	} else {
		res.Skipped++
	}
}

// resolveCollision guards against upstream id reuse. When an incoming id
// already belongs to a stored call with a materially different caller, the
// record gets a fresh id so unrelated history is never overwritten or
// silently suppressed.
func (s *Service) resolveCollision(ctx context.Context, rec *normalize.NormalizedCall) (*normalize.NormalizedCall, error) {
	existing, err := s.store.GetByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.CallerName == rec.CallerName {
		return rec, nil
	}
	fresh := normalize.NewCallID(s.now())
	log.Printf("ingest: id %s reused by different caller %q, reassigned %s", rec.ID, rec.CallerName, fresh)
	rec.ID = fresh
	return rec, nil
}

func itemID(item map[string]any) string {
	for _, key := range []string{"id", "ID"} {
		switch v := item[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return "unknown"
}
