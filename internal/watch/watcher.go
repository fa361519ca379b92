// Package watch ingests webhook payload files dropped into a spool
// directory, for replaying captured deliveries without an HTTP sender.
package watch

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/config"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/ingest"
)

// Watcher monitors the spool directory for payload files.
type Watcher struct {
	cfg    config.Config
	ingest *ingest.Service
}

func New(cfg config.Config, svc *ingest.Service) *Watcher {
	return &Watcher{cfg: cfg, ingest: svc}
}

// Start begins watching. Files already present at startup are processed
// first so a restart never strands spooled payloads.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.EnableSpool {
		log.Println("spool watcher disabled")
		return nil
	}
	if err := os.MkdirAll(w.cfg.SpoolDir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.drainExisting(ctx)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isPayload(evt.Name) {
					w.processFile(ctx, evt.Name)
				}
			case err := <-watcher.Errors:
				log.Printf("spool watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.cfg.SpoolDir)
}

func (w *Watcher) drainExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.SpoolDir)
	if err != nil {
		log.Printf("spool scan: %v", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isPayload(e.Name()) {
			w.processFile(ctx, filepath.Join(w.cfg.SpoolDir, e.Name()))
		}
	}
}

// processFile feeds one payload file through the ingestion service and
// renames it by outcome so a file is never processed twice.
func (w *Watcher) processFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("spool read %s: %v", path, err)
		return
	}

	items, err := decodePayload(data)
	if err != nil {
		log.Printf("spool parse %s: %v", path, err)
		w.markDone(path, ".err")
		return
	}

	res := w.ingest.ProcessBatch(ctx, items)
	if res.Outcome() == ingest.OutcomeFailed {
		w.markDone(path, ".err")
		return
	}
	w.markDone(path, ".done")
}

func decodePayload(data []byte) ([]map[string]any, error) {
	var single map[string]any
	if err := json.Unmarshal(data, &single); err == nil {
		return []map[string]any{single}, nil
	}
	var batch []map[string]any
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (w *Watcher) markDone(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		log.Printf("spool rename %s: %v", path, err)
	}
}

func isPayload(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
