package app

import (
	"context"
	"log"
	"net/http"

	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/config"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/httpapi"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/ingest"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/metrics"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/store"
	"github.com/ShlokNambiar/voice-assistant-dashboard/internal/watch"
)

// App wires the ingestion pipeline components together.
type App struct {
	cfg     config.Config
	store   *store.SQLite
	ingest  *ingest.Service
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	counter := metrics.New()
	svc := ingest.New(cfg, st, counter)
	watcher := watch.New(cfg, svc)
	mux := http.NewServeMux()
	router := httpapi.NewRouter(cfg, st, svc, counter)
	router.Register(mux)
	return &App{cfg: cfg, store: st, ingest: svc, watcher: watcher, mux: mux}, nil
}

// Run starts the spool watcher and HTTP server, stopping on ctx cancel.
func (a *App) Run(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
		_ = a.store.Close()
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	return srv.ListenAndServe()
}

func (a *App) Ingest() *ingest.Service { return a.ingest }
func (a *App) Store() *store.SQLite    { return a.store }
func (a *App) Mux() *http.ServeMux     { return a.mux }
