// Package app wires configuration, events, metrics, the method manifest and the
// registry into one runnable castrpc process.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/castrpc/internal/config"
	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/commsutil"
	"github.com/morezero/castrpc/pkg/events"
	"github.com/morezero/castrpc/pkg/manifest"
	"github.com/morezero/castrpc/pkg/metrics"
	"github.com/morezero/castrpc/pkg/registry"
)

const logPrefix = "app:app"

// SetupLogging installs the default slog logger at the given LOG_LEVEL.
func SetupLogging(w io.Writer, level string) {
	l, err := config.ParseLogLevel(level)
	if err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})))
}

// NewParams configures New. Zero values fall back to the configuration.
type NewParams struct {
	// Manifest overrides loading from CASTRPC_MANIFEST_FILE and the default paths.
	Manifest *manifest.Manifest
	// Handlers implements the manifest's methods.
	Handlers manifest.Handlers
	// Publisher overrides the COMMS publisher built from COMMS_URL.
	Publisher events.EventPublisher
}

// App is a configured castrpc process.
type App struct {
	cfg      *config.Config
	nc       *comms.Conn
	reg      *registry.Registry
	metrics  *metrics.Collector
	manifest *manifest.Manifest
	compiled *manifest.Compiled
}

// New builds the registry, registers the built-in and manifest methods, but
// does not prepare them; call Finalize for that.
func New(cfg *config.Config, params NewParams) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	apperr.SetDevelopment(cfg.IsDevelopment())

	a := &App{cfg: cfg, metrics: metrics.NewCollector("castrpc")}

	m := params.Manifest
	if m == nil {
		var err error
		m, err = manifest.LoadManifest(cfg.ManifestFile)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load manifest: %w", logPrefix, err)
		}
	}
	a.manifest = m

	publisher := params.Publisher
	if publisher == nil {
		p, err := a.newPublisher()
		if err != nil {
			return nil, err
		}
		publisher = p
	}

	regConfig := registry.DefaultConfig()
	regConfig.DefaultEnvelope = cfg.DefaultEnvelope
	if m.DefaultEnvelope != "" {
		regConfig.DefaultEnvelope = m.DefaultEnvelope
	}
	regConfig.Env = cfg.Env
	regConfig.CallRateLimit = cfg.CallRateLimit
	regConfig.CallBurst = cfg.CallBurst

	a.reg = registry.NewRegistry(registry.NewRegistryParams{
		Publisher: publisher,
		Metrics:   a.metrics,
		Config:    regConfig,
	})

	for _, method := range builtins(a.reg) {
		if err := a.reg.Register(method); err != nil {
			a.Close()
			return nil, fmt.Errorf("%s - failed to register %s: %w", logPrefix, method.Name, err)
		}
	}

	compiled, err := manifest.Register(a.reg, m, params.Handlers)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s - failed to register manifest %s: %w", logPrefix, m.Name, err)
	}
	a.compiled = compiled

	slog.Info(fmt.Sprintf("%s - Loaded manifest %s@%s methods=%d records=%d",
		logPrefix, m.Name, m.Version, len(compiled.Methods), len(compiled.Records)))
	return a, nil
}

// newPublisher connects to COMMS when COMMS_URL is set; otherwise events are dropped.
func (a *App) newPublisher() (events.EventPublisher, error) {
	if a.cfg.COMMSURL == "" {
		slog.Info(fmt.Sprintf("%s - COMMS_URL not set, events disabled", logPrefix))
		return &events.NoOpPublisher{}, nil
	}

	codec, err := commsutil.CodecFor(a.cfg.EventEncoding)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	nc, err := commsutil.Connect(a.cfg.COMMSURL, a.cfg.COMMSName)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	a.nc = nc

	return events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
		SubjectPrefix: a.cfg.EventSubject,
		Codec:         codec,
	}), nil
}

// Finalize prepares every registered method. The returned error joins all
// preparation failures; the app stays usable and reports them through health.
func (a *App) Finalize() error {
	return a.reg.Finalize()
}

// Registry returns the app's registry.
func (a *App) Registry() *registry.Registry { return a.reg }

// Metrics returns the Prometheus collector the registry records into.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Manifest returns the loaded manifest.
func (a *App) Manifest() *manifest.Manifest { return a.manifest }

// Compiled returns the compiled manifest records and methods.
func (a *App) Compiled() *manifest.Compiled { return a.compiled }

// Config returns the app configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Close drains the COMMS connection, flushing pending events.
func (a *App) Close() {
	if a.nc == nil {
		return
	}
	if err := a.nc.Drain(); err != nil {
		slog.Warn(fmt.Sprintf("%s - COMMS drain failed: %v", logPrefix, err))
	}
	a.nc = nil
}

// Handler serves /metrics and /health.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		h := a.reg.Health()
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(h); err != nil {
			slog.Error(fmt.Sprintf("%s - health encode: %v", logPrefix, err))
		}
	})
	return mux
}

// Serve runs the metrics and health endpoint on CASTRPC_METRICS_ADDR until ctx
// is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info(fmt.Sprintf("%s - Metrics server listening on %s", logPrefix, a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s - metrics server: %w", logPrefix, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info(fmt.Sprintf("%s - Shutting down", logPrefix))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s - shutdown: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
