// Package web serves the calibration API and, in file-transfer mode, the
// data directory.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"torpedo/internal/flags"
	"torpedo/internal/sampler"
	"torpedo/internal/store"
	"torpedo/internal/wifi"
)

// TiltSource is the live sampler.
type TiltSource interface {
	Snapshot() sampler.Snapshot
}

// Scanner lists nearby networks.
type Scanner interface {
	Scan(ctx context.Context) ([]wifi.Network, error)
}

// Calibration is everything the calibration API reads and writes.
type Calibration struct {
	SettingsPath   string
	RegressionPath string
	Points         *store.Store
	Live           TiltSource
	// RequestMode asks the control loop to restart into another mode.
	RequestMode func(flags.Flag) error
	WiFi        Scanner
	Logs        *LogBuffer
	Info        Info
}

func (c *Calibration) Handler() http.Handler {
	r := newRouter(c.Logs, c.Info.Model)

	r.Get("/api/status", c.status)
	r.Get("/api/settings", c.getSettings)
	r.Post("/api/settings", c.postSettings)
	r.Get("/api/regression", c.getRegression)
	r.Post("/api/regression", c.postRegression)
	r.Get("/api/wifi/scan", c.scanWiFi)
	r.Post("/api/mode/ftp", c.requestMode(flags.Ftp))
	r.Post("/api/mode/working", c.requestMode(flags.FirstSleep))

	if c.Points != nil {
		r.Route("/api/calibration", func(r chi.Router) {
			r.Get("/points", c.listPoints)
			r.Post("/points", c.addPoint)
			r.Delete("/points", c.clearPoints)
			r.Delete("/points/{id}", c.deletePoint)
			r.Post("/fit", c.fit)
		})
	}
	return r
}

func newRouter(logs *LogBuffer, model string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/api/about", aboutHandler(model))
	if logs != nil {
		r.Method(http.MethodGet, "/api/logs", logs.Handler())
	}
	return r
}

// Serve runs h on listenAddr until ctx ends.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
