package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"torpedo/internal/board"
	"torpedo/internal/config"
	"torpedo/internal/flags"
	"torpedo/internal/gravity"
	"torpedo/internal/platform"
	"torpedo/internal/power"
	"torpedo/internal/publish"
	"torpedo/internal/sampler"
	"torpedo/internal/sleep"
	"torpedo/internal/store"
	"torpedo/internal/web"
	"torpedo/internal/wifi"
)

func main() {
	var configPath, dataDir string
	flag.StringVar(&configPath, "config", "/etc/torpedo/user_settings.yaml", "Path to YAML (or JSON) settings")
	flag.StringVar(&dataDir, "data", "/var/lib/torpedo", "Directory for flags, regression and calibration data")
	flag.Parse()

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}
	cfg, err := loadSettings(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	plat := platform.New(dataDir, cfg.Board.WLANIface)
	cause, err := plat.ResetCause()
	if err != nil {
		log.Printf("%v; treating boot as %s", err, cause)
	}

	flagStore, err := flags.NewStore(filepath.Join(dataDir, "flags"))
	if err != nil {
		log.Fatalf("flags: %v", err)
	}

	pins := board.DefaultPins()
	hw, err := board.Open(cfg.Board, pins)
	if err != nil {
		// The boot must still end in deep sleep or a reset.
		log.Printf("board init failed: %v; continuing without gpio", err)
		hw = board.WithoutGPIO(cfg.Board, pins)
	}
	defer hw.Close()

	model := board.Model()
	nm := wifi.New(cfg.Board.WLANIface)
	regressionPath := filepath.Join(dataDir, "regression.json")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var m *power.Machine
	deps := power.Deps{
		Flags:     flagStore,
		Platform:  plat,
		Scheduler: sleep.NewScheduler(hw, plat, pins.Sleep()),
		Board:     hw,
		Network:   nm,
		Settings:  cfg,
		LoadRegression: func() (gravity.Params, error) {
			return config.LoadRegression(regressionPath)
		},
		NewSink: publish.FromSettings,
		CalibrationServer: func(ctx context.Context, live *sampler.Service) error {
			pts, err := store.Open(filepath.Join(dataDir, "calibration.db"))
			if err != nil {
				return err
			}
			defer pts.Close()
			cal := &web.Calibration{
				SettingsPath:   configPath,
				RegressionPath: regressionPath,
				Points:         pts,
				Live:           live,
				RequestMode:    func(f flags.Flag) error { return m.RequestMode(f) },
				WiFi:           nm,
				Logs:           logs,
				Info:           web.Info{Mode: m.Mode().String(), ResetCause: m.Cause().String(), Model: model, DataDir: dataDir},
			}
			log.Printf("web: calibration server on %s", cfg.Web.Listen)
			return web.Serve(ctx, cfg.Web.Listen, cal.Handler())
		},
		FileServer: func(ctx context.Context) error {
			files := &web.Files{Dir: dataDir, Logs: logs, Model: model}
			log.Printf("web: file service for %s on %s", dataDir, cfg.Web.Listen)
			return web.Serve(ctx, cfg.Web.Listen, files.Handler())
		},
	}
	m = power.New(cause, deps)

	log.Printf("torpedo starting on %q", model)
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("power: %v", err)
	}
	log.Printf("torpedo stopping")
}

// loadSettings falls back to defaults when the file has not been written
// yet, so a fresh device still comes up with its access point.
func loadSettings(path string) (config.Settings, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: %s not found, using defaults", path)
		return config.Default(), nil
	}
	return cfg, err
}
