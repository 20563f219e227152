package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/hammycam/internal/app"
	"github.com/ayusman/hammycam/internal/capture"
	"github.com/ayusman/hammycam/internal/config"
	"github.com/ayusman/hammycam/internal/motion"
	"github.com/ayusman/hammycam/internal/reaction"
	"github.com/ayusman/hammycam/internal/server"
	"github.com/ayusman/hammycam/internal/store"
	"github.com/ayusman/hammycam/internal/tray"
)

func main() {
	var (
		configPath   = flag.String("config", "hammycam.toml", "path to TOML config file")
		sourceKind   = flag.String("source", "", "camera source: fake, webcam, video, image")
		sourcePath   = flag.String("path", "", "path to video/image/frame file")
		device       = flag.Int("device", -1, "webcam device ID (-1 probes 0-2)")
		detector     = flag.String("detector", "", "motion detector: percent or contour")
		fps          = flag.Int("fps", 0, "frames per second to process")
		maxFrames    = flag.Int("max-frames", 0, "stop after N frames (0 = unlimited)")
		saveInterval = flag.Int("save-interval", 0, "save every Nth frame (0 = off)")
		outputDir    = flag.String("output-dir", "", "directory for saved frames")
		addr         = flag.String("addr", "", "HTTP listen address")
		noServer     = flag.Bool("no-server", false, "disable the HTTP server")
		useTray      = flag.Bool("tray", false, "run with a system tray toggle")
	)
	flag.Parse()

	fmt.Println("HammyCam - Motion Detection")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(&cfg, *sourceKind, *sourcePath, *device, *detector, *fps,
		*maxFrames, *saveInterval, *outputDir, *addr, *noServer)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	source, err := buildSource(cfg.Camera)
	if err != nil {
		log.Fatalf("Failed to build source: %v", err)
	}

	// Events persist to SQLite, defaulting to ~/.hammycam when the
	// config does not name a db_path.
	var st *store.Store
	if path := dbPath(cfg); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		st, err = store.New(path)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
		defer st.Close()
	}

	reactions := []reaction.Reaction{reaction.NewLogReaction()}
	if st != nil {
		reactions = append(reactions, reaction.NewStoreReaction(st))
	}
	if cfg.Capture.SnapshotOnMotion {
		snap, err := reaction.NewSnapshotReaction(cfg.Capture.OutputDir)
		if err != nil {
			log.Fatalf("Failed to set up snapshots: %v", err)
		}
		reactions = append(reactions, snap)
	}

	var hub *server.EventsHub
	if cfg.Server.Enabled {
		hub = server.NewEventsHub()
		reactions = append(reactions, hub)
	}

	application, err := app.New(app.Config{
		Source:        source,
		Detector:      cfg.Motion.Detector,
		Percent:       percentConfig(cfg),
		Contour:       contourConfig(cfg),
		Reactions:     reactions,
		FPS:           cfg.Camera.FPS,
		MaxFrames:     cfg.Capture.MaxFrames,
		SaveInterval:  cfg.Capture.SaveInterval,
		OutputDir:     cfg.Capture.OutputDir,
		PublishFrames: cfg.Server.Enabled || cfg.Capture.SnapshotOnMotion,
	})
	if err != nil {
		log.Fatalf("Failed to build detector: %v", err)
	}

	if err := application.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			Store:  st,
			Frames: application,
			Hub:    hub,
		})
		go func() {
			log.Printf("HTTP server listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				log.Printf("HTTP server stopped: %v", err)
			}
		}()
	}

	if *useTray {
		runWithTray(application)
	} else {
		waitForShutdown(application)
	}

	application.Stop()
	fmt.Printf("Run summary: %s\n", application.Stats().Summary())
}

// waitForShutdown blocks until an interrupt arrives or the pipeline
// finishes on its own (max frames, fatal source failure).
func waitForShutdown(application *app.App) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	case <-application.Done():
	}
}

// runWithTray runs the blocking tray loop with the armed toggle bound
// to the pipeline. Interrupts still work.
func runWithTray(application *app.App) {
	t := tray.New()
	t.OnToggle(func(armed bool) {
		application.SetEnabled(armed)
		log.Printf("Detection armed: %v", armed)
	})

	go func() {
		waitForShutdown(application)
		t.Quit()
	}()

	t.Run()
}

// applyFlags overlays non-zero flag values onto the file config.
func applyFlags(cfg *config.Config, source, path string, device int, detector string,
	fps, maxFrames, saveInterval int, outputDir, addr string, noServer bool) {

	if source != "" {
		cfg.Camera.Source = source
	}
	if path != "" {
		cfg.Camera.Path = path
	}
	if device >= 0 {
		cfg.Camera.Device = device
	}
	if detector != "" {
		cfg.Motion.Detector = detector
	}
	if fps > 0 {
		cfg.Camera.FPS = fps
	}
	if maxFrames > 0 {
		cfg.Capture.MaxFrames = maxFrames
	}
	if saveInterval > 0 {
		cfg.Capture.SaveInterval = saveInterval
	}
	if outputDir != "" {
		cfg.Capture.OutputDir = outputDir
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if noServer {
		cfg.Server.Enabled = false
	}
}

// buildSource constructs the configured frame source.
func buildSource(cam config.CameraConfig) (capture.Source, error) {
	switch cam.Source {
	case config.SourceFake:
		return capture.NewFileSource(cam.Path), nil
	case config.SourceWebcam:
		return capture.NewWebcam(cam.Device), nil
	case config.SourceVideo:
		return capture.NewVideoFile(cam.Path), nil
	case config.SourceImage:
		return capture.NewStillImage(cam.Path), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cam.Source)
	}
}

func percentConfig(cfg config.Config) motion.Config {
	return motion.Config{
		DiffThreshold:     cfg.Motion.DiffThreshold,
		MinChangedPercent: cfg.Motion.MinChangedPercent,
	}
}

func contourConfig(cfg config.Config) motion.ContourConfig {
	return motion.ContourConfig{
		DiffThreshold:    cfg.Motion.DiffThreshold,
		BlurKernel:       cfg.Motion.BlurKernel,
		DilateIterations: cfg.Motion.DilateIterations,
		MinArea:          cfg.Motion.MinArea,
	}
}

// dbPath resolves the SQLite path, defaulting to ~/.hammycam when the
// config leaves it empty but persistence is wanted.
func dbPath(cfg config.Config) string {
	if cfg.Storage.DBPath != "" {
		return cfg.Storage.DBPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".hammycam", "hammycam.db")
}
