// Package app wires the frame source, motion detector, and reactions
// into the main processing loop.
package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/hammycam/internal/capture"
	"github.com/ayusman/hammycam/internal/config"
	"github.com/ayusman/hammycam/internal/motion"
	"github.com/ayusman/hammycam/internal/reaction"
)

// Config holds configuration options for the application.
type Config struct {
	// Source produces the frame stream. The app owns it after Start.
	Source capture.Source

	// Detector selects the variant: config.DetectorPercent or
	// config.DetectorContour.
	Detector string

	Percent motion.Config
	Contour motion.ContourConfig

	// Reactions are invoked, in order, for every confirmed motion
	// event.
	Reactions []reaction.Reaction

	// FPS paces the processing loop.
	FPS int

	// MaxFrames stops the run after N processed frames; 0 means
	// unlimited.
	MaxFrames int

	// SaveInterval writes every Nth processed frame under OutputDir;
	// 0 disables interval saving.
	SaveInterval int
	OutputDir    string

	// PublishFrames keeps the latest processed frame JPEG-encoded for
	// the HTTP stream and event snapshots.
	PublishFrames bool
}

// Stats tracks run counters for the end-of-run summary.
type Stats struct {
	FramesProcessed int
	MotionEvents    int
	StartedAt       time.Time
	StoppedAt       time.Time
}

// Summary formats the run statistics the way the analyzer prints them
// at shutdown.
func (s Stats) Summary() string {
	end := s.StoppedAt
	if end.IsZero() {
		end = time.Now()
	}
	elapsed := end.Sub(s.StartedAt)

	avgFPS := 0.0
	if elapsed > 0 {
		avgFPS = float64(s.FramesProcessed) / elapsed.Seconds()
	}
	return fmt.Sprintf("frames=%d motion_events=%d elapsed=%.1fs avg_fps=%.1f",
		s.FramesProcessed, s.MotionEvents, elapsed.Seconds(), avgFPS)
}

// App is the main application that drives frame acquisition, motion
// detection, and reaction dispatch.
type App struct {
	config  Config
	source  capture.Source
	percent *motion.Detector
	contour *motion.ContourDetector

	// prevFrame is the percentage detector's caller-held previous
	// frame. Owned exclusively by the pipeline goroutine.
	prevFrame gocv.Mat

	reactions []reaction.Reaction
	enabled   bool
	mu        sync.RWMutex
	stopCh    chan struct{}
	done      chan struct{}

	stats     Stats
	lastEvent *reaction.Event

	frameMu  sync.RWMutex
	lastJPEG []byte
}

// New creates a new App. Detector construction failures abort here,
// before any frame is processed.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("no frame source configured")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}

	a := &App{
		config:    cfg,
		source:    cfg.Source,
		prevFrame: gocv.NewMat(),
		reactions: cfg.Reactions,
		enabled:   true,
	}

	var err error
	switch cfg.Detector {
	case config.DetectorContour:
		a.contour, err = motion.NewContour(cfg.Contour)
	case config.DetectorPercent, "":
		a.percent, err = motion.New(cfg.Percent)
	default:
		err = fmt.Errorf("unknown detector %q", cfg.Detector)
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// AddReaction registers an additional reaction. Not safe to call after
// Start.
func (a *App) AddReaction(r reaction.Reaction) {
	a.reactions = append(a.reactions, r)
}

// SetEnabled arms or disarms detection. While disarmed, frames are
// still read (so the source keeps flowing) but not analyzed.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether detection is currently armed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the source and begins the processing loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.source.Open(); err != nil {
		return fmt.Errorf("open source %s: %w", a.source.Name(), err)
	}

	a.stats = Stats{StartedAt: time.Now()}
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline()

	log.Printf("Pipeline started: source=%s detector=%s fps=%d",
		a.source.Name(), a.detectorName(), a.config.FPS)
	return nil
}

// Stop halts the processing loop and releases every resource the run
// held open. Safe to call more than once.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	done := a.done
	a.mu.Unlock()

	// Wait for the loop to exit before releasing its resources.
	<-done

	if err := a.source.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}

	if a.contour != nil {
		a.contour.Close()
	}
	if !a.prevFrame.Empty() {
		a.prevFrame.Close()
		a.prevFrame = gocv.NewMat()
	}

	a.mu.Lock()
	a.stats.StoppedAt = time.Now()
	summary := a.stats.Summary()
	a.mu.Unlock()

	log.Printf("Pipeline stopped: %s", summary)
}

// Done is closed when the processing loop exits, whether from Stop,
// MaxFrames, or a fatal acquisition failure.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Stats returns a copy of the run counters.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// LastEvent returns the most recent motion event, if any.
func (a *App) LastEvent() (reaction.Event, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastEvent == nil {
		return reaction.Event{}, false
	}
	return *a.lastEvent, true
}

// LatestFrame returns the most recent processed frame as JPEG bytes,
// or nil when publishing is off or no frame has arrived yet.
func (a *App) LatestFrame() []byte {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.lastJPEG
}

// Source returns the frame source.
func (a *App) Source() capture.Source {
	return a.source
}

func (a *App) detectorName() string {
	if a.contour != nil {
		return config.DetectorContour
	}
	return config.DetectorPercent
}
