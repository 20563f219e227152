package app

import (
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/hammycam/internal/capture"
	"github.com/ayusman/hammycam/internal/config"
	"github.com/ayusman/hammycam/internal/motion"
	"github.com/ayusman/hammycam/internal/reaction"
)

// recorder captures dispatched events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []reaction.Event
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnMotion(e reaction.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Events() []reaction.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reaction.Event(nil), r.events...)
}

// colorFrame creates a BGR frame filled with val on every channel.
func colorFrame(val uint8) *gocv.Mat {
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	if val != 0 {
		m.SetTo(gocv.NewScalar(float64(val), float64(val), float64(val), 0))
	}
	return &m
}

func TestNew_InvalidConfigurationAborts(t *testing.T) {
	src := capture.NewMockSource(nil, false)

	_, err := New(Config{
		Source:   src,
		Detector: config.DetectorPercent,
		Percent:  motion.Config{DiffThreshold: 999, MinChangedPercent: 0.30},
	})
	if err == nil {
		t.Fatal("New() succeeded with an out-of-range diff threshold")
	}

	_, err = New(Config{
		Source:   src,
		Detector: config.DetectorContour,
		Contour:  motion.ContourConfig{DiffThreshold: 25, BlurKernel: 20, MinArea: 500},
	})
	if err == nil {
		t.Fatal("New() succeeded with an even blur kernel")
	}

	_, err = New(Config{Source: src, Detector: "sonar"})
	if err == nil {
		t.Fatal("New() succeeded with an unknown detector kind")
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Config{Detector: config.DetectorPercent}); err == nil {
		t.Fatal("New() succeeded without a source")
	}
}

func TestApp_SetEnabled(t *testing.T) {
	a, err := New(Config{
		Source:  capture.NewMockSource(nil, false),
		Percent: motion.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !a.IsEnabled() {
		t.Error("detection should be armed by default")
	}
	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Error("SetEnabled(false) did not disarm")
	}
}

func TestApp_RunToMaxFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black1 := colorFrame(0)
	defer black1.Close()
	black2 := colorFrame(0)
	defer black2.Close()
	white := colorFrame(255)
	defer white.Close()

	rec := &recorder{}
	a, err := New(Config{
		Source:    capture.NewMockSource([]*gocv.Mat{black1, black2, white}, false),
		Detector:  config.DetectorPercent,
		Percent:   motion.DefaultConfig(),
		Reactions: []reaction.Reaction{rec},
		FPS:       100,
		MaxFrames: 3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-a.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
	a.Stop()

	stats := a.Stats()
	if stats.FramesProcessed != 3 {
		t.Errorf("FramesProcessed = %d, want 3", stats.FramesProcessed)
	}
	if stats.MotionEvents != 1 {
		t.Errorf("MotionEvents = %d, want 1", stats.MotionEvents)
	}

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("recorded events = %d, want 1", len(events))
	}
	// Frame 1 has no reference, frame 2 is identical; only the
	// black-to-white transition at frame 3 is motion.
	if events[0].FrameIndex != 3 {
		t.Errorf("event FrameIndex = %d, want 3", events[0].FrameIndex)
	}
	if events[0].ChangedPercent < 50 {
		t.Errorf("event ChangedPercent = %f, want near 100", events[0].ChangedPercent)
	}
	if events[0].ID == "" {
		t.Error("event has no ID")
	}

	last, ok := a.LastEvent()
	if !ok || last.ID != events[0].ID {
		t.Error("LastEvent() does not match the dispatched event")
	}
}

func TestApp_ContourVariantPublishesFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := colorFrame(0)
	defer black.Close()
	white := colorFrame(255)
	defer white.Close()

	rec := &recorder{}
	a, err := New(Config{
		Source:        capture.NewMockSource([]*gocv.Mat{black, white}, false),
		Detector:      config.DetectorContour,
		Contour:       motion.DefaultContourConfig(),
		Reactions:     []reaction.Reaction{rec},
		FPS:           100,
		MaxFrames:     2,
		PublishFrames: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-a.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
	a.Stop()

	if jpeg := a.LatestFrame(); len(jpeg) == 0 {
		t.Error("LatestFrame() empty with PublishFrames on")
	}

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("recorded events = %d, want 1", len(events))
	}
	if len(events[0].Regions) == 0 {
		t.Error("contour event has no regions")
	}
	if len(events[0].Snapshot) == 0 {
		t.Error("contour event has no snapshot despite PublishFrames")
	}
}

func TestApp_StartStopIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := colorFrame(0)
	defer frame.Close()

	a, err := New(Config{
		Source:  capture.NewMockSource([]*gocv.Mat{frame}, true),
		Percent: motion.DefaultConfig(),
		FPS:     100,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	a.Stop()
	a.Stop() // must not panic or block
}
