// Package config loads the TOML configuration file that selects the
// frame source, detector variant, and reactions.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/hammycam/internal/motion"
)

// Source kinds accepted in [camera].source.
const (
	SourceFake   = "fake"
	SourceWebcam = "webcam"
	SourceVideo  = "video"
	SourceImage  = "image"
)

// Detector kinds accepted in [motion].detector.
const (
	DetectorPercent = "percent"
	DetectorContour = "contour"
)

// Config is the full daemon configuration.
type Config struct {
	Camera  CameraConfig  `toml:"camera"`
	Motion  MotionConfig  `toml:"motion"`
	Capture CaptureConfig `toml:"capture"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
}

// CameraConfig selects and parameterizes the frame source.
type CameraConfig struct {
	// Source is one of fake, webcam, video, image.
	Source string `toml:"source"`
	// Path is the video/image/frame-file path for file-backed sources.
	Path string `toml:"path"`
	// Device is the webcam device ID; -1 probes devices 0-2.
	Device int `toml:"device"`
	// FPS paces the processing loop.
	FPS int `toml:"fps"`
}

// MotionConfig selects and parameterizes the detector.
type MotionConfig struct {
	// Detector is "percent" or "contour".
	Detector          string  `toml:"detector"`
	DiffThreshold     int     `toml:"diff_threshold"`
	MinChangedPercent float64 `toml:"min_changed_percent"`
	BlurKernel        int     `toml:"blur_kernel"`
	DilateIterations  int     `toml:"dilate_iterations"`
	MinArea           float64 `toml:"min_area"`
}

// CaptureConfig controls frame persistence.
type CaptureConfig struct {
	// SaveInterval writes every Nth processed frame to OutputDir;
	// 0 disables interval saving.
	SaveInterval int `toml:"save_interval"`
	// SnapshotOnMotion writes the annotated frame of each motion event.
	SnapshotOnMotion bool   `toml:"snapshot_on_motion"`
	OutputDir        string `toml:"output_dir"`
	// MaxFrames stops the run after N processed frames; 0 means
	// unlimited.
	MaxFrames int `toml:"max_frames"`
}

// StorageConfig controls the SQLite event log.
type StorageConfig struct {
	// DBPath is the SQLite event log; empty falls back to
	// ~/.hammycam/hammycam.db.
	DBPath string `toml:"db_path"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Source: SourceFake,
			Path:   "web/current_frame.jpg",
			Device: -1,
			FPS:    10,
		},
		Motion: MotionConfig{
			Detector:          DetectorPercent,
			DiffThreshold:     motion.DefaultDiffThreshold,
			MinChangedPercent: motion.DefaultMinChangedPercent,
			BlurKernel:        motion.DefaultBlurKernel,
			DilateIterations:  motion.DefaultDilateIterations,
			MinArea:           motion.DefaultMinArea,
		},
		Capture: CaptureConfig{
			OutputDir: ".",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":8080",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// returns the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration before any component is built, so
// a bad file fails startup rather than the first frame.
func (c Config) Validate() error {
	switch c.Camera.Source {
	case SourceFake, SourceWebcam, SourceVideo, SourceImage:
	default:
		return fmt.Errorf("unknown camera source %q", c.Camera.Source)
	}

	if c.Camera.Source != SourceWebcam && c.Camera.Path == "" {
		return fmt.Errorf("camera source %q requires a path", c.Camera.Source)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera fps %d must be > 0", c.Camera.FPS)
	}

	switch c.Motion.Detector {
	case DetectorPercent, DetectorContour:
	default:
		return fmt.Errorf("unknown motion detector %q", c.Motion.Detector)
	}

	// Mirror the detector construction rules so the failure surfaces
	// with the config file context attached.
	if c.Motion.DiffThreshold < 0 || c.Motion.DiffThreshold > 255 {
		return fmt.Errorf("motion diff_threshold %d not in [0, 255]", c.Motion.DiffThreshold)
	}
	if c.Motion.MinChangedPercent <= 0 {
		return fmt.Errorf("motion min_changed_percent %g must be > 0", c.Motion.MinChangedPercent)
	}
	if c.Motion.BlurKernel <= 0 || c.Motion.BlurKernel%2 == 0 {
		return fmt.Errorf("motion blur_kernel %d must be positive and odd", c.Motion.BlurKernel)
	}
	if c.Motion.DilateIterations < 0 {
		return fmt.Errorf("motion dilate_iterations %d must be >= 0", c.Motion.DilateIterations)
	}
	if c.Motion.MinArea < 0 {
		return fmt.Errorf("motion min_area %g must be >= 0", c.Motion.MinArea)
	}

	if c.Capture.SaveInterval < 0 {
		return fmt.Errorf("capture save_interval %d must be >= 0", c.Capture.SaveInterval)
	}
	if c.Capture.MaxFrames < 0 {
		return fmt.Errorf("capture max_frames %d must be >= 0", c.Capture.MaxFrames)
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server enabled but no addr configured")
	}

	return nil
}
