package motion

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Default parameters for the percentage detector.
const (
	// DefaultDiffThreshold is the per-pixel intensity difference (0-255
	// scale) above which a pixel counts as changed.
	DefaultDiffThreshold = 25

	// DefaultMinChangedPercent is the changed-pixel percentage at or
	// above which motion is reported. The comment in the original
	// tuning notes calls this "30%", but the literal value 0.30 is
	// compared against a 0-100 percentage, so the effective
	// sensitivity is about 100x higher than that reads. Downstream
	// tuning depends on the literal value; do not "fix" it.
	DefaultMinChangedPercent = 0.30
)

// Config parameterizes the percentage-change detector.
type Config struct {
	// DiffThreshold is the binary threshold applied to the per-pixel
	// absolute difference. Must be in [0, 255].
	DiffThreshold int

	// MinChangedPercent is the changed-pixel percentage (0-100 scale)
	// at or above which motion is reported. Must be > 0.
	MinChangedPercent float64
}

// DefaultConfig returns the stock percentage-detector configuration.
func DefaultConfig() Config {
	return Config{
		DiffThreshold:     DefaultDiffThreshold,
		MinChangedPercent: DefaultMinChangedPercent,
	}
}

func (c Config) validate() error {
	if c.DiffThreshold < 0 || c.DiffThreshold > 255 {
		return fmt.Errorf("%w: diff threshold %d not in [0, 255]", ErrInvalidConfiguration, c.DiffThreshold)
	}
	if c.MinChangedPercent <= 0 {
		return fmt.Errorf("%w: min changed percent %g must be > 0", ErrInvalidConfiguration, c.MinChangedPercent)
	}
	return nil
}

// Detector reports motion between two caller-supplied frames by
// counting the pixels whose intensity changed more than the diff
// threshold. It holds no state between calls; the caller keeps the
// previous frame.
type Detector struct {
	cfg Config
}

// New creates a percentage-change detector. It fails with
// ErrInvalidConfiguration if the parameters are out of range, in which
// case no detector is returned.
func New(cfg Config) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect compares frame against prev and reports whether motion
// occurred together with the changed-pixel percentage.
//
// If prev is nil or empty there is nothing to compare against yet and
// Detect reports no motion. Frames of differing dimensions fail with
// ErrDimensionMismatch; zero-area frames fail with ErrEmptyFrame.
func (d *Detector) Detect(frame, prev *gocv.Mat) (Result, error) {
	if frame == nil || frame.Empty() {
		return Result{}, ErrEmptyFrame
	}
	if prev == nil || prev.Empty() {
		// First frame: no reference to compare against.
		return Result{}, nil
	}
	if frame.Rows() != prev.Rows() || frame.Cols() != prev.Cols() {
		return Result{}, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrDimensionMismatch, frame.Cols(), frame.Rows(), prev.Cols(), prev.Rows())
	}

	gray := toGray(frame)
	defer gray.Close()

	prevGray := toGray(prev)
	defer prevGray.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, prevGray, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, float32(d.cfg.DiffThreshold), 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(mask)
	total := mask.Rows() * mask.Cols()

	percent := float64(changed) / float64(total) * 100.0

	return Result{
		Motion:         percent >= d.cfg.MinChangedPercent,
		ChangedPercent: percent,
	}, nil
}

// toGray returns a single-channel copy of m. The caller closes it.
func toGray(m *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if m.Channels() > 1 {
		gocv.CvtColor(*m, &gray, gocv.ColorBGRToGray)
	} else {
		m.CopyTo(&gray)
	}
	return gray
}
