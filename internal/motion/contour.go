package motion

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// Default parameters for the contour detector.
const (
	// DefaultBlurKernel is the Gaussian blur kernel size (21x21)
	// applied before differencing to suppress sensor noise.
	DefaultBlurKernel = 21

	// DefaultDilateIterations is how many times the binary mask is
	// dilated to merge nearby fragments into contiguous blobs.
	DefaultDilateIterations = 2

	// DefaultMinArea is the minimum contour area in pixels below which
	// a changed region is discarded as noise.
	DefaultMinArea = 500
)

// boxColor is the bounding-box color drawn on annotated frames.
var boxColor = color.RGBA{G: 255}

// ContourConfig parameterizes the contour detector.
type ContourConfig struct {
	// DiffThreshold is the binary threshold applied to the per-pixel
	// absolute difference. Must be in [0, 255].
	DiffThreshold int

	// BlurKernel is the Gaussian blur kernel size. Must be positive
	// and odd.
	BlurKernel int

	// DilateIterations is the number of dilation passes over the
	// binary mask. Must be >= 0.
	DilateIterations int

	// MinArea is the minimum contour area in pixels. Must be >= 0.
	MinArea float64
}

// DefaultContourConfig returns the stock contour-detector configuration.
func DefaultContourConfig() ContourConfig {
	return ContourConfig{
		DiffThreshold:    DefaultDiffThreshold,
		BlurKernel:       DefaultBlurKernel,
		DilateIterations: DefaultDilateIterations,
		MinArea:          DefaultMinArea,
	}
}

func (c ContourConfig) validate() error {
	if c.DiffThreshold < 0 || c.DiffThreshold > 255 {
		return fmt.Errorf("%w: diff threshold %d not in [0, 255]", ErrInvalidConfiguration, c.DiffThreshold)
	}
	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("%w: blur kernel %d must be positive and odd", ErrInvalidConfiguration, c.BlurKernel)
	}
	if c.DilateIterations < 0 {
		return fmt.Errorf("%w: dilate iterations %d must be >= 0", ErrInvalidConfiguration, c.DilateIterations)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("%w: min area %g must be >= 0", ErrInvalidConfiguration, c.MinArea)
	}
	return nil
}

// ContourDetector reports motion as the set of changed regions larger
// than a minimum area. It keeps the previous frame (blurred grayscale)
// as its reference, so callers feed it one frame at a time.
//
// The reference is replaced after every call regardless of verdict, so
// each frame is compared only against the immediately preceding one.
// Slow continuous motion can go undetected once the reference catches
// up frame to frame; that is a known property of single-previous-frame
// differencing, not a bug.
type ContourDetector struct {
	cfg         ContourConfig
	refGray     gocv.Mat
	kernel      gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewContour creates a contour detector. It fails with
// ErrInvalidConfiguration if the parameters are out of range, in which
// case no detector is returned.
func NewContour(cfg ContourConfig) (*ContourDetector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ContourDetector{
		cfg:     cfg,
		refGray: gocv.NewMat(),
		kernel:  gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}, nil
}

// Config returns the detector's configuration.
func (d *ContourDetector) Config() ContourConfig {
	return d.cfg
}

// Detect compares frame against the stored reference and reports the
// bounding rectangles of regions that changed by more than the
// configured minimum area.
//
// The first call stores the frame as the reference and reports no
// motion. Frames that do not match the reference dimensions fail with
// ErrDimensionMismatch; zero-area frames fail with ErrEmptyFrame.
func (d *ContourDetector) Detect(frame *gocv.Mat) (Result, error) {
	res, _, err := d.detect(frame, false)
	return res, err
}

// DetectAnnotated is Detect plus an annotated copy of the input frame
// with bounding boxes drawn over the detected regions. The input frame
// is never mutated. The caller closes the returned Mat.
func (d *ContourDetector) DetectAnnotated(frame *gocv.Mat) (Result, *gocv.Mat, error) {
	return d.detect(frame, true)
}

func (d *ContourDetector) detect(frame *gocv.Mat, annotate bool) (Result, *gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Result{}, nil, ErrEmptyFrame
	}

	// Grayscale + blur. The blur is mandatory preprocessing: without
	// it sensor noise shows up as scattered single-pixel contours.
	gray := toGray(frame)
	defer gray.Close()

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred,
		image.Pt(d.cfg.BlurKernel, d.cfg.BlurKernel), 0, 0, gocv.BorderDefault)

	if !d.initialized {
		d.setReference(blurred)
		return Result{}, d.annotated(frame, nil, annotate), nil
	}

	if blurred.Rows() != d.refGray.Rows() || blurred.Cols() != d.refGray.Cols() {
		blurred.Close()
		return Result{}, nil, fmt.Errorf("%w: %dx%d vs reference %dx%d",
			ErrDimensionMismatch, frame.Cols(), frame.Rows(), d.refGray.Cols(), d.refGray.Rows())
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, d.refGray, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, float32(d.cfg.DiffThreshold), 255, gocv.ThresholdBinary)

	// Dilate to close small gaps so one moving object is reported as
	// one region instead of several fragments.
	for i := 0; i < d.cfg.DilateIterations; i++ {
		gocv.Dilate(mask, &mask, d.kernel)
	}

	changed := gocv.CountNonZero(mask)
	total := mask.Rows() * mask.Cols()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < d.cfg.MinArea {
			continue
		}
		regions = append(regions, gocv.BoundingRect(c))
	}

	// The reference always advances to the current frame, even when no
	// motion was reported.
	d.setReference(blurred)

	res := Result{
		Motion:         len(regions) > 0,
		ChangedPercent: float64(changed) / float64(total) * 100.0,
		Regions:        regions,
	}
	return res, d.annotated(frame, regions, annotate), nil
}

// setReference replaces the stored reference with blurred, taking
// ownership of it.
func (d *ContourDetector) setReference(blurred gocv.Mat) {
	if !d.refGray.Empty() {
		d.refGray.Close()
	}
	d.refGray = blurred
	d.initialized = true
}

// annotated returns a copy of frame with region boxes drawn, or nil
// when annotation was not requested.
func (d *ContourDetector) annotated(frame *gocv.Mat, regions []image.Rectangle, annotate bool) *gocv.Mat {
	if !annotate {
		return nil
	}
	out := frame.Clone()
	for _, r := range regions {
		gocv.Rectangle(&out, r, boxColor, 2)
	}
	return &out
}

// Reset clears the stored reference so the next frame starts a new
// baseline.
func (d *ContourDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.refGray.Empty() {
		d.refGray.Close()
		d.refGray = gocv.NewMat()
	}
	d.initialized = false
}

// Close releases resources held by the detector.
func (d *ContourDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.refGray.Empty() {
		d.refGray.Close()
		d.refGray = gocv.NewMat()
	}
	if !d.kernel.Empty() {
		d.kernel.Close()
		d.kernel = gocv.NewMat()
	}
	d.initialized = false
}
