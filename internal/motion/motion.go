// Package motion implements frame-differencing motion detection.
//
// Two detectors are provided: Detector compares caller-supplied frame
// pairs and reports the fraction of changed pixels, while
// ContourDetector keeps its own reference frame and reports the
// bounding rectangles of changed regions.
package motion

import (
	"errors"
	"image"
	"time"
)

// Detection errors. Detect failures are fatal to that call only;
// ErrInvalidConfiguration is fatal at construction.
var (
	// ErrInvalidConfiguration is returned when detector parameters are
	// out of range.
	ErrInvalidConfiguration = errors.New("invalid detector configuration")

	// ErrDimensionMismatch is returned when the two compared frames do
	// not have identical dimensions. Frames are never resized to fit.
	ErrDimensionMismatch = errors.New("frame dimensions do not match")

	// ErrEmptyFrame is returned when a frame has zero pixels.
	ErrEmptyFrame = errors.New("frame is empty")
)

// Result is the outcome of one detection step. It is produced per call
// and never retained by the detector.
type Result struct {
	// Motion reports whether the frame differs enough from the
	// previous one to count as motion.
	Motion bool

	// ChangedPercent is the percentage of pixels (0-100) whose
	// intensity difference exceeded the diff threshold.
	ChangedPercent float64

	// Regions holds the bounding rectangles of changed areas. Only the
	// contour detector populates this.
	Regions []image.Rectangle

	// FrameIndex and Timestamp identify the frame that produced this
	// result. They are stamped by the driving loop, not the detector.
	FrameIndex int
	Timestamp  time.Time
}
