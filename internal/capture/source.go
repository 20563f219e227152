// Package capture provides frame acquisition from cameras, video
// files, and images using GoCV (OpenCV).
package capture

import (
	"errors"

	"gocv.io/x/gocv"
)

// Default camera settings.
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrSourceNotOpen is returned when reading from a source that is not open.
var ErrSourceNotOpen = errors.New("source is not open")

// ErrNoFrame is returned when a source has no frame available right
// now but may have one later (file not yet written, video producer
// behind). It signals the driver to back off and retry, never a hard
// failure.
var ErrNoFrame = errors.New("no frame available")

// Source is a sequence of frames. Sources are not restartable
// mid-stream; once Close is called a new Source must be created.
//
// ReadFrame returns the next frame as a Mat owned by the caller (the
// caller closes it), or ErrNoFrame when nothing is available yet. Any
// other error is a real acquisition failure.
type Source interface {
	Name() string
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool

	// Tolerant reports whether read failures from this source should
	// be waited out rather than treated as fatal. File-backed sources
	// are tolerant (the producer may simply be behind); a webcam that
	// stops producing frames is not.
	Tolerant() bool
}
