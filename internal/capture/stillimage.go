package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// StillImage serves one static image as an endless frame stream. Each
// ReadFrame returns a fresh clone so callers can close or annotate
// their copy freely.
type StillImage struct {
	path    string
	img     gocv.Mat
	mu      sync.Mutex
	running bool
}

// NewStillImage creates a source backed by the image at path.
func NewStillImage(path string) *StillImage {
	return &StillImage{path: path}
}

// Name returns the source name.
func (s *StillImage) Name() string {
	return "image:" + s.path
}

// Open decodes the image once.
func (s *StillImage) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	img := gocv.IMRead(s.path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return fmt.Errorf("could not load image: %s", s.path)
	}

	s.img = img
	s.running = true
	return nil
}

// Close releases the decoded image.
func (s *StillImage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if !s.img.Empty() {
		s.img.Close()
		s.img = gocv.NewMat()
	}
	return nil
}

// ReadFrame returns a clone of the image. The caller closes it.
func (s *StillImage) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	frame := s.img.Clone()
	return &frame, nil
}

// IsOpen returns true if the source is currently open.
func (s *StillImage) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tolerant reports true.
func (s *StillImage) Tolerant() bool {
	return true
}
