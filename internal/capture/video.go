package capture

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// VideoFile plays frames from a video file. At end of stream it
// returns ErrNoFrame rather than failing, matching the tolerant
// semantics of file-backed sources.
type VideoFile struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewVideoFile creates a source reading from the video at path.
func NewVideoFile(path string) *VideoFile {
	return &VideoFile{path: path}
}

// Name returns the source name.
func (v *VideoFile) Name() string {
	return "video:" + v.path
}

// Open opens the video file.
func (v *VideoFile) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.running {
		return nil
	}

	if _, err := os.Stat(v.path); err != nil {
		return fmt.Errorf("video file not found: %w", err)
	}

	capture, err := gocv.OpenVideoCapture(v.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", v.path, err)
	}

	v.capture = capture
	v.running = true
	return nil
}

// Close closes the video file.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		v.running = false
		return nil
	}

	err := v.capture.Close()
	v.capture = nil
	v.running = false
	return err
}

// ReadFrame reads the next frame. The caller closes the returned Mat.
// End of stream returns ErrNoFrame.
func (v *VideoFile) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}
	return &mat, nil
}

// IsOpen returns true if the video is currently open.
func (v *VideoFile) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.running
}

// Tolerant reports true: a missing frame means the stream ended or the
// producer is behind, and the driver paces and retries.
func (v *VideoFile) Tolerant() bool {
	return true
}
