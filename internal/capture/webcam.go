package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// maxProbeDevices is how many device IDs are tried when no explicit
// device is configured.
const maxProbeDevices = 3

// Webcam captures frames from a local camera device.
type Webcam struct {
	deviceID int
	probe    bool
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

// NewWebcam creates a webcam source for the given device ID. A
// negative ID probes devices 0 through 2 and uses the first that opens.
func NewWebcam(deviceID int) *Webcam {
	return &Webcam{
		deviceID: deviceID,
		probe:    deviceID < 0,
		fps:      DefaultFPS,
	}
}

// Name returns the source name.
func (w *Webcam) Name() string {
	return fmt.Sprintf("webcam:%d", w.deviceID)
}

// Open opens the camera device. The resolution is pinned to 640x480
// for performance.
func (w *Webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	capture, id, err := w.openDevice()
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(w.fps))

	w.deviceID = id
	w.capture = capture
	w.running = true
	return nil
}

func (w *Webcam) openDevice() (*gocv.VideoCapture, int, error) {
	if !w.probe {
		capture, err := gocv.OpenVideoCapture(w.deviceID)
		if err != nil {
			return nil, 0, err
		}
		return capture, w.deviceID, nil
	}

	for id := 0; id < maxProbeDevices; id++ {
		capture, err := gocv.OpenVideoCapture(id)
		if err == nil {
			return capture, id, nil
		}
	}
	return nil, 0, errors.New("no webcam found")
}

// Close closes the camera and releases resources.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running || w.capture == nil {
		w.running = false
		return nil
	}

	err := w.capture.Close()
	w.capture = nil
	w.running = false
	return err
}

// ReadFrame reads a single frame from the camera. The caller closes
// the returned Mat.
func (w *Webcam) ReadFrame() (*gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running || w.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := w.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}
	return &mat, nil
}

// IsOpen returns true if the camera is currently open.
func (w *Webcam) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Tolerant reports false: a webcam that stops producing frames is a
// hard failure.
func (w *Webcam) Tolerant() bool {
	return false
}
