package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-recorded frames for testing.
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a mock source over the given frames. When loop
// is true playback wraps around; otherwise exhaustion returns
// ErrNoFrame.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
	}
}

func (m *MockSource) Name() string {
	return "mock"
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.index = 0
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSource) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrSourceNotOpen
	}

	if len(m.frames) == 0 {
		return nil, fmt.Errorf("no frames configured")
	}

	if m.index >= len(m.frames) {
		if m.loop {
			m.index = 0
		} else {
			return nil, ErrNoFrame
		}
	}

	// Clone so the original isn't modified
	frame := m.frames[m.index].Clone()
	m.index++

	return &frame, nil
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockSource) Tolerant() bool { return true }

// SetFrames replaces the frame sequence
func (m *MockSource) SetFrames(frames []*gocv.Mat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.index = 0
}

// Reset restarts playback from the beginning
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
