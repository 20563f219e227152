package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gocv.io/x/gocv"
)

// FileSource reads frames from a single JPEG that an external capture
// process rewrites continuously (the "fake camera" arrangement, where
// ffmpeg updates web/current_frame.jpg in place).
//
// A filesystem watcher tracks rewrites so the same frame is decoded
// once: ReadFrame returns ErrNoFrame until the file changes again.
type FileSource struct {
	path    string
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	running bool
	dirty   bool
}

// NewFileSource creates a source reading the continuously rewritten
// image at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source name.
func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Open verifies the frame file exists and starts watching its
// directory for rewrites. The capture process must already be running.
func (f *FileSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}

	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("fake camera not running, frame file missing: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: in-place rewrites often replace the file,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	f.watcher = watcher
	f.running = true
	f.dirty = true // the current contents have not been read yet
	return nil
}

// Close stops the watcher.
func (f *FileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false

	if f.watcher != nil {
		err := f.watcher.Close()
		f.watcher = nil
		return err
	}
	return nil
}

// ReadFrame decodes the frame file if it changed since the last read.
// It returns ErrNoFrame when the file has not been rewritten yet or
// has disappeared. The caller closes the returned Mat.
func (f *FileSource) ReadFrame() (*gocv.Mat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil, ErrSourceNotOpen
	}

	f.drainEvents()
	if !f.dirty {
		return nil, ErrNoFrame
	}

	mat := gocv.IMRead(f.path, gocv.IMReadColor)
	if mat.Empty() {
		// Mid-rewrite or deleted; try again next tick.
		mat.Close()
		return nil, ErrNoFrame
	}

	f.dirty = false
	return &mat, nil
}

// drainEvents consumes pending watcher events without blocking and
// marks the source dirty if the frame file was touched.
func (f *FileSource) drainEvents() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == f.path && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				f.dirty = true
			}
		case <-f.watcher.Errors:
			// Watcher errors are not fatal; worst case the next read
			// reports ErrNoFrame and the driver retries.
		default:
			return
		}
	}
}

// IsOpen returns true if the source is currently open.
func (f *FileSource) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Tolerant reports true: the producer writes on its own schedule.
func (f *FileSource) Tolerant() bool {
	return true
}
