package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/hammycam/internal/capture"
	"github.com/ayusman/hammycam/internal/motion"
	"github.com/ayusman/hammycam/internal/reaction"
)

// runPipeline is the main loop: read a frame, detect motion, dispatch
// reactions, pace to the configured rate. Single-threaded and
// pull-based; the detector's reference frame is touched only here.
func (a *App) runPipeline() {
	defer close(a.done)

	frameIndex := 0
	interval := time.Second / time.Duration(a.config.FPS)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			frame, err := a.source.ReadFrame()
			if errors.Is(err, capture.ErrNoFrame) {
				// Producer is behind; wait it out.
				continue
			}
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				if a.source.Tolerant() {
					continue
				}
				return
			}

			if !a.IsEnabled() {
				frame.Close()
				continue
			}

			frameIndex++
			a.processFrame(frame, frameIndex)
			frame.Close()

			if a.config.MaxFrames > 0 && frameIndex >= a.config.MaxFrames {
				log.Printf("Reached max frames (%d)", a.config.MaxFrames)
				return
			}
		}
	}
}

// processFrame runs one detection step and everything downstream of
// it. The frame is owned by the caller for the duration of the call.
func (a *App) processFrame(frame *gocv.Mat, frameIndex int) {
	res, display, err := a.detect(frame)
	if err != nil {
		// Fatal to this detection call only, never to the run.
		log.Printf("Detection error on frame %d: %v", frameIndex, err)
		return
	}
	if display == nil {
		display = frame
	} else {
		defer display.Close()
	}

	res.FrameIndex = frameIndex
	res.Timestamp = time.Now()

	jpeg := a.publishFrame(display)

	a.mu.Lock()
	a.stats.FramesProcessed++
	a.mu.Unlock()

	if res.Motion {
		a.dispatch(res, jpeg)
	}

	if a.config.SaveInterval > 0 && frameIndex%a.config.SaveInterval == 0 {
		a.saveFrame(display, frameIndex, res.Timestamp)
	}
}

// detect runs the configured detector variant. For the contour variant
// it returns an annotated display frame; for the percentage variant it
// advances the caller-held previous frame.
func (a *App) detect(frame *gocv.Mat) (motion.Result, *gocv.Mat, error) {
	if a.contour != nil {
		if a.config.PublishFrames {
			return a.contour.DetectAnnotated(frame)
		}
		res, err := a.contour.Detect(frame)
		return res, nil, err
	}

	res, err := a.percent.Detect(frame, &a.prevFrame)

	// The previous frame always advances, even when this comparison
	// failed, so a resolution change recovers on the next step.
	if !a.prevFrame.Empty() {
		a.prevFrame.Close()
	}
	a.prevFrame = frame.Clone()

	return res, nil, err
}

// dispatch builds the event and hands it to every registered reaction.
// Reaction failures are logged and never affect detector state.
func (a *App) dispatch(res motion.Result, jpeg []byte) {
	event := reaction.Event{
		ID:             uuid.New().String(),
		Source:         a.source.Name(),
		Timestamp:      res.Timestamp,
		FrameIndex:     res.FrameIndex,
		ChangedPercent: res.ChangedPercent,
		Regions:        res.Regions,
		Snapshot:       jpeg,
	}

	a.mu.Lock()
	a.stats.MotionEvents++
	a.lastEvent = &event
	a.mu.Unlock()

	for _, r := range a.reactions {
		if err := r.OnMotion(event); err != nil {
			log.Printf("Reaction %s failed: %v", r.Name(), err)
		}
	}
}

// publishFrame JPEG-encodes the display frame for the HTTP stream and
// event snapshots. Returns nil when publishing is off.
func (a *App) publishFrame(display *gocv.Mat) []byte {
	if !a.config.PublishFrames {
		return nil
	}

	buf, err := gocv.IMEncode(".jpg", *display)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return nil
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())

	a.frameMu.Lock()
	a.lastJPEG = jpeg
	a.frameMu.Unlock()

	return jpeg
}

// saveFrame writes the display frame to the output directory using the
// frame_<counter>_<HHMMSS>.jpg naming scheme.
func (a *App) saveFrame(display *gocv.Mat, frameIndex int, ts time.Time) {
	name := fmt.Sprintf("frame_%06d_%s.jpg", frameIndex, ts.Format("150405"))
	path := filepath.Join(a.config.OutputDir, name)

	if ok := gocv.IMWrite(path, *display); !ok {
		log.Printf("Error saving frame to %s", path)
		return
	}
	log.Printf("Saved: %s", path)
}
