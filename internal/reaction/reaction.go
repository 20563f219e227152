// Package reaction defines what happens when motion is confirmed.
// Reactions are registered with the driving loop and invoked, in
// order, with each motion event. A failing reaction is logged by the
// driver and never interferes with detection.
package reaction

import (
	"image"
	"time"
)

// Event describes one confirmed motion event.
type Event struct {
	ID             string            `json:"id"`
	Source         string            `json:"source"`
	Timestamp      time.Time         `json:"timestamp"`
	FrameIndex     int               `json:"frame_index"`
	ChangedPercent float64           `json:"changed_percent"`
	Regions        []image.Rectangle `json:"regions,omitempty"`

	// Snapshot holds the JPEG-encoded annotated frame that triggered
	// the event, when the driver publishes frames. Not serialized.
	Snapshot []byte `json:"-"`
}

// Reaction is a capability invoked when motion is confirmed. OnMotion
// must not block for long; slow side effects belong in the reaction's
// own goroutine.
type Reaction interface {
	Name() string
	OnMotion(e Event) error
}
