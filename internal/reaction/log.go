package reaction

import "log"

// LogReaction prints a banner to the process log when motion is
// detected.
type LogReaction struct{}

// NewLogReaction creates a logging reaction.
func NewLogReaction() *LogReaction {
	return &LogReaction{}
}

// Name returns the reaction name.
func (r *LogReaction) Name() string {
	return "log"
}

// OnMotion logs the event.
func (r *LogReaction) OnMotion(e Event) error {
	log.Printf("***\nMotion detected\n*** source=%s frame=%d changed=%.2f%% regions=%d",
		e.Source, e.FrameIndex, e.ChangedPercent, len(e.Regions))
	return nil
}
