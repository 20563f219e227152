package reaction

import (
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotReaction writes the annotated frame of each motion event as
// a JPEG under the output directory, named
// motion_<frame counter, 6 digits>_<HHMMSS>.jpg.
type SnapshotReaction struct {
	outputDir string
}

// NewSnapshotReaction creates a snapshot reaction writing into dir,
// creating it if needed.
func NewSnapshotReaction(dir string) (*SnapshotReaction, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &SnapshotReaction{outputDir: dir}, nil
}

// Name returns the reaction name.
func (r *SnapshotReaction) Name() string {
	return "snapshot"
}

// OnMotion writes the event's snapshot to disk. Events without a
// snapshot are skipped.
func (r *SnapshotReaction) OnMotion(e Event) error {
	if len(e.Snapshot) == 0 {
		return nil
	}

	name := fmt.Sprintf("motion_%06d_%s.jpg", e.FrameIndex, e.Timestamp.Format("150405"))
	path := filepath.Join(r.outputDir, name)

	if err := os.WriteFile(path, e.Snapshot, 0644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}
