package reaction

import (
	"github.com/ayusman/hammycam/internal/store"
)

// StoreReaction persists motion events to the SQLite event log.
type StoreReaction struct {
	events *store.EventRepository
}

// NewStoreReaction creates a reaction writing to the given store.
func NewStoreReaction(s *store.Store) *StoreReaction {
	return &StoreReaction{events: s.Events()}
}

// Name returns the reaction name.
func (r *StoreReaction) Name() string {
	return "store"
}

// OnMotion inserts the event.
func (r *StoreReaction) OnMotion(e Event) error {
	return r.events.Create(&store.Event{
		ID:             e.ID,
		Source:         e.Source,
		DetectedAt:     e.Timestamp,
		FrameIndex:     e.FrameIndex,
		ChangedPercent: e.ChangedPercent,
		Regions:        e.Regions,
	})
}
