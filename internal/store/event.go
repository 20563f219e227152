package store

import (
	"database/sql"
	"errors"
	"image"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Event represents one confirmed motion event stored in the database.
type Event struct {
	ID             string
	Source         string
	DetectedAt     time.Time
	FrameIndex     int
	ChangedPercent float64
	Regions        []image.Rectangle
	SnapshotPath   string
}

// EventRepository provides CRUD operations for motion events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a new event and its regions in one transaction.
func (r *EventRepository) Create(e *Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO events (id, source, detected_at, frame_index, changed_percent, region_count, snapshot_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.DetectedAt, e.FrameIndex, e.ChangedPercent, len(e.Regions), e.SnapshotPath,
	)
	if err != nil {
		return err
	}

	for _, reg := range e.Regions {
		_, err = tx.Exec(
			`INSERT INTO event_regions (event_id, x, y, width, height) VALUES (?, ?, ?, ?, ?)`,
			e.ID, reg.Min.X, reg.Min.Y, reg.Dx(), reg.Dy(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves an event by its ID, including its regions.
func (r *EventRepository) GetByID(id string) (*Event, error) {
	e := &Event{}

	err := r.db.QueryRow(
		`SELECT id, source, detected_at, frame_index, changed_percent, snapshot_path
		 FROM events WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.Source, &e.DetectedAt, &e.FrameIndex, &e.ChangedPercent, &e.SnapshotPath)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	regions, err := r.regionsFor(id)
	if err != nil {
		return nil, err
	}
	e.Regions = regions

	return e, nil
}

// List retrieves the most recent events, newest first. A limit <= 0
// returns all events.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	query := `SELECT id, source, detected_at, frame_index, changed_percent, snapshot_path
	          FROM events ORDER BY detected_at DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = r.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Source, &e.DetectedAt, &e.FrameIndex, &e.ChangedPercent, &e.SnapshotPath); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, e := range events {
		regions, err := r.regionsFor(e.ID)
		if err != nil {
			return nil, err
		}
		e.Regions = regions
	}

	return events, nil
}

// CountSince returns the number of events detected at or after t.
func (r *EventRepository) CountSince(t time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE detected_at >= ?`, t,
	).Scan(&n)
	return n, err
}

// DeleteOlderThan removes events detected before t and returns how
// many were deleted. Regions are removed by cascade.
func (r *EventRepository) DeleteOlderThan(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM events WHERE detected_at < ?`, t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *EventRepository) regionsFor(eventID string) ([]image.Rectangle, error) {
	rows, err := r.db.Query(
		`SELECT x, y, width, height FROM event_regions WHERE event_id = ? ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []image.Rectangle
	for rows.Next() {
		var x, y, w, h int
		if err := rows.Scan(&x, &y, &w, &h); err != nil {
			return nil, err
		}
		regions = append(regions, image.Rect(x, y, x+w, y+h))
	}
	return regions, rows.Err()
}
