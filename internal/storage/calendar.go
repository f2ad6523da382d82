package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/types"
)

// CalendarMatcher finds calendar events overlapping a recording.
// The os_calendar_events table is filled by a separate calendar sync.
type CalendarMatcher struct {
	db *sql.DB
}

// NewCalendarMatcher uses db and creates the events table when it is missing
func NewCalendarMatcher(db *sql.DB) (*CalendarMatcher, error) {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS os_calendar_events (
		google_id TEXT PRIMARY KEY,
		title TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure calendar table: %w", err)
	}
	return &CalendarMatcher{db: db}, nil
}

// FindOverlapping returns the latest-starting event that overlaps
// [recordedAt, recordedAt+duration], or nil when none does.
func (m *CalendarMatcher) FindOverlapping(ctx context.Context, recordedAt time.Time, durationSeconds float64) (*types.CalendarMatch, error) {
	query := `
	SELECT google_id, COALESCE(title, '')
	FROM os_calendar_events
	WHERE datetime(start_time) <= datetime(?, '+' || ? || ' seconds')
	  AND datetime(end_time) >= datetime(?)
	ORDER BY datetime(start_time) DESC
	LIMIT 1
	`
	at := recordedAt.UTC().Format(TimeLayout)

	var match types.CalendarMatch
	err := m.db.QueryRowContext(ctx, query, at, int(durationSeconds), at).Scan(&match.EventID, &match.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}
	return &match, nil
}
