package events

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLCatchup implements CatchupQuerier against the events table.
type SQLCatchup struct {
	db *sql.DB
}

// NewSQLCatchup wraps the shared *sql.DB.
func NewSQLCatchup(db *sql.DB) *SQLCatchup {
	return &SQLCatchup{db: db}
}

// EventsSince returns up to limit events persisted on channel with an id
// greater than lastEventID, oldest first.
func (c *SQLCatchup) EventsSince(ctx context.Context, channel string, lastEventID int, limit int) ([]StoredEvent, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, channel, payload FROM events
		 WHERE channel = $1 AND id > $2
		 ORDER BY id ASC
		 LIMIT $3`,
		channel, lastEventID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying catchup events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.ID, &ev.Channel, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scanning catchup event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catchup events: %w", err)
	}
	return events, nil
}
