package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casalprim/interfono/internal/infrastructure/database"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
)

// writeTimeout bounds each journal insert. The journal sits on the
// hardware event path, so a stuck disk must not stall edge handling.
const writeTimeout = 2 * time.Second

// Event is one journaled component event.
type Event struct {
	ID        string
	ObjectID  string
	Payload   string
	Source    string // "state" or "command"
	CreatedAt time.Time
}

// Mirror receives a copy of each recorded event. Satisfied by the
// InfluxDB writer; nil disables mirroring.
type Mirror interface {
	WriteComponentEvent(objectID, source, payload string)
}

// Journal records component events durably.
type Journal struct {
	db     *database.DB
	mirror Mirror
	logger *logging.Logger
}

// New returns a journal writing to db. mirror may be nil.
func New(db *database.DB, mirror Mirror, logger *logging.Logger) *Journal {
	return &Journal{
		db:     db,
		mirror: mirror,
		logger: logger,
	}
}

// Record persists one event. The mirror write is fire-and-forget; only
// the SQLite insert can fail the call.
func (j *Journal) Record(objectID, payload, source string) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, object_id, payload, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		objectID,
		payload,
		source,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording event for %s: %w", objectID, err)
	}

	if j.mirror != nil {
		j.mirror.WriteComponentEvent(objectID, source, payload)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, object_id, payload, source, created_at
		 FROM events ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ObjectID, &e.Payload, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			j.logger.Warn("malformed event timestamp", "id", e.ID, "value", createdAt)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByComponent returns how many events each component has produced.
func (j *Journal) CountByComponent(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT object_id, COUNT(*) FROM events GROUP BY object_id",
	)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
