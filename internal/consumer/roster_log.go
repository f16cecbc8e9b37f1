package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RosterLogHandler appends consumed roster events to the activity_roster_log table.
// Redelivered events are ignored by event_id.
type RosterLogHandler struct {
	pool *pgxpool.Pool
}

// NewRosterLogHandler constructs a handler backed by the provided pool.
func NewRosterLogHandler(pool *pgxpool.Pool) *RosterLogHandler {
	return &RosterLogHandler{pool: pool}
}

// Handle implements Handler.
func (h *RosterLogHandler) Handle(ctx context.Context, msg Message) error {
	event := msg.Event
	_, err := h.pool.Exec(ctx,
		`INSERT INTO activity_roster_log (event_id, event_type, activity_name, email, participant_count, max_participants, occurred_at, topic, partition, record_offset, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
         ON CONFLICT (event_id) DO NOTHING`,
		event.EventID,
		event.EventType,
		event.Activity,
		event.Email,
		len(event.Participants),
		event.MaxParticipants,
		event.OccurredAt,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
	)
	return err
}
