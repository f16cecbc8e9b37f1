// Package events defines roster event payloads and their Kafka delivery.
package events

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/signup/internal/domain"
)

// Header keys attached to every roster message.
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

// RosterChanged is the wire payload emitted after a signup or unregister.
type RosterChanged struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	Activity        string    `json:"activity"`
	Email           string    `json:"email"`
	Participants    []string  `json:"participants"`
	MaxParticipants int       `json:"max_participants"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewRosterChanged converts a domain event into its wire payload with a fresh event ID.
func NewRosterChanged(event domain.RosterEvent) RosterChanged {
	participants := event.Activity.Participants
	if participants == nil {
		participants = []string{}
	}
	return RosterChanged{
		EventID:         uuid.NewString(),
		EventType:       string(event.Type),
		Activity:        event.Activity.Name,
		Email:           event.Email,
		Participants:    participants,
		MaxParticipants: event.Activity.MaxParticipants,
		OccurredAt:      event.OccurredAt.UTC(),
	}
}

// Validate ensures a decoded payload carries the fields consumers key on.
func (e RosterChanged) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("event_id is required")
	case e.EventType != string(domain.RosterParticipantAdded) && e.EventType != string(domain.RosterParticipantRemoved):
		return errors.New("unknown event_type " + e.EventType)
	case strings.TrimSpace(e.Activity) == "":
		return errors.New("activity is required")
	case e.OccurredAt.IsZero():
		return errors.New("occurred_at is required")
	}
	return nil
}
