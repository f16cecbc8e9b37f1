// Package domain defines the business logic for the signup service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/signup/internal/logger"
	"example.com/signup/internal/observability"
)

// maxWriteAttempts bounds how often a conditional roster write is retried after
// losing a race to another writer.
const maxWriteAttempts = 3

// ActivityRepository captures persistence operations.
//
// Get returns (nil, nil) when the activity does not exist. AddParticipant and
// RemoveParticipant are conditional single-record updates: they return the
// updated record, or (nil, nil) when the record is missing or the condition
// no longer holds.
type ActivityRepository interface {
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, activity Activity) error
	List(ctx context.Context) ([]Activity, error)
	Get(ctx context.Context, name string) (*Activity, error)
	// AddParticipant appends email if it is absent and the roster is below capacity.
	AddParticipant(ctx context.Context, name, email string) (*Activity, error)
	// RemoveParticipant removes email if it is present.
	RemoveParticipant(ctx context.Context, name, email string) (*Activity, error)
}

// RosterEventType names a roster transition.
type RosterEventType string

const (
	RosterParticipantAdded   RosterEventType = "activity.participant_added"
	RosterParticipantRemoved RosterEventType = "activity.participant_removed"
)

// RosterEvent describes a committed roster change.
type RosterEvent struct {
	Type       RosterEventType
	Activity   Activity
	Email      string
	OccurredAt time.Time
}

// EventPublisher delivers roster events downstream.
type EventPublisher interface {
	PublishRosterEvent(ctx context.Context, event RosterEvent) error
}

// RosterResult is returned by successful signup and unregister calls.
type RosterResult struct {
	Activity Activity
	Message  string
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithPublisher sets the roster event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger overrides the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// Service orchestrates roster workflows.
type Service struct {
	repo      ActivityRepository
	publisher EventPublisher
	log       *logger.Logger
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, opts ...Option) *Service {
	s := &Service{repo: repo, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivities returns every activity in store order.
func (s *Service) ListActivities(ctx context.Context) ([]Activity, error) {
	activities, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	for _, a := range activities {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return activities, nil
}

// Signup adds email to the named activity's roster.
func (s *Service) Signup(ctx context.Context, name, email string) (*RosterResult, error) {
	res, err := s.signup(ctx, name, email)
	observability.RecordRosterOperation("signup", outcomeOf(err))
	return res, err
}

func (s *Service) signup(ctx context.Context, name, email string) (*RosterResult, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.load(ctx, name)
		if err != nil {
			return nil, err
		}
		if current.HasParticipant(email) {
			return nil, ErrAlreadySignedUp
		}
		if current.IsFull() {
			return nil, ErrActivityFull
		}

		updated, err := s.repo.AddParticipant(ctx, name, email)
		if err != nil {
			return nil, fmt.Errorf("signup %q: %w", name, err)
		}
		if updated == nil {
			s.log.Debug("signup lost roster race, revalidating", "activity", name, "attempt", attempt+1)
			continue
		}

		s.publish(ctx, RosterParticipantAdded, *updated, email)
		return &RosterResult{
			Activity: *updated,
			Message:  fmt.Sprintf("Signed up %s for %s", email, name),
		}, nil
	}
	return nil, ErrRosterContention
}

// Unregister removes email from the named activity's roster.
func (s *Service) Unregister(ctx context.Context, name, email string) (*RosterResult, error) {
	res, err := s.unregister(ctx, name, email)
	observability.RecordRosterOperation("unregister", outcomeOf(err))
	return res, err
}

func (s *Service) unregister(ctx context.Context, name, email string) (*RosterResult, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, err := s.load(ctx, name)
		if err != nil {
			return nil, err
		}
		if !current.HasParticipant(email) {
			return nil, ErrNotSignedUp
		}

		updated, err := s.repo.RemoveParticipant(ctx, name, email)
		if err != nil {
			return nil, fmt.Errorf("unregister %q: %w", name, err)
		}
		if updated == nil {
			s.log.Debug("unregister lost roster race, revalidating", "activity", name, "attempt", attempt+1)
			continue
		}

		s.publish(ctx, RosterParticipantRemoved, *updated, email)
		return &RosterResult{
			Activity: *updated,
			Message:  fmt.Sprintf("Unregistered %s from %s", email, name),
		}, nil
	}
	return nil, ErrRosterContention
}

func (s *Service) load(ctx context.Context, name string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get activity %q: %w", name, err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	return activity, nil
}

// publish is best effort: the roster write has already been committed.
func (s *Service) publish(ctx context.Context, eventType RosterEventType, activity Activity, email string) {
	if s.publisher == nil {
		return
	}
	event := RosterEvent{
		Type:       eventType,
		Activity:   activity,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishRosterEvent(ctx, event); err != nil {
		s.log.Warn("roster event publish failed", "event_type", string(eventType), "activity", activity.Name, "email", email, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrActivityNotFound):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
