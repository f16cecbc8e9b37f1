// Package memory keeps activities in process memory for tests and local development.
package memory

import (
	"context"
	"slices"
	"sync"

	"example.com/signup/internal/domain"
)

// Repository implements domain.ActivityRepository over a map.
type Repository struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	order      []string
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{activities: make(map[string]domain.Activity)}
}

// Count implements domain.ActivityRepository.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.activities)), nil
}

// Insert implements domain.ActivityRepository.
func (r *Repository) Insert(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activities[activity.Name]; exists {
		return domain.ErrDuplicateActivity
	}
	r.activities[activity.Name] = activity.Clone()
	r.order = append(r.order, activity.Name)
	return nil
}

// List implements domain.ActivityRepository. Activities come back in insertion order.
func (r *Repository) List(ctx context.Context) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.activities[name].Clone())
	}
	return out, nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, name string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[name]
	if !ok {
		return nil, nil
	}
	clone := activity.Clone()
	return &clone, nil
}

// AddParticipant implements domain.ActivityRepository.
func (r *Repository) AddParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[name]
	if !ok || activity.HasParticipant(email) || activity.IsFull() {
		return nil, nil
	}
	activity = activity.Clone()
	activity.Participants = append(activity.Participants, email)
	r.activities[name] = activity

	out := activity.Clone()
	return &out, nil
}

// RemoveParticipant implements domain.ActivityRepository.
func (r *Repository) RemoveParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[name]
	if !ok || !activity.HasParticipant(email) {
		return nil, nil
	}
	activity = activity.Clone()
	activity.Participants = slices.DeleteFunc(activity.Participants, func(p string) bool { return p == email })
	r.activities[name] = activity

	out := activity.Clone()
	return &out, nil
}
