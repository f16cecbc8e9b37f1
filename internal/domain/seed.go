package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"example.com/signup/internal/logger"
	"example.com/signup/internal/observability"
)

// Seeder populates an empty activity store with a fixed catalog.
type Seeder struct {
	repo    ActivityRepository
	catalog []Activity
	log     *logger.Logger

	// mu serializes the count-then-insert sequence within this process.
	mu sync.Mutex
}

// NewSeeder constructs a Seeder for the given catalog.
func NewSeeder(repo ActivityRepository, catalog []Activity, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.Nop()
	}
	return &Seeder{repo: repo, catalog: catalog, log: log}
}

// EnsureSeedData inserts the catalog when the store holds no activities and
// returns how many records it inserted. Names that already exist at insert
// time are skipped, so concurrent seeders in other processes cannot create
// duplicates or overwrite rosters.
func (s *Seeder) EnsureSeedData(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	if count > 0 {
		s.log.Debug("activity store already seeded", "count", count)
		return 0, nil
	}

	inserted := 0
	for _, activity := range s.catalog {
		if err := s.repo.Insert(ctx, activity.Clone()); err != nil {
			if errors.Is(err, ErrDuplicateActivity) {
				s.log.Debug("seed activity already present", "activity", activity.Name)
				continue
			}
			return inserted, fmt.Errorf("seed activity %q: %w", activity.Name, err)
		}
		inserted++
	}

	observability.RecordSeedInserted(inserted)
	s.log.Info("seeded activity store", "inserted", inserted)
	return inserted, nil
}
