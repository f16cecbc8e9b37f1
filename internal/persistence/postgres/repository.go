package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/signup/internal/domain"
)

const uniqueViolation = "23505"

const activityColumns = `name, description, schedule, max_participants, participants`

// Repository provides Postgres-backed persistence for activities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Count returns the number of stored activities.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Insert stores a new activity. An existing name yields domain.ErrDuplicateActivity.
func (r *Repository) Insert(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}

	participants := activity.Participants
	if participants == nil {
		participants = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES ($1,$2,$3,$4,$5)`,
		activity.Name,
		activity.Description,
		activity.Schedule,
		activity.MaxParticipants,
		participants,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateActivity
		}
		return err
	}
	return nil
}

// List returns all activities ordered by name.
func (r *Repository) List(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Get retrieves an activity by name, or nil if it does not exist.
func (r *Repository) Get(ctx context.Context, name string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE name=$1`, name)
	return scanOptional(row)
}

// AddParticipant appends email in a single statement guarded on membership and capacity.
func (r *Repository) AddParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	const stmt = `UPDATE activities
        SET participants = array_append(participants, $2)
        WHERE name = $1
          AND NOT ($2 = ANY(participants))
          AND cardinality(participants) < max_participants
        RETURNING ` + activityColumns

	return scanOptional(r.pool.QueryRow(ctx, stmt, name, email))
}

// RemoveParticipant removes email in a single statement guarded on membership.
func (r *Repository) RemoveParticipant(ctx context.Context, name, email string) (*domain.Activity, error) {
	const stmt = `UPDATE activities
        SET participants = array_remove(participants, $2)
        WHERE name = $1
          AND $2 = ANY(participants)
        RETURNING ` + activityColumns

	return scanOptional(r.pool.QueryRow(ctx, stmt, name, email))
}

func scanOptional(row pgx.Row) (*domain.Activity, error) {
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants, &a.Participants); err != nil {
		return domain.Activity{}, err
	}
	if a.Participants == nil {
		a.Participants = []string{}
	}
	if err := a.Validate(); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity row: %w", err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
