package domain

import "errors"

var (
	// ErrActivityNotFound is returned when no activity has the requested name.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadySignedUp is returned when the email is already on the roster.
	ErrAlreadySignedUp = errors.New("already signed up for this activity")
	// ErrActivityFull is returned when the roster has reached max participants.
	ErrActivityFull = errors.New("activity is full")
	// ErrNotSignedUp is returned when unregistering an email that is not on the roster.
	ErrNotSignedUp = errors.New("student not signed up for this activity")
	// ErrRosterContention is returned when a conditional roster write keeps losing to concurrent writers.
	ErrRosterContention = errors.New("roster changed concurrently")
	// ErrDuplicateActivity is returned by repositories when inserting an existing name.
	ErrDuplicateActivity = errors.New("activity already exists")
	// ErrInvalidActivity marks a record that fails shape validation.
	ErrInvalidActivity = errors.New("invalid activity record")
)

// IsConflict reports whether err is a business-rule violation on a roster.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySignedUp) ||
		errors.Is(err, ErrActivityFull) ||
		errors.Is(err, ErrNotSignedUp) ||
		errors.Is(err, ErrRosterContention)
}
