package voting

import (
	"errors"
	"strings"
)

// ErrNotModerator guards the mutations reserved for the session moderator.
var ErrNotModerator = errors.New("operation requires the moderator role")

// ErrNoActiveItem is returned when an operation needs a current backlog
// item and the session has none.
var ErrNoActiveItem = errors.New("no active backlog item")

// StoreErrorKind buckets persistence failures for user-visible messaging.
// Categorization is by message content; the store does not expose
// structured error codes.
type StoreErrorKind string

const (
	StoreErrorSchema     StoreErrorKind = "schema"
	StoreErrorConstraint StoreErrorKind = "constraint"
	StoreErrorConflict   StoreErrorKind = "conflict"
	StoreErrorGeneric    StoreErrorKind = "generic"
)

// CategorizeStoreError maps a persistence failure to its kind.
func CategorizeStoreError(err error) StoreErrorKind {
	if err == nil {
		return StoreErrorGeneric
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "column") ||
		strings.Contains(msg, "relation") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "schema"):
		return StoreErrorSchema
	case strings.Contains(msg, "unique") ||
		strings.Contains(msg, "violates") ||
		strings.Contains(msg, "constraint") ||
		strings.Contains(msg, "foreign key"):
		return StoreErrorConstraint
	case strings.Contains(msg, "conflict") ||
		strings.Contains(msg, "serialize") ||
		strings.Contains(msg, "deadlock"):
		return StoreErrorConflict
	default:
		return StoreErrorGeneric
	}
}

// UserMessage is the transient, auto-dismissing notification text shown
// for a failed vote. Errors degrade to "nothing happened, try again".
func (k StoreErrorKind) UserMessage() string {
	switch k {
	case StoreErrorSchema:
		return "Voting is temporarily unavailable. Please try again."
	case StoreErrorConstraint:
		return "Your vote could not be saved. Please try again."
	case StoreErrorConflict:
		return "Your vote collided with another change. Please try again."
	default:
		return "Something went wrong saving your vote. Please try again."
	}
}
