package models

import (
	"time"

	"github.com/google/uuid"
)

// EstimationScheme identifies the value set a session votes with.
type EstimationScheme string

const (
	SchemeFibonacci EstimationScheme = "fibonacci"
	SchemeTShirt    EstimationScheme = "tshirt"
)

// Session is a bounded collaborative estimation activity over an ordered
// list of backlog items.
type Session struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	EstimationType EstimationScheme `json:"estimation_type"`
	TimeLimitSec   int              `json:"time_limit_sec"`
	CreatedAt      time.Time        `json:"created_at"`
}
