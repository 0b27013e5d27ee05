package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pointdeck/pointdeck/go/internal/models"
	"github.com/pointdeck/pointdeck/go/internal/sqlutil"
)

// ErrNotFound is the sentinel for a session that does not exist.
var ErrNotFound = errors.New("session not found")

// Repository persists sessions, their backlog attachments, and the users
// referenced by vote enrichment.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts a session with its scheme and voting time limit.
func (r *Repository) CreateSession(ctx context.Context, name string, scheme models.EstimationScheme, timeLimitSec int) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, name, estimation_type, time_limit_sec, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, name, estimation_type, time_limit_sec, created_at`,
		uuid.New(), name, scheme, timeLimitSec,
	)

	var s models.Session
	if err := row.Scan(&s.ID, &s.Name, &s.EstimationType, &s.TimeLimitSec, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &s, nil
}

// GetSession loads one session by id, or ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, estimation_type, time_limit_sec, created_at
		FROM sessions
		WHERE id = $1`,
		id,
	)

	var s models.Session
	err := row.Scan(&s.ID, &s.Name, &s.EstimationType, &s.TimeLimitSec, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// UpdateEstimationType persists a runtime scheme switch.
func (r *Repository) UpdateEstimationType(ctx context.Context, id uuid.UUID, scheme models.EstimationScheme) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET estimation_type = $2 WHERE id = $1`,
		id, scheme,
	)
	if err != nil {
		return fmt.Errorf("failed to update estimation type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected count: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTimeLimit persists a moderator's time limit change.
func (r *Repository) UpdateTimeLimit(ctx context.Context, id uuid.UUID, timeLimitSec int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET time_limit_sec = $2 WHERE id = $1`,
		id, timeLimitSec,
	)
	if err != nil {
		return fmt.Errorf("failed to update time limit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected count: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachItem links a backlog item to a session at the given position,
// creating the item row if it does not exist yet.
func (r *Repository) AttachItem(ctx context.Context, sessionID uuid.UUID, item models.BacklogItem, position int) (*models.BacklogItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = models.ItemStatusPending
	}

	// Per-item scheme and limit overrides are stored as NULL when unset so
	// the session defaults apply.
	var schemeOverride *string
	if item.EstimationType != "" {
		s := string(item.EstimationType)
		schemeOverride = &s
	}
	var limitOverride *int
	if item.TimeLimitSec > 0 {
		limitOverride = &item.TimeLimitSec
	}

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backlog_items (id, title, status, created_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
			item.ID, item.Title, item.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert backlog item: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_backlog_items (session_id, backlog_item_id, position, estimation_type, time_limit_sec)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (session_id, backlog_item_id)
			DO UPDATE SET position = EXCLUDED.position`,
			sessionID, item.ID, position, sqlutil.ToSqlString(schemeOverride), sqlutil.ToSqlInt32(limitOverride),
		)
		if err != nil {
			return fmt.Errorf("failed to attach item to session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	item.Position = position
	return &item, nil
}

// PendingItems returns the session's pending backlog, ordered by position.
// Per-item scheme and limit overrides fall back to zero values when unset;
// the controller substitutes the session defaults.
func (r *Repository) PendingItems(ctx context.Context, sessionID uuid.UUID) ([]models.BacklogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.status, sb.estimation_type, sb.time_limit_sec, sb.position
		FROM session_backlog_items sb
		JOIN backlog_items b ON b.id = sb.backlog_item_id
		WHERE sb.session_id = $1 AND b.status = $2
		ORDER BY sb.position`,
		sessionID, models.ItemStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer rows.Close()

	var items []models.BacklogItem
	for rows.Next() {
		var item models.BacklogItem
		var scheme sql.NullString
		var limit sql.NullInt32
		if err := rows.Scan(&item.ID, &item.Title, &item.Status, &scheme, &limit, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan backlog item row: %w", err)
		}
		item.EstimationType = models.EstimationScheme(sqlutil.FromSqlString(scheme, ""))
		item.TimeLimitSec = sqlutil.FromSqlInt32(limit, 0)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backlog item rows: %w", err)
	}
	return items, nil
}

// UpdateItemStatus marks a backlog item estimated or skipped.
func (r *Repository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status models.ItemStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE backlog_items SET status = $2 WHERE id = $1`,
		itemID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("backlog item %s not found", itemID)
	}
	return nil
}

// UpsertUser records the display identity referenced by vote enrichment.
func (r *Repository) UpsertUser(ctx context.Context, user models.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		user.UserID, user.Name, user.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
