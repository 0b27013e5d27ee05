package estimation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/go/internal/models"
	"github.com/pointdeck/pointdeck/go/internal/sqlutil"
)

// ErrNoVote is the not-found sentinel for GetUserVote. Callers treat it as
// a normal empty result, not a failure.
var ErrNoVote = errors.New("no vote for user")

// Repository is the CRUD bridge between the voting controller and the
// estimations table. It carries no business logic beyond the enrichment
// fallback in GetEstimationsForItem.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SubmitEstimation upserts a vote keyed by (session, item, user) and
// returns the stored record. A second submission with the same key updates
// the row's value and updated_at rather than inserting a duplicate.
func (r *Repository) SubmitEstimation(ctx context.Context, sessionID, itemID, userID uuid.UUID, value string) (*models.Vote, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO estimations (id, session_id, backlog_item_id, user_id, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (session_id, backlog_item_id, user_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING session_id, backlog_item_id, user_id, value, updated_at`,
		uuid.New(), sessionID, itemID, userID, value,
	)

	var vote models.Vote
	if err := row.Scan(&vote.SessionID, &vote.ItemID, &vote.UserID, &vote.Points, &vote.SubmittedAt); err != nil {
		return nil, fmt.Errorf("failed to submit estimation: %w", err)
	}
	return &vote, nil
}

// GetEstimationsForItem returns all votes for an item, enriched with the
// voter's name and role. If the enrichment join fails the plain rows are
// returned instead of failing the whole call.
func (r *Repository) GetEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) ([]models.Vote, error) {
	votes, err := r.getEnriched(ctx, sessionID, itemID)
	if err == nil {
		return votes, nil
	}

	log.Warn().
		Err(err).
		Str("session_id", sessionID.String()).
		Str("item_id", itemID.String()).
		Msg("enriched vote fetch failed, falling back to plain rows")

	return r.getPlain(ctx, sessionID, itemID)
}

func (r *Repository) getEnriched(ctx context.Context, sessionID, itemID uuid.UUID) ([]models.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.session_id, e.backlog_item_id, e.user_id, e.value, e.updated_at, u.name, u.role
		FROM estimations e
		JOIN users u ON u.id = e.user_id
		WHERE e.session_id = $1 AND e.backlog_item_id = $2
		ORDER BY e.created_at`,
		sessionID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query enriched estimations: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var vote models.Vote
		var name, role sql.NullString
		if err := rows.Scan(&vote.SessionID, &vote.ItemID, &vote.UserID, &vote.Points, &vote.SubmittedAt, &name, &role); err != nil {
			return nil, fmt.Errorf("failed to scan estimation row: %w", err)
		}
		vote.UserName = sqlutil.FromSqlString(name, "")
		vote.UserRole = models.ParticipantRole(sqlutil.FromSqlString(role, ""))
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read estimation rows: %w", err)
	}
	return votes, nil
}

func (r *Repository) getPlain(ctx context.Context, sessionID, itemID uuid.UUID) ([]models.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, backlog_item_id, user_id, value, updated_at
		FROM estimations
		WHERE session_id = $1 AND backlog_item_id = $2
		ORDER BY created_at`,
		sessionID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimations: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var vote models.Vote
		if err := rows.Scan(&vote.SessionID, &vote.ItemID, &vote.UserID, &vote.Points, &vote.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan estimation row: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read estimation rows: %w", err)
	}
	return votes, nil
}

// GetUserVote returns a single user's vote for an item, or ErrNoVote when
// none exists.
func (r *Repository) GetUserVote(ctx context.Context, sessionID, itemID, userID uuid.UUID) (*models.Vote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, backlog_item_id, user_id, value, updated_at
		FROM estimations
		WHERE session_id = $1 AND backlog_item_id = $2 AND user_id = $3`,
		sessionID, itemID, userID,
	)

	var vote models.Vote
	err := row.Scan(&vote.SessionID, &vote.ItemID, &vote.UserID, &vote.Points, &vote.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoVote
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user vote: %w", err)
	}
	return &vote, nil
}

// DeleteEstimationsForItem clears an item's votes, used when a moderator
// resets an item for a fresh round of voting.
func (r *Repository) DeleteEstimationsForItem(ctx context.Context, sessionID, itemID uuid.UUID) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM estimations WHERE session_id = $1 AND backlog_item_id = $2`,
		sessionID, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete estimations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected count: %w", err)
	}
	return int(affected), nil
}
