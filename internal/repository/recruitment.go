package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/queueup/queueup/internal/model"
)

// Common errors for recruitment repository operations.
var (
	ErrRecruitmentNotFound = errors.New("recruitment not found")
	ErrAlreadyJoined       = errors.New("user already joined recruitment")
	ErrNotJoined           = errors.New("user has not joined recruitment")
	// ErrConcurrentModification signals that a guarded write found the
	// aggregate in a different state than the caller read. The caller
	// re-reads and either retries or reports the real cause.
	ErrConcurrentModification = errors.New("recruitment was modified concurrently")
)

// RecruitmentFilter defines filters for listing recruitments.
// At most one of OwnerID, ParticipantID, AttractionID is set per query.
type RecruitmentFilter struct {
	Status        model.RecruitmentStatus
	OwnerID       *int64
	ParticipantID *int64
	AttractionID  *int64
}

// CreateRecruitment inserts a new recruitment and fills in the
// store-assigned ID, version, and audit timestamps.
func (r *Repository) CreateRecruitment(ctx context.Context, rec *model.Recruitment) error {
	query := `
		INSERT INTO recruitments (title, description, owner_id, attraction_id, capacity, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		rec.Title,
		rec.Description,
		rec.OwnerID,
		rec.AttractionID,
		rec.Capacity,
		rec.Status,
		rec.ExpiresAt,
	).Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create recruitment: %w", err)
	}

	return nil
}

// GetRecruitmentByID retrieves a recruitment with its participant set.
func (r *Repository) GetRecruitmentByID(ctx context.Context, id int64) (*model.Recruitment, error) {
	query := `
		SELECT id, title, description, owner_id, attraction_id, capacity, status, expires_at, version, created_at, updated_at
		FROM recruitments
		WHERE id = $1
	`

	rec, err := scanRecruitment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecruitmentNotFound
		}
		return nil, fmt.Errorf("failed to get recruitment by ID: %w", err)
	}

	participants, err := r.loadParticipants(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rec.Participants = participants[id]

	return rec, nil
}

// AddParticipant appends a participant while holding the aggregate's row
// lock. The insert only goes through if the recruitment is still ACTIVE and
// its participant count matches the count the caller read; any other state
// is reported as ErrConcurrentModification so the caller can re-read and
// retry. This is the single atomic unit that makes the capacity check safe
// under concurrent joins.
func (r *Repository) AddParticipant(ctx context.Context, recruitmentID, userID int64, joinedAt time.Time, expectedCount int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent joins on the same recruitment.
	var status model.RecruitmentStatus
	var capacity int
	err = tx.QueryRow(ctx,
		`SELECT status, capacity FROM recruitments WHERE id = $1 FOR UPDATE`,
		recruitmentID,
	).Scan(&status, &capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRecruitmentNotFound
		}
		return fmt.Errorf("failed to lock recruitment: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM recruitment_participants WHERE recruitment_id = $1`,
		recruitmentID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}

	if status != model.StatusActive || count != expectedCount || count >= capacity {
		return ErrConcurrentModification
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO recruitment_participants (recruitment_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		recruitmentID, userID, joinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE recruitments SET version = version + 1, updated_at = NOW() WHERE id = $1`,
		recruitmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump recruitment version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit join: %w", err)
	}

	return nil
}

// RemoveParticipant removes a participant. Returns ErrNotJoined when the
// user was not in the participant set; never a silent no-op.
func (r *Repository) RemoveParticipant(ctx context.Context, recruitmentID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`DELETE FROM recruitment_participants WHERE recruitment_id = $1 AND user_id = $2`,
		recruitmentID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotJoined
	}

	_, err = tx.Exec(ctx,
		`UPDATE recruitments SET version = version + 1, updated_at = NOW() WHERE id = $1`,
		recruitmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump recruitment version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit leave: %w", err)
	}

	return nil
}

// UpdateRecruitmentStatus performs a compare-and-set status transition.
// The write only succeeds while the stored status still equals from.
func (r *Repository) UpdateRecruitmentStatus(ctx context.Context, id int64, from, to model.RecruitmentStatus) error {
	query := `
		UPDATE recruitments
		SET status = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update recruitment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrConcurrentModification
	}

	return nil
}

// UpdateRecruitmentDetails updates title and description, guarded by the
// version the caller read.
func (r *Repository) UpdateRecruitmentDetails(ctx context.Context, id, version int64, title, description string) error {
	query := `
		UPDATE recruitments
		SET title = $3, description = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`

	result, err := r.pool.Exec(ctx, query, id, version, title, description)
	if err != nil {
		return fmt.Errorf("failed to update recruitment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrConcurrentModification
	}

	return nil
}

// DeleteRecruitment removes a recruitment; participants cascade.
func (r *Repository) DeleteRecruitment(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM recruitments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recruitment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRecruitmentNotFound
	}

	return nil
}

// ListRecruitments retrieves recruitments matching the filter with their
// participant sets, newest first.
func (r *Repository) ListRecruitments(ctx context.Context, filter RecruitmentFilter) ([]*model.Recruitment, error) {
	query := `
		SELECT r.id, r.title, r.description, r.owner_id, r.attraction_id, r.capacity, r.status, r.expires_at, r.version, r.created_at, r.updated_at
		FROM recruitments r
	`
	var args []any
	argIndex := 1

	if filter.ParticipantID != nil {
		query += fmt.Sprintf(" JOIN recruitment_participants rp ON rp.recruitment_id = r.id AND rp.user_id = $%d", argIndex)
		args = append(args, *filter.ParticipantID)
		argIndex++
	}

	query += " WHERE TRUE"

	if filter.Status != "" {
		query += fmt.Sprintf(" AND r.status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND r.owner_id = $%d", argIndex)
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if filter.AttractionID != nil {
		query += fmt.Sprintf(" AND r.attraction_id = $%d", argIndex)
		args = append(args, *filter.AttractionID)
		argIndex++
	}

	query += " ORDER BY r.created_at DESC, r.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recruitments: %w", err)
	}
	defer rows.Close()

	var recs []*model.Recruitment
	var ids []int64
	for rows.Next() {
		rec, err := scanRecruitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recruitment: %w", err)
		}
		recs = append(recs, rec)
		ids = append(ids, rec.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recruitments: %w", err)
	}

	if len(recs) == 0 {
		return recs, nil
	}

	participants, err := r.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		rec.Participants = participants[rec.ID]
	}

	return recs, nil
}

// loadParticipants fetches participant sets for the given recruitment IDs
// in a single query, keyed by recruitment ID and ordered by join time.
func (r *Repository) loadParticipants(ctx context.Context, ids []int64) (map[int64][]model.Participant, error) {
	query := `
		SELECT recruitment_id, user_id, joined_at
		FROM recruitment_participants
		WHERE recruitment_id = ANY($1)
		ORDER BY joined_at ASC, user_id ASC
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]model.Participant, len(ids))
	for rows.Next() {
		var recID int64
		var p model.Participant
		if err := rows.Scan(&recID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		result[recID] = append(result[recID], p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return result, nil
}

// scanRecruitment scans a single row into a Recruitment model.
func scanRecruitment(row pgx.Row) (*model.Recruitment, error) {
	var rec model.Recruitment
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.OwnerID,
		&rec.AttractionID,
		&rec.Capacity,
		&rec.Status,
		&rec.ExpiresAt,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	// PostgreSQL error code 23505 is unique_violation
	return err != nil && (contains(err.Error(), "23505") || contains(err.Error(), "unique"))
}

// contains checks if a string contains a substring.
func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

// searchString is a simple string search.
func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
