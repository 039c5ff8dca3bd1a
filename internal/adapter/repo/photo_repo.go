package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PhotoRepositoryPG implements domain.PhotoRepository backed by PostgreSQL.
//
// Both ledger-touching writes run inside a single transaction: CreateWithDebit
// commits the insert together with the initial debit, and Transition pairs the
// status flip with the refund. The status flip itself is a conditional UPDATE
// on status = 'processing', so of two racing terminal transitions exactly one
// changes the row and performs the refund; the other re-reads and reports
// changed=false.
type PhotoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository backed by PostgreSQL.
func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepositoryPG {
	return &PhotoRepositoryPG{pool: pool}
}

const photoColumns = `id, owner_id, original_url, result_url, target_year, mode, style_applied, prompt_used, provider, external_task_id, status, error_message, cost, created_at, completed_at`

// CreateWithDebit inserts the photo and debits its cost atomically.
func (r *PhotoRepositoryPG) CreateWithDebit(ctx context.Context, photo *domain.TimePhoto) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE credit_balances
SET balance = balance - $2, updated_at = NOW()
WHERE owner_id = $1 AND balance >= $2;
`, photo.OwnerID, photo.Cost)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}

	_, err = tx.Exec(ctx, `
INSERT INTO time_photos (id, owner_id, original_url, result_url, target_year, mode, style_applied, prompt_used, provider, external_task_id, status, error_message, cost, completed_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14);
`,
		photo.ID,
		photo.OwnerID,
		photo.OriginalURL,
		photo.ResultURL,
		photo.TargetYear,
		photo.Mode,
		photo.StyleApplied,
		photo.PromptUsed,
		photo.Provider,
		photo.ExternalTaskID,
		photo.Status,
		photo.ErrorMessage,
		photo.Cost,
		photo.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}

	return tx.Commit(ctx)
}

// AttachExternalID records the provider task id exactly once.
func (r *PhotoRepositoryPG) AttachExternalID(ctx context.Context, photoID, externalTaskID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE time_photos
SET external_task_id = $2
WHERE id = $1 AND (external_task_id IS NULL OR external_task_id = $2);
`, photoID, externalTaskID)
	if err != nil {
		return fmt.Errorf("attach external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the photo does not exist or the id is already set to a
		// different value. Distinguish the two for the caller.
		if _, err := r.GetByID(ctx, photoID); err != nil {
			return err
		}
		return domain.ErrExternalIDConflict
	}
	return nil
}

// Transition applies a terminal outcome, refunding on the failed branch.
func (r *PhotoRepositoryPG) Transition(ctx context.Context, photoID string, outcome domain.Outcome) (*domain.TimePhoto, bool, error) {
	if !outcome.Terminal() {
		photo, err := r.GetByID(ctx, photoID)
		return photo, false, err
	}

	status := domain.PhotoStatusCompleted
	if outcome.State == domain.OutcomeFailed {
		status = domain.PhotoStatusFailed
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
UPDATE time_photos
SET status = $2,
    result_url = NULLIF($3, ''),
    error_message = NULLIF($4, ''),
    completed_at = NOW()
WHERE id = $1 AND status = 'processing'
RETURNING `+photoColumns+`;
`, photoID, status, outcome.ResultURL, outcome.ErrorDetail)

	photo, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Lost the race or already terminal: return the current row
			// untouched, with no ledger movement.
			current, getErr := r.GetByID(ctx, photoID)
			return current, false, getErr
		}
		return nil, false, err
	}

	if status == domain.PhotoStatusFailed {
		if _, err := tx.Exec(ctx, `
UPDATE credit_balances
SET balance = balance + $2, updated_at = NOW()
WHERE owner_id = $1;
`, photo.OwnerID, photo.Cost); err != nil {
			return nil, false, fmt.Errorf("refund: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return photo, true, nil
}

// GetByID fetches a photo by its identifier.
func (r *PhotoRepositoryPG) GetByID(ctx context.Context, photoID string) (*domain.TimePhoto, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM time_photos WHERE id = $1`, photoID)
	return scanPhoto(row)
}

// FindByExternalID fetches a photo by the provider's task id. Used by the
// webhook intake, which only knows the provider's namespace.
func (r *PhotoRepositoryPG) FindByExternalID(ctx context.Context, provider, externalTaskID string) (*domain.TimePhoto, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM time_photos WHERE provider = $1 AND external_task_id = $2`,
		provider, externalTaskID)
	return scanPhoto(row)
}

// ListByOwner returns a page of the owner's photos, newest first, plus the
// total count.
func (r *PhotoRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.TimePhoto, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM time_photos WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+photoColumns+`
FROM time_photos
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []domain.TimePhoto
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, 0, err
		}
		photos = append(photos, *photo)
	}
	return photos, total, rows.Err()
}

func scanPhoto(row pgx.Row) (*domain.TimePhoto, error) {
	var p domain.TimePhoto
	var resultURL, externalTaskID, errorMessage *string
	if err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.OriginalURL,
		&resultURL,
		&p.TargetYear,
		&p.Mode,
		&p.StyleApplied,
		&p.PromptUsed,
		&p.Provider,
		&externalTaskID,
		&p.Status,
		&errorMessage,
		&p.Cost,
		&p.CreatedAt,
		&p.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if resultURL != nil {
		p.ResultURL = *resultURL
	}
	if externalTaskID != nil {
		p.ExternalTaskID = *externalTaskID
	}
	if errorMessage != nil {
		p.ErrorMessage = *errorMessage
	}
	return &p, nil
}
