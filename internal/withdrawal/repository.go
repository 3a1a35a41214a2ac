package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists withdrawal requests. Transitions are guarded by the
// current status in the WHERE clause, so an out-of-date actor cannot move a
// request that already reached a terminal state.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Request, error)
	ListByStatus(ctx context.Context, status string) ([]Request, error)
	MarkApproved(ctx context.Context, id, adminNotes string) error
	MarkRejected(ctx context.Context, id, adminNotes string) error
	// RecordTransfer persists the provider transfer id the moment the payout
	// goes out, while the request is still approved. A retry sees it and
	// skips straight to the ledger debit.
	RecordTransfer(ctx context.Context, id, transferID string) error
	MarkProcessed(ctx context.Context, id, transferID string) error
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, creator_id, amount, currency, status, reason, admin_notes,
    payout_account, COALESCE(transfer_id, ''), requested_at, processed_at`

func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = StatusPending
	req.RequestedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx, `
        INSERT INTO withdrawal_requests
            (id, creator_id, amount, currency, status, reason, payout_account, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.CreatorID, req.Amount, req.Currency, req.Status, req.Reason,
		req.PayoutAccount, req.RequestedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Request, error) {
	var req Request
	err := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests WHERE id = $1`, id).
		Scan(&req.ID, &req.CreatorID, &req.Amount, &req.Currency, &req.Status, &req.Reason,
			&req.AdminNotes, &req.PayoutAccount, &req.TransferID, &req.RequestedAt, &req.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PostgresRepository) ListByCreator(ctx context.Context, creatorID string) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests
        WHERE creator_id = $1 ORDER BY requested_at DESC`, creatorID)
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status string) ([]Request, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM withdrawal_requests
        WHERE status = $1 ORDER BY requested_at`, status)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]Request, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.CreatorID, &req.Amount, &req.Currency, &req.Status,
			&req.Reason, &req.AdminNotes, &req.PayoutAccount, &req.TransferID,
			&req.RequestedAt, &req.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkApproved(ctx context.Context, id, adminNotes string) error {
	return r.transition(ctx,
		`UPDATE withdrawal_requests SET status = 'approved', admin_notes = $1
         WHERE id = $2 AND status = 'pending'`, adminNotes, id)
}

func (r *PostgresRepository) MarkRejected(ctx context.Context, id, adminNotes string) error {
	return r.transition(ctx,
		`UPDATE withdrawal_requests SET status = 'rejected', admin_notes = $1
         WHERE id = $2 AND status = 'pending'`, adminNotes, id)
}

func (r *PostgresRepository) RecordTransfer(ctx context.Context, id, transferID string) error {
	return r.transition(ctx,
		`UPDATE withdrawal_requests SET transfer_id = $1
         WHERE id = $2 AND status = 'approved'`, transferID, id)
}

func (r *PostgresRepository) MarkProcessed(ctx context.Context, id, transferID string) error {
	return r.transition(ctx,
		`UPDATE withdrawal_requests SET status = 'processed', transfer_id = $1, processed_at = NOW()
         WHERE id = $2 AND status = 'approved'`, transferID, id)
}

func (r *PostgresRepository) transition(ctx context.Context, query string, args ...any) error {
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
