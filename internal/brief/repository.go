package brief

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, b *Brief) error
	Get(ctx context.Context, id string) (*Brief, error)
	ListByBrand(ctx context.Context, brandID string) ([]Brief, error)
	ListOpen(ctx context.Context) ([]Brief, error)
	ListByStatus(ctx context.Context, status string) ([]Brief, error)
	Transition(ctx context.Context, id, from, to string) error
	CreateEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, briefID string) ([]Entry, error)
	UpsertReward(ctx context.Context, r *WinnerReward) error
	ListRewards(ctx context.Context, briefID string) ([]WinnerReward, error)
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const briefColumns = `id, brand_id, title, description, reward_pool, winner_count, status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, b *Brief) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = StatusDraft
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	_, err := r.db.Exec(ctx, `
        INSERT INTO briefs (id, brand_id, title, description, reward_pool, winner_count, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.BrandID, b.Title, b.Description, b.RewardPool, b.WinnerCount, b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Brief, error) {
	var b Brief
	err := r.db.QueryRow(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id = $1`, id).
		Scan(&b.ID, &b.BrandID, &b.Title, &b.Description, &b.RewardPool, &b.WinnerCount,
			&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PostgresRepository) ListByBrand(ctx context.Context, brandID string) ([]Brief, error) {
	return r.list(ctx, `SELECT `+briefColumns+` FROM briefs WHERE brand_id = $1 ORDER BY created_at DESC`, brandID)
}

func (r *PostgresRepository) ListOpen(ctx context.Context) ([]Brief, error) {
	return r.ListByStatus(ctx, StatusOpen)
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status string) ([]Brief, error) {
	return r.list(ctx, `SELECT `+briefColumns+` FROM briefs WHERE status = $1 ORDER BY created_at DESC`, status)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Brief, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Brief
	for rows.Next() {
		var b Brief
		if err := rows.Scan(&b.ID, &b.BrandID, &b.Title, &b.Description, &b.RewardPool,
			&b.WinnerCount, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Transition moves a brief between statuses, guarded by the expected current
// status so concurrent actors cannot double-apply a step.
func (r *PostgresRepository) Transition(ctx context.Context, id, from, to string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE briefs SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.SubmittedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx, `
        INSERT INTO brief_entries (id, brief_id, creator_id, content, submitted_at)
        VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.BriefID, e.CreatorID, e.Content, e.SubmittedAt)
	return err
}

func (r *PostgresRepository) ListEntries(ctx context.Context, briefID string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, brief_id, creator_id, content, submitted_at
        FROM brief_entries WHERE brief_id = $1 ORDER BY submitted_at`, briefID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BriefID, &e.CreatorID, &e.Content, &e.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertReward writes one tier row. Re-running a distribution overwrites the
// row with identical values, keeping repair runs idempotent.
func (r *PostgresRepository) UpsertReward(ctx context.Context, w *WinnerReward) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	var creator any
	if w.CreatorID != "" {
		creator = w.CreatorID
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO winner_rewards
            (id, brief_id, creator_id, position, cash_amount, credit_amount, calculated_amount, prize_description)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (brief_id, position) DO UPDATE SET
            creator_id = EXCLUDED.creator_id,
            cash_amount = EXCLUDED.cash_amount,
            credit_amount = EXCLUDED.credit_amount,
            calculated_amount = EXCLUDED.calculated_amount,
            prize_description = EXCLUDED.prize_description`,
		w.ID, w.BriefID, creator, w.Position, w.CashAmount, w.CreditAmount,
		w.CalculatedAmount, w.PrizeDescription)
	return err
}

func (r *PostgresRepository) ListRewards(ctx context.Context, briefID string) ([]WinnerReward, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, brief_id, COALESCE(creator_id::text, ''), position, cash_amount, credit_amount,
               calculated_amount, prize_description, created_at
        FROM winner_rewards WHERE brief_id = $1 ORDER BY position`, briefID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WinnerReward
	for rows.Next() {
		var w WinnerReward
		if err := rows.Scan(&w.ID, &w.BriefID, &w.CreatorID, &w.Position, &w.CashAmount,
			&w.CreditAmount, &w.CalculatedAmount, &w.PrizeDescription, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
