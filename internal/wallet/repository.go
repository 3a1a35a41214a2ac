package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the ledger store. Apply must be atomic: the balance check,
// the wallet update and the transaction insert either all commit or none do.
type Repository interface {
	CreateWallet(ctx context.Context, ownerID, ownerType string) (*Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (*Wallet, error)
	ListWallets(ctx context.Context) ([]Wallet, error)
	Apply(ctx context.Context, walletID string, ch Change) (*Transaction, error)
	ListTransactions(ctx context.Context, walletID string) ([]Transaction, error)
	FindTransactionByReference(ctx context.Context, referenceID string) (*Transaction, error)
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, owner_id, owner_type, balance, total_deposited, total_earned,
    total_spent, total_withdrawn, created_at, updated_at`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.OwnerType, &w.Balance, &w.TotalDeposited,
		&w.TotalEarned, &w.TotalSpent, &w.TotalWithdrawn, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *PostgresRepository) CreateWallet(ctx context.Context, ownerID, ownerType string) (*Wallet, error) {
	row := r.db.QueryRow(ctx, `
        INSERT INTO wallets (id, owner_id, owner_type)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO UPDATE SET updated_at = wallets.updated_at
        RETURNING `+walletColumns,
		uuid.New().String(), ownerID, ownerType)
	return scanWallet(row)
}

func (r *PostgresRepository) GetWalletByOwner(ctx context.Context, ownerID string) (*Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row)
}

func (r *PostgresRepository) ListWallets(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.OwnerType, &w.Balance, &w.TotalDeposited,
			&w.TotalEarned, &w.TotalSpent, &w.TotalWithdrawn, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Apply performs one balance mutation. The wallet row is locked FOR UPDATE so
// two concurrent mutations on the same wallet serialize instead of both
// validating against a stale balance. The reference dedup check runs inside
// the same transaction; the partial unique index on reference_id is the
// race backstop for concurrent redeliveries.
func (r *PostgresRepository) Apply(ctx context.Context, walletID string, ch Change) (*Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var w Wallet
	err = tx.QueryRow(ctx, `
        SELECT balance, total_deposited, total_earned, total_spent, total_withdrawn
        FROM wallets WHERE id = $1 FOR UPDATE`, walletID).
		Scan(&w.Balance, &w.TotalDeposited, &w.TotalEarned, &w.TotalSpent, &w.TotalWithdrawn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	if ch.ReferenceID != "" {
		prior, err := findByReference(ctx, tx, ch.ReferenceID)
		if err == nil {
			return prior, ErrDuplicateReference
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reference lookup: %w", err)
		}
	}

	balanceBefore := w.Balance
	var balanceAfter int64
	if ch.Kind.Credits() {
		balanceAfter = balanceBefore + ch.Amount
	} else {
		if ch.Amount > balanceBefore {
			return nil, ErrInsufficientFunds
		}
		balanceAfter = balanceBefore - ch.Amount
	}

	deposited, earned, spent, withdrawn := w.TotalDeposited, w.TotalEarned, w.TotalSpent, w.TotalWithdrawn
	switch ch.Kind {
	case KindDeposit:
		deposited += ch.Amount
	case KindEarn:
		earned += ch.Amount
	case KindSpend:
		spent += ch.Amount
	case KindRefund:
		spent -= ch.Amount
	case KindWithdraw:
		withdrawn += ch.Amount
	}

	_, err = tx.Exec(ctx, `
        UPDATE wallets
        SET balance = $1, total_deposited = $2, total_earned = $3,
            total_spent = $4, total_withdrawn = $5, updated_at = NOW()
        WHERE id = $6`,
		balanceAfter, deposited, earned, spent, withdrawn, walletID)
	if err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	rec := &Transaction{
		ID:            uuid.New().String(),
		WalletID:      walletID,
		Type:          ch.Kind.TransactionType(),
		Amount:        ch.Amount,
		Description:   ch.Description,
		Status:        StatusCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceID:   ch.ReferenceID,
		CreatedAt:     time.Now().UTC(),
	}

	var ref any
	if ch.ReferenceID != "" {
		ref = ch.ReferenceID
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO wallet_transactions
            (id, wallet_id, type, amount, description, status, balance_before, balance_after, reference_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.WalletID, rec.Type, rec.Amount, rec.Description, rec.Status,
		rec.BalanceBefore, rec.BalanceAfter, ref, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent delivery won the race. Roll back and hand the
			// caller the transaction that actually committed.
			_ = tx.Rollback(ctx)
			prior, ferr := r.FindTransactionByReference(ctx, ch.ReferenceID)
			if ferr != nil {
				return nil, fmt.Errorf("fetch prior transaction: %w", ferr)
			}
			return prior, ErrDuplicateReference
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

const transactionColumns = `id, wallet_id, type, amount, description, status,
    balance_before, balance_after, COALESCE(reference_id, ''), created_at`

func (r *PostgresRepository) ListTransactions(ctx context.Context, walletID string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+transactionColumns+`
        FROM wallet_transactions
        WHERE wallet_id = $1
        ORDER BY created_at`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Description, &t.Status,
			&t.BalanceBefore, &t.BalanceAfter, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findByReference(ctx context.Context, q queryRower, referenceID string) (*Transaction, error) {
	var t Transaction
	err := q.QueryRow(ctx, `
        SELECT `+transactionColumns+`
        FROM wallet_transactions
        WHERE reference_id = $1 AND status = 'completed'`, referenceID).
		Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Description, &t.Status,
			&t.BalanceBefore, &t.BalanceAfter, &t.ReferenceID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, referenceID string) (*Transaction, error) {
	return findByReference(ctx, r.db, referenceID)
}
