package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brieflabs/briefhub/internal/config"
)

// Connect opens a pgx pool against Postgres and verifies connectivity.
// The pool is owned by the caller (main) and passed into each component.
func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to Postgres successfully")
	return pool, nil
}

// EnsureSchema creates any missing tables and indexes. All statements are
// idempotent so this is safe to run on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) {
	ensureUsers(ctx, pool)
	ensureWallets(ctx, pool)
	ensureWalletTransactions(ctx, pool)
	ensureWithdrawalRequests(ctx, pool)
	ensureBriefs(ctx, pool)
	ensureWinnerRewards(ctx, pool)
	ensureConversations(ctx, pool)
	ensureNotifications(ctx, pool)
}

func ensureUsers(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('brand','creator','admin')),
            bio TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to ensure users table: %v", err)
	}
}

func ensureWallets(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            owner_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL CHECK (owner_type IN ('brand','creator')),
            balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
            total_deposited BIGINT NOT NULL DEFAULT 0,
            total_earned BIGINT NOT NULL DEFAULT 0,
            total_spent BIGINT NOT NULL DEFAULT 0,
            total_withdrawn BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to ensure wallets table: %v", err)
	}
}

func ensureWalletTransactions(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallet_transactions (
            id UUID PRIMARY KEY,
            wallet_id UUID NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
            type TEXT NOT NULL CHECK (type IN ('deposit','withdrawal','payment','refund')),
            amount BIGINT NOT NULL CHECK (amount > 0),
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL CHECK (status IN ('pending','completed','failed')),
            balance_before BIGINT NOT NULL,
            balance_after BIGINT NOT NULL,
            reference_id TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet_created
            ON wallet_transactions(wallet_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to ensure wallet_transactions table: %v", err)
		return
	}
	// The unique index is what makes referenceId dedup race-free: the
	// existence check and the insert share one transaction, and a
	// concurrent redelivery hits 23505 instead of double-applying.
	_, err = pool.Exec(ctx, `
        CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_transactions_reference
            ON wallet_transactions(reference_id) WHERE reference_id IS NOT NULL`)
	if err != nil {
		log.Printf("failed to ensure wallet_transactions reference index: %v", err)
	}
}

func ensureWithdrawalRequests(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS withdrawal_requests (
            id UUID PRIMARY KEY,
            creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            amount BIGINT NOT NULL CHECK (amount > 0),
            currency TEXT NOT NULL DEFAULT 'usd',
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','approved','rejected','processed')),
            reason TEXT NOT NULL DEFAULT '',
            admin_notes TEXT NOT NULL DEFAULT '',
            payout_account TEXT NOT NULL DEFAULT '',
            transfer_id TEXT NULL,
            requested_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            processed_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests(status);
    `)
	if err != nil {
		log.Printf("failed to ensure withdrawal_requests table: %v", err)
	}
}

func ensureBriefs(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS briefs (
            id UUID PRIMARY KEY,
            brand_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            reward_pool BIGINT NOT NULL CHECK (reward_pool >= 0),
            winner_count INTEGER NOT NULL CHECK (winner_count > 0),
            status TEXT NOT NULL DEFAULT 'draft'
                CHECK (status IN ('draft','open','judging','completed','cancelled')),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE TABLE IF NOT EXISTS brief_entries (
            id UUID PRIMARY KEY,
            brief_id UUID NOT NULL REFERENCES briefs(id) ON DELETE CASCADE,
            creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL DEFAULT '',
            submitted_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (brief_id, creator_id)
        );
    `)
	if err != nil {
		log.Printf("failed to ensure briefs tables: %v", err)
	}
}

func ensureWinnerRewards(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS winner_rewards (
            id UUID PRIMARY KEY,
            brief_id UUID NOT NULL REFERENCES briefs(id) ON DELETE CASCADE,
            creator_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            position INTEGER NOT NULL CHECK (position > 0),
            cash_amount BIGINT NOT NULL DEFAULT 0,
            credit_amount BIGINT NOT NULL DEFAULT 0,
            calculated_amount BIGINT NOT NULL DEFAULT 0,
            prize_description TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (brief_id, position)
        )`)
	if err != nil {
		log.Printf("failed to ensure winner_rewards table: %v", err)
	}
}

func ensureConversations(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS conversations (
            id UUID PRIMARY KEY,
            brief_id UUID NULL REFERENCES briefs(id) ON DELETE SET NULL,
            brand_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (brief_id, brand_id, creator_id)
        );
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            sender_type TEXT NOT NULL CHECK (sender_type IN ('brand','creator')),
            content TEXT NOT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
            ON messages(conversation_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to ensure conversations tables: %v", err)
	}
}

func ensureNotifications(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            reference TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created
            ON notifications(user_id, created_at DESC);
    `)
	if err != nil {
		log.Printf("failed to ensure notifications table: %v", err)
	}
}
