// Package admin holds the back-office endpoints: user management, platform
// stats, and the ledger oversight surface.
package admin

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brieflabs/briefhub/internal/wallet"
)

type Handler struct {
	db      *pgxpool.Pool
	wallets *wallet.Manager
}

func NewHandler(db *pgxpool.Pool, wallets *wallet.Manager) *Handler {
	return &Handler{db: db, wallets: wallets}
}
