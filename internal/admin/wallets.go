package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type AdminWallet struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	OwnerType      string    `json:"owner_type"`
	Balance        int64     `json:"balance"`
	TotalDeposited int64     `json:"total_deposited"`
	TotalEarned    int64     `json:"total_earned"`
	TotalSpent     int64     `json:"total_spent"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	CreatedAt      time.Time `json:"created_at"`
}

// GET /admin/wallets
func (h *Handler) ListWallets(c echo.Context) error {
	rows, err := h.db.Query(c.Request().Context(),
		`SELECT id, owner_id, owner_type, balance, total_deposited, total_earned,
		        total_spent, total_withdrawn, created_at
		 FROM wallets ORDER BY created_at DESC`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch wallets"})
	}
	defer rows.Close()

	var wallets []AdminWallet
	for rows.Next() {
		var w AdminWallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.OwnerType, &w.Balance, &w.TotalDeposited,
			&w.TotalEarned, &w.TotalSpent, &w.TotalWithdrawn, &w.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read wallet record"})
		}
		wallets = append(wallets, w)
	}
	return c.JSON(http.StatusOK, echo.Map{"wallets": wallets})
}

type AdminTransaction struct {
	ID          string    `json:"id"`
	WalletID    string    `json:"wallet_id"`
	OwnerID     string    `json:"owner_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GET /admin/transactions
func (h *Handler) ListTransactions(c echo.Context) error {
	rows, err := h.db.Query(c.Request().Context(),
		`SELECT t.id, t.wallet_id, w.owner_id, t.type, t.amount, t.description,
		        COALESCE(t.reference_id, ''), t.created_at
		 FROM wallet_transactions t
		 JOIN wallets w ON w.id = t.wallet_id
		 ORDER BY t.created_at DESC
		 LIMIT 500`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	defer rows.Close()

	var txs []AdminTransaction
	for rows.Next() {
		var t AdminTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.OwnerID, &t.Type, &t.Amount,
			&t.Description, &t.ReferenceID, &t.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read transaction record"})
		}
		txs = append(txs, t)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}

// GET /admin/transactions/user/:id
func (h *Handler) ListUserTransactions(c echo.Context) error {
	ownerID := c.Param("id")
	if ownerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}

	txs, err := h.wallets.ListTransactions(c.Request().Context(), ownerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": txs})
}
