package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var users, briefs, entries, wallets, transactions, withdrawals int

	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM briefs`).Scan(&briefs)
	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM brief_entries`).Scan(&entries)
	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&wallets)
	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions`).Scan(&transactions)
	_ = h.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests`).Scan(&withdrawals)

	return c.JSON(http.StatusOK, echo.Map{
		"users":        users,
		"briefs":       briefs,
		"entries":      entries,
		"wallets":      wallets,
		"transactions": transactions,
		"withdrawals":  withdrawals,
	})
}
