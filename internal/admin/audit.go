package admin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brieflabs/briefhub/internal/wallet"
)

// GET /admin/ledger/audit
// Replays every wallet's transaction history against its stored balance and
// lifetime counters, and reports the wallets that drift.
func (h *Handler) AuditLedger(c echo.Context) error {
	drifts, err := h.wallets.AuditAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit failed"})
	}
	if drifts == nil {
		drifts = []wallet.Drift{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"consistent": len(drifts) == 0,
		"drifts":     drifts,
	})
}

// GET /admin/ledger/audit/:id
// Audits a single owner's wallet.
func (h *Handler) AuditWallet(c echo.Context) error {
	ownerID := c.Param("id")
	if ownerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}

	drift, err := h.wallets.VerifyLedger(c.Request().Context(), ownerID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit failed"})
	}
	if drift == nil {
		return c.JSON(http.StatusOK, echo.Map{"consistent": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"consistent": false, "drift": drift})
}
