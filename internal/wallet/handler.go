package wallet

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the authenticated wallet endpoints.
type Handler struct {
	wallets *Manager
}

func NewHandler(wallets *Manager) *Handler {
	return &Handler{wallets: wallets}
}

// Balance returns the authenticated user's wallet state.
func (h *Handler) Balance(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	w, err := h.wallets.GetWallet(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch wallet"})
	}

	return c.JSON(http.StatusOK, w)
}

// Transactions returns the authenticated user's ledger history.
func (h *Handler) Transactions(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	txs, err := h.wallets.ListTransactions(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	if txs == nil {
		txs = []Transaction{}
	}

	return c.JSON(http.StatusOK, txs)
}
