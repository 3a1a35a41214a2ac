package withdrawal

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/brieflabs/briefhub/internal/alerts"
	"github.com/brieflabs/briefhub/internal/wallet"
)

// Handler exposes the creator-facing and admin-facing withdrawal endpoints.
type Handler struct {
	service  *Service
	db       *pgxpool.Pool
	notifier *alerts.Notifier
}

func NewHandler(service *Service, db *pgxpool.Pool, notifier *alerts.Notifier) *Handler {
	return &Handler{service: service, db: db, notifier: notifier}
}

// notifyStatus emails the creator about a state change, best-effort.
func (h *Handler) notifyStatus(c echo.Context, req *Request) {
	if h.notifier == nil || req == nil {
		return
	}
	var email string
	_ = h.db.QueryRow(c.Request().Context(), `SELECT email FROM users WHERE id = $1`, req.CreatorID).Scan(&email)
	if email != "" {
		_ = h.notifier.WithdrawalStatus(req.ID, req.CreatorID, email, req.Status, req.Amount)
	}
}

type SubmitRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	PayoutAccount string `json:"payout_account"`
}

type actionRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// Submit - creator requests a payout of wallet balance.
func (h *Handler) Submit(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(SubmitRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	created, err := h.service.Submit(c.Request().Context(), uid, req.Amount, req.Currency, req.Reason, req.PayoutAccount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient balance"})
		case errors.Is(err, wallet.ErrInvalidAmount):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be greater than zero"})
		case errors.Is(err, wallet.ErrWalletNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wallet not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create withdrawal request"})
	}

	return c.JSON(http.StatusCreated, created)
}

// ListMine - creator lists their own withdrawal requests.
func (h *Handler) ListMine(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	reqs, err := h.service.ListMine(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch withdrawals"})
	}
	if reqs == nil {
		reqs = []Request{}
	}
	return c.JSON(http.StatusOK, reqs)
}

// ListPending - admin approval queue.
func (h *Handler) ListPending(c echo.Context) error {
	reqs, err := h.service.ListPending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch withdrawals"})
	}
	if reqs == nil {
		reqs = []Request{}
	}
	return c.JSON(http.StatusOK, echo.Map{"pending_withdrawals": reqs})
}

// Approve - admin approves and triggers the payout.
func (h *Handler) Approve(c echo.Context) error {
	id := c.Param("id")
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	processed, err := h.service.Approve(c.Request().Context(), id, req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "withdrawal not found"})
		case errors.Is(err, wallet.ErrInsufficientFunds):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "creator balance no longer covers this withdrawal"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "withdrawal already finalized"})
		case errors.Is(err, ErrTransferFailed):
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":  "payout transfer failed; request remains approved for retry",
				"status": processed.Status,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not process withdrawal"})
	}

	h.notifyStatus(c, processed)
	return c.JSON(http.StatusOK, processed)
}

// Reject - admin declines a pending request.
func (h *Handler) Reject(c echo.Context) error {
	id := c.Param("id")
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	rejected, err := h.service.Reject(c.Request().Context(), id, req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "withdrawal not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "withdrawal already finalized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reject withdrawal"})
	}

	h.notifyStatus(c, rejected)
	return c.JSON(http.StatusOK, rejected)
}
