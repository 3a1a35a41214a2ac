package brief

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/brieflabs/briefhub/internal/alerts"
	"github.com/brieflabs/briefhub/internal/reward"
	"github.com/brieflabs/briefhub/internal/wallet"
)

type Handler struct {
	service  *Service
	db       *pgxpool.Pool
	notifier *alerts.Notifier
}

func NewHandler(service *Service, db *pgxpool.Pool, notifier *alerts.Notifier) *Handler {
	return &Handler{service: service, db: db, notifier: notifier}
}

func (h *Handler) email(c echo.Context, userID string) string {
	var email string
	_ = h.db.QueryRow(c.Request().Context(), `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	return email
}

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RewardPool  int64  `json:"reward_pool"`
	WinnerCount int    `json:"winner_count"`
}

type EntryRequest struct {
	Content string `json:"content"`
}

type SelectWinnersRequest struct {
	// WinnerIDs lists creator IDs in ranked order, position 1 first.
	WinnerIDs []string `json:"winner_ids"`
}

// Create - brand drafts a new brief.
func (h *Handler) Create(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(CreateRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	b, err := h.service.Create(c.Request().Context(), uid, req.Title, req.Description, req.RewardPool, req.WinnerCount)
	if err != nil {
		if errors.Is(err, reward.ErrInvalidWinnerCount) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "winner count must be at least 1"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, b)
}

// Fund - brand pays the reward pool from their wallet and opens the brief.
func (h *Handler) Fund(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	b, err := h.service.Fund(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "brief is not in draft"})
		case errors.Is(err, wallet.ErrInsufficientFunds):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient balance to fund reward pool"})
		case errors.Is(err, wallet.ErrWalletNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "deposit funds before opening a brief"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fund brief"})
	}

	if h.notifier != nil {
		if email := h.email(c, uid); email != "" {
			_ = h.notifier.BriefFunded(b.ID, uid, email, b.RewardPool)
		}
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel - brand cancels an open brief; the pool returns to their wallet.
func (h *Handler) Cancel(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	b, err := h.service.Cancel(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "only open briefs can be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not cancel brief"})
	}
	return c.JSON(http.StatusOK, b)
}

// Get - anyone authenticated can view a brief.
func (h *Handler) Get(c echo.Context) error {
	b, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch brief"})
	}
	return c.JSON(http.StatusOK, b)
}

// ListOpen - creators browse briefs accepting entries.
func (h *Handler) ListOpen(c echo.Context) error {
	briefs, err := h.service.ListOpen(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch briefs"})
	}
	if briefs == nil {
		briefs = []Brief{}
	}
	return c.JSON(http.StatusOK, briefs)
}

// ListMine - brand lists their own briefs in any status.
func (h *Handler) ListMine(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	briefs, err := h.service.ListByBrand(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch briefs"})
	}
	if briefs == nil {
		briefs = []Brief{}
	}
	return c.JSON(http.StatusOK, briefs)
}

// SubmitEntry - creator submits work to an open brief.
func (h *Handler) SubmitEntry(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(EntryRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	e, err := h.service.SubmitEntry(c.Request().Context(), c.Param("id"), uid, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "brief is not accepting entries"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not submit entry"})
	}
	return c.JSON(http.StatusCreated, e)
}

// ListEntries - brand reviews submissions.
func (h *Handler) ListEntries(c echo.Context) error {
	entries, err := h.service.ListEntries(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch entries"})
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// CloseForJudging - brand stops new entries while picking winners.
func (h *Handler) CloseForJudging(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	if err := h.service.CloseForJudging(c.Request().Context(), uid, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "brief is not open"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not close brief"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "brief closed for judging"})
}

// SelectWinners - brand ranks winners; rewards are computed and paid out.
func (h *Handler) SelectWinners(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(SelectWinnersRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	rewards, err := h.service.SelectWinners(c.Request().Context(), uid, c.Param("id"), req.WinnerIDs)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "brief not found"})
		case errors.Is(err, ErrWrongWinnerCount):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "winner list does not match the brief's winner count"})
		case errors.Is(err, ErrInvalidTransition):
			return c.JSON(http.StatusConflict, echo.Map{"error": "brief is not ready for winner selection"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not distribute rewards"})
	}

	if h.notifier != nil {
		for _, r := range rewards {
			if r.CreatorID == "" || r.CalculatedAmount <= 0 {
				continue
			}
			if email := h.email(c, r.CreatorID); email != "" {
				_ = h.notifier.RewardPaid(r.BriefID, r.CreatorID, email, r.Position, r.CalculatedAmount)
			}
		}
	}
	return c.JSON(http.StatusOK, rewards)
}

// Rewards - lists the recorded payout rows for a brief.
func (h *Handler) Rewards(c echo.Context) error {
	rewards, err := h.service.Rewards(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch rewards"})
	}
	if rewards == nil {
		rewards = []WinnerReward{}
	}
	return c.JSON(http.StatusOK, rewards)
}
