package payments

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/brieflabs/briefhub/internal/alerts"
)

// Handler exposes checkout initiation and the provider webhook endpoint.
type Handler struct {
	gateway       Gateway
	reconciler    *Reconciler
	webhookSecret string
	db            *pgxpool.Pool
	notifier      *alerts.Notifier
}

func NewHandler(gateway Gateway, reconciler *Reconciler, webhookSecret string, db *pgxpool.Pool, notifier *alerts.Notifier) *Handler {
	return &Handler{gateway: gateway, reconciler: reconciler, webhookSecret: webhookSecret, db: db, notifier: notifier}
}

type CheckoutRequest struct {
	Amount int64 `json:"amount"`
}

// CheckoutInit creates a provider checkout session for a wallet top-up. The
// owner identity rides along in session metadata and comes back on the
// completion webhook, which is where the actual deposit happens.
func (h *Handler) CheckoutInit(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)
	if role != "brand" && role != "creator" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only brands and creators hold wallets"})
	}

	req := new(CheckoutRequest)
	if err := c.Bind(req); err != nil || req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	session, err := h.gateway.CreateCheckoutSession(c.Request().Context(), req.Amount, "usd", map[string]string{
		"owner_id":   uid,
		"owner_type": role,
	})
	if err != nil {
		log.Printf("checkout session creation failed for %s: %v", uid, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "could not create checkout session"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

// Webhook receives provider notifications. Delivery is at-least-once and
// unordered, so the response code is the retry contract: 2xx acknowledges
// (including malformed payloads, which retries cannot fix), non-2xx asks the
// provider to redeliver after a transient storage failure.
func (h *Handler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if err := VerifySignature(body, sig, h.webhookSecret, DefaultSignatureTolerance, time.Now()); err != nil {
		log.Printf("webhook: rejected payload with bad signature from %s", c.RealIP())
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	ev, err := ParseEvent(body)
	if err != nil {
		log.Printf("webhook: malformed event, acknowledging without mutation: %v", err)
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": "malformed"})
	}

	rec, applied, err := h.reconciler.Apply(c.Request().Context(), ev)
	if err != nil {
		if errors.Is(err, ErrMalformedEvent) {
			log.Printf("webhook: event %s missing required fields, acknowledging", ev.ReferenceID)
			return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": "malformed"})
		}
		log.Printf("webhook: failed to apply event %s: %v", ev.ReferenceID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not applied"})
	}

	// Only a first application gets the email; redeliveries are acknowledged
	// without re-notifying.
	if applied && rec != nil && ev.Type == EventCheckoutCompleted && h.notifier != nil {
		var email string
		_ = h.db.QueryRow(c.Request().Context(), `SELECT email FROM users WHERE id = $1`, ev.OwnerID).Scan(&email)
		if email != "" {
			_ = h.notifier.DepositReceived(ev.OwnerID, email, ev.Amount)
		}
	}

	resp := echo.Map{"received": true}
	if rec != nil {
		resp["transaction_id"] = rec.ID
	}
	return c.JSON(http.StatusOK, resp)
}
