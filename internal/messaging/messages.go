package messaging

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/brieflabs/briefhub/internal/alerts"
)

// Handler owns brand/creator conversation threads. The sender's side of each
// message is the role tag carried in the token, stored on the row; nothing
// here ever infers who is the brand by probing other tables.
type Handler struct {
	db *pgxpool.Pool
}

func NewHandler(db *pgxpool.Pool) *Handler {
	return &Handler{db: db}
}

// participant returns the counterpart's user id when userID is part of the
// conversation, or an empty string when they are not.
func (h *Handler) participant(c echo.Context, conversationID, userID string) (counterpartID string, ok bool, err error) {
	var brandID, creatorID string
	err = h.db.QueryRow(c.Request().Context(),
		`SELECT brand_id, creator_id FROM conversations WHERE id = $1`, conversationID,
	).Scan(&brandID, &creatorID)
	if err != nil {
		return "", false, err
	}
	switch userID {
	case brandID:
		return creatorID, true, nil
	case creatorID:
		return brandID, true, nil
	}
	return "", false, nil
}

// StartConversation - open (or reuse) a thread between the caller and a
// counterpart, optionally attached to a brief.
func (h *Handler) StartConversation(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)

	var body struct {
		CounterpartID string `json:"counterpart_id"`
		BriefID       string `json:"brief_id"`
	}
	if err := c.Bind(&body); err != nil || body.CounterpartID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	var brandID, creatorID string
	switch role {
	case "brand":
		brandID, creatorID = userID, body.CounterpartID
	case "creator":
		brandID, creatorID = body.CounterpartID, userID
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only brands and creators can message"})
	}

	var briefID any
	if body.BriefID != "" {
		briefID = body.BriefID
	}

	var convID string
	err := h.db.QueryRow(c.Request().Context(), `
		INSERT INTO conversations (id, brief_id, brand_id, creator_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (brief_id, brand_id, creator_id) DO UPDATE SET brand_id = EXCLUDED.brand_id
		RETURNING id
	`, uuid.New().String(), briefID, brandID, creatorID).Scan(&convID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start conversation"})
	}

	return c.JSON(http.StatusOK, echo.Map{"conversation_id": convID})
}

// ListConversations - every thread the caller takes part in, newest first.
func (h *Handler) ListConversations(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := h.db.Query(c.Request().Context(), `
		SELECT id, COALESCE(brief_id::text, ''), brand_id, creator_id, created_at
		FROM conversations
		WHERE brand_id = $1 OR creator_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list conversations"})
	}
	defer rows.Close()

	items := []echo.Map{}
	for rows.Next() {
		var id, briefID, brandID, creatorID string
		var createdAt time.Time
		if err := rows.Scan(&id, &briefID, &brandID, &creatorID, &createdAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, echo.Map{
			"id":         id,
			"brief_id":   briefID,
			"brand_id":   brandID,
			"creator_id": creatorID,
			"created_at": createdAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": items})
}

// SendMessage - either side posts into the thread.
func (h *Handler) SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)
	if role != "brand" && role != "creator" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only brands and creators can message"})
	}

	convID := c.Param("id")
	if convID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil || body.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	recipientID, isParticipant, err := h.participant(c, convID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch conversation"})
	}
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	msgID := uuid.New().String()
	var createdAt time.Time
	err = h.db.QueryRow(c.Request().Context(),
		`INSERT INTO messages (id, conversation_id, sender_id, sender_type, content)
         VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		msgID, convID, userID, role, body.Content,
	).Scan(&createdAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	BroadcastNewMessage(convID, echo.Map{
		"id":              msgID,
		"conversation_id": convID,
		"sender_id":       userID,
		"sender_type":     role,
		"content":         body.Content,
		"created_at":      createdAt.UTC().Format(time.RFC3339),
	})

	// In-app notification for the counterpart, best-effort
	_ = alerts.Record(c.Request().Context(), h.db, recipientID, "message:new",
		"New message", body.Content, msgID)

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID})
}

// ListMessages - the conversation history, oldest first. Supports an
// optional since filter for incremental fetches.
func (h *Handler) ListMessages(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	convID := c.Param("id")
	if convID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	_, isParticipant, err := h.participant(c, convID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch conversation"})
	}
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	query := `SELECT id, sender_id, sender_type, content, created_at, read_at
	          FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	args := []any{convID}
	if sinceStr := c.QueryParam("since"); sinceStr != "" {
		sinceTime, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		query = `SELECT id, sender_id, sender_type, content, created_at, read_at
		         FROM messages WHERE conversation_id = $1 AND created_at > $2 ORDER BY created_at ASC`
		args = append(args, sinceTime)
	}

	rows, err := h.db.Query(c.Request().Context(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	defer rows.Close()

	type message struct {
		ID         string      `json:"id"`
		SenderID   string      `json:"sender_id"`
		SenderType string      `json:"sender_type"`
		Content    string      `json:"content"`
		CreatedAt  string      `json:"created_at"`
		ReadAt     interface{} `json:"read_at"`
	}

	var msgs []message
	for rows.Next() {
		var m message
		var createdAt time.Time
		var readAt *time.Time
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderType, &m.Content, &createdAt, &readAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		m.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if readAt != nil {
			m.ReadAt = readAt.UTC().Format(time.RFC3339)
		}
		msgs = append(msgs, m)
	}

	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// UnreadCount - messages from the counterpart the caller has not read yet.
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	convID := c.Param("id")
	if convID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation id"})
	}

	_, isParticipant, err := h.participant(c, convID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch conversation"})
	}
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	var count int64
	err = h.db.QueryRow(c.Request().Context(),
		`SELECT COUNT(*) FROM messages
		 WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL`,
		convID, userID,
	).Scan(&count)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkMessageRead - recipient marks a specific message as read.
func (h *Handler) MarkMessageRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	convID := c.Param("id")
	msgID := c.Param("message_id")
	if convID == "" || msgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing conversation or message id"})
	}

	_, isParticipant, err := h.participant(c, convID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch conversation"})
	}
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this conversation"})
	}

	var readTS time.Time
	err = h.db.QueryRow(c.Request().Context(),
		`UPDATE messages SET read_at = NOW()
		 WHERE id = $1 AND conversation_id = $2 AND sender_id <> $3
		 RETURNING read_at`, msgID, convID, userID,
	).Scan(&readTS)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}

	BroadcastMessageRead(convID, echo.Map{
		"message_id":      msgID,
		"conversation_id": convID,
		"user_id":         userID,
		"read_at":         readTS.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID, "read_at": readTS.UTC().Format(time.RFC3339)})
}
