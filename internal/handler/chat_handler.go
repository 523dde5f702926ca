package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/middleware"
	"github.com/pennysavia/pennysavia-api/internal/service"
	"github.com/pennysavia/pennysavia-api/internal/utils"
)

// ChatHandler exposes the websocket relay and the message history endpoint.
type ChatHandler struct {
	service service.ChatService
	logger  zerolog.Logger
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(svc service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register wires the public chat routes onto the router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/messages", h.History)
	router.Use("/chat/ws", h.upgrade)
	router.Get("/chat/ws", websocket.New(h.serve))
}

// RegisterAdmin wires the admin messaging route onto the admin group.
func (h *ChatHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/messages", h.SendMessage)
}

func (h *ChatHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	c.Locals("user_id", c.Query("user_id"))
	c.Locals("user_name", c.Query("user_name"))
	c.Locals("room", c.Query("room"))
	c.Locals("correlation_id", middleware.GetCorrelationID(c))

	return c.Next()
}

func (h *ChatHandler) serve(conn *websocket.Conn) {
	opts := service.ChatConnectionOptions{
		UserID:        localString(conn, "user_id"),
		UserName:      localString(conn, "user_name"),
		Room:          localString(conn, "room"),
		CorrelationID: localString(conn, "correlation_id"),
		Context:       context.Background(),
	}

	h.logger.Debug().Str("user_id", opts.UserID).Str("room", opts.Room).Msg("relay connection accepted")
	h.service.ServeConnection(conn, opts)
}

// History returns the chronological message log for a room, or the full log
// when no room filter is given.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	var query dto.ChatHistoryQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	messages, err := h.service.History(c.UserContext(), query)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to fetch message history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch messages")
	}

	return utils.SendSuccess(c, "messages retrieved", messages)
}

// SendMessage delivers an admin text into a user's private room.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req dto.AdminMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.ToUserID == "" || req.Text == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "to_user_id and text are required")
	}

	message, err := h.service.SendPrivate(c.UserContext(), req.ToUserID, req.From, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("to_user_id", req.ToUserID).Msg("failed to send admin message")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func localString(conn *websocket.Conn, key string) string {
	if value, ok := conn.Locals(key).(string); ok {
		return value
	}
	return ""
}
