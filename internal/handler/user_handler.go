package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/service"
	"github.com/pennysavia/pennysavia-api/internal/utils"
)

// UserHandler serves the admin user directory.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires the user routes onto the admin router group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/users", h.List)
	router.Get("/users/:id", h.Get)
	router.Patch("/users/:id", h.Update)
}

// List returns every known relay user.
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list users")
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

// Get returns a single user by id.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		h.logger.Error().Err(err).Str("user_id", c.Params("id")).Msg("failed to fetch user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch user")
	}
	return utils.SendSuccess(c, "user retrieved", user)
}

// Update applies a partial role or ban change.
func (h *UserHandler) Update(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		default:
			h.logger.Error().Err(err).Str("user_id", c.Params("id")).Msg("failed to update user")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update user")
		}
	}

	return utils.SendSuccess(c, "user updated", user)
}
