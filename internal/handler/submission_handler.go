package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/service"
	"github.com/pennysavia/pennysavia-api/internal/utils"
)

// SubmissionHandler serves the review-request intake and admin endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(svc service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: svc,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the submission routes onto the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/submissions", h.Create)
	router.Get("/submissions", h.List)
	router.Get("/submissions/stats", h.Stats)
	router.Get("/submissions/:id", h.Get)
	router.Patch("/submissions/:id", h.UpdateStatus)
}

// Create accepts a gift-card or token-purchase submission.
func (h *SubmissionHandler) Create(c *fiber.Ctx) error {
	var req dto.SubmissionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &validationErrs), errors.Is(err, service.ErrSubmissionInvalid):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to create submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create submission")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

// List returns submissions, optionally filtered by ?status=.
func (h *SubmissionHandler) List(c *fiber.Ctx) error {
	status := c.Query("status")

	var (
		submissions []dto.SubmissionResponse
		err         error
	)
	if status == "" {
		submissions, err = h.service.List(c.UserContext())
	} else {
		submissions, err = h.service.ListByStatus(c.UserContext(), status)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

// Get returns a single submission by id.
func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to fetch submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

// UpdateStatus overwrites the review decision on a submission.
func (h *SubmissionHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var req dto.SubmissionUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status != "pending" && req.Status != "approved" && req.Status != "rejected" {
		return utils.SendError(c, fiber.StatusBadRequest, "status must be pending, approved or rejected")
	}

	submission, err := h.service.SetStatus(c.UserContext(), id, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to update submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update submission")
	}

	return utils.SendSuccess(c, "submission updated", submission)
}

// Stats returns submission counts by status.
func (h *SubmissionHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.service.Stats(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to compute submission stats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute stats")
	}

	return utils.SendSuccess(c, "stats retrieved", counts)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
