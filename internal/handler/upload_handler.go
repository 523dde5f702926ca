package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/service"
	"github.com/pennysavia/pennysavia-api/internal/utils"
)

// UploadHandler accepts media uploads for the chat relay and submissions.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(svc service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: svc,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires the upload route onto the router group.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/upload", h.Upload)
}

// Upload stores a multipart file and returns its retrievable URL.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file field is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to open multipart file")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read file")
	}
	defer file.Close()

	result, err := h.service.Store(c.UserContext(), fileHeader.Filename, c.FormValue("user_id"), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		case errors.Is(err, service.ErrUploadUnsupported):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, "only image, audio and pdf uploads are accepted")
		case errors.Is(err, service.ErrStorageUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "media storage is not configured")
		default:
			h.logger.Error().Err(err).Str("file", fileHeader.Filename).Msg("failed to store upload")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to store file")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", result)
}
