package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/internal/observability"
	"github.com/pennysavia/pennysavia-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates the requested submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionInvalid indicates the payload failed kind-specific validation.
	ErrSubmissionInvalid = errors.New("invalid submission payload")
)

// SubmissionService exposes the review-request workflow.
type SubmissionService interface {
	Create(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context) ([]dto.SubmissionResponse, error)
	ListByStatus(ctx context.Context, status string) ([]dto.SubmissionResponse, error)
	SetStatus(ctx context.Context, id uint, status string) (dto.SubmissionResponse, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

type submissionService struct {
	repo          repository.SubmissionRepository
	validator     *validator.Validate
	notifier      SubmissionNotifier
	logger        zerolog.Logger
	notifyTimeout time.Duration
	tracer        trace.Tracer
}

// NewSubmissionService constructs a submission service.
func NewSubmissionService(repo repository.SubmissionRepository, validate *validator.Validate, notifier SubmissionNotifier, notifyTimeout time.Duration, logger zerolog.Logger) SubmissionService {
	if notifyTimeout <= 0 {
		notifyTimeout = 15 * time.Second
	}
	return &submissionService{
		repo:          repo,
		validator:     validate,
		notifier:      notifier,
		logger:        logger.With().Str("component", "submission_service").Logger(),
		notifyTimeout: notifyTimeout,
		tracer:        otel.Tracer("github.com/pennysavia/pennysavia-api/internal/service/submission"),
	}
}

func (s *submissionService) Create(ctx context.Context, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.create",
		trace.WithAttributes(attribute.String("submission.kind", req.Kind)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, err
	}

	if err := validateKind(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kind validation failed")
		return dto.SubmissionResponse{}, err
	}

	images, err := json.Marshal(req.Images)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		Kind:     req.Kind,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Amount:   req.Amount,
		Price:    req.Price,
		UserID:   strings.TrimSpace(req.UserID),
		UserName: strings.TrimSpace(req.UserName),
		Images:   datatypes.JSON(images),
		Status:   models.StatusPending,
	}

	if err := s.repo.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.SubmissionResponse{}, err
	}

	observability.Submissions().WithLabelValues(submission.Kind, models.StatusPending).Inc()
	s.logger.Info().Uint("submission_id", submission.ID).Str("kind", submission.Kind).Msg("submission recorded")

	// Fire-and-forget: the intake response never waits for the bot transport,
	// and a failed notification leaves the record pending.
	s.dispatchNotification(submission)

	span.SetStatus(codes.Ok, "created")
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) dispatchNotification(submission models.Submission) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, submission); err != nil {
			observability.Notifications().WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("notification dispatch failed")
			return
		}
		observability.Notifications().WithLabelValues("sent").Inc()
	}()
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, mapNotFound(err)
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context) ([]dto.SubmissionResponse, error) {
	submissions, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) ListByStatus(ctx context.Context, status string) ([]dto.SubmissionResponse, error) {
	submissions, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) SetStatus(ctx context.Context, id uint, status string) (dto.SubmissionResponse, error) {
	submission, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return dto.SubmissionResponse{}, mapNotFound(err)
	}

	observability.Submissions().WithLabelValues(submission.Kind, status).Inc()
	s.logger.Info().Uint("submission_id", id).Str("status", status).Msg("submission status updated")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Stats(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// validateKind enforces the kind-specific required fields the shared struct
// tags cannot express.
func validateKind(req dto.SubmissionCreateRequest) error {
	switch req.Kind {
	case models.KindGiftCard:
		if len(req.Images) < 2 {
			return fmt.Errorf("gift-card submissions require at least two card images: %w", ErrSubmissionInvalid)
		}
	case models.KindTokenPurchase:
		if req.Price <= 0 {
			return fmt.Errorf("token-purchase submissions require a price: %w", ErrSubmissionInvalid)
		}
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSubmissionNotFound
	}
	return err
}

func imageList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var images []string
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil
	}
	return images
}
