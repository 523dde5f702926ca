package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/internal/observability"
	"github.com/pennysavia/pennysavia-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates the asset exceeds the configured size cap.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	// ErrUploadUnsupported indicates a media type the relay does not carry.
	ErrUploadUnsupported = errors.New("unsupported media type")
	// ErrStorageUnavailable indicates no media storage backend is configured.
	ErrStorageUnavailable = errors.New("media storage not configured")
)

// FileStorage stores a media asset and returns its retrievable URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates and stores chat media and purchase-proof images.
type UploadService interface {
	Store(ctx context.Context, fileName, userID string, reader io.Reader) (dto.UploadResponse, error)
}

type uploadService struct {
	storage  FileStorage
	repo     repository.UploadRepository
	maxBytes int64
	logger   zerolog.Logger
}

// NewUploadService constructs an upload service with the given size cap in bytes.
func NewUploadService(storage FileStorage, repo repository.UploadRepository, maxBytes int64, logger zerolog.Logger) UploadService {
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &uploadService{
		storage:  storage,
		repo:     repo,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "upload_service").Logger(),
	}
}

func (s *uploadService) Store(ctx context.Context, fileName, userID string, reader io.Reader) (dto.UploadResponse, error) {
	if s.storage == nil {
		return dto.UploadResponse{}, ErrStorageUnavailable
	}

	start := time.Now()

	data, err := io.ReadAll(io.LimitReader(reader, s.maxBytes+1))
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		observability.UploadRejected().WithLabelValues("too_large").Inc()
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(data)
	if !allowedMediaType(detected.String()) {
		observability.UploadRejected().WithLabelValues("unsupported").Inc()
		return dto.UploadResponse{}, fmt.Errorf("%w: %s", ErrUploadUnsupported, detected.String())
	}

	url, err := s.storage.Upload(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		return dto.UploadResponse{}, fmt.Errorf("failed to store upload: %w", err)
	}

	sum := sha256.Sum256(data)
	record := models.UploadRecord{
		FileName:  fileName,
		URL:       url,
		MimeType:  detected.String(),
		SizeBytes: int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
		UserID:    userID,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Str("file", fileName).Msg("failed to record upload")
	}

	observability.UploadRequests().WithLabelValues(mediaClass(detected.String())).Inc()
	observability.UploadLatency().Observe(time.Since(start).Seconds())

	s.logger.Info().Str("file", fileName).Str("mime", detected.String()).Int("size", len(data)).Msg("upload stored")

	return dto.UploadResponse{
		URL:       record.URL,
		FileName:  record.FileName,
		MimeType:  record.MimeType,
		SizeBytes: record.SizeBytes,
		Checksum:  record.Checksum,
	}, nil
}

func allowedMediaType(mime string) bool {
	return strings.HasPrefix(mime, "image/") ||
		strings.HasPrefix(mime, "audio/") ||
		mime == "application/pdf"
}

func mediaClass(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	default:
		return "document"
	}
}
