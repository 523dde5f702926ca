package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/pennysavia/pennysavia-api/internal/models"
)

// SubmissionRepository owns the review-request collection.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id uint) (models.Submission, error)
	UpdateStatus(ctx context.Context, id uint, status string) (models.Submission, error)
	List(ctx context.Context) ([]models.Submission, error)
	ListByStatus(ctx context.Context, status string) ([]models.Submission, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a submission repository backed by GORM.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) FindByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// UpdateStatus overwrites the status field unconditionally; the caller decides
// whether the transition is meaningful.
func (r *submissionRepository) UpdateStatus(ctx context.Context, id uint, status string) (models.Submission, error) {
	submission, err := r.FindByID(ctx, id)
	if err != nil {
		return models.Submission{}, err
	}

	if err := r.db.WithContext(ctx).Model(&submission).Update("status", status).Error; err != nil {
		return models.Submission{}, err
	}

	submission.Status = status
	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListByStatus(ctx context.Context, status string) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("status, count(*) as total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}
