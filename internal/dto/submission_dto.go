package dto

import (
	"encoding/json"
	"time"

	"github.com/pennysavia/pennysavia-api/internal/models"
)

// SubmissionCreateRequest is the kind-tagged payload to open a review request.
// Gift-card submissions must attach at least two card photos; token purchases
// carry the computed price and at least one payment proof.
type SubmissionCreateRequest struct {
	Kind     string   `json:"kind" validate:"required,oneof=gift-card token-purchase"`
	Name     string   `json:"name" validate:"required,min=1,max=255"`
	Email    string   `json:"email" validate:"required,email"`
	Phone    string   `json:"phone" validate:"required,min=3,max=64"`
	Amount   float64  `json:"amount" validate:"required,gt=0"`
	Price    float64  `json:"price" validate:"omitempty,gt=0"`
	Images   []string `json:"images" validate:"required,min=1,dive,min=1"`
	UserID   string   `json:"user_id" validate:"omitempty,max=64"`
	UserName string   `json:"user_name" validate:"omitempty,max=255"`
}

// SubmissionUpdateRequest overwrites the review status of a submission.
type SubmissionUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

// SubmissionResponse is the serialized representation of a submission.
type SubmissionResponse struct {
	ID        uint      `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	Images    []string  `json:"images"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:        model.ID,
		Kind:      model.Kind,
		Name:      model.Name,
		Email:     model.Email,
		Phone:     model.Phone,
		Amount:    model.Amount,
		Price:     model.Price,
		UserID:    model.UserID,
		UserName:  model.UserName,
		Images:    decodeImages(model.Images),
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if model.Kind == models.KindGiftCard {
		response.Tokens = model.Tokens()
	}
	return response
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSubmissionResponse(item))
	}
	return out
}

func decodeImages(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var images []string
	if err := json.Unmarshal(raw, &images); err != nil {
		return []string{}
	}
	return images
}
