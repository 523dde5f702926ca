package dto

import (
	"time"

	"github.com/pennysavia/pennysavia-api/internal/models"
)

// UserUpdateRequest applies a partial update to a user record.
type UserUpdateRequest struct {
	Role   *string `json:"role" validate:"omitempty,oneof=user admin"`
	Banned *bool   `json:"banned"`
}

// UserResponse represents user data returned to admin clients.
type UserResponse struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse converts a user model to a DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:        model.ID,
		UserName:  model.UserName,
		Email:     model.Email,
		Role:      model.Role,
		Banned:    model.Banned,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewUserResponseSlice converts a slice of users to DTOs.
func NewUserResponseSlice(items []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewUserResponse(item))
	}
	return out
}
