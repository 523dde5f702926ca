package models

import "time"

// User represents a chat participant managed through the admin endpoints.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserName  string    `gorm:"size:255;not null" json:"user_name"`
	Email     string    `gorm:"size:255" json:"email"`
	Role      string    `gorm:"size:32;default:user" json:"role"`
	Banned    bool      `gorm:"not null;default:false" json:"banned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
