package models

import "time"

// UploadRecord tracks a stored media asset and its retrievable URL.
type UploadRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	URL       string    `gorm:"size:512;not null" json:"url"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `gorm:"size:64" json:"checksum"`
	UserID    string    `gorm:"size:64;index" json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
