package dto

// UploadResponse describes a stored media asset.
type UploadResponse struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// AdminMessageRequest is the admin-tooling payload to message a single user.
type AdminMessageRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,max=64"`
	From     string `json:"from" validate:"omitempty,max=255"`
	Text     string `json:"text" validate:"required,min=1,max=4000"`
}
