package models

import "time"

// Chat message kinds.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageAudio  = "audio"
	MessageSystem = "system"
)

// UserRoomPrefix scopes per-recipient private rooms.
const UserRoomPrefix = "user:"

// ChatMessage is one unit of room traffic. Every message belongs to exactly
// one room; private messages target a per-recipient room keyed by identity.
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     string    `gorm:"size:128;index;not null" json:"room_id"`
	SenderID   string    `gorm:"size:64;index" json:"sender_id"`
	SenderName string    `gorm:"size:255" json:"sender_name"`
	Content    string    `gorm:"type:text" json:"content"`
	Type       string    `gorm:"size:32;default:text" json:"type"`
	Private    bool      `gorm:"not null;default:false" json:"private"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserRoom builds the private room key for a user identifier.
func UserRoom(userID string) string {
	return UserRoomPrefix + userID
}
