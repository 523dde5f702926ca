package dto

import (
	"time"

	"github.com/pennysavia/pennysavia-api/internal/models"
)

// Websocket envelope events accepted from clients.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventChatMessage    = "chat_message"
	EventChatMedia      = "chat_media"
	EventPrivateMessage = "private_message"
	EventSystemMessage  = "system_message"
)

// ChatIdentity is the display identity attached to relay traffic.
type ChatIdentity struct {
	ID       string `json:"id,omitempty" validate:"omitempty,max=64"`
	UserName string `json:"user_name,omitempty" validate:"omitempty,max=255"`
}

// DisplayName resolves a printable name for system notices.
func (i ChatIdentity) DisplayName() string {
	if i.UserName != "" {
		return i.UserName
	}
	return "User"
}

// ChatEnvelope is the inbound websocket frame. Event selects which of the
// remaining fields apply.
type ChatEnvelope struct {
	Event     string       `json:"event" validate:"required,oneof=join_room leave_room chat_message chat_media private_message"`
	Room      string       `json:"room" validate:"omitempty,max=128"`
	User      ChatIdentity `json:"user"`
	Text      string       `json:"text" validate:"omitempty,max=4000"`
	URL       string       `json:"url" validate:"omitempty,max=512"`
	MediaType string       `json:"media_type" validate:"omitempty,oneof=image audio"`
	ToUserID  string       `json:"to_user_id" validate:"omitempty,max=64"`
}

// ChatMessageResponse is the outbound websocket frame and history item.
type ChatMessageResponse struct {
	Event      string    `json:"event"`
	ID         uint      `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Private    bool      `json:"private,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatHistoryQuery represents query filters for retrieving chat history.
type ChatHistoryQuery struct {
	RoomID string     `query:"room" validate:"omitempty,max=128"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=500"`
}

// NewChatMessageResponse converts a model into an outbound frame.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	event := EventChatMessage
	if message.Type == models.MessageSystem {
		event = EventSystemMessage
	}
	return ChatMessageResponse{
		Event:      event,
		ID:         message.ID,
		RoomID:     message.RoomID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Content:    message.Content,
		Type:       message.Type,
		Private:    message.Private,
		CreatedAt:  message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts a slice of models into frames.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}
