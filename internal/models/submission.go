package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// Submission kinds. A gift-card submission redeems a card balance into
// tokens; a token-purchase submission requests tokens against a wire payment.
const (
	KindGiftCard      = "gift-card"
	KindTokenPurchase = "token-purchase"
)

// Submission statuses. Pending records await a human decision delivered
// through the Telegram bot or the admin API.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// TokensPerUnit is the gift-card amount that converts into one token.
const TokensPerUnit = 50

// Submission represents one user request awaiting manual review.
type Submission struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Kind      string         `gorm:"size:32;index;not null" json:"kind"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Email     string         `gorm:"size:255;not null" json:"email"`
	Phone     string         `gorm:"size:64;not null" json:"phone"`
	Amount    float64        `gorm:"not null" json:"amount"`
	Price     float64        `json:"price,omitempty"`
	UserID    string         `gorm:"size:64;index" json:"user_id"`
	UserName  string         `gorm:"size:255" json:"user_name"`
	Images    datatypes.JSON `gorm:"type:json" json:"images"`
	Status    string         `gorm:"size:32;index;default:pending" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tokens returns the token count a gift-card submission converts into.
func (s Submission) Tokens() int {
	return int(math.Floor(s.Amount / TokensPerUnit))
}
