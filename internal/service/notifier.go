package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/pkg/telegram"
)

// BotTransport is the outbound surface of the external messaging bot. All
// sends address the single configured admin chat unless a chat id is given.
type BotTransport interface {
	SendText(ctx context.Context, text string) error
	SendTextTo(ctx context.Context, chatID int64, text string) error
	SendTextWithButtons(ctx context.Context, text string, buttons []telegram.Button) error
	SendPhotoData(ctx context.Context, name string, data []byte, caption string) error
	SendPhotoURL(ctx context.Context, url, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// SubmissionNotifier forwards a freshly created submission to the review
// channel. Notification failure never blocks or rolls back the intake write.
type SubmissionNotifier interface {
	Notify(ctx context.Context, submission models.Submission) error
}

type telegramNotifier struct {
	transport BotTransport
	logger    zerolog.Logger
}

// NewTelegramNotifier constructs a notifier that posts submissions with
// inline approve/reject buttons to the admin chat.
func NewTelegramNotifier(transport BotTransport, logger zerolog.Logger) SubmissionNotifier {
	return &telegramNotifier{
		transport: transport,
		logger:    logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

func (n *telegramNotifier) Notify(ctx context.Context, submission models.Submission) error {
	buttons := []telegram.Button{
		{Label: "✅ Approve", Data: CallbackToken(ActionApprove, submission)},
		{Label: "❌ Reject", Data: CallbackToken(ActionReject, submission)},
	}

	if err := n.transport.SendTextWithButtons(ctx, formatSubmission(submission), buttons); err != nil {
		return fmt.Errorf("failed to send submission notification: %w", err)
	}

	for i, image := range imageList(submission.Images) {
		caption := photoCaption(submission)
		if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
			if err := n.transport.SendPhotoURL(ctx, image, caption); err != nil {
				return fmt.Errorf("failed to forward image %d: %w", i, err)
			}
			continue
		}

		data, err := decodeDataURL(image)
		if err != nil {
			n.logger.Warn().Err(err).Uint("submission_id", submission.ID).Int("image", i).Msg("skipping undecodable image")
			continue
		}

		name := fmt.Sprintf("%s-%d-%d.jpg", submission.Kind, submission.ID, i)
		if err := n.transport.SendPhotoData(ctx, name, data, caption); err != nil {
			return fmt.Errorf("failed to upload image %d: %w", i, err)
		}
	}

	return nil
}

func formatSubmission(submission models.Submission) string {
	var b strings.Builder

	switch submission.Kind {
	case models.KindTokenPurchase:
		b.WriteString("🪙 NEW DWT PURCHASE REQUEST\n")
	default:
		b.WriteString("🎁 NEW GIFT CARD SUBMISSION\n")
	}

	fmt.Fprintf(&b, "👤 Name: %s\n", submission.Name)
	fmt.Fprintf(&b, "📧 Email: %s\n", submission.Email)
	fmt.Fprintf(&b, "📱 Phone: %s\n", submission.Phone)

	if submission.Kind == models.KindTokenPurchase {
		fmt.Fprintf(&b, "💵 Amount: %.2f DWT\n", submission.Amount)
		fmt.Fprintf(&b, "💰 Price: $%.2f\n", submission.Price)
	} else {
		fmt.Fprintf(&b, "💰 Amount: $%.2f\n", submission.Amount)
		fmt.Fprintf(&b, "🪙 Tokens: %d\n", submission.Tokens())
	}

	if submission.UserID != "" {
		fmt.Fprintf(&b, "🆔 User ID: %s\n", submission.UserID)
	}
	fmt.Fprintf(&b, "⏰ %s", submission.CreatedAt.Format(time.RFC1123))

	return b.String()
}

func photoCaption(submission models.Submission) string {
	if submission.Kind == models.KindTokenPurchase {
		return fmt.Sprintf("Payment proof for %.2f DWT", submission.Amount)
	}
	return fmt.Sprintf("Gift card #%d", submission.ID)
}

// decodeDataURL strips an optional data-url prefix and decodes the base64 payload.
func decodeDataURL(image string) ([]byte, error) {
	payload := image
	if idx := strings.Index(image, ","); idx >= 0 {
		payload = image[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return data, nil
}

type logNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a notifier that only logs; used when the Telegram
// transport is not configured.
func NewLogNotifier(logger zerolog.Logger) SubmissionNotifier {
	return &logNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (l *logNotifier) Notify(ctx context.Context, submission models.Submission) error {
	l.logger.Info().
		Uint("submission_id", submission.ID).
		Str("kind", submission.Kind).
		Msg("submission recorded, telegram forwarding disabled")
	return nil
}
