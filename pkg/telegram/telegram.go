package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to the Telegram Bot API.
type Config struct {
	Token       string
	AdminChatID int64
}

// Button is one inline decision affordance attached to a notification.
type Button struct {
	Label string
	Data  string
}

// Update is the subset of inbound bot traffic the service reacts to. Exactly
// one of CallbackData or Command is set per update.
type Update struct {
	CallbackID   string
	CallbackData string
	ChatID       int64
	Command      string
	Sender       string
}

// Client wraps the Telegram Bot API for the single configured admin chat.
type Client struct {
	bot       *tgbotapi.BotAPI
	adminChat int64
	logger    zerolog.Logger
}

// New constructs a Telegram client instance.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Token == "" || cfg.AdminChatID == 0 {
		return nil, fmt.Errorf("telegram token and admin chat id must be provided")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &Client{
		bot:       bot,
		adminChat: cfg.AdminChatID,
		logger:    logger.With().Str("component", "telegram").Logger(),
	}, nil
}

// AdminChatID returns the fixed recipient for notifications.
func (c *Client) AdminChatID() int64 {
	return c.adminChat
}

// SendText posts a plain text message to the admin chat.
func (c *Client) SendText(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.adminChat, text)
	_, err := c.bot.Send(msg)
	return err
}

// SendTextTo posts a plain text message to an arbitrary chat, used for
// command replies outside the admin chat.
func (c *Client) SendTextTo(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := c.bot.Send(msg)
	return err
}

// SendTextWithButtons posts a text message with one inline keyboard row per button.
func (c *Client) SendTextWithButtons(ctx context.Context, text string, buttons []Button) error {
	msg := tgbotapi.NewMessage(c.adminChat, text)

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
	}
	if len(row) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	_, err := c.bot.Send(msg)
	return err
}

// SendPhotoData uploads raw image bytes as a photo message.
func (c *Client) SendPhotoData(ctx context.Context, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(c.adminChat, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	_, err := c.bot.Send(photo)
	return err
}

// SendPhotoURL forwards an already-hosted image by URL.
func (c *Client) SendPhotoURL(ctx context.Context, url, caption string) error {
	photo := tgbotapi.NewPhoto(c.adminChat, tgbotapi.FileURL(url))
	photo.Caption = caption
	_, err := c.bot.Send(photo)
	return err
}

// AnswerCallback acknowledges a button click so the Telegram UI never shows a
// stuck control.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := c.bot.Request(callback)
	return err
}

// Listen consumes the long-poll update stream and dispatches each relevant
// update to the handler until the context is cancelled.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, Update)) {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = 30

	updates := c.bot.GetUpdatesChan(config)
	defer c.bot.StopReceivingUpdates()

	c.logger.Info().Str("bot", c.bot.Self.UserName).Msg("telegram update loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			update, relevant := convert(raw)
			if !relevant {
				continue
			}
			handle(ctx, update)
		}
	}
}

func convert(raw tgbotapi.Update) (Update, bool) {
	if raw.CallbackQuery != nil {
		update := Update{
			CallbackID:   raw.CallbackQuery.ID,
			CallbackData: raw.CallbackQuery.Data,
		}
		if raw.CallbackQuery.From != nil {
			update.Sender = raw.CallbackQuery.From.UserName
		}
		if raw.CallbackQuery.Message != nil && raw.CallbackQuery.Message.Chat != nil {
			update.ChatID = raw.CallbackQuery.Message.Chat.ID
		}
		return update, true
	}

	if raw.Message != nil && raw.Message.IsCommand() {
		update := Update{
			Command: raw.Message.Command(),
			ChatID:  raw.Message.Chat.ID,
		}
		if raw.Message.From != nil {
			update.Sender = raw.Message.From.UserName
		}
		return update, true
	}

	return Update{}, false
}
