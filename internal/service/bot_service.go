package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/internal/observability"
	"github.com/pennysavia/pennysavia-api/pkg/telegram"
)

// Decision actions carried inside callback tokens.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ErrMalformedCallback indicates a decision token that does not parse.
var ErrMalformedCallback = errors.New("malformed callback token")

// CallbackToken encodes a pending decision as <action>_<kind>_<id>.
// Submission ids are numeric and kinds carry no underscore, so the positional
// split stays unambiguous.
func CallbackToken(action string, submission models.Submission) string {
	return fmt.Sprintf("%s_%s_%d", action, submission.Kind, submission.ID)
}

type decision struct {
	Action string
	Kind   string
	ID     uint
}

func parseDecision(token string) (decision, error) {
	parts := strings.Split(token, "_")
	if len(parts) != 3 {
		return decision{}, fmt.Errorf("expected three segments in %q: %w", token, ErrMalformedCallback)
	}

	if parts[0] != ActionApprove && parts[0] != ActionReject {
		return decision{}, fmt.Errorf("unknown action %q: %w", parts[0], ErrMalformedCallback)
	}

	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return decision{}, fmt.Errorf("invalid submission id %q: %w", parts[2], ErrMalformedCallback)
	}

	return decision{Action: parts[0], Kind: parts[1], ID: uint(id)}, nil
}

// DecisionBroadcaster pushes a decision notice to connected relay clients.
type DecisionBroadcaster interface {
	SystemNotice(ctx context.Context, room, text string)
}

// BotService consumes inbound decision events and text commands from the bot
// channel.
type BotService interface {
	HandleUpdate(ctx context.Context, update telegram.Update)
}

type botService struct {
	transport   BotTransport
	submissions SubmissionService
	relay       DecisionBroadcaster
	adminChatID int64
	logger      zerolog.Logger
}

// NewBotService constructs the inbound bot update handler.
func NewBotService(transport BotTransport, submissions SubmissionService, relay DecisionBroadcaster, adminChatID int64, logger zerolog.Logger) BotService {
	return &botService{
		transport:   transport,
		submissions: submissions,
		relay:       relay,
		adminChatID: adminChatID,
		logger:      logger.With().Str("component", "bot_service").Logger(),
	}
}

// HandleUpdate never lets a failure escape: the originating click or command
// is always acknowledged so the external UI cannot get stuck.
func (s *botService) HandleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.CallbackData != "":
		s.handleCallback(ctx, update)
	case update.Command != "":
		s.handleCommand(ctx, update)
	}
}

func (s *botService) handleCallback(ctx context.Context, update telegram.Update) {
	observability.BotUpdates().WithLabelValues("callback").Inc()

	parsed, err := parseDecision(update.CallbackData)
	if err != nil {
		s.logger.Warn().Err(err).Str("data", update.CallbackData).Msg("ignoring malformed callback")
		s.answer(ctx, update.CallbackID, "Invalid action")
		return
	}

	status := models.StatusRejected
	if parsed.Action == ActionApprove {
		status = models.StatusApproved
	}

	submission, err := s.submissions.SetStatus(ctx, parsed.ID, status)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			s.answer(ctx, update.CallbackID, "Submission not found")
			return
		}
		s.logger.Error().Err(err).Uint("submission_id", parsed.ID).Msg("failed to apply decision")
		s.answer(ctx, update.CallbackID, "Something went wrong")
		return
	}

	confirmation := fmt.Sprintf("Submission #%d (%s) %s by %s", submission.ID, submission.Kind, status, displaySender(update.Sender))
	if err := s.transport.SendText(ctx, confirmation); err != nil {
		s.logger.Warn().Err(err).Msg("failed to send decision confirmation")
	}

	s.answer(ctx, update.CallbackID, strings.ToUpper(status[:1])+status[1:])

	if s.relay != nil && submission.UserID != "" {
		notice := fmt.Sprintf("Your %s submission #%d was %s", submission.Kind, submission.ID, status)
		s.relay.SystemNotice(ctx, models.UserRoom(submission.UserID), notice)
	}
}

func (s *botService) handleCommand(ctx context.Context, update telegram.Update) {
	observability.BotUpdates().WithLabelValues("command").Inc()

	if update.Command == "start" {
		s.reply(ctx, update.ChatID, "Pennysavia review bot ready. Commands: /pending /approved /stats")
		return
	}

	// Privileged commands only produce output for the configured admin chat.
	if update.ChatID != s.adminChatID {
		return
	}

	switch update.Command {
	case "pending":
		s.replyWithList(ctx, update.ChatID, models.StatusPending)
	case "approved":
		s.replyWithList(ctx, update.ChatID, models.StatusApproved)
	case "stats":
		s.replyWithStats(ctx, update.ChatID)
	}
}

func (s *botService) replyWithList(ctx context.Context, chatID int64, status string) {
	submissions, err := s.submissions.ListByStatus(ctx, status)
	if err != nil {
		s.logger.Error().Err(err).Str("status", status).Msg("failed to list submissions for command")
		return
	}

	if len(submissions) == 0 {
		s.reply(ctx, chatID, fmt.Sprintf("No %s submissions.", status))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s submissions:\n", strings.ToUpper(status[:1])+status[1:])
	for _, submission := range submissions {
		fmt.Fprintf(&b, "#%d %s by %s ($%.2f)\n", submission.ID, submission.Kind, submission.Name, submission.Amount)
	}
	s.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

func (s *botService) replyWithStats(ctx context.Context, chatID int64) {
	counts, err := s.submissions.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute stats for command")
		return
	}

	total := int64(0)
	for _, count := range counts {
		total += count
	}

	text := fmt.Sprintf("📊 Submissions\nPending: %d\nApproved: %d\nRejected: %d\nTotal: %d",
		counts[models.StatusPending], counts[models.StatusApproved], counts[models.StatusRejected], total)
	s.reply(ctx, chatID, text)
}

func (s *botService) answer(ctx context.Context, callbackID, text string) {
	if err := s.transport.AnswerCallback(ctx, callbackID, text); err != nil {
		s.logger.Warn().Err(err).Msg("failed to answer callback")
	}
}

func (s *botService) reply(ctx context.Context, chatID int64, text string) {
	if err := s.transport.SendTextTo(ctx, chatID, text); err != nil {
		s.logger.Warn().Err(err).Msg("failed to send command reply")
	}
}

func displaySender(sender string) string {
	if sender == "" {
		return "admin"
	}
	return "@" + sender
}
