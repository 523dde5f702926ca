package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/middleware"
	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/internal/observability"
	"github.com/pennysavia/pennysavia-api/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32
	defaultRoom        = "global"
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	UserName      string
	Room          string
	CorrelationID string
	Context       context.Context
}

// ChatService manages websocket relay connections, room membership and
// message delivery.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error)
	SendPrivate(ctx context.Context, toUserID, fromName, text string) (dto.ChatMessageResponse, error)
	SystemNotice(ctx context.Context, room, text string)
	Start(ctx context.Context)
}

type chatService struct {
	repo        repository.ChatRepository
	users       repository.UserRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	nodeID      string
}

// chatHub tracks live connections and their room memberships.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.ChatMessageResponse
	options ChatConnectionOptions
	service *chatService
	rooms   map[string]struct{}
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

type chatEvent struct {
	Source  string                  `json:"source"`
	Message dto.ChatMessageResponse `json:"message"`
	SentAt  time.Time               `json:"sent_at"`
}

// NewChatService creates the websocket relay instance.
func NewChatService(repo repository.ChatRepository, users repository.UserRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &chatHub{
		rooms: make(map[string]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		cachePrefix = channelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		repo:        repo,
		users:       users,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("github.com/pennysavia/pennysavia-api/internal/service/chat"),
		sanitizer:   sanitizer,
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatMessageResponse, chatSendBufferSize),
		options: opts,
		service: s,
		rooms:   make(map[string]struct{}),
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	observability.ChatConnectionsTotal().Inc()

	if opts.Room != "" {
		s.join(client, opts.Room, dto.ChatIdentity{ID: opts.UserID, UserName: opts.UserName})
	}

	go client.writer()
	client.reader()
}

// History returns the room log in chronological order; an empty room key
// returns the full process-wide log as the original message endpoint did.
func (s *chatService) History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	if query.RoomID == "" {
		messages, err := s.repo.List(ctx, query.Limit)
		if err != nil {
			return nil, err
		}
		return dto.NewChatMessageResponseSlice(messages), nil
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.repo.ListByRoom(ctx, query.RoomID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	return dto.NewChatMessageResponseSlice(messages), nil
}

// SendPrivate targets the recipient's private room; only members of that room
// observe the message.
func (s *chatService) SendPrivate(ctx context.Context, toUserID, fromName, text string) (dto.ChatMessageResponse, error) {
	message := models.ChatMessage{
		RoomID:     models.UserRoom(toUserID),
		SenderName: fromName,
		Content:    strings.TrimSpace(s.sanitizer.Sanitize(text)),
		Type:       models.MessageText,
		Private:    true,
	}
	if message.SenderName == "" {
		message.SenderName = "Admin"
	}
	if message.Content == "" {
		return dto.ChatMessageResponse{}, fmt.Errorf("message text empty after sanitization")
	}

	return s.store(ctx, message)
}

// SystemNotice broadcasts an ephemeral system frame to a room. Notices are
// not appended to the message log.
func (s *chatService) SystemNotice(ctx context.Context, room, text string) {
	s.hub.broadcast(room, systemFrame(room, text))
}

func (s *chatService) join(client *chatClient, room string, identity dto.ChatIdentity) {
	s.hub.join(client, room)
	if identity.ID != "" {
		s.hub.join(client, models.UserRoom(identity.ID))
	}

	if last := s.fetchLastMessage(client.baseCtx, room); last != nil {
		select {
		case client.send <- *last:
		default:
			s.logger.Debug().Str("room", room).Msg("dropping cached message for slow consumer")
		}
	}

	// Joined notice goes to the other current members only.
	s.hub.broadcastExcept(room, systemFrame(room, fmt.Sprintf("%s joined the room", identity.DisplayName())), client)

	if s.users != nil && identity.ID != "" {
		go s.rememberUser(identity)
	}
}

// rememberUser keeps the admin user list in sync with identities seen on the
// relay; best-effort.
func (s *chatService) rememberUser(identity dto.ChatIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := s.users.FindByID(ctx, identity.ID)
	if err == nil {
		if identity.UserName == "" || user.UserName == identity.UserName {
			return
		}
		user.UserName = identity.UserName
		if err := s.users.Update(ctx, &user); err != nil {
			s.logger.Warn().Err(err).Str("user_id", identity.ID).Msg("failed to refresh relay user")
		}
		return
	}

	fresh := models.User{ID: identity.ID, UserName: identity.DisplayName(), Role: "user"}
	if err := s.users.Upsert(ctx, &fresh); err != nil {
		s.logger.Warn().Err(err).Str("user_id", identity.ID).Msg("failed to record relay user")
	}
}

func (s *chatService) leave(client *chatClient, room string, identity dto.ChatIdentity) {
	s.hub.leave(client, room)
	s.hub.broadcast(room, systemFrame(room, fmt.Sprintf("%s left the room", identity.DisplayName())))
}

func (s *chatService) process(ctx context.Context, client *chatClient, envelope dto.ChatEnvelope) error {
	if err := s.validator.Struct(envelope); err != nil {
		return err
	}

	identity := envelope.User
	if identity.ID == "" {
		identity.ID = client.options.UserID
	}
	if identity.UserName == "" {
		identity.UserName = client.options.UserName
	}

	room := strings.TrimSpace(envelope.Room)
	if room == "" {
		room = defaultRoom
	}

	switch envelope.Event {
	case dto.EventJoinRoom:
		s.join(client, room, identity)
		return nil
	case dto.EventLeaveRoom:
		s.leave(client, room, identity)
		return nil
	case dto.EventChatMessage:
		return s.publishText(ctx, room, identity, envelope.Text)
	case dto.EventChatMedia:
		return s.publishMedia(ctx, room, identity, envelope.URL, envelope.MediaType)
	case dto.EventPrivateMessage:
		if envelope.ToUserID == "" {
			return fmt.Errorf("private message requires to_user_id")
		}
		_, err := s.SendPrivate(ctx, envelope.ToUserID, identity.DisplayName(), envelope.Text)
		return err
	default:
		return fmt.Errorf("unknown relay event %q", envelope.Event)
	}
}

func (s *chatService) publishText(ctx context.Context, room string, identity dto.ChatIdentity, text string) error {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(text))
	if clean == "" {
		return fmt.Errorf("message text empty after sanitization")
	}

	ctx, span := s.tracer.Start(ctx, "chat.broadcast", trace.WithAttributes(
		attribute.String("chat.room", room),
		attribute.String("chat.sender", identity.ID),
	))
	defer span.End()

	message := models.ChatMessage{
		RoomID:     room,
		SenderID:   identity.ID,
		SenderName: identity.DisplayName(),
		Content:    clean,
		Type:       models.MessageText,
	}

	_, err := s.store(ctx, message)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *chatService) publishMedia(ctx context.Context, room string, identity dto.ChatIdentity, url, mediaType string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("media message requires a url")
	}

	kind := models.MessageImage
	if mediaType == "audio" {
		kind = models.MessageAudio
	}

	message := models.ChatMessage{
		RoomID:     room,
		SenderID:   identity.ID,
		SenderName: identity.DisplayName(),
		Content:    url,
		Type:       kind,
	}

	_, err := s.store(ctx, message)
	return err
}

// store appends to the message log, then fans out: local members first, then
// the cross-node channels.
func (s *chatService) store(ctx context.Context, message models.ChatMessage) (dto.ChatMessageResponse, error) {
	if err := s.repo.Save(ctx, &message); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	response := dto.NewChatMessageResponse(message)
	s.cacheLastMessage(ctx, response)
	s.hub.broadcast(response.RoomID, response)
	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}

	observability.ChatMessagesSent().WithLabelValues(message.Type).Inc()
	return response, nil
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.ChatMessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, message.RoomID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, roomID string) *dto.ChatMessageResponse {
	if s.redis != nil && s.redisCache != "" {
		result, err := s.redis.Get(ctx, fmt.Sprintf("%s:%s", s.redisCache, roomID)).Result()
		if err == nil {
			var message dto.ChatMessageResponse
			if err := json.Unmarshal([]byte(result), &message); err == nil {
				return &message
			}
			s.logger.Warn().Str("room", roomID).Msg("discarding unreadable cached chat message")
		}
	}

	latest, err := s.repo.LatestByRoom(ctx, roomID)
	if err != nil {
		return nil
	}
	response := dto.NewChatMessageResponse(latest)
	return &response
}

func (s *chatService) publish(ctx context.Context, message dto.ChatMessageResponse) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(chatEvent{Source: s.nodeID, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "pennysavia-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Message.RoomID, event.Message)
}

func systemFrame(room, text string) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{
		Event:     dto.EventSystemMessage,
		RoomID:    room,
		Content:   text,
		Type:      models.MessageSystem,
		CreatedAt: time.Now().UTC(),
	}
}

func (h *chatHub) join(client *chatClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
	h.log.Debug().Str("room", room).Str("user_id", client.options.UserID).Msg("relay client joined room")
}

func (h *chatHub) leave(client *chatClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *chatHub) leaveLocked(client *chatClient, room string) {
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// remove clears every membership; the transport releasing the connection is
// the only leave-all path.
func (h *chatHub) remove(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	h.log.Debug().Str("user_id", client.options.UserID).Msg("relay client disconnected")
}

func (h *chatHub) broadcast(room string, message dto.ChatMessageResponse) {
	h.broadcastExcept(room, message, nil)
}

func (h *chatHub) broadcastExcept(room string, message dto.ChatMessageResponse, except *chatClient) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		select {
		case client.send <- message:
		default:
			h.log.Warn().Str("room", room).Str("user_id", client.options.UserID).Msg("dropping chat message for slow client")
		}
	}
}

func (c *chatClient) reader() {
	defer c.close()

	connCtx := middleware.ContextWithCorrelation(c.baseCtx, c.options.CorrelationID)

	for {
		var envelope dto.ChatEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		if err := c.service.process(connCtx, c, envelope); err != nil {
			c.service.logger.Warn().Err(err).Str("event", envelope.Event).Msg("failed to process relay frame")
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.remove(c)
		_ = c.conn.Close()
	})
}
