package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/models"
)

type chatRepoStub struct {
	mu       sync.Mutex
	nextID   uint
	messages []models.ChatMessage
}

func newChatRepoStub() *chatRepoStub {
	return &chatRepoStub{nextID: 1}
}

func (s *chatRepoStub) Save(ctx context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.ID = s.nextID
	message.CreatedAt = time.Now()
	s.nextID++
	s.messages = append(s.messages, *message)
	return nil
}

func (s *chatRepoStub) List(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.ChatMessage(nil), s.messages...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *chatRepoStub) ListByRoom(ctx context.Context, roomID string, before time.Time, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, message := range s.messages {
		if message.RoomID == roomID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (s *chatRepoStub) LatestByRoom(ctx context.Context, roomID string) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].RoomID == roomID {
			return s.messages[i], nil
		}
	}
	return models.ChatMessage{}, gorm.ErrRecordNotFound
}

func (s *chatRepoStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func newChatFixture(t *testing.T) (*chatService, *chatRepoStub) {
	t.Helper()
	repo := newChatRepoStub()
	svc := NewChatService(repo, nil, nil, "", nil, validator.New(), testLogger()).(*chatService)
	return svc, repo
}

func newTestClient(svc *chatService, userID, userName string) *chatClient {
	return &chatClient{
		send:    make(chan dto.ChatMessageResponse, chatSendBufferSize),
		options: ChatConnectionOptions{UserID: userID, UserName: userName},
		service: svc,
		rooms:   make(map[string]struct{}),
		closed:  make(chan struct{}),
		baseCtx: context.Background(),
	}
}

func receive(t *testing.T, client *chatClient) dto.ChatMessageResponse {
	t.Helper()
	select {
	case message := <-client.send:
		return message
	case <-time.After(time.Second):
		t.Fatal("expected a frame but none arrived")
		return dto.ChatMessageResponse{}
	}
}

func requireEmpty(t *testing.T, client *chatClient) {
	t.Helper()
	select {
	case message := <-client.send:
		t.Fatalf("unexpected frame in room %s: %q", message.RoomID, message.Content)
	default:
	}
}

func TestChatServiceRoomIsolation(t *testing.T) {
	svc, _ := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	bob := newTestClient(svc, "u-bob", "Bob")
	svc.hub.join(alice, "global")
	svc.hub.join(bob, "support")

	err := svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event: dto.EventChatMessage,
		Room:  "global",
		Text:  "hello room",
	})
	require.NoError(t, err)

	frame := receive(t, alice)
	require.Equal(t, dto.EventChatMessage, frame.Event)
	require.Equal(t, "global", frame.RoomID)
	require.Equal(t, "hello room", frame.Content)
	require.Equal(t, "Alice", frame.SenderName)

	requireEmpty(t, bob)
}

func TestChatServiceSenderReceivesOwnMessage(t *testing.T) {
	svc, _ := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")

	require.NoError(t, svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event: dto.EventChatMessage,
		Room:  "global",
		Text:  "echo",
	}))

	require.Equal(t, "echo", receive(t, alice).Content)
}

func TestChatServiceMessagesKeepSendOrder(t *testing.T) {
	svc, repo := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, svc.process(context.Background(), alice, dto.ChatEnvelope{
			Event: dto.EventChatMessage, Room: "global", Text: text,
		}))
	}

	require.Equal(t, "first", receive(t, alice).Content)
	require.Equal(t, "second", receive(t, alice).Content)
	require.Equal(t, "third", receive(t, alice).Content)
	require.Equal(t, 3, repo.count())
}

func TestChatServiceSanitizesMarkup(t *testing.T) {
	svc, repo := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")

	require.NoError(t, svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event: dto.EventChatMessage,
		Room:  "global",
		Text:  `<script>alert("x")</script>hello`,
	}))

	frame := receive(t, alice)
	require.NotContains(t, frame.Content, "<script>")
	require.Contains(t, frame.Content, "hello")
	require.Equal(t, 1, repo.count())
}

func TestChatServiceRejectsEmptyAfterSanitize(t *testing.T) {
	svc, repo := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")

	err := svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event: dto.EventChatMessage,
		Room:  "global",
		Text:  "<script>only()</script>",
	})
	require.Error(t, err)
	require.Zero(t, repo.count())
}

func TestChatServiceMediaMessage(t *testing.T) {
	svc, _ := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")

	require.NoError(t, svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event:     dto.EventChatMedia,
		Room:      "global",
		URL:       "https://cdn.example.com/voice.ogg",
		MediaType: "audio",
	}))

	frame := receive(t, alice)
	require.Equal(t, models.MessageAudio, frame.Type)
	require.Equal(t, "https://cdn.example.com/voice.ogg", frame.Content)
}

func TestChatServicePrivateMessageScopedToUserRoom(t *testing.T) {
	svc, _ := newChatFixture(t)

	recipient := newTestClient(svc, "u-target", "Target")
	bystander := newTestClient(svc, "u-other", "Other")
	svc.hub.join(recipient, models.UserRoom("u-target"))
	svc.hub.join(bystander, "global")

	sender := newTestClient(svc, "u-admin", "Admin")
	require.NoError(t, svc.process(context.Background(), sender, dto.ChatEnvelope{
		Event:    dto.EventPrivateMessage,
		Text:     "for your eyes only",
		ToUserID: "u-target",
	}))

	frame := receive(t, recipient)
	require.True(t, frame.Private)
	require.Equal(t, models.UserRoom("u-target"), frame.RoomID)
	require.Equal(t, "for your eyes only", frame.Content)

	requireEmpty(t, bystander)
}

func TestChatServiceSystemNoticeIsEphemeral(t *testing.T) {
	svc, repo := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, models.UserRoom("u-alice"))

	svc.SystemNotice(context.Background(), models.UserRoom("u-alice"), "Your gift-card submission #1 was approved")

	frame := receive(t, alice)
	require.Equal(t, dto.EventSystemMessage, frame.Event)
	require.Equal(t, models.MessageSystem, frame.Type)
	require.Contains(t, frame.Content, "approved")

	require.Zero(t, repo.count(), "system notices must not enter the message log")
}

func TestChatServiceJoinNotifiesOthersOnly(t *testing.T) {
	svc, repo := newChatFixture(t)

	resident := newTestClient(svc, "u-resident", "Resident")
	svc.hub.join(resident, "global")

	joiner := newTestClient(svc, "u-new", "Newcomer")
	require.NoError(t, svc.process(context.Background(), joiner, dto.ChatEnvelope{
		Event: dto.EventJoinRoom,
		Room:  "global",
		User:  dto.ChatIdentity{ID: "u-new", UserName: "Newcomer"},
	}))

	frame := receive(t, resident)
	require.Equal(t, dto.EventSystemMessage, frame.Event)
	require.Contains(t, frame.Content, "Newcomer joined")

	requireEmpty(t, joiner)
	require.Zero(t, repo.count())

	// Joining also subscribes the client to its private room.
	_, inPrivate := joiner.rooms[models.UserRoom("u-new")]
	require.True(t, inPrivate)
}

func TestChatServiceJoinDeliversCachedLastMessage(t *testing.T) {
	svc, repo := newChatFixture(t)

	require.NoError(t, repo.Save(context.Background(), &models.ChatMessage{
		RoomID: "global", SenderName: "Earlier", Content: "scrollback", Type: models.MessageText,
	}))

	joiner := newTestClient(svc, "u-late", "Late")
	require.NoError(t, svc.process(context.Background(), joiner, dto.ChatEnvelope{
		Event: dto.EventJoinRoom,
		Room:  "global",
		User:  dto.ChatIdentity{ID: "u-late", UserName: "Late"},
	}))

	frame := receive(t, joiner)
	require.Equal(t, "scrollback", frame.Content)
}

func TestChatServiceLeaveRemovesMembership(t *testing.T) {
	svc, _ := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	bob := newTestClient(svc, "u-bob", "Bob")
	svc.hub.join(alice, "global")
	svc.hub.join(bob, "global")

	require.NoError(t, svc.process(context.Background(), alice, dto.ChatEnvelope{
		Event: dto.EventLeaveRoom,
		Room:  "global",
		User:  dto.ChatIdentity{ID: "u-alice", UserName: "Alice"},
	}))

	frame := receive(t, bob)
	require.Contains(t, frame.Content, "Alice left")

	require.NoError(t, svc.process(context.Background(), bob, dto.ChatEnvelope{
		Event: dto.EventChatMessage, Room: "global", Text: "anyone here?",
	}))

	require.Equal(t, "anyone here?", receive(t, bob).Content)
	requireEmpty(t, alice)
}

func TestChatServiceSlowConsumerDropsFrames(t *testing.T) {
	svc, _ := newChatFixture(t)

	slow := newTestClient(svc, "u-slow", "Slow")
	svc.hub.join(slow, "global")

	// Overrun the send buffer; broadcast must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < chatSendBufferSize+10; i++ {
			svc.hub.broadcast("global", systemFrame("global", "tick"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}
	require.Len(t, slow.send, chatSendBufferSize)
}

func TestChatServiceHistory(t *testing.T) {
	svc, repo := newChatFixture(t)

	for _, room := range []string{"global", "global", "support"} {
		require.NoError(t, repo.Save(context.Background(), &models.ChatMessage{
			RoomID: room, SenderName: "A", Content: "m", Type: models.MessageText,
		}))
	}

	scoped, err := svc.History(context.Background(), dto.ChatHistoryQuery{RoomID: "global"})
	require.NoError(t, err)
	require.Len(t, scoped, 2)

	full, err := svc.History(context.Background(), dto.ChatHistoryQuery{})
	require.NoError(t, err)
	require.Len(t, full, 3)
}

func TestChatServiceDisconnectCleansRooms(t *testing.T) {
	svc, _ := newChatFixture(t)

	alice := newTestClient(svc, "u-alice", "Alice")
	svc.hub.join(alice, "global")
	svc.hub.join(alice, models.UserRoom("u-alice"))

	svc.hub.remove(alice)

	svc.hub.mu.RLock()
	defer svc.hub.mu.RUnlock()
	require.Empty(t, svc.hub.rooms)
	require.Empty(t, alice.rooms)
}
