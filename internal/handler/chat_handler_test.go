package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/handler"
	"github.com/pennysavia/pennysavia-api/internal/service"
)

type mockChatService struct {
	lastQuery   dto.ChatHistoryQuery
	lastTo      string
	lastFrom    string
	lastText    string
	history     []dto.ChatMessageResponse
	sendPrivate dto.ChatMessageResponse
	err         error
}

func (m *mockChatService) ServeConnection(conn *websocket.Conn, opts service.ChatConnectionOptions) {}

func (m *mockChatService) History(_ context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error) {
	m.lastQuery = query
	return m.history, m.err
}

func (m *mockChatService) SendPrivate(_ context.Context, toUserID, fromName, text string) (dto.ChatMessageResponse, error) {
	m.lastTo, m.lastFrom, m.lastText = toUserID, fromName, text
	if m.err != nil {
		return dto.ChatMessageResponse{}, m.err
	}
	return m.sendPrivate, nil
}

func (m *mockChatService) SystemNotice(_ context.Context, room, text string) {}

func (m *mockChatService) Start(_ context.Context) {}

func newChatApp(svc service.ChatService) *fiber.App {
	app := fiber.New()
	h := handler.NewChatHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/v1"))
	h.RegisterAdmin(app.Group("/api/v1/admin"))
	return app
}

func TestChatHandler_HistoryByRoom(t *testing.T) {
	svc := &mockChatService{history: []dto.ChatMessageResponse{
		{ID: 1, RoomID: "global", Content: "hello", CreatedAt: time.Now()},
	}}
	app := newChatApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/messages?room=global&limit=50", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "global", svc.lastQuery.RoomID)
	require.Equal(t, 50, svc.lastQuery.Limit)

	var response struct {
		Data []dto.ChatMessageResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data, 1)
	require.Equal(t, "hello", response.Data[0].Content)
}

func TestChatHandler_HistoryFullLog(t *testing.T) {
	svc := &mockChatService{}
	app := newChatApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, svc.lastQuery.RoomID)
}

func TestChatHandler_WebsocketUpgradeRequired(t *testing.T) {
	app := newChatApp(&mockChatService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatHandler_AdminMessage(t *testing.T) {
	svc := &mockChatService{sendPrivate: dto.ChatMessageResponse{ID: 1, RoomID: "user:u-9", Private: true}}
	app := newChatApp(svc)

	payload := dto.AdminMessageRequest{ToUserID: "u-9", From: "Support", Text: "hello there"}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "u-9", svc.lastTo)
	require.Equal(t, "Support", svc.lastFrom)
	require.Equal(t, "hello there", svc.lastText)
}

func TestChatHandler_AdminMessageMissingFields(t *testing.T) {
	app := newChatApp(&mockChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/messages", bytes.NewReader([]byte(`{"from":"Support"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
