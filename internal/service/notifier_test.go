package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/pennysavia/pennysavia-api/internal/models"
	"github.com/pennysavia/pennysavia-api/pkg/telegram"
)

type transportStub struct {
	mu        sync.Mutex
	texts     []string
	chats     []int64
	buttons   [][]telegram.Button
	photoData [][]byte
	photoURLs []string
	answers   []string
	fail      error
}

func (s *transportStub) SendText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.texts = append(s.texts, text)
	return nil
}

func (s *transportStub) SendTextTo(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.chats = append(s.chats, chatID)
	s.texts = append(s.texts, text)
	return nil
}

func (s *transportStub) SendTextWithButtons(ctx context.Context, text string, buttons []telegram.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.texts = append(s.texts, text)
	s.buttons = append(s.buttons, buttons)
	return nil
}

func (s *transportStub) SendPhotoData(ctx context.Context, name string, data []byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.photoData = append(s.photoData, data)
	return nil
}

func (s *transportStub) SendPhotoURL(ctx context.Context, url, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.photoURLs = append(s.photoURLs, url)
	return nil
}

func (s *transportStub) AnswerCallback(ctx context.Context, callbackID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, text)
	return nil
}

func imagesJSON(t *testing.T, images ...string) datatypes.JSON {
	t.Helper()
	parts := make([]string, 0, len(images))
	for _, image := range images {
		parts = append(parts, `"`+image+`"`)
	}
	return datatypes.JSON("[" + strings.Join(parts, ",") + "]")
}

func TestTelegramNotifierSendsButtonsAndImages(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-image-bytes"))
	transport := &transportStub{}
	notifier := NewTelegramNotifier(transport, testLogger())

	submission := models.Submission{
		ID:     7,
		Kind:   models.KindGiftCard,
		Name:   "Alice",
		Email:  "alice@example.com",
		Phone:  "+1555",
		Amount: 250,
		Images: imagesJSON(t, "data:image/jpeg;base64,"+payload, "https://cdn.example.com/card.jpg"),
	}

	require.NoError(t, notifier.Notify(context.Background(), submission))

	require.Len(t, transport.texts, 1)
	require.Contains(t, transport.texts[0], "GIFT CARD")
	require.Contains(t, transport.texts[0], "Tokens: 5")

	require.Len(t, transport.buttons, 1)
	require.Len(t, transport.buttons[0], 2)
	require.Equal(t, "approve_gift-card_7", transport.buttons[0][0].Data)
	require.Equal(t, "reject_gift-card_7", transport.buttons[0][1].Data)

	require.Len(t, transport.photoData, 1)
	require.Equal(t, []byte("fake-image-bytes"), transport.photoData[0])
	require.Equal(t, []string{"https://cdn.example.com/card.jpg"}, transport.photoURLs)
}

func TestTelegramNotifierTokenPurchaseMessage(t *testing.T) {
	transport := &transportStub{}
	notifier := NewTelegramNotifier(transport, testLogger())

	submission := models.Submission{
		ID:     3,
		Kind:   models.KindTokenPurchase,
		Name:   "Bob",
		Email:  "bob@example.com",
		Amount: 120,
		Price:  60,
		Images: imagesJSON(t, "https://cdn.example.com/proof.png"),
	}

	require.NoError(t, notifier.Notify(context.Background(), submission))

	require.Contains(t, transport.texts[0], "DWT PURCHASE")
	require.Contains(t, transport.texts[0], "Price: $60.00")
	require.Equal(t, []string{"https://cdn.example.com/proof.png"}, transport.photoURLs)
}

func TestTelegramNotifierSkipsUndecodableImage(t *testing.T) {
	transport := &transportStub{}
	notifier := NewTelegramNotifier(transport, testLogger())

	submission := models.Submission{
		ID:     9,
		Kind:   models.KindGiftCard,
		Images: imagesJSON(t, "not-base64-at-all!!!"),
	}

	require.NoError(t, notifier.Notify(context.Background(), submission))
	require.Empty(t, transport.photoData)
	require.Empty(t, transport.photoURLs)
}

func TestTelegramNotifierPropagatesTransportError(t *testing.T) {
	transport := &transportStub{fail: errors.New("telegram down")}
	notifier := NewTelegramNotifier(transport, testLogger())

	err := notifier.Notify(context.Background(), models.Submission{ID: 1, Kind: models.KindGiftCard})
	require.Error(t, err)
}
