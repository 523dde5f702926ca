package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pennysavia/pennysavia-api/internal/dto"
	"github.com/pennysavia/pennysavia-api/internal/models"
)

type submissionRepoStub struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]models.Submission
}

func newSubmissionRepoStub() *submissionRepoStub {
	return &submissionRepoStub{nextID: 1, items: make(map[uint]models.Submission)}
}

func (s *submissionRepoStub) Create(ctx context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission.ID = s.nextID
	submission.CreatedAt = time.Now()
	s.nextID++
	s.items[submission.ID] = *submission
	return nil
}

func (s *submissionRepoStub) FindByID(ctx context.Context, id uint) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (s *submissionRepoStub) UpdateStatus(ctx context.Context, id uint, status string) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	item.Status = status
	s.items[id] = item
	return item, nil
}

func (s *submissionRepoStub) List(ctx context.Context) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Submission, 0, len(s.items))
	for id := uint(1); id < s.nextID; id++ {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *submissionRepoStub) ListByStatus(ctx context.Context, status string) ([]models.Submission, error) {
	all, _ := s.List(ctx)
	out := make([]models.Submission, 0, len(all))
	for _, item := range all {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *submissionRepoStub) CountByStatus(ctx context.Context) (map[string]int64, error) {
	all, _ := s.List(ctx)
	counts := make(map[string]int64)
	for _, item := range all {
		counts[item.Status]++
	}
	return counts, nil
}

type notifierStub struct {
	mu       sync.Mutex
	notified chan models.Submission
	err      error
}

func newNotifierStub() *notifierStub {
	return &notifierStub{notified: make(chan models.Submission, 4)}
}

func (n *notifierStub) Notify(ctx context.Context, submission models.Submission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified <- submission
	return n.err
}

func giftCardRequest() dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		Kind:   models.KindGiftCard,
		Name:   "Alice",
		Email:  "Alice@Example.com",
		Phone:  "+15550001",
		Amount: 250,
		Images: []string{"img-a", "img-b"},
		UserID: "u-1",
	}
}

func TestSubmissionServiceCreateGiftCard(t *testing.T) {
	repo := newSubmissionRepoStub()
	notifier := newNotifierStub()
	svc := NewSubmissionService(repo, validator.New(), notifier, time.Second, testLogger())

	resp, err := svc.Create(context.Background(), giftCardRequest())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, resp.Status)
	require.Equal(t, uint(1), resp.ID)
	require.Equal(t, 5, resp.Tokens)
	require.Equal(t, "alice@example.com", resp.Email)

	select {
	case notified := <-notifier.notified:
		require.Equal(t, resp.ID, notified.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was never dispatched")
	}
}

func TestSubmissionServiceCreateAssignsUniqueIDs(t *testing.T) {
	repo := newSubmissionRepoStub()
	svc := NewSubmissionService(repo, validator.New(), newNotifierStub(), time.Second, testLogger())

	first, err := svc.Create(context.Background(), giftCardRequest())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), giftCardRequest())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestSubmissionServiceGiftCardNeedsTwoImages(t *testing.T) {
	svc := NewSubmissionService(newSubmissionRepoStub(), validator.New(), newNotifierStub(), time.Second, testLogger())

	req := giftCardRequest()
	req.Images = []string{"only-one"}
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrSubmissionInvalid)
}

func TestSubmissionServiceTokenPurchaseNeedsPrice(t *testing.T) {
	svc := NewSubmissionService(newSubmissionRepoStub(), validator.New(), newNotifierStub(), time.Second, testLogger())

	req := giftCardRequest()
	req.Kind = models.KindTokenPurchase
	req.Price = 0
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrSubmissionInvalid)
}

func TestSubmissionServiceRejectsUnknownKind(t *testing.T) {
	svc := NewSubmissionService(newSubmissionRepoStub(), validator.New(), newNotifierStub(), time.Second, testLogger())

	req := giftCardRequest()
	req.Kind = "lottery"
	_, err := svc.Create(context.Background(), req)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestSubmissionServiceNotificationFailureKeepsRecord(t *testing.T) {
	repo := newSubmissionRepoStub()
	notifier := newNotifierStub()
	notifier.err = errors.New("telegram unreachable")
	svc := NewSubmissionService(repo, validator.New(), notifier, time.Second, testLogger())

	resp, err := svc.Create(context.Background(), giftCardRequest())
	require.NoError(t, err)

	<-notifier.notified

	stored, err := svc.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, stored.Status)
}

func TestSubmissionServiceSetStatusNotFound(t *testing.T) {
	svc := NewSubmissionService(newSubmissionRepoStub(), validator.New(), newNotifierStub(), time.Second, testLogger())

	_, err := svc.SetStatus(context.Background(), 42, models.StatusApproved)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionServiceDecisionFlow(t *testing.T) {
	repo := newSubmissionRepoStub()
	svc := NewSubmissionService(repo, validator.New(), newNotifierStub(), time.Second, testLogger())

	created, err := svc.Create(context.Background(), giftCardRequest())
	require.NoError(t, err)

	approved, err := svc.SetStatus(context.Background(), created.ID, models.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, approved.Status)

	pending, err := svc.ListByStatus(context.Background(), models.StatusPending)
	require.NoError(t, err)
	require.Empty(t, pending)

	counts, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.StatusApproved])
}

func TestSubmissionTokensRoundDown(t *testing.T) {
	require.Equal(t, 5, models.Submission{Amount: 250}.Tokens())
	require.Equal(t, 0, models.Submission{Amount: 49}.Tokens())
	require.Equal(t, 1, models.Submission{Amount: 99.99}.Tokens())
}
