package confession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/rabbitmq"
	"github.com/unsaidapp/unsaid-backend/internal/services/entitlement"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) SetDeveloper(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func (m *MockRepository) CreateConfession(ctx context.Context, c models.Confession) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CreateFreeConfession(ctx context.Context, c models.Confession) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListConfessionsByUser(ctx context.Context, userUID string) ([]*models.Confession, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Confession), args.Error(1)
}

func (m *MockRepository) GetConfessionBySubmissionID(ctx context.Context, userUID, submissionID string) (*models.Confession, error) {
	args := m.Called(ctx, userUID, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Confession), args.Error(1)
}

type MockEntitlement struct {
	mock.Mock
}

func (m *MockEntitlement) Authorize(ctx context.Context, user *models.User, now time.Time) (*entitlement.Decision, error) {
	args := m.Called(ctx, user, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Decision), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error) {
	args := m.Called(ctx, userUID, now)
	return args.Bool(0), args.String(1), args.Error(2)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func validSubmission() models.DummySubmission {
	return models.DummySubmission{
		Message:          "ten chars or more of unsaid words",
		RecipientName:    "Alex",
		RecipientContact: "alex@example.com",
		ContactType:      models.ContactEmail,
	}
}

func TestService_Submit(t *testing.T) {
	user := &models.User{UID: "u-1", Email: "user@example.com"}

	tests := []struct {
		name           string
		req            models.DummySubmission
		setupMocks     func(*MockRepository, *MockEntitlement, *MockLedger, *MockPublisher)
		wantQuotaClass string
		wantErr        error
	}{
		{
			name: "developer submission",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, _ *MockLedger, p *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(&entitlement.Decision{Class: entitlement.ClassDeveloper}, nil).Once()
				r.On("CreateConfession", mock.Anything, mock.MatchedBy(func(c models.Confession) bool {
					return !c.IsFree && c.Status == models.ConfessionPending
				})).Return(int64(1), nil).Once()
				p.On("Publish", rabbitmq.RoutingKeyEmail, mock.MatchedBy(func(task models.DeliveryTask) bool {
					return task.Attempt == 1 && task.ContactType == models.ContactEmail
				})).Return(nil).Once()
			},
			wantQuotaClass: entitlement.ClassDeveloper,
		},
		{
			name: "free submission spends quota",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, _ *MockLedger, p *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(&entitlement.Decision{Class: entitlement.ClassFree}, nil).Once()
				r.On("CreateFreeConfession", mock.Anything, mock.MatchedBy(func(c models.Confession) bool {
					return c.IsFree
				})).Return(int64(1), nil).Once()
				p.On("Publish", rabbitmq.RoutingKeyEmail, mock.Anything).Return(nil).Once()
			},
			wantQuotaClass: entitlement.ClassFree,
		},
		{
			name: "lost free quota race falls through to subscription",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, l *MockLedger, p *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(&entitlement.Decision{Class: entitlement.ClassFree}, nil).Once()
				r.On("CreateFreeConfession", mock.Anything, mock.Anything).
					Return(int64(0), repository.ErrFreeQuotaSpent).Once()
				l.On("IsEntitled", mock.Anything, "u-1", mock.Anything).
					Return(true, models.PlanPremium, nil).Once()
				r.On("CreateConfession", mock.Anything, mock.MatchedBy(func(c models.Confession) bool {
					return !c.IsFree
				})).Return(int64(2), nil).Once()
				p.On("Publish", rabbitmq.RoutingKeyEmail, mock.Anything).Return(nil).Once()
			},
			wantQuotaClass: entitlement.ClassSubscription,
		},
		{
			name: "lost free quota race without subscription is denied",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, l *MockLedger, _ *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(&entitlement.Decision{Class: entitlement.ClassFree}, nil).Once()
				r.On("CreateFreeConfession", mock.Anything, mock.Anything).
					Return(int64(0), repository.ErrFreeQuotaSpent).Once()
				l.On("IsEntitled", mock.Anything, "u-1", mock.Anything).
					Return(false, "", nil).Once()
			},
			wantErr: entitlement.ErrNotEntitled,
		},
		{
			name: "not entitled at all",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, _ *MockLedger, _ *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(nil, entitlement.ErrNotEntitled).Once()
			},
			wantErr: entitlement.ErrNotEntitled,
		},
		{
			name: "publish failure does not fail submission",
			req:  validSubmission(),
			setupMocks: func(r *MockRepository, e *MockEntitlement, _ *MockLedger, p *MockPublisher) {
				r.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user, mock.Anything).
					Return(&entitlement.Decision{Class: entitlement.ClassDeveloper}, nil).Once()
				r.On("CreateConfession", mock.Anything, mock.Anything).Return(int64(1), nil).Once()
				p.On("Publish", rabbitmq.RoutingKeyEmail, mock.Anything).
					Return(errors.New("broker down")).Once()
			},
			wantQuotaClass: entitlement.ClassDeveloper,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			ent := new(MockEntitlement)
			ledger := new(MockLedger)
			publisher := new(MockPublisher)
			cache := new(MockCache)
			tt.setupMocks(repo, ent, ledger, publisher)
			service := New(repo, ent, ledger, publisher, cache, nil, newNoopLogger())

			result, err := service.Submit(context.Background(), "u-1", tt.req)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, result.SubmissionID)
				assert.Equal(t, models.ConfessionPending, result.Status)
				assert.Equal(t, tt.wantQuotaClass, result.QuotaClass)
			}
			repo.AssertExpectations(t)
			ent.AssertExpectations(t)
			ledger.AssertExpectations(t)
			publisher.AssertExpectations(t)
		})
	}
}

func TestService_Submit_WhatsappRouting(t *testing.T) {
	user := &models.User{UID: "u-1"}
	repo := new(MockRepository)
	ent := new(MockEntitlement)
	publisher := new(MockPublisher)
	service := New(repo, ent, new(MockLedger), publisher, new(MockCache), nil, newNoopLogger())

	repo.On("GetUser", mock.Anything, "u-1").Return(user, nil).Once()
	ent.On("Authorize", mock.Anything, user, mock.Anything).
		Return(&entitlement.Decision{Class: entitlement.ClassDeveloper}, nil).Once()
	repo.On("CreateConfession", mock.Anything, mock.Anything).Return(int64(1), nil).Once()
	publisher.On("Publish", rabbitmq.RoutingKeyWhatsapp, mock.Anything).Return(nil).Once()

	req := validSubmission()
	req.ContactType = models.ContactWhatsapp
	req.RecipientContact = "+919900112233"

	_, err := service.Submit(context.Background(), "u-1", req)
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestService_Status(t *testing.T) {
	t.Run("cache miss reads repository and fills cache", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := New(repo, new(MockEntitlement), new(MockLedger), new(MockPublisher), cache, nil, newNoopLogger())

		cache.On("Get", "confession:status:sub-1", mock.Anything).Return(false, nil).Once()
		repo.On("GetConfessionBySubmissionID", mock.Anything, "u-1", "sub-1").
			Return(&models.Confession{SubmissionID: "sub-1", Status: models.ConfessionSent}, nil).Once()
		cache.On("Set", "confession:status:sub-1", mock.Anything, mock.Anything).Return(nil).Once()

		summary, err := service.Status(context.Background(), "u-1", "sub-1")
		require.NoError(t, err)
		assert.Equal(t, models.ConfessionSent, summary.Status)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("not found surfaces as ErrNotFound", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := New(repo, new(MockEntitlement), new(MockLedger), new(MockPublisher), cache, nil, newNoopLogger())

		cache.On("Get", mock.Anything, mock.Anything).Return(false, nil).Once()
		repo.On("GetConfessionBySubmissionID", mock.Anything, "u-1", "missing").
			Return(nil, repository.ErrNotFound).Once()

		_, err := service.Status(context.Background(), "u-1", "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestService_UserStatus(t *testing.T) {
	repo := new(MockRepository)
	ledger := new(MockLedger)
	service := New(repo, new(MockEntitlement), ledger, new(MockPublisher), new(MockCache), nil, newNoopLogger())

	repo.On("GetUser", mock.Anything, "u-1").
		Return(&models.User{UID: "u-1", Email: "u@example.com", FreeMessagesRemaining: 0}, nil).Once()
	ledger.On("IsEntitled", mock.Anything, "u-1", mock.Anything).
		Return(true, models.PlanLifetime, nil).Once()

	status, err := service.UserStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, status.HasSubscription)
	assert.True(t, status.CanSendMessage)
	require.NotNil(t, status.SubscriptionPlan)
	assert.Equal(t, models.PlanLifetime, *status.SubscriptionPlan)
}

func TestService_EnableDeveloper(t *testing.T) {
	tests := []struct {
		name       string
		allowlist  []string
		email      string
		setupMocks func(*MockRepository)
		wantErr    error
	}{
		{
			name:      "allowlisted user becomes developer",
			allowlist: []string{"dev@example.com"},
			email:     "dev@example.com",
			setupMocks: func(r *MockRepository) {
				r.On("SetDeveloper", mock.Anything, "u-1").Return(nil).Once()
			},
		},
		{
			name:       "user outside allowlist is rejected",
			allowlist:  []string{"dev@example.com"},
			email:      "user@example.com",
			setupMocks: func(_ *MockRepository) {},
			wantErr:    ErrNotAllowed,
		},
		{
			name:       "empty allowlist rejects everyone",
			allowlist:  nil,
			email:      "dev@example.com",
			setupMocks: func(_ *MockRepository) {},
			wantErr:    ErrNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("GetUser", mock.Anything, "u-1").
				Return(&models.User{UID: "u-1", Email: tt.email}, nil).Once()
			tt.setupMocks(repo)
			service := New(repo, new(MockEntitlement), new(MockLedger), new(MockPublisher),
				new(MockCache), tt.allowlist, newNoopLogger())

			err := service.EnableDeveloper(context.Background(), "u-1")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}
