package identity

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

	"github.com/unsaidapp/unsaid-backend/internal/lib/jwt"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	args := m.Called(ctx, googleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error) {
	args := m.Called(ctx, userUID, now)
	return args.Bool(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Authenticate(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	req := models.GoogleAuthRequest{
		GoogleID: "g-1",
		Email:    "user@example.com",
		Name:     "User",
	}

	tests := []struct {
		name        string
		setupMocks  func(*MockRepository, *MockLedger)
		wantErr     bool
		wantSub     bool
		wantUserUID string
	}{
		{
			name: "existing user logs in",
			setupMocks: func(r *MockRepository, l *MockLedger) {
				r.On("GetUserByGoogleID", mock.Anything, "g-1").
					Return(&models.User{UID: "u-1", Email: "user@example.com", FreeMessagesRemaining: 0}, nil).Once()
				l.On("IsEntitled", mock.Anything, "u-1", mock.Anything).Return(true, models.PlanPremium, nil).Once()
			},
			wantSub:     true,
			wantUserUID: "u-1",
		},
		{
			name: "first login creates user with free message",
			setupMocks: func(r *MockRepository, l *MockLedger) {
				r.On("GetUserByGoogleID", mock.Anything, "g-1").
					Return(nil, repository.ErrNotFound).Once()
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.GoogleID == "g-1" && u.Email == "user@example.com"
				})).Return("u-new", nil).Once()
				r.On("GetUser", mock.Anything, "u-new").
					Return(&models.User{UID: "u-new", Email: "user@example.com", FreeMessagesRemaining: 1}, nil).Once()
				l.On("IsEntitled", mock.Anything, "u-new", mock.Anything).Return(false, "", nil).Once()
			},
			wantSub:     false,
			wantUserUID: "u-new",
		},
		{
			name: "lookup error surfaces",
			setupMocks: func(r *MockRepository, _ *MockLedger) {
				r.On("GetUserByGoogleID", mock.Anything, "g-1").
					Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			ledger := new(MockLedger)
			tt.setupMocks(repo, ledger)
			service := New(repo, ledger, maker, newNoopLogger())

			result, err := service.Authenticate(context.Background(), req)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, result.User.UID)
				assert.Equal(t, tt.wantSub, result.HasSubscription)

				claims, err := maker.ParseToken(result.Token)
				require.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, claims.UserUID)
			}
			repo.AssertExpectations(t)
			ledger.AssertExpectations(t)
		})
	}
}
