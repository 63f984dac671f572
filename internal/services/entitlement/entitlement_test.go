package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error) {
	args := m.Called(ctx, userUID, now)
	return args.Bool(0), args.String(1), args.Error(2)
}

func TestService_Authorize(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		user       *models.User
		setupMocks func(*MockLedger)
		wantClass  string
		wantPlan   string
		wantErr    error
	}{
		{
			name: "developer wins over quota and subscription",
			user: &models.User{UID: "u1", IsDeveloper: true, FreeMessagesRemaining: 1},
			setupMocks: func(_ *MockLedger) {},
			wantClass:  ClassDeveloper,
		},
		{
			name: "free quota wins over subscription",
			user: &models.User{UID: "u1", FreeMessagesRemaining: 1},
			setupMocks: func(_ *MockLedger) {},
			wantClass:  ClassFree,
		},
		{
			name: "subscription when quota is spent",
			user: &models.User{UID: "u1", FreeMessagesRemaining: 0},
			setupMocks: func(l *MockLedger) {
				l.On("IsEntitled", mock.Anything, "u1", now).Return(true, models.PlanLifetime, nil).Once()
			},
			wantClass: ClassSubscription,
			wantPlan:  models.PlanLifetime,
		},
		{
			name: "denied when nothing is left",
			user: &models.User{UID: "u1", FreeMessagesRemaining: 0},
			setupMocks: func(l *MockLedger) {
				l.On("IsEntitled", mock.Anything, "u1", now).Return(false, "", nil).Once()
			},
			wantErr: ErrNotEntitled,
		},
		{
			name: "ledger error surfaces",
			user: &models.User{UID: "u1", FreeMessagesRemaining: 0},
			setupMocks: func(l *MockLedger) {
				l.On("IsEntitled", mock.Anything, "u1", now).Return(false, "", errors.New("db down")).Once()
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(MockLedger)
			tt.setupMocks(ledger)
			service := New(ledger)

			decision, err := service.Authorize(context.Background(), tt.user, now)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrNotEntitled) {
					require.ErrorIs(t, err, ErrNotEntitled)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantClass, decision.Class)
				assert.Equal(t, tt.wantPlan, decision.Plan)
			}
			ledger.AssertExpectations(t)
		})
	}
}

func TestService_Authorize_DeveloperRepeatable(t *testing.T) {
	// Разработчик отправляет подряд без списания квоты
	ledger := new(MockLedger)
	service := New(ledger)
	user := &models.User{UID: "dev", IsDeveloper: true, FreeMessagesRemaining: 0}

	for range 5 {
		decision, err := service.Authorize(context.Background(), user, time.Now())
		require.NoError(t, err)
		assert.Equal(t, ClassDeveloper, decision.Class)
	}
	ledger.AssertNotCalled(t, "IsEntitled", mock.Anything, mock.Anything, mock.Anything)
}
