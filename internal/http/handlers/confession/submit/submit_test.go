package submit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/services/confession"
	"github.com/unsaidapp/unsaid-backend/internal/services/entitlement"
)

// MockService реализует интерфейс submit.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, userUID string, req models.DummySubmission) (*confession.SubmitResult, error) {
	args := m.Called(ctx, userUID, req)
	if res := args.Get(0); res != nil {
		return res.(*confession.SubmitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSubmitHandler(t *testing.T) {
	validBody := `{"message":"something that stayed unsaid for years","recipient_name":"Alex","recipient_contact":"alex@example.com","contact_type":"email"}`

	tests := []struct {
		name           string
		body           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешная отправка сообщения",
			body:    validBody,
			userUID: "u-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", mock.Anything).
					Return(&confession.SubmitResult{
						SubmissionID: "sub-1",
						Status:       models.ConfessionPending,
						QuotaClass:   entitlement.ClassFree,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"submission_id":"sub-1"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{not json`,
			userUID:        "u-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "слишком короткое сообщение",
			body:           `{"message":"short","recipient_name":"Alex","recipient_contact":"alex@example.com","contact_type":"email"}`,
			userUID:        "u-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Message is too short`,
		},
		{
			name:           "неизвестный тип контакта",
			body:           `{"message":"something that stayed unsaid for years","recipient_name":"Alex","recipient_contact":"alex@example.com","contact_type":"telegram"}`,
			userUID:        "u-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field ContactType must be one of`,
		},
		{
			name:           "нет пользователя в контексте",
			body:           validBody,
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:    "нет права на отправку",
			body:    validBody,
			userUID: "u-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", mock.Anything).
					Return(nil, entitlement.ErrNotEntitled)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `no free messages or active subscription`,
		},
		{
			name:    "ошибка сервиса",
			body:    validBody,
			userUID: "u-1",
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, "u-1", mock.Anything).
					Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not submit confession`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/confessions", strings.NewReader(tt.body))
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				req = req.WithContext(ctx)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
